package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"bds-membership/internal/config"
	pg "bds-membership/internal/infra/db/postgres"
)

// seed inserts the membership plans and a sample paid event for local
// payment testing. Existing rows are left as they are.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	plans := []struct {
		ID, Name, Display string
		Registration      string
		Annual            string
		RegWaived         bool
	}{
		{"plan-dentist", "dentist", "Dentist Membership", "10.000", "30.000", false},
		{"plan-hygienist", "hygienist", "Hygienist Membership", "5.000", "15.000", false},
		{"plan-student", "student", "Student Membership", "0.000", "10.000", true},
	}
	for _, p := range plans {
		tag, err := pool.Exec(ctx, `
			INSERT INTO subscription_plans (id, name, display_name, registration_fee, annual_fee, registration_waived, duration_months)
			VALUES ($1,$2,$3,$4,$5,$6,12) ON CONFLICT (id) DO NOTHING`,
			p.ID, p.Name, p.Display, decimal.RequireFromString(p.Registration), decimal.RequireFromString(p.Annual), p.RegWaived)
		if err != nil {
			log.Fatalf("seed plan %q: %v", p.Name, err)
		}
		if tag.RowsAffected() == 0 {
			fmt.Printf("  - %s already present\n", p.Display)
			continue
		}
		fmt.Printf("seeded: %s (registration=%s, annual=%s BHD)\n", p.Display, p.Registration, p.Annual)
	}

	start := time.Now().AddDate(0, 1, 0).Truncate(24 * time.Hour)
	tag, err := pool.Exec(ctx, `
		INSERT INTO events (id, title, is_paid, start_datetime, end_datetime, early_bird_deadline, standard_deadline,
			regular_price, regular_standard_price, regular_onsite_price,
			member_price, member_standard_price, member_onsite_price,
			student_price, hygienist_price)
		VALUES ('evt-sample', 'Sample CPD Workshop', TRUE, $1, $2, $3, $4, 40, 50, 60, 25, 30, 35, 10, 15)
		ON CONFLICT (id) DO NOTHING`,
		start, start.Add(6*time.Hour), start.AddDate(0, 0, -21), start.AddDate(0, 0, -7))
	if err != nil {
		log.Fatalf("seed event: %v", err)
	}
	if tag.RowsAffected() > 0 {
		fmt.Println("seeded: Sample CPD Workshop (evt-sample)")
	}

	fmt.Println("Seeding complete.")
}
