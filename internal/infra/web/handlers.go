package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/adapter"
	"bds-membership/internal/usecase"
)

type paymentMethodDTO struct {
	ID              int         `json:"id"`
	Name            string      `json:"name"`
	Code            string      `json:"code"`
	ImageURL        string      `json:"imageUrl"`
	TotalAmount     json.Number `json:"totalAmount"`
	Currency        string      `json:"currency"`
	ServiceCharge   json.Number `json:"serviceCharge"`
	IsDirectPayment bool        `json:"isDirectPayment"`
}

func paymentMethods(in []adapter.PaymentMethod) []paymentMethodDTO {
	out := make([]paymentMethodDTO, 0, len(in))
	for _, m := range in {
		out = append(out, paymentMethodDTO{
			ID:              m.ID,
			Name:            m.Name,
			Code:            m.Code,
			ImageURL:        m.ImageURL,
			TotalAmount:     money(m.TotalAmount),
			Currency:        m.Currency,
			ServiceCharge:   money(m.ServiceCharge),
			IsDirectPayment: m.IsDirectPayment,
		})
	}
	return out
}

type invoiceResponse struct {
	Success        bool               `json:"success"`
	PaymentMethods []paymentMethodDTO `json:"paymentMethods"`
	Amount         json.Number        `json:"amount"`
	Currency       string             `json:"currency"`
	PaymentID      string             `json:"payment_id,omitempty"`
	SubscriptionID string             `json:"subscription_id,omitempty"`
	EventID        string             `json:"event_id,omitempty"`
}

func invoiceResponseFrom(res *usecase.InvoiceResult) invoiceResponse {
	return invoiceResponse{
		Success:        true,
		PaymentMethods: paymentMethods(res.PaymentMethods),
		Amount:         money(res.Amount),
		Currency:       res.Currency,
		PaymentID:      res.PaymentID,
		SubscriptionID: res.SubscriptionID,
		EventID:        res.EventID,
	}
}

type redirectResponse struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"paymentUrl"`
	InvoiceID  string `json:"invoiceId"`
	PaymentID  string `json:"payment_id,omitempty"`
}

// ===== Membership payments =====

type createSubscriptionInvoiceRequest struct {
	SubscriptionID string          `json:"subscription_id"`
	PaymentID      string          `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentType    string          `json:"payment_type"`
	RedirectTo     string          `json:"redirect_to"`
}

func (s *Server) handleCreateSubscriptionInvoice(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionInvoiceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.invoices.CreateSubscriptionInvoice(r.Context(), usecase.SubscriptionInvoiceRequest{
		SubscriptionID: req.SubscriptionID,
		PaymentID:      req.PaymentID,
		Amount:         req.Amount,
		PaymentType:    req.PaymentType,
		RedirectTo:     safeRedirect(req.RedirectTo),
		CallerUserID:   MemberID(r.Context()),
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceResponseFrom(res))
}

type executeSubscriptionRequest struct {
	SubscriptionID  string `json:"subscription_id"`
	PaymentID       string `json:"payment_id"`
	PaymentMethodID int    `json:"payment_method_id"`
	RedirectTo      string `json:"redirect_to"`
}

func (s *Server) handleExecuteSubscriptionPayment(w http.ResponseWriter, r *http.Request) {
	var req executeSubscriptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.invoices.ExecuteSubscriptionPayment(r.Context(), usecase.ExecuteSubscriptionRequest{
		SubscriptionID:  req.SubscriptionID,
		PaymentID:       req.PaymentID,
		PaymentMethodID: req.PaymentMethodID,
		RedirectTo:      safeRedirect(req.RedirectTo),
		CallerUserID:    MemberID(r.Context()),
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, redirectResponse{Success: true, PaymentURL: res.PaymentURL, InvoiceID: res.InvoiceID, PaymentID: res.PaymentID})
}

// ===== Event payments =====

type eventPaymentRequest struct {
	EventID         string `json:"event_id"`
	PaymentMethodID int    `json:"payment_method_id"`
}

func (s *Server) handleCreateEventInvoice(w http.ResponseWriter, r *http.Request) {
	var req eventPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.invoices.CreateEventInvoice(r.Context(), usecase.EventInvoiceRequest{
		EventID: req.EventID,
		UserID:  MemberID(r.Context()),
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceResponseFrom(res))
}

func (s *Server) handleExecuteEventPayment(w http.ResponseWriter, r *http.Request) {
	var req eventPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.invoices.ExecuteEventPayment(r.Context(), usecase.ExecuteEventRequest{
		EventID:         req.EventID,
		UserID:          MemberID(r.Context()),
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, redirectResponse{Success: true, PaymentURL: res.PaymentURL, InvoiceID: res.InvoiceID, PaymentID: res.PaymentID})
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

type couponResponse struct {
	Success        bool                  `json:"success"`
	Code           string                `json:"code"`
	OriginalPrice  json.Number           `json:"originalPrice"`
	DiscountAmount json.Number           `json:"discountAmount"`
	FinalPrice     json.Number           `json:"finalPrice"`
	Category       model.PricingCategory `json:"category"`
	Tier           model.PricingTier     `json:"tier"`
}

func (s *Server) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	q, err := s.coupons.ApplyCoupon(r.Context(), usecase.ApplyCouponRequest{
		EventID: chi.URLParam(r, "eventID"),
		UserID:  MemberID(r.Context()),
		Code:    req.Code,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, couponResponse{
		Success:        true,
		Code:           q.Code,
		OriginalPrice:  money(q.OriginalPrice),
		DiscountAmount: money(q.DiscountAmount),
		FinalPrice:     money(q.FinalPrice),
		Category:       q.Category,
		Tier:           q.Tier,
	})
}

// ===== History =====

type historyItem struct {
	ID           string              `json:"id"`
	PaymentID    string              `json:"payment_id,omitempty"`
	InvoiceID    string              `json:"invoice_id,omitempty"`
	Amount       json.Number         `json:"amount"`
	Currency     string              `json:"currency"`
	Status       model.HistoryStatus `json:"status"`
	PaymentFor   string              `json:"payment_for"`
	ErrorMessage string              `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.history.ListForUser(r.Context(), MemberID(r.Context()), limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	items := make([]historyItem, 0, len(records))
	for _, h := range records {
		items = append(items, historyItem{
			ID:           h.ID,
			PaymentID:    h.PaymentID,
			InvoiceID:    h.InvoiceID,
			Amount:       money(h.Amount),
			Currency:     h.Currency,
			Status:       h.Status,
			PaymentFor:   h.PaymentFor,
			ErrorMessage: h.ErrorMessage,
			CreatedAt:    h.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "payments": items})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "database": "unreachable"})
			s.log.Error().Err(err).Msg("health check: database ping failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
