package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/ports/adapter"
	"bds-membership/internal/infra/logging"
	"bds-membership/internal/infra/metrics"
)

const (
	DefaultMyFatoorahURL = "https://apitest.myfatoorah.com"

	msgNotConfigured = "Payment gateway is not configured. Please contact support."
	msgGatewayFailed = "Payment gateway request failed"
)

var _ adapter.PaymentGateway = (*MyFatoorahGateway)(nil)

// MyFatoorahGateway talks to the MyFatoorah v2 REST API with a bearer key.
type MyFatoorahGateway struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewMyFatoorahGateway builds a client for one merchant account. name tells
// the subscription and event accounts apart in logs.
func NewMyFatoorahGateway(name, baseURL, apiKey string, timeout time.Duration, logger *zerolog.Logger) *MyFatoorahGateway {
	if baseURL == "" {
		baseURL = DefaultMyFatoorahURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MyFatoorahGateway{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: timeout},
		log:     logger.With().Str("component", "MyFatoorahGateway").Str("account", name).Logger(),
	}
}

func (g *MyFatoorahGateway) Name() string { return g.name }

// envelope is the wrapper every MyFatoorah response comes in.
type envelope struct {
	IsSuccess        bool              `json:"IsSuccess"`
	Message          string            `json:"Message"`
	ValidationErrors []validationError `json:"ValidationErrors"`
	Data             json.RawMessage   `json:"Data"`
}

type validationError struct {
	Name  string `json:"Name"`
	Error string `json:"Error"`
}

type invoiceItem struct {
	ItemName  string      `json:"ItemName"`
	Quantity  int         `json:"Quantity"`
	UnitPrice json.Number `json:"UnitPrice"`
}

type paymentRequest struct {
	InvoiceValue       json.Number   `json:"InvoiceValue,omitempty"`
	InvoiceAmount      json.Number   `json:"InvoiceAmount,omitempty"`
	CurrencyIso        string        `json:"CurrencyIso"`
	DisplayCurrencyIso string        `json:"DisplayCurrencyIso,omitempty"`
	PaymentMethodId    int           `json:"PaymentMethodId,omitempty"`
	CustomerName       string        `json:"CustomerName,omitempty"`
	CustomerEmail      string        `json:"CustomerEmail,omitempty"`
	CustomerMobile     string        `json:"CustomerMobile,omitempty"`
	CallBackUrl        string        `json:"CallBackUrl,omitempty"`
	ErrorUrl           string        `json:"ErrorUrl,omitempty"`
	CustomerReference  string        `json:"CustomerReference,omitempty"`
	InvoiceItems       []invoiceItem `json:"InvoiceItems,omitempty"`
}

type initiateData struct {
	PaymentMethods []struct {
		PaymentMethodId   int             `json:"PaymentMethodId"`
		PaymentMethodEn   string          `json:"PaymentMethodEn"`
		PaymentMethodCode string          `json:"PaymentMethodCode"`
		ImageUrl          string          `json:"ImageUrl"`
		IsDirectPayment   bool            `json:"IsDirectPayment"`
		ServiceCharge     decimal.Decimal `json:"ServiceCharge"`
		TotalAmount       decimal.Decimal `json:"TotalAmount"`
		CurrencyIso       string          `json:"CurrencyIso"`
	} `json:"PaymentMethods"`
}

type executeData struct {
	InvoiceId  json.Number `json:"InvoiceId"`
	PaymentURL string      `json:"PaymentURL"`
}

type statusData struct {
	InvoiceId           json.Number     `json:"InvoiceId"`
	InvoiceStatus       string          `json:"InvoiceStatus"`
	InvoiceValue        decimal.Decimal `json:"InvoiceValue"`
	InvoiceTransactions []struct {
		TransactionStatus string `json:"TransactionStatus"`
		Error             string `json:"Error"`
	} `json:"InvoiceTransactions"`
}

// Initiate implements adapter.PaymentGateway.
func (g *MyFatoorahGateway) Initiate(ctx context.Context, req adapter.InvoiceRequest) (methods []adapter.PaymentMethod, err error) {
	defer g.observe("initiate", time.Now(), &err)

	body := paymentRequest{InvoiceAmount: amount(req.Amount), CurrencyIso: currency(req.Currency)}
	var data initiateData
	if err := g.call(ctx, "/v2/InitiatePayment", body, &data); err != nil {
		return nil, err
	}
	for _, m := range data.PaymentMethods {
		methods = append(methods, adapter.PaymentMethod{
			ID:              m.PaymentMethodId,
			Name:            m.PaymentMethodEn,
			Code:            m.PaymentMethodCode,
			ImageURL:        m.ImageUrl,
			TotalAmount:     m.TotalAmount,
			Currency:        m.CurrencyIso,
			ServiceCharge:   m.ServiceCharge,
			IsDirectPayment: m.IsDirectPayment,
		})
	}
	return methods, nil
}

// Execute implements adapter.PaymentGateway.
func (g *MyFatoorahGateway) Execute(ctx context.Context, req adapter.InvoiceRequest, methodID int) (res *adapter.ExecuteResult, err error) {
	defer g.observe("execute", time.Now(), &err)

	if methodID <= 0 {
		return nil, domain.E(domain.ErrInvalidArgument, "Payment method is required")
	}
	cur := currency(req.Currency)
	body := paymentRequest{
		InvoiceValue:       amount(req.Amount),
		CurrencyIso:        cur,
		DisplayCurrencyIso: cur,
		PaymentMethodId:    methodID,
		CustomerName:       req.CustomerName,
		CustomerEmail:      req.CustomerEmail,
		CustomerMobile:     req.CustomerMobile,
		CallBackUrl:        req.CallbackURL,
		ErrorUrl:           req.ErrorURL,
		CustomerReference:  req.ReferenceID,
	}
	for _, it := range req.Items {
		body.InvoiceItems = append(body.InvoiceItems, invoiceItem{ItemName: it.Name, Quantity: it.Quantity, UnitPrice: amount(it.UnitPrice)})
	}

	var data executeData
	if err := g.call(ctx, "/v2/ExecutePayment", body, &data); err != nil {
		return nil, err
	}
	if data.InvoiceId == "" || data.PaymentURL == "" {
		return nil, domain.E(domain.ErrGateway, "Payment gateway returned an incomplete response")
	}
	return &adapter.ExecuteResult{InvoiceID: data.InvoiceId.String(), PaymentURL: data.PaymentURL}, nil
}

// GetStatus implements adapter.PaymentGateway.
func (g *MyFatoorahGateway) GetStatus(ctx context.Context, key string, keyType adapter.KeyType) (st *adapter.PaymentStatus, err error) {
	defer g.observe("status", time.Now(), &err)

	if strings.TrimSpace(key) == "" {
		return nil, domain.E(domain.ErrInvalidArgument, "status key is required")
	}
	if keyType == "" {
		keyType = adapter.KeyInvoiceID
	}
	body := map[string]string{"Key": key, "KeyType": string(keyType)}

	var data statusData
	if err := g.call(ctx, "/v2/GetPaymentStatus", body, &data); err != nil {
		return nil, err
	}
	st = &adapter.PaymentStatus{
		InvoiceID: data.InvoiceId.String(),
		Status:    data.InvoiceStatus,
		Amount:    data.InvoiceValue,
	}
	// The most recent transaction carries the decline reason, if any.
	for i := len(data.InvoiceTransactions) - 1; i >= 0; i-- {
		if e := strings.TrimSpace(data.InvoiceTransactions[i].Error); e != "" {
			st.Message = e
			break
		}
	}
	return st, nil
}

// call POSTs body to path and decodes the envelope's Data into out.
// Transport errors are returned wrapped so callers can still detect timeouts.
func (g *MyFatoorahGateway) call(ctx context.Context, path string, body, out any) error {
	if g.apiKey == "" {
		return domain.E(domain.ErrGateway, msgNotConfigured)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.Wrap(domain.ErrGateway, msgGatewayFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Wrap(domain.ErrGateway, msgGatewayFailed, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		g.log.Warn().Int("status", resp.StatusCode).Str("path", path).Str("body", logging.Redact(truncate(raw, 256), false)).Msg("undecodable gateway response")
		return domain.Wrap(domain.ErrGateway, msgGatewayFailed, fmt.Errorf("http %d: %w", resp.StatusCode, err))
	}
	if !env.IsSuccess {
		msg := envelopeMessage(env, resp.StatusCode)
		g.log.Warn().Int("status", resp.StatusCode).Str("path", path).Str("message", msg).Msg("gateway rejected request")
		return domain.E(domain.ErrGateway, msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return domain.Wrap(domain.ErrGateway, msgGatewayFailed, fmt.Errorf("failed to unmarshal data: %w", err))
		}
	}
	return nil
}

func (g *MyFatoorahGateway) observe(op string, start time.Time, err *error) {
	metrics.ObserveGateway(op, *err, time.Since(start))
}

func envelopeMessage(env envelope, status int) string {
	msg := strings.TrimSpace(env.Message)
	if msg == "" {
		msg = "Payment gateway error (HTTP " + strconv.Itoa(status) + ")"
	}
	if len(env.ValidationErrors) == 0 {
		return msg
	}
	parts := make([]string, 0, len(env.ValidationErrors))
	for _, v := range env.ValidationErrors {
		parts = append(parts, v.Name+": "+v.Error)
	}
	return msg + " - Validation Errors: " + strings.Join(parts, ", ")
}

// amount renders a BHD value as a bare JSON number with fils precision.
func amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(3))
}

func currency(c string) string {
	if c == "" {
		return "BHD"
	}
	return c
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
