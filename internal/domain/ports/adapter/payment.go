package adapter

import (
	"context"

	"github.com/shopspring/decimal"
)

// KeyType tells the gateway how to interpret a status lookup key.
type KeyType string

const (
	KeyInvoiceID KeyType = "InvoiceId"
	KeyPaymentID KeyType = "PaymentId"
)

// InvoiceItem is one line on the gateway invoice.
type InvoiceItem struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// InvoiceRequest describes the charge presented to the member.
type InvoiceRequest struct {
	Amount         decimal.Decimal
	Currency       string
	CustomerName   string
	CustomerEmail  string
	CustomerMobile string
	Items          []InvoiceItem
	CallbackURL    string
	ErrorURL       string
	ReferenceID    string // our correlation id, echoed back by the provider
}

// PaymentMethod is a provider payment option formatted for display.
type PaymentMethod struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	Code            string          `json:"code"`
	ImageURL        string          `json:"imageUrl"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Currency        string          `json:"currency"`
	ServiceCharge   decimal.Decimal `json:"serviceCharge"`
	IsDirectPayment bool            `json:"isDirectPayment"`
}

// ExecuteResult is the provider handle for a started payment.
type ExecuteResult struct {
	InvoiceID  string
	PaymentURL string
}

// PaymentStatus is the provider's view of an invoice.
type PaymentStatus struct {
	InvoiceID string
	Status    string // e.g. "Paid", "Pending", "Failed"
	Amount    decimal.Decimal
	Message   string
}

// PaymentGateway is the hex port for the payment provider.
type PaymentGateway interface {
	Name() string

	// Initiate lists the payment methods available for the invoice amount.
	Initiate(ctx context.Context, req InvoiceRequest) ([]PaymentMethod, error)
	// Execute starts a payment with the chosen method and returns where to send the member.
	Execute(ctx context.Context, req InvoiceRequest, methodID int) (*ExecuteResult, error)
	// GetStatus looks an invoice up by key, interpreted according to keyType.
	GetStatus(ctx context.Context, key string, keyType KeyType) (*PaymentStatus, error)
}
