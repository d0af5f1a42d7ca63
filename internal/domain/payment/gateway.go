package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrGatewayRejected marks a non-success gateway response.
var ErrGatewayRejected = errors.New("payment: gateway rejected request")

type BillingType string

const (
	BillingPix        BillingType = "PIX"
	BillingCreditCard BillingType = "CREDIT_CARD"
	BillingBoleto     BillingType = "BOLETO"
)

// BillingTypeFor maps an internal payment method to the gateway vocabulary.
// Debit cards are charged through the credit card rail.
func BillingTypeFor(method string) (BillingType, error) {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case "PIX":
		return BillingPix, nil
	case "CREDIT_CARD", "DEBIT_CARD":
		return BillingCreditCard, nil
	case "BOLETO":
		return BillingBoleto, nil
	default:
		return "", ErrUnsupportedMethod
	}
}

type ChargeRequest struct {
	CustomerID        string
	BillingType       BillingType
	Value             decimal.Decimal
	DueDate           time.Time
	Description       string
	ExternalReference string
}

type Charge struct {
	ID          string
	CustomerID  string
	Status      string
	DateCreated time.Time
	InvoiceURL  string
	PaymentLink string
}

type PixQrCode struct {
	EncodedImage string
	Payload      string
}

type CustomerRequest struct {
	Name              string
	CpfCnpj           string
	Email             string
	Phone             string
	MobilePhone       string
	Address           string
	PostalCode        string
	ExternalReference string
}

type Customer struct {
	ID    string
	Name  string
	Email string
}

// Gateway is the external payment provider.
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	GetPixQrCode(ctx context.Context, paymentID string) (*PixQrCode, error)
	CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error)
}

// DataImageURL turns a base64 PNG into a data URL. Blank input yields "".
func DataImageURL(encoded string) string {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return ""
	}
	if strings.HasPrefix(encoded, "data:") {
		return encoded
	}
	return "data:image/png;base64," + encoded
}
