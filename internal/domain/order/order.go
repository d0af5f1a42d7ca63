package order

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: already exists")
	ErrEmptyProducts          = errors.New("order: product list is empty")
	ErrInvalidAmount          = errors.New("order: total must be greater than zero")
	ErrInvalidMethod          = errors.New("order: unsupported payment method")
	ErrPaymentIDRequired      = errors.New("order: payment id is required")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrStaleStatus            = errors.New("order: status changed concurrently")
)

type Status string

const (
	StatusPending          Status = "PENDING"
	StatusPaymentRequested Status = "PAYMENT_REQUESTED"
	StatusPaymentApproved  Status = "PAYMENT_APPROVED"
	StatusPaymentDeclined  Status = "PAYMENT_DECLINED"
	StatusCompleted        Status = "COMPLETED"
)

type PaymentMethod string

const (
	MethodPix        PaymentMethod = "PIX"
	MethodCreditCard PaymentMethod = "CREDIT_CARD"
	MethodDebitCard  PaymentMethod = "DEBIT_CARD"
	MethodBoleto     PaymentMethod = "BOLETO"
)

// ParsePaymentMethod accepts the method names case-insensitively.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodPix, MethodCreditCard, MethodDebitCard, MethodBoleto:
		return m, nil
	default:
		return "", ErrInvalidMethod
	}
}

// PaymentArtifacts are the display handles returned by the gateway for a charge.
type PaymentArtifacts struct {
	PaymentLink    string
	InvoiceURL     string
	PixQrCodeImage string
	PixCopyPaste   string
}

type Order struct {
	ID            string
	UserID        int64
	ProductIDs    []int64
	TotalPrice    decimal.Decimal
	PaymentMethod PaymentMethod
	PaymentID     string
	CustomerID    string
	Artifacts     PaymentArtifacts
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type NewParams struct {
	ID            string
	UserID        int64
	ProductIDs    []int64
	TotalPrice    decimal.Decimal
	PaymentMethod PaymentMethod
	PaymentID     string
	CustomerID    string
	Artifacts     PaymentArtifacts
}

// New builds a PENDING order for a charge that already exists.
func New(p NewParams) (*Order, error) {
	if len(p.ProductIDs) == 0 {
		return nil, ErrEmptyProducts
	}
	if !p.TotalPrice.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := ParsePaymentMethod(string(p.PaymentMethod)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.PaymentID) == "" {
		return nil, ErrPaymentIDRequired
	}

	now := time.Now().UTC()
	return &Order{
		ID:            p.ID,
		UserID:        p.UserID,
		ProductIDs:    append([]int64(nil), p.ProductIDs...),
		TotalPrice:    p.TotalPrice.Round(2),
		PaymentMethod: p.PaymentMethod,
		PaymentID:     strings.TrimSpace(p.PaymentID),
		CustomerID:    p.CustomerID,
		Artifacts:     p.Artifacts,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// DisplayLink prefers the payment link and falls back to the invoice URL.
func (a PaymentArtifacts) DisplayLink() string {
	if strings.TrimSpace(a.PaymentLink) != "" {
		return a.PaymentLink
	}
	return a.InvoiceURL
}

func (o *Order) IsCompleted() bool { return o.Status == StatusCompleted }

// MarkPaymentRequested records that the charge request was announced on the bus.
func (o *Order) MarkPaymentRequested() error {
	return o.transition(stateFor(o.Status).OnPaymentRequested)
}

// ApprovePayment moves the order through PAYMENT_APPROVED to COMPLETED.
// It reports false when the order was already completed.
func (o *Order) ApprovePayment() (bool, error) {
	if o.IsCompleted() {
		return false, nil
	}
	if err := o.transition(stateFor(o.Status).OnPaymentApproved); err != nil {
		return false, err
	}
	if err := o.transition(stateFor(o.Status).OnComplete); err != nil {
		return false, err
	}
	return true, nil
}

// DeclinePayment moves a not yet completed order to PAYMENT_DECLINED.
// It reports false when nothing changed.
func (o *Order) DeclinePayment() (bool, error) {
	if o.Status == StatusPaymentDeclined {
		return false, nil
	}
	if err := o.transition(stateFor(o.Status).OnPaymentDeclined); err != nil {
		return false, err
	}
	return true, nil
}

func (o *Order) transition(step func() (OrderState, error)) error {
	next, err := step()
	if err != nil {
		return err
	}
	if next.Status() != o.Status {
		o.Status = next.Status()
		o.touch()
	}
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.ProductIDs = append([]int64(nil), o.ProductIDs...)
	return &c
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
