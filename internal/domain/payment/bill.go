package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound           = errors.New("payment: bill not found")
	ErrConflict           = errors.New("payment: bill already exists")
	ErrUnsupportedMethod  = errors.New("payment: unsupported payment method")
	ErrPaymentIDRequired  = errors.New("payment: payment id is required")
	ErrOrderAlreadyLinked = errors.New("payment: bill is linked to another order")
	ErrStaleStatus        = errors.New("payment: bill status changed concurrently")
)

// Gateway status codes meaning the funds were received.
var approvedStatuses = map[string]struct{}{
	"RECEIVED":         {},
	"CONFIRMED":        {},
	"RECEIVED_IN_CASH": {},
}

// Gateway status codes meaning the charge will not be paid.
var declinedStatuses = map[string]struct{}{
	"OVERDUE":              {},
	"REFUNDED":             {},
	"CHARGEBACK_REQUESTED": {},
}

// NormalizeStatus trims and upper-cases a gateway status.
func NormalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func IsApprovedStatus(s string) bool {
	_, ok := approvedStatuses[NormalizeStatus(s)]
	return ok
}

func IsDeclinedStatus(s string) bool {
	_, ok := declinedStatuses[NormalizeStatus(s)]
	return ok
}

// Bill mirrors one externally issued charge.
type Bill struct {
	ID             string
	PaymentID      string
	OrderID        string
	CustomerID     string
	Status         string
	Value          decimal.Decimal
	DateCreated    time.Time
	InvoiceURL     string
	PaymentLink    string
	PixQrCodeImage string
	PixCopyPaste   string
	UpdatedAt      time.Time
}

// Transition reports what a status update changed.
type Transition struct {
	Previous string
	Current  string
	Approved bool // moved from a non-approved into an approved status
	Declined bool // moved from a non-declined, non-approved status into a declined one
}

// Changed reports whether the stored status changed at all.
func (t Transition) Changed() bool { return t.Previous != t.Current }

// ApplyStatus stores status when it is not blank and reports the transition.
func (b *Bill) ApplyStatus(status string) Transition {
	t := Transition{Previous: b.Status, Current: b.Status}
	if strings.TrimSpace(status) == "" {
		return t
	}
	next := strings.TrimSpace(status)
	t.Current = next
	t.Approved = !IsApprovedStatus(b.Status) && IsApprovedStatus(next)
	t.Declined = !IsApprovedStatus(b.Status) && !IsDeclinedStatus(b.Status) && IsDeclinedStatus(next)
	if next != b.Status {
		b.Status = next
		b.UpdatedAt = time.Now().UTC()
	}
	return t
}

// LinkOrder attaches the order that created the charge. It reports false when already linked to orderID.
func (b *Bill) LinkOrder(orderID string) (bool, error) {
	switch b.OrderID {
	case orderID:
		return false, nil
	case "":
		b.OrderID = orderID
		b.UpdatedAt = time.Now().UTC()
		return true, nil
	default:
		return false, ErrOrderAlreadyLinked
	}
}

func (b *Bill) Clone() *Bill {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// Repository persists bills. Each write touches only the columns it names, and events
// passed to it are recorded in the outbox atomically with the write.
type Repository interface {
	// Insert fails with ErrConflict when the payment id is taken.
	Insert(ctx context.Context, b *Bill, events ...domoutbox.Event) error
	FindByPaymentID(ctx context.Context, paymentID string) (*Bill, error)
	// UpdateStatus sets the status only while the stored one still equals from, failing with ErrStaleStatus otherwise.
	UpdateStatus(ctx context.Context, paymentID, from, to string, events ...domoutbox.Event) error
	// LinkOrder sets the order id of a bill that has none. It fails with ErrOrderAlreadyLinked
	// when the bill already carries an order id.
	LinkOrder(ctx context.Context, paymentID, orderID string, events ...domoutbox.Event) error
}
