package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentApprovedEvent reports a settled (or, with Approved=false, failed) charge.
// It is keyed by the payment id, the handle both the webhook and the order share.
type PaymentApprovedEvent struct {
	PaymentID  string          `json:"paymentId"`
	OrderID    string          `json:"orderId,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	Approved   bool            `json:"approved"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func (PaymentApprovedEvent) EventName() string { return "payment.approved" }

func (e PaymentApprovedEvent) PartitionKey() string { return e.PaymentID }

func NewPaymentApprovedEvent(b *Bill, amount decimal.Decimal, approved bool) PaymentApprovedEvent {
	return PaymentApprovedEvent{
		PaymentID:  b.PaymentID,
		OrderID:    b.OrderID,
		Amount:     amount,
		Status:     NormalizeStatus(b.Status),
		Approved:   approved,
		OccurredAt: time.Now().UTC(),
	}
}

// SettlementEvent returns the event a bill already in an approved or declined status implies.
func (b *Bill) SettlementEvent() (PaymentApprovedEvent, bool) {
	switch {
	case IsApprovedStatus(b.Status):
		return NewPaymentApprovedEvent(b, b.Value, true), true
	case IsDeclinedStatus(b.Status):
		return NewPaymentApprovedEvent(b, b.Value, false), true
	default:
		return PaymentApprovedEvent{}, false
	}
}
