package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRequestedEvent announces that an order is waiting on its charge.
type PaymentRequestedEvent struct {
	OrderID    string          `json:"orderId"`
	UserID     int64           `json:"userId"`
	ProductIDs []int64         `json:"productIds"`
	Amount     decimal.Decimal `json:"amount"`
	PaymentID  string          `json:"paymentId"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func (PaymentRequestedEvent) EventName() string { return "payment.requested" }

func (e PaymentRequestedEvent) PartitionKey() string { return e.OrderID }

func NewPaymentRequestedEvent(o *Order) PaymentRequestedEvent {
	return PaymentRequestedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		ProductIDs: append([]int64(nil), o.ProductIDs...),
		Amount:     o.TotalPrice,
		PaymentID:  o.PaymentID,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCompletedEvent is emitted once per order when its payment is settled.
type OrderCompletedEvent struct {
	OrderID    string          `json:"orderId"`
	UserID     int64           `json:"userId"`
	ProductIDs []int64         `json:"productIds"`
	Amount     decimal.Decimal `json:"amount"`
	Status     Status          `json:"status"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func (OrderCompletedEvent) EventName() string { return "order.completed" }

func (e OrderCompletedEvent) PartitionKey() string { return e.OrderID }

func NewOrderCompletedEvent(o *Order) OrderCompletedEvent {
	return OrderCompletedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		ProductIDs: append([]int64(nil), o.ProductIDs...),
		Amount:     o.TotalPrice,
		Status:     o.Status,
		OccurredAt: time.Now().UTC(),
	}
}
