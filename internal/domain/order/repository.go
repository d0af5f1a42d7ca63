package order

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
)

// Repository persists orders. Events passed to a write are recorded in the outbox
// atomically with it and relayed afterwards.
type Repository interface {
	// Insert fails with ErrConflict when the id or the payment id is taken.
	Insert(ctx context.Context, order *Order, events ...domoutbox.Event) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*Order, error)
	// UpdateStatus persists a status change only while the stored status still equals from.
	// It fails with ErrStaleStatus otherwise, so concurrent redeliveries cannot both win.
	UpdateStatus(ctx context.Context, id string, from, to Status, events ...domoutbox.Event) error
}
