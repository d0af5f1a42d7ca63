package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

type BillRepository struct {
	mu     sync.RWMutex
	bills  map[string]*domain.Bill // payment id -> bill
	outbox *Outbox
}

// NewBillRepository records events of its writes in box. A nil box drops them.
func NewBillRepository(box *Outbox) *BillRepository {
	return &BillRepository{bills: make(map[string]*domain.Bill), outbox: box}
}

func (r *BillRepository) Insert(ctx context.Context, b *domain.Bill, events ...domoutbox.Event) error {
	_ = ctx
	if b == nil || b.PaymentID == "" {
		return domain.ErrPaymentIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bills[b.PaymentID]; exists {
		return domain.ErrConflict
	}
	r.bills[b.PaymentID] = b.Clone()
	r.outbox.append(events...)
	return nil
}

func (r *BillRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Bill, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bills[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b.Clone(), nil
}

func (r *BillRepository) UpdateStatus(ctx context.Context, paymentID, from, to string, events ...domoutbox.Event) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.stored(paymentID)
	if err != nil {
		return err
	}
	if b.Status != from {
		return domain.ErrStaleStatus
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	r.outbox.append(events...)
	return nil
}

func (r *BillRepository) LinkOrder(ctx context.Context, paymentID, orderID string, events ...domoutbox.Event) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.stored(paymentID)
	if err != nil {
		return err
	}
	if b.OrderID != "" {
		return domain.ErrOrderAlreadyLinked
	}
	b.OrderID = orderID
	b.UpdatedAt = time.Now().UTC()
	r.outbox.append(events...)
	return nil
}

// stored must be called with mu held.
func (r *BillRepository) stored(paymentID string) (*domain.Bill, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("bill repository: %w", domain.ErrPaymentIDRequired)
	}
	b, ok := r.bills[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}
