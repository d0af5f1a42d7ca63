package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
)

type OrderRepository struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	byPayment map[string]string
	outbox    *Outbox
}

// NewOrderRepository records events of its writes in box. A nil box drops them.
func NewOrderRepository(box *Outbox) *OrderRepository {
	return &OrderRepository{
		orders:    make(map[string]*domain.Order),
		byPayment: make(map[string]string),
		outbox:    box,
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order, events ...domoutbox.Event) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	if _, exists := r.byPayment[order.PaymentID]; exists {
		return domain.ErrConflict
	}

	r.orders[order.ID] = order.Clone()
	r.byPayment[order.PaymentID] = order.ID
	r.outbox.append(events...)
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPayment[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.orders[id].Clone(), nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status, events ...domoutbox.Event) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.orders[id]
	if !exists {
		return domain.ErrNotFound
	}
	if current.Status != from {
		return domain.ErrStaleStatus
	}
	current.Status = to
	current.UpdatedAt = time.Now().UTC()
	r.outbox.append(events...)
	return nil
}
