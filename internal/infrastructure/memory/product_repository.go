package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
)

type ProductRepository struct {
	mu       sync.RWMutex
	products map[int64]*domain.Product
	applied  map[string]struct{} // order ids already decremented
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[int64]*domain.Product),
		applied:  make(map[string]struct{}),
	}
}

func (r *ProductRepository) Get(ctx context.Context, id int64) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *ProductRepository) Save(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[p.ID] = p.Clone()
	return nil
}

func (r *ProductRepository) DecreaseForOrder(ctx context.Context, orderID string, lines []domain.Line) (*domain.StockUpdate, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, done := r.applied[orderID]; done {
		return nil, domain.ErrOrderApplied
	}

	update := &domain.StockUpdate{Remaining: make(map[int64]int, len(lines))}
	for _, l := range lines {
		p, ok := r.products[l.ProductID]
		if !ok {
			update.Missing = append(update.Missing, l.ProductID)
			continue
		}
		p.Decrease(l.Quantity)
		update.Remaining[l.ProductID] = p.Quantity
	}
	r.applied[orderID] = struct{}{}
	return update, nil
}
