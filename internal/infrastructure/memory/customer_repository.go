package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
)

type CustomerRepository struct {
	mu         sync.RWMutex
	byUser     map[int64]*domain.Mapping
	byExternal map[string]int64
}

func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{
		byUser:     make(map[int64]*domain.Mapping),
		byExternal: make(map[string]int64),
	}
}

func (r *CustomerRepository) FindByUserID(ctx context.Context, userID int64) (*domain.Mapping, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byUser[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.Clone(), nil
}

func (r *CustomerRepository) ExistsByUserID(ctx context.Context, userID int64) (bool, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byUser[userID]
	return ok, nil
}

// Insert enforces the same uniqueness the relational store does.
func (r *CustomerRepository) Insert(ctx context.Context, m *domain.Mapping) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUser[m.UserID]; exists {
		return domain.ErrConflict
	}
	if _, exists := r.byExternal[m.ExternalCustomerID]; exists && m.ExternalCustomerID != "" {
		return domain.ErrConflict
	}
	r.byUser[m.UserID] = m.Clone()
	if m.ExternalCustomerID != "" {
		r.byExternal[m.ExternalCustomerID] = m.UserID
	}
	return nil
}
