package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"

	"github.com/jmoiron/sqlx"
)

type mappingRow struct {
	ID                 string    `db:"id"`
	ExternalCustomerID string    `db:"external_customer_id"`
	UserID             int64     `db:"user_id"`
	Name               string    `db:"name"`
	Email              string    `db:"email"`
	CreatedAt          time.Time `db:"created_at"`
}

type CustomerRepository struct {
	db *sqlx.DB
}

func NewCustomerRepository(db *sqlx.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) FindByUserID(ctx context.Context, userID int64) (*domain.Mapping, error) {
	var row mappingRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, external_customer_id, user_id, name, email, created_at FROM customer_mappings WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get customer mapping: %w", err)
	}
	return &domain.Mapping{
		ID:                 row.ID,
		ExternalCustomerID: row.ExternalCustomerID,
		UserID:             row.UserID,
		Name:               row.Name,
		Email:              row.Email,
		CreatedAt:          row.CreatedAt,
	}, nil
}

func (r *CustomerRepository) ExistsByUserID(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM customer_mappings WHERE user_id = $1)`, userID); err != nil {
		return false, fmt.Errorf("postgres: check customer mapping: %w", err)
	}
	return exists, nil
}

func (r *CustomerRepository) Insert(ctx context.Context, m *domain.Mapping) error {
	row := mappingRow{
		ID:                 m.ID,
		ExternalCustomerID: m.ExternalCustomerID,
		UserID:             m.UserID,
		Name:               m.Name,
		Email:              m.Email,
		CreatedAt:          m.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO customer_mappings
		(id, external_customer_id, user_id, name, email, created_at)
		VALUES (:id, :external_customer_id, :user_id, :name, :email, :created_at)`, row)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("postgres: insert customer mapping: %w", err)
	}
	return nil
}
