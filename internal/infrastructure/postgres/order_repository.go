package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type orderRow struct {
	ID             string          `db:"id"`
	UserID         int64           `db:"user_id"`
	ProductIDs     []byte          `db:"product_ids"`
	TotalPrice     decimal.Decimal `db:"total_price"`
	PaymentMethod  string          `db:"payment_method"`
	PaymentID      string          `db:"payment_id"`
	CustomerID     string          `db:"customer_id"`
	PaymentLink    string          `db:"payment_link"`
	InvoiceURL     string          `db:"invoice_url"`
	PixQrCodeImage string          `db:"pix_qr_code_image"`
	PixCopyPaste   string          `db:"pix_copy_paste"`
	Status         string          `db:"status"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

const orderColumns = `id, user_id, product_ids, total_price, payment_method, payment_id, customer_id,
	payment_link, invoice_url, pix_qr_code_image, pix_copy_paste, status, created_at, updated_at`

func toOrderRow(o *domain.Order) (orderRow, error) {
	ids, err := json.Marshal(o.ProductIDs)
	if err != nil {
		return orderRow{}, fmt.Errorf("postgres: encode product ids: %w", err)
	}
	return orderRow{
		ID:             o.ID,
		UserID:         o.UserID,
		ProductIDs:     ids,
		TotalPrice:     o.TotalPrice,
		PaymentMethod:  string(o.PaymentMethod),
		PaymentID:      o.PaymentID,
		CustomerID:     o.CustomerID,
		PaymentLink:    o.Artifacts.PaymentLink,
		InvoiceURL:     o.Artifacts.InvoiceURL,
		PixQrCodeImage: o.Artifacts.PixQrCodeImage,
		PixCopyPaste:   o.Artifacts.PixCopyPaste,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}, nil
}

func (r orderRow) toDomain() (*domain.Order, error) {
	var ids []int64
	if err := json.Unmarshal(r.ProductIDs, &ids); err != nil {
		return nil, fmt.Errorf("postgres: decode product ids of %s: %w", r.ID, err)
	}
	return &domain.Order{
		ID:            r.ID,
		UserID:        r.UserID,
		ProductIDs:    ids,
		TotalPrice:    r.TotalPrice,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		PaymentID:     r.PaymentID,
		CustomerID:    r.CustomerID,
		Artifacts: domain.PaymentArtifacts{
			PaymentLink:    r.PaymentLink,
			InvoiceURL:     r.InvoiceURL,
			PixQrCodeImage: r.PixQrCodeImage,
			PixCopyPaste:   r.PixCopyPaste,
		},
		Status:    domain.Status(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order, events ...domoutbox.Event) error {
	row, err := toOrderRow(o)
	if err != nil {
		return err
	}
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO orders (`+orderColumns+`) VALUES (
			:id, :user_id, :product_ids, :total_price, :payment_method, :payment_id, :customer_id,
			:payment_link, :invoice_url, :pix_qr_code_image, :pix_copy_paste, :status, :created_at, :updated_at)`, row)
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("postgres: insert order: %w", err)
		}
		return recordEvents(ctx, tx, events...)
	})
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_id = $1`, paymentID)
}

func (r *OrderRepository) one(ctx context.Context, query string, arg any) (*domain.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get order: %w", err)
	}
	return row.toDomain()
}

// UpdateStatus is a compare-and-set on the status column.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status, events ...domoutbox.Event) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
			id, string(from), string(to))
		if err != nil {
			return fmt.Errorf("postgres: update order status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("postgres: update order status: %w", err)
		}
		if n == 1 {
			return recordEvents(ctx, tx, events...)
		}

		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id); err != nil {
			return fmt.Errorf("postgres: check order: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrStaleStatus
	})
}
