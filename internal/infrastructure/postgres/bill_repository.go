package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type billRow struct {
	ID             string          `db:"id"`
	PaymentID      string          `db:"payment_id"`
	OrderID        string          `db:"order_id"`
	CustomerID     string          `db:"customer_id"`
	Status         string          `db:"status"`
	Value          decimal.Decimal `db:"value"`
	DateCreated    sql.NullTime    `db:"date_created"`
	InvoiceURL     string          `db:"invoice_url"`
	PaymentLink    string          `db:"payment_link"`
	PixQrCodeImage string          `db:"pix_qr_code_image"`
	PixCopyPaste   string          `db:"pix_copy_paste"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

const billColumns = `id, payment_id, order_id, customer_id, status, value, date_created,
	invoice_url, payment_link, pix_qr_code_image, pix_copy_paste, updated_at`

func toBillRow(b *domain.Bill) billRow {
	return billRow{
		ID:             b.ID,
		PaymentID:      b.PaymentID,
		OrderID:        b.OrderID,
		CustomerID:     b.CustomerID,
		Status:         b.Status,
		Value:          b.Value,
		DateCreated:    sql.NullTime{Time: b.DateCreated, Valid: !b.DateCreated.IsZero()},
		InvoiceURL:     b.InvoiceURL,
		PaymentLink:    b.PaymentLink,
		PixQrCodeImage: b.PixQrCodeImage,
		PixCopyPaste:   b.PixCopyPaste,
		UpdatedAt:      b.UpdatedAt,
	}
}

func (r billRow) toDomain() *domain.Bill {
	b := &domain.Bill{
		ID:             r.ID,
		PaymentID:      r.PaymentID,
		OrderID:        r.OrderID,
		CustomerID:     r.CustomerID,
		Status:         r.Status,
		Value:          r.Value,
		InvoiceURL:     r.InvoiceURL,
		PaymentLink:    r.PaymentLink,
		PixQrCodeImage: r.PixQrCodeImage,
		PixCopyPaste:   r.PixCopyPaste,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.DateCreated.Valid {
		b.DateCreated = r.DateCreated.Time
	}
	return b
}

type BillRepository struct {
	db *sqlx.DB
}

func NewBillRepository(db *sqlx.DB) *BillRepository {
	return &BillRepository{db: db}
}

func (r *BillRepository) Insert(ctx context.Context, b *domain.Bill, events ...domoutbox.Event) error {
	if b == nil || b.PaymentID == "" {
		return domain.ErrPaymentIDRequired
	}
	row := toBillRow(b)
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO bills (`+billColumns+`) VALUES (
			:id, :payment_id, :order_id, :customer_id, :status, :value, :date_created,
			:invoice_url, :payment_link, :pix_qr_code_image, :pix_copy_paste, :updated_at)`, row)
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("postgres: insert bill: %w", err)
		}
		return recordEvents(ctx, tx, events...)
	})
}

func (r *BillRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Bill, error) {
	var row billRow
	err := r.db.GetContext(ctx, &row, `SELECT `+billColumns+` FROM bills WHERE payment_id = $1`, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get bill: %w", err)
	}
	return row.toDomain(), nil
}

// UpdateStatus is a compare-and-set on the status column alone.
func (r *BillRepository) UpdateStatus(ctx context.Context, paymentID, from, to string, events ...domoutbox.Event) error {
	return r.conditional(ctx, paymentID, domain.ErrStaleStatus,
		`UPDATE bills SET status = $3, updated_at = now() WHERE payment_id = $1 AND status = $2`,
		[]any{paymentID, from, to}, events)
}

// LinkOrder writes order_id only while it is still blank.
func (r *BillRepository) LinkOrder(ctx context.Context, paymentID, orderID string, events ...domoutbox.Event) error {
	return r.conditional(ctx, paymentID, domain.ErrOrderAlreadyLinked,
		`UPDATE bills SET order_id = $2, updated_at = now() WHERE payment_id = $1 AND order_id = ''`,
		[]any{paymentID, orderID}, events)
}

// conditional runs a guarded single-row update and records events when it applied.
// A miss is reported as ErrNotFound or, when the bill exists, as stale.
func (r *BillRepository) conditional(ctx context.Context, paymentID string, stale error, query string, args []any, events []domoutbox.Event) error {
	if paymentID == "" {
		return fmt.Errorf("postgres: %w", domain.ErrPaymentIDRequired)
	}
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("postgres: update bill: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("postgres: update bill: %w", err)
		}
		if n == 1 {
			return recordEvents(ctx, tx, events...)
		}

		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM bills WHERE payment_id = $1)`, paymentID); err != nil {
			return fmt.Errorf("postgres: check bill: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return stale
	})
}
