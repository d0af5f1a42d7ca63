package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type productRow struct {
	ID          int64           `db:"id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	Photos      []byte          `db:"photos"`
	Price       decimal.Decimal `db:"price"`
	Quantity    int             `db:"quantity"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

const productColumns = `id, title, description, photos, price, quantity, updated_at`

func (r productRow) toDomain() (*domain.Product, error) {
	var photos []string
	if len(r.Photos) > 0 {
		if err := json.Unmarshal(r.Photos, &photos); err != nil {
			return nil, fmt.Errorf("postgres: decode photos of %d: %w", r.ID, err)
		}
	}
	return &domain.Product{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Photos:      photos,
		Price:       r.Price,
		Quantity:    r.Quantity,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

type ProductRepository struct {
	db *sqlx.DB
}

func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Get(ctx context.Context, id int64) (*domain.Product, error) {
	var row productRow
	err := r.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get product: %w", err)
	}
	return row.toDomain()
}

func (r *ProductRepository) Save(ctx context.Context, p *domain.Product) error {
	photos, err := json.Marshal(append([]string{}, p.Photos...))
	if err != nil {
		return fmt.Errorf("postgres: encode photos: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description,
			photos = EXCLUDED.photos, price = EXCLUDED.price, quantity = EXCLUDED.quantity, updated_at = now()`,
		p.ID, p.Title, p.Description, photos, p.Price, p.Quantity)
	if err != nil {
		return fmt.Errorf("postgres: save product: %w", err)
	}
	return nil
}

// DecreaseForOrder claims orderID in processed_orders and applies every zero-floored
// decrement in the same transaction.
func (r *ProductRepository) DecreaseForOrder(ctx context.Context, orderID string, lines []domain.Line) (*domain.StockUpdate, error) {
	update := &domain.StockUpdate{Remaining: make(map[int64]int, len(lines))}
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO processed_orders (order_id) VALUES ($1) ON CONFLICT (order_id) DO NOTHING`, orderID)
		if err != nil {
			return fmt.Errorf("postgres: claim order %s: %w", orderID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("postgres: claim order %s: %w", orderID, err)
		} else if n == 0 {
			return domain.ErrOrderApplied
		}

		for _, l := range lines {
			var remaining int
			err := tx.GetContext(ctx, &remaining, `UPDATE products
				SET quantity = GREATEST(0, quantity - $2), updated_at = now()
				WHERE id = $1
				RETURNING quantity`, l.ProductID, max(l.Quantity, 0))
			if errors.Is(err, sql.ErrNoRows) {
				update.Missing = append(update.Missing, l.ProductID)
				continue
			}
			if err != nil {
				return fmt.Errorf("postgres: decrease product %d: %w", l.ProductID, err)
			}
			update.Remaining[l.ProductID] = remaining
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return update, nil
}
