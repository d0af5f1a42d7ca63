package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("catalog: product not found")
	ErrInvalidQuantity = errors.New("catalog: quantity must not be negative")
	ErrInvalidPrice    = errors.New("catalog: price must be greater than zero")
	ErrOrderApplied    = errors.New("catalog: order stock already applied")
)

type Product struct {
	ID          int64
	Title       string
	Description string
	Photos      []string
	Price       decimal.Decimal
	Quantity    int
	UpdatedAt   time.Time
}

func NewProduct(id int64, title, description string, photos []string, price decimal.Decimal, quantity int) (*Product, error) {
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Product{
		ID:          id,
		Title:       title,
		Description: description,
		Photos:      append([]string(nil), photos...),
		Price:       price,
		Quantity:    quantity,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// Decrease lowers stock by quantity, flooring at zero. Non-positive quantities are ignored.
func (p *Product) Decrease(quantity int) {
	p.Quantity = DecreasedStock(p.Quantity, quantity)
	p.UpdatedAt = time.Now().UTC()
}

// DecreasedStock is max(0, current - max(0, quantity)).
func DecreasedStock(current, quantity int) int {
	if quantity < 0 {
		quantity = 0
	}
	if current < 0 {
		current = 0
	}
	return max(0, current-quantity)
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.Photos = append([]string(nil), p.Photos...)
	return &c
}

// Tally groups product ids, keeping first-seen order and counting duplicates.
func Tally(ids []int64) (order []int64, counts map[int64]int) {
	counts = make(map[int64]int, len(ids))
	for _, id := range ids {
		if _, seen := counts[id]; !seen {
			order = append(order, id)
		}
		counts[id]++
	}
	return order, counts
}

// Line is the quantity of one product an order takes.
type Line struct {
	ProductID int64
	Quantity  int
}

// Lines tallies product ids into one line per distinct product, in first-seen order.
func Lines(ids []int64) []Line {
	order, counts := Tally(ids)
	lines := make([]Line, 0, len(order))
	for _, id := range order {
		lines = append(lines, Line{ProductID: id, Quantity: counts[id]})
	}
	return lines
}

// StockUpdate is what applying one order's lines did.
type StockUpdate struct {
	Remaining map[int64]int // product id -> stock left
	Missing   []int64
}

type Repository interface {
	Get(ctx context.Context, id int64) (*Product, error)
	Save(ctx context.Context, p *Product) error
	// DecreaseForOrder lowers stock for every line with a zero floor and records orderID in the
	// same step. It fails with ErrOrderApplied when orderID was applied before. Unknown products
	// are skipped and reported as missing.
	DecreaseForOrder(ctx context.Context, orderID string, lines []Line) (*StockUpdate, error)
}
