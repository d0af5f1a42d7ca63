package order

import (
	"context"

	domcatalog "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"

	"github.com/shopspring/decimal"
)

type IDGenerator interface {
	NewID() string
}

// Catalog reads authoritative price and stock from the store service.
// A missing product is reported as catalog.ErrNotFound; any other error is a transport failure.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*domcatalog.Product, error)
}

type ChargeRequest struct {
	UserID      int64
	Method      domain.PaymentMethod
	Amount      decimal.Decimal
	Description string
}

type Charge struct {
	PaymentID  string
	CustomerID string
	Artifacts  domain.PaymentArtifacts
}

// Payments creates the external charge synchronously.
type Payments interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
}
