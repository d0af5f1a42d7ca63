package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domcatalog "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/money"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrEmptyProductList   = errors.New("quote: product list is empty")
	ErrProductNotFound    = errors.New("quote: product not found")
	ErrOutOfStock         = errors.New("quote: out of stock")
	ErrInvalidPrice       = errors.New("quote: invalid price")
	ErrCatalogUnavailable = errors.New("quote: catalog unavailable")
	ErrAmountMismatch     = errors.New("quote: amount mismatch")
)

const (
	catalogPeer     = "store-service"
	catalogEndpoint = "products.get"
)

// QuoteValidator recomputes an order total from the catalog. Client totals are never trusted.
type QuoteValidator struct {
	catalog Catalog
	in      application.Instruments
}

func NewQuoteValidator(catalog Catalog, in application.Instruments) *QuoteValidator {
	return &QuoteValidator{catalog: catalog, in: in}
}

// Validate returns Σ(unit price × requested quantity) rounded half-up to two decimals.
// Duplicate ids in productIDs are requested quantity.
func (q *QuoteValidator) Validate(ctx context.Context, productIDs []int64) (_ decimal.Decimal, err error) {
	ctx, span := q.in.Tracer.Start(ctx, application.SpanPrefix+"Quote",
		attribute.Int("quote.items", len(productIDs)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "QUOTE_REJECTED")
		}
		span.End()
	}()

	if len(productIDs) == 0 {
		return decimal.Zero, application.NewValidation("Product list must not be empty", ErrEmptyProductList)
	}

	ids, counts := domcatalog.Tally(productIDs)
	total := decimal.Zero
	for _, id := range ids {
		requested := counts[id]

		start := time.Now()
		product, getErr := q.catalog.GetProduct(ctx, id)
		switch {
		case getErr == nil:
			q.in.External(catalogPeer, catalogEndpoint, "success", start)
		case errors.Is(getErr, domcatalog.ErrNotFound):
			q.in.External(catalogPeer, catalogEndpoint, "not_found", start)
			return decimal.Zero, application.NewValidation(fmt.Sprintf("Product %d not found", id), ErrProductNotFound)
		default:
			q.in.External(catalogPeer, catalogEndpoint, "error", start)
			return decimal.Zero, application.NewUpstream("Store service unavailable during checkout",
				fmt.Errorf("%w: %w", ErrCatalogUnavailable, getErr))
		}

		if requested > max(product.Quantity, 0) {
			return decimal.Zero, application.NewValidation(fmt.Sprintf("Insufficient stock for product %d", id), ErrOutOfStock)
		}
		if !product.Price.IsPositive() {
			return decimal.Zero, application.NewValidation(fmt.Sprintf("Invalid price for product %d", id), ErrInvalidPrice)
		}
		total = total.Add(money.Line(product.Price, requested))
	}

	total = money.Round(total)
	span.SetAttributes(attribute.String("quote.total", money.Format(total)))
	return total, nil
}
