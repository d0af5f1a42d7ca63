package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domcatalog "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	storeService     = "store-service"
	useCaseDecrement = "inventory.decrement"
)

// DecrementResult lists what happened to each distinct product of the event.
type DecrementResult struct {
	Decremented map[int64]int // product id -> remaining stock
	Missing     []int64
	Duplicate   bool // the order was applied by an earlier delivery
}

// DecrementStockUseCase lowers stock for every product of a completed order.
// The whole order is applied once: a redelivered event leaves stock untouched, and a
// missing product never aborts the rest.
type DecrementStockUseCase struct {
	repo domcatalog.Repository
	in   application.Instruments
}

var _ application.UseCase[domorder.OrderCompletedEvent, *DecrementResult] = (*DecrementStockUseCase)(nil)

func NewDecrementStockUseCase(repo domcatalog.Repository, tel observability.Observability) *DecrementStockUseCase {
	return &DecrementStockUseCase{repo: repo, in: application.NewInstruments(tel, storeService)}
}

func (uc *DecrementStockUseCase) Execute(ctx context.Context, e domorder.OrderCompletedEvent) (_ *DecrementResult, err error) {
	logger := uc.in.Logger(ctx, useCaseDecrement,
		observability.F("order_id", e.OrderID),
		observability.F("items", len(e.ProductIDs)),
	)

	ctx, span := uc.in.Tracer.Start(ctx, application.SpanPrefix+"DecrementStock",
		attribute.String("use_case", useCaseDecrement),
		attribute.String("order.id", e.OrderID),
		attribute.Int("order.items", len(e.ProductIDs)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	result := &DecrementResult{Decremented: map[int64]int{}}

	defer func() {
		if err != nil {
			outcome = "error"
		}
		fields := []observability.Field{
			observability.F("decremented", len(result.Decremented)),
		}
		if len(result.Missing) > 0 {
			fields = append(fields, observability.F("missing_products", result.Missing))
		}
		uc.in.Done(ctx, logger, span, application.Run{
			UseCase: useCaseDecrement,
			Outcome: outcome,
			Status:  statusText,
			Start:   start,
			Err:     err,
			Fields:  fields,
		})
	}()

	if len(e.ProductIDs) == 0 {
		outcome, statusText = "ignored", "EMPTY_PRODUCT_LIST"
		logger.Warn("order_completed_without_products")
		return result, nil
	}

	if strings.TrimSpace(e.OrderID) == "" {
		outcome, statusText = "ignored", "ORDER_ID_MISSING"
		logger.Warn("order_completed_without_order_id")
		return result, nil
	}

	lines := domcatalog.Lines(e.ProductIDs)
	update, derr := uc.repo.DecreaseForOrder(ctx, e.OrderID, lines)
	if errors.Is(derr, domcatalog.ErrOrderApplied) {
		outcome, statusText = "ignored", "ALREADY_APPLIED"
		result.Duplicate = true
		logger.Info("order_stock_already_applied")
		return result, nil
	}
	if derr != nil {
		statusText = "STOCK_UPDATE_FAILED"
		return result, fmt.Errorf("inventory: decrease order %s: %w", e.OrderID, derr)
	}

	for _, l := range lines {
		remaining, ok := update.Remaining[l.ProductID]
		if !ok {
			continue
		}
		result.Decremented[l.ProductID] = remaining
		span.AddEvent("stock.decremented", trace.WithAttributes(
			attribute.Int64("product.id", l.ProductID),
			attribute.Int("product.quantity", l.Quantity),
			attribute.Int("product.remaining", remaining),
		))
	}
	result.Missing = update.Missing
	for _, id := range update.Missing {
		logger.Warn("product_not_found_for_decrement", observability.F("product_id", id))
	}
	if len(result.Missing) > 0 {
		statusText = "PRODUCTS_MISSING"
	}
	return result, nil
}
