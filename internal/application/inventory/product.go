package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domcatalog "github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseGetProduct = "catalog.get_product"

// GetProductUseCase serves the catalog read used by checkout quotes.
type GetProductUseCase struct {
	repo domcatalog.Repository
	in   application.Instruments
}

var _ application.UseCase[int64, *domcatalog.Product] = (*GetProductUseCase)(nil)

func NewGetProductUseCase(repo domcatalog.Repository, tel observability.Observability) *GetProductUseCase {
	return &GetProductUseCase{repo: repo, in: application.NewInstruments(tel, storeService)}
}

func (uc *GetProductUseCase) Execute(ctx context.Context, id int64) (_ *domcatalog.Product, err error) {
	logger := uc.in.Logger(ctx, useCaseGetProduct, observability.F("product_id", id))
	ctx, span := uc.in.Tracer.Start(ctx, application.SpanPrefix+"GetProduct",
		attribute.String("use_case", useCaseGetProduct),
		attribute.Int64("product.id", id),
	)
	start := time.Now()
	statusText := "OK"

	defer func() {
		uc.in.Done(ctx, logger, span, application.Run{
			UseCase: useCaseGetProduct,
			Outcome: application.Outcome(err),
			Status:  statusText,
			Start:   start,
			Err:     err,
		})
	}()

	p, gerr := uc.repo.Get(ctx, id)
	if errors.Is(gerr, domcatalog.ErrNotFound) {
		statusText = "PRODUCT_NOT_FOUND"
		return nil, application.NewNotFound(fmt.Sprintf("Product %d not found", id), gerr)
	}
	if gerr != nil {
		statusText = "PRODUCT_LOAD_FAILED"
		return nil, fmt.Errorf("catalog: get %d: %w", id, gerr)
	}
	return p, nil
}
