package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/money"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService    = "order-service"
	useCaseCheckout = "order.checkout"
	paymentPeer     = "payment-service"
	chargeEndpoint  = "bills.create"
)

var ErrRepository = errors.New("order: repository failure")

type CheckoutInput struct {
	// AuthenticatedUserID comes from the verified token, never from the body.
	AuthenticatedUserID int64
	// RequestedUserID is the optional user id the client put in the body.
	RequestedUserID *int64
	ProductIDs      []int64
	ClaimedAmount   decimal.Decimal
	PaymentMethod   string
}

type CheckoutResult struct {
	OrderID        string
	Status         domain.Status
	PaymentLink    string
	InvoiceURL     string
	PixQrCodeImage string
	PixCopyPaste   string
}

// CheckoutUseCase validates the quote, charges synchronously and only then persists the order.
// payment-requested is recorded with the order insert, so it is never announced for an order that does not exist.
type CheckoutUseCase struct {
	repo        domain.Repository
	quote       *QuoteValidator
	payments    Payments
	idGenerator IDGenerator
	in          application.Instruments
}

var _ application.UseCase[CheckoutInput, *CheckoutResult] = (*CheckoutUseCase)(nil)

func NewCheckoutUseCase(
	repo domain.Repository,
	catalog Catalog,
	payments Payments,
	idGen IDGenerator,
	tel observability.Observability,
) *CheckoutUseCase {
	in := application.NewInstruments(tel, orderService)
	return &CheckoutUseCase{
		repo:        repo,
		quote:       NewQuoteValidator(catalog, in),
		payments:    payments,
		idGenerator: idGen,
		in:          in,
	}
}

func (uc *CheckoutUseCase) Execute(ctx context.Context, cmd CheckoutInput) (_ *CheckoutResult, err error) {
	logger := uc.in.Logger(ctx, useCaseCheckout, observability.F("user_id", cmd.AuthenticatedUserID))

	ctx, span := uc.in.Tracer.Start(ctx, application.SpanPrefix+"Checkout",
		attribute.String("use_case", useCaseCheckout),
		attribute.Int64("order.user_id", cmd.AuthenticatedUserID),
		attribute.Int("order.items", len(cmd.ProductIDs)),
	)
	start := time.Now()
	statusText := "OK"
	var orderID, paymentID string

	defer func() {
		fields := []observability.Field{}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if paymentID != "" {
			fields = append(fields, observability.F("payment_id", paymentID))
		}
		uc.in.Done(ctx, logger, span, application.Run{
			UseCase: useCaseCheckout,
			Outcome: application.Outcome(err),
			Status:  statusText,
			Start:   start,
			Err:     err,
			Fields:  fields,
		})
	}()

	if cmd.RequestedUserID != nil && *cmd.RequestedUserID != cmd.AuthenticatedUserID {
		statusText = "USER_MISMATCH"
		return nil, application.NewForbidden("Checkout userId does not match authenticated user")
	}
	method, perr := domain.ParsePaymentMethod(cmd.PaymentMethod)
	if perr != nil {
		statusText = "PAYMENT_METHOD_INVALID"
		return nil, application.NewValidation(fmt.Sprintf("Unsupported payment method %q", cmd.PaymentMethod), perr)
	}
	if !cmd.ClaimedAmount.IsPositive() {
		statusText = "AMOUNT_INVALID"
		return nil, application.NewValidation("Checkout amount must be greater than zero", domain.ErrInvalidAmount)
	}

	total, qerr := uc.quote.Validate(ctx, cmd.ProductIDs)
	if qerr != nil {
		statusText = quoteStatus(qerr)
		return nil, qerr
	}
	if !money.Equal(cmd.ClaimedAmount, total) {
		statusText = "AMOUNT_MISMATCH"
		return nil, application.NewValidation("Checkout amount does not match products total", ErrAmountMismatch)
	}
	if err := ctx.Err(); err != nil {
		statusText = "CONTEXT_CANCELED"
		return nil, err
	}

	chargeStart := time.Now()
	charge, cerr := uc.payments.CreateCharge(ctx, ChargeRequest{
		UserID:      cmd.AuthenticatedUserID,
		Method:      method,
		Amount:      total,
		Description: fmt.Sprintf("Pedido do usuario %d", cmd.AuthenticatedUserID),
	})
	uc.in.External(paymentPeer, chargeEndpoint, application.Outcome(cerr), chargeStart)
	if cerr != nil {
		statusText = "CHARGE_FAILED"
		var appErr *application.Error
		if errors.As(cerr, &appErr) {
			return nil, cerr
		}
		return nil, application.NewUpstream("Payment service unavailable during checkout", cerr)
	}
	paymentID = charge.PaymentID

	entity, derr := domain.New(domain.NewParams{
		ID:            uc.idGenerator.NewID(),
		UserID:        cmd.AuthenticatedUserID,
		ProductIDs:    cmd.ProductIDs,
		TotalPrice:    total,
		PaymentMethod: method,
		PaymentID:     charge.PaymentID,
		CustomerID:    charge.CustomerID,
		Artifacts:     charge.Artifacts,
	})
	if derr != nil {
		statusText = "DOMAIN_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("order: construct: %w", derr)
	}
	if err := uc.repo.Insert(ctx, entity, domain.NewPaymentRequestedEvent(entity)); err != nil {
		statusText = "REPO_INSERT_FAILED"
		return nil, wrapRepositoryError(err)
	}
	orderID = entity.ID

	span.SetAttributes(attribute.String("order.status", string(entity.Status)))
	span.AddEvent("order.created",
		trace.WithAttributes(
			attribute.String("order.id", entity.ID),
			attribute.String("payment.id", entity.PaymentID),
		),
	)

	return &CheckoutResult{
		OrderID:        entity.ID,
		Status:         entity.Status,
		PaymentLink:    entity.Artifacts.DisplayLink(),
		InvoiceURL:     entity.Artifacts.InvoiceURL,
		PixQrCodeImage: entity.Artifacts.PixQrCodeImage,
		PixCopyPaste:   entity.Artifacts.PixCopyPaste,
	}, nil
}

func quoteStatus(err error) string {
	switch {
	case errors.Is(err, ErrEmptyProductList):
		return "EMPTY_PRODUCT_LIST"
	case errors.Is(err, ErrProductNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, ErrInvalidPrice):
		return "INVALID_PRICE"
	case errors.Is(err, ErrCatalogUnavailable):
		return "CATALOG_UNAVAILABLE"
	default:
		return "QUOTE_FAILED"
	}
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &application.Error{Kind: application.ErrNotFound, Err: err}
	case errors.Is(err, domain.ErrConflict):
		return &application.Error{Kind: application.ErrConflict, Err: err}
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
