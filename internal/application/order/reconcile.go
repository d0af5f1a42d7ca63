package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseReconcile = "order.reconcile_payment"

// ReconcileResult tells the caller what the event changed.
type ReconcileResult struct {
	OrderID string
	Status  domain.Status
	Changed bool
	Emitted bool // order-completed was recorded with the status change
}

// ReconcilePaymentUseCase applies payment outcomes to orders, looked up by payment id.
// It is safe under redelivery: order-completed is recorded only by the compare-and-set that
// moves the order into COMPLETED, so a completed order never emits it twice.
type ReconcilePaymentUseCase struct {
	repo domain.Repository
	in   application.Instruments
}

var _ application.UseCase[dompayment.PaymentApprovedEvent, *ReconcileResult] = (*ReconcilePaymentUseCase)(nil)

func NewReconcilePaymentUseCase(repo domain.Repository, tel observability.Observability) *ReconcilePaymentUseCase {
	return &ReconcilePaymentUseCase{
		repo: repo,
		in:   application.NewInstruments(tel, orderService),
	}
}

func (uc *ReconcilePaymentUseCase) Execute(ctx context.Context, e dompayment.PaymentApprovedEvent) (_ *ReconcileResult, err error) {
	paymentID := strings.TrimSpace(e.PaymentID)
	logger := uc.in.Logger(ctx, useCaseReconcile,
		observability.F("payment_id", paymentID),
		observability.F("approved", e.Approved),
	)

	ctx, span := uc.in.Tracer.Start(ctx, application.SpanPrefix+"ReconcilePayment",
		attribute.String("use_case", useCaseReconcile),
		attribute.String("payment.id", paymentID),
		attribute.Bool("payment.approved", e.Approved),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	result := &ReconcileResult{}

	defer func() {
		if err != nil {
			outcome = "error"
		}
		fields := []observability.Field{}
		if result.OrderID != "" {
			fields = append(fields,
				observability.F("order_id", result.OrderID),
				observability.F("order_status", string(result.Status)),
			)
		}
		uc.in.Done(ctx, logger, span, application.Run{
			UseCase: useCaseReconcile,
			Outcome: outcome,
			Status:  statusText,
			Start:   start,
			Err:     err,
			Fields:  fields,
		})
	}()

	if paymentID == "" {
		outcome, statusText = "ignored", "PAYMENT_ID_MISSING"
		logger.Warn("payment_event_without_payment_id")
		return result, nil
	}

	order, ferr := uc.repo.FindByPaymentID(ctx, paymentID)
	if errors.Is(ferr, domain.ErrNotFound) {
		outcome, statusText = "ignored", "ORDER_NOT_FOUND"
		logger.Warn("order_not_found_for_payment")
		return result, nil
	}
	if ferr != nil {
		statusText = "ORDER_LOAD_FAILED"
		return nil, wrapRepositoryError(ferr)
	}
	result.OrderID, result.Status = order.ID, order.Status

	previous := order.Status
	var changed bool
	var terr error
	if e.Approved {
		changed, terr = order.ApprovePayment()
	} else {
		changed, terr = order.DeclinePayment()
	}
	if errors.Is(terr, domain.ErrInvalidStateTransition) {
		outcome, statusText = "ignored", "TRANSITION_NOT_ALLOWED"
		logger.Warn("payment_event_ignored",
			observability.F("order_status", string(previous)),
		)
		return result, nil
	}
	if terr != nil {
		statusText = "STATE_TRANSITION_FAILED"
		return nil, terr
	}
	if !changed {
		outcome, statusText = "ignored", "ALREADY_"+string(order.Status)
		logger.Info("order_already_reconciled")
		return result, nil
	}

	var events []domoutbox.Event
	if order.Status == domain.StatusCompleted {
		events = append(events, domain.NewOrderCompletedEvent(order))
	}
	if uerr := uc.repo.UpdateStatus(ctx, order.ID, previous, order.Status, events...); uerr != nil {
		if errors.Is(uerr, domain.ErrStaleStatus) {
			outcome, statusText = "ignored", "CONCURRENT_UPDATE"
			return result, nil
		}
		statusText = "ORDER_UPDATE_FAILED"
		return nil, wrapRepositoryError(uerr)
	}
	result.Status, result.Changed = order.Status, true
	if len(events) > 0 {
		result.Emitted = true
		span.AddEvent("order.completed")
	}
	return result, nil
}
