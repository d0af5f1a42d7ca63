package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseLinkOrder = "payment.link_order"

// LinkOrderUseCase attaches the order id announced by payment-requested to its Bill.
// A bill that is already approved or declined by then re-announces its outcome with the link:
// an earlier announcement may have reached the order service before the order was stored.
type LinkOrderUseCase struct {
	bills dompayment.Repository
	in    application.Instruments
}

var _ application.UseCase[domorder.PaymentRequestedEvent, bool] = (*LinkOrderUseCase)(nil)

func NewLinkOrderUseCase(bills dompayment.Repository, tel observability.Observability) *LinkOrderUseCase {
	return &LinkOrderUseCase{bills: bills, in: application.NewInstruments(tel, paymentService)}
}

// Execute reports whether the bill was changed.
func (uc *LinkOrderUseCase) Execute(ctx context.Context, e domorder.PaymentRequestedEvent) (linked bool, err error) {
	paymentID := strings.TrimSpace(e.PaymentID)
	logger := uc.in.Logger(ctx, useCaseLinkOrder,
		observability.F("order_id", e.OrderID),
		observability.F("payment_id", paymentID),
	)
	ctx, span := uc.in.Tracer.Start(ctx, application.SpanPrefix+"LinkOrder",
		attribute.String("use_case", useCaseLinkOrder),
		attribute.String("order.id", e.OrderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		if err != nil {
			outcome = "error"
		}
		uc.in.Done(ctx, logger, span, application.Run{
			UseCase: useCaseLinkOrder,
			Outcome: outcome,
			Status:  statusText,
			Start:   start,
			Err:     err,
		})
	}()

	if paymentID == "" || strings.TrimSpace(e.OrderID) == "" {
		outcome, statusText = "ignored", "EVENT_INCOMPLETE"
		return false, nil
	}

	bill, ferr := uc.bills.FindByPaymentID(ctx, paymentID)
	if errors.Is(ferr, dompayment.ErrNotFound) {
		outcome, statusText = "ignored", "BILL_NOT_FOUND"
		logger.Warn("payment_requested_for_unknown_bill")
		return false, nil
	}
	if ferr != nil {
		statusText = "BILL_LOAD_FAILED"
		return false, wrapRepositoryError(ferr)
	}

	changed, lerr := bill.LinkOrder(e.OrderID)
	if errors.Is(lerr, dompayment.ErrOrderAlreadyLinked) {
		outcome, statusText = "ignored", "LINKED_TO_OTHER_ORDER"
		logger.Warn("bill_linked_to_other_order", observability.F("linked_order_id", bill.OrderID))
		return false, nil
	}
	if !changed {
		outcome, statusText = "ignored", "ALREADY_LINKED"
		return false, nil
	}

	var events []domoutbox.Event
	if evt, settled := bill.SettlementEvent(); settled {
		events = append(events, evt)
		logger.Info("settled_bill_linked", observability.F("gateway_status", bill.Status))
	}
	uerr := uc.bills.LinkOrder(ctx, paymentID, e.OrderID, events...)
	if errors.Is(uerr, dompayment.ErrOrderAlreadyLinked) {
		outcome, statusText = "ignored", "LINKED_CONCURRENTLY"
		return false, nil
	}
	if uerr != nil {
		statusText = "BILL_UPDATE_FAILED"
		return false, wrapRepositoryError(uerr)
	}
	if len(events) > 0 {
		statusText = "LINKED_SETTLED"
	}
	return true, nil
}
