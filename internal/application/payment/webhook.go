package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const useCaseWebhook = "payment.process_webhook"

type WebhookInput struct {
	Event     string
	PaymentID string
	Status    string
	Value     decimal.Decimal
}

type WebhookResult struct {
	Ignored    bool
	Transition dompayment.Transition
	Emitted    bool // payment-approved was recorded with the status change
}

// ProcessWebhookUseCase reconciles gateway status notifications into the stored Bill.
// An event is recorded only when the status crosses into the approved or declined set, and
// always in the same write as the new status.
type ProcessWebhookUseCase struct {
	bills dompayment.Repository
	in    application.Instruments
}

var _ application.UseCase[WebhookInput, *WebhookResult] = (*ProcessWebhookUseCase)(nil)

// Concurrent callbacks for one payment are retried this many times before giving up.
const webhookAttempts = 3

func NewProcessWebhookUseCase(bills dompayment.Repository, tel observability.Observability) *ProcessWebhookUseCase {
	return &ProcessWebhookUseCase{
		bills: bills,
		in:    application.NewInstruments(tel, paymentService),
	}
}

func (uc *ProcessWebhookUseCase) Execute(ctx context.Context, cmd WebhookInput) (_ *WebhookResult, err error) {
	paymentID := strings.TrimSpace(cmd.PaymentID)
	logger := uc.in.Logger(ctx, useCaseWebhook,
		observability.F("payment_id", paymentID),
		observability.F("webhook_event", cmd.Event),
		observability.F("gateway_status", cmd.Status),
	)

	ctx, span := uc.in.Tracer.Start(ctx, application.SpanPrefix+"ProcessWebhook",
		attribute.String("use_case", useCaseWebhook),
		attribute.String("payment.id", paymentID),
		attribute.String("payment.status", cmd.Status),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	result := &WebhookResult{}

	defer func() {
		if err != nil {
			outcome = "error"
		}
		uc.in.Done(ctx, logger, span, application.Run{
			UseCase: useCaseWebhook,
			Outcome: outcome,
			Status:  statusText,
			Start:   start,
			Err:     err,
			Fields: []observability.Field{
				observability.F("previous_status", result.Transition.Previous),
				observability.F("current_status", result.Transition.Current),
				observability.F("emitted", result.Emitted),
			},
		})
	}()

	if paymentID == "" {
		outcome, statusText = "ignored", "PAYMENT_ID_MISSING"
		result.Ignored = true
		logger.Warn("webhook_without_payment_id")
		return result, nil
	}

	for attempt := 1; ; attempt++ {
		bill, ferr := uc.bills.FindByPaymentID(ctx, paymentID)
		if errors.Is(ferr, dompayment.ErrNotFound) {
			outcome, statusText = "ignored", "BILL_NOT_FOUND"
			result.Ignored = true
			logger.Warn("webhook_for_unknown_payment")
			return result, nil
		}
		if ferr != nil {
			statusText = "BILL_LOAD_FAILED"
			return nil, wrapRepositoryError(ferr)
		}

		t := bill.ApplyStatus(cmd.Status)
		result.Transition = t
		if !t.Changed() {
			outcome, statusText = "ignored", "STATUS_UNCHANGED"
			return result, nil
		}

		var events []domoutbox.Event
		if t.Approved || t.Declined {
			amount := cmd.Value
			if !amount.IsPositive() {
				amount = bill.Value
			}
			events = append(events, dompayment.NewPaymentApprovedEvent(bill, amount, t.Approved))
		}

		uerr := uc.bills.UpdateStatus(ctx, paymentID, t.Previous, t.Current, events...)
		if errors.Is(uerr, dompayment.ErrStaleStatus) && attempt < webhookAttempts {
			logger.Info("webhook_status_race_retry", observability.F("attempt", attempt))
			continue
		}
		if errors.Is(uerr, dompayment.ErrStaleStatus) {
			statusText = "CONCURRENT_UPDATE"
			return nil, application.NewConflict("Payment status changed concurrently", uerr)
		}
		if uerr != nil {
			statusText = "BILL_UPDATE_FAILED"
			return nil, wrapRepositoryError(uerr)
		}

		switch {
		case t.Approved:
			statusText = "PAYMENT_APPROVED"
		case t.Declined:
			statusText = "PAYMENT_DECLINED"
		default:
			statusText = "STATUS_RECORDED"
		}
		result.Emitted = len(events) > 0
		return result, nil
	}
}
