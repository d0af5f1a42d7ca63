package order

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

// Worker feeds payment outcomes from the bus into the reconciler.
type Worker struct {
	subscriber domoutbox.Subscriber
	reconcile  *ReconcilePaymentUseCase
}

func NewWorker(subscriber domoutbox.Subscriber, reconcile *ReconcilePaymentUseCase) *Worker {
	return &Worker{subscriber: subscriber, reconcile: reconcile}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.reconcile == nil {
		return
	}
	w.subscriber.Subscribe(dompayment.PaymentApprovedEvent{}.EventName(), w.handlePaymentApproved)
}

func (w *Worker) handlePaymentApproved(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(dompayment.PaymentApprovedEvent)
	if !ok {
		return nil
	}
	_, err := w.reconcile.Execute(ctx, evt)
	return err
}
