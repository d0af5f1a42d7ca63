package payment

import (
	"context"

	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
)

type Worker struct {
	subscriber domoutbox.Subscriber
	link       *LinkOrderUseCase
}

func NewWorker(subscriber domoutbox.Subscriber, link *LinkOrderUseCase) *Worker {
	return &Worker{subscriber: subscriber, link: link}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.link == nil {
		return
	}
	w.subscriber.Subscribe(domorder.PaymentRequestedEvent{}.EventName(), w.handlePaymentRequested)
}

func (w *Worker) handlePaymentRequested(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.PaymentRequestedEvent)
	if !ok {
		return nil
	}
	_, err := w.link.Execute(ctx, evt)
	return err
}
