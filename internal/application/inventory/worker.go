package inventory

import (
	"context"

	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
)

type Worker struct {
	subscriber domoutbox.Subscriber
	decrement  *DecrementStockUseCase
}

func NewWorker(subscriber domoutbox.Subscriber, decrement *DecrementStockUseCase) *Worker {
	return &Worker{subscriber: subscriber, decrement: decrement}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.decrement == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderCompletedEvent{}.EventName(), w.handleOrderCompleted)
}

func (w *Worker) handleOrderCompleted(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderCompletedEvent)
	if !ok {
		return nil
	}
	_, err := w.decrement.Execute(ctx, evt)
	return err
}
