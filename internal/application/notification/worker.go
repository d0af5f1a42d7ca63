package notification

import (
	"context"

	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
)

type Worker struct {
	subscriber domoutbox.Subscriber
	dispatch   *DispatchUseCase
}

func NewWorker(subscriber domoutbox.Subscriber, dispatch *DispatchUseCase) *Worker {
	return &Worker{subscriber: subscriber, dispatch: dispatch}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.dispatch == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderCompletedEvent{}.EventName(), w.handleOrderCompleted)
}

func (w *Worker) handleOrderCompleted(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderCompletedEvent)
	if !ok {
		return nil
	}
	_, err := w.dispatch.Execute(ctx, evt)
	return err
}
