package customer

import (
	"context"

	domcustomer "github.com/Zhima-Mochi/minishop-checkout/internal/domain/customer"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
)

type Worker struct {
	subscriber domoutbox.Subscriber
	provision  *ProvisionCustomerUseCase
}

func NewWorker(subscriber domoutbox.Subscriber, provision *ProvisionCustomerUseCase) *Worker {
	return &Worker{subscriber: subscriber, provision: provision}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.provision == nil {
		return
	}
	w.subscriber.Subscribe(domcustomer.CustomerCreationRequestedEvent{}.EventName(), w.handleCreationRequested)
}

func (w *Worker) handleCreationRequested(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domcustomer.CustomerCreationRequestedEvent)
	if !ok {
		return nil
	}
	_, err := w.provision.Execute(ctx, evt)
	return err
}
