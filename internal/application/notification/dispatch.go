package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	notificationService = "notification-service"
	useCaseDispatch     = "notification.dispatch"
)

type Message struct {
	OrderID string
	UserID  int64
	Status  string
	Text    string
}

// Notifier delivers a message to the user. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// LogNotifier writes the message to the service log instead of a real channel.
type LogNotifier struct {
	Log observability.Logger
}

func (n LogNotifier) Notify(ctx context.Context, m Message) error {
	logger := n.Log
	if logger == nil {
		logger = observability.NopLogger()
	}
	logger.Info(m.Text,
		observability.F("order_id", m.OrderID),
		observability.F("user_id", m.UserID),
		observability.F("order_status", m.Status),
	)
	return nil
}

type DispatchUseCase struct {
	notifier Notifier
	in       application.Instruments
}

var _ application.UseCase[domorder.OrderCompletedEvent, *Message] = (*DispatchUseCase)(nil)

func NewDispatchUseCase(notifier Notifier, tel observability.Observability) *DispatchUseCase {
	return &DispatchUseCase{notifier: notifier, in: application.NewInstruments(tel, notificationService)}
}

func (uc *DispatchUseCase) Execute(ctx context.Context, e domorder.OrderCompletedEvent) (_ *Message, err error) {
	logger := uc.in.Logger(ctx, useCaseDispatch, observability.F("order_id", e.OrderID))
	ctx, span := uc.in.Tracer.Start(ctx, application.SpanPrefix+"DispatchNotification",
		attribute.String("use_case", useCaseDispatch),
		attribute.String("order.id", e.OrderID),
	)
	start := time.Now()
	statusText := "OK"
	defer func() {
		uc.in.Done(ctx, logger, span, application.Run{
			UseCase: useCaseDispatch,
			Outcome: application.Outcome(err),
			Status:  statusText,
			Start:   start,
			Err:     err,
		})
	}()

	m := &Message{
		OrderID: e.OrderID,
		UserID:  e.UserID,
		Status:  string(e.Status),
		Text:    fmt.Sprintf("Sending notification for order %s (status: %s)", e.OrderID, e.Status),
	}
	if nerr := uc.notifier.Notify(ctx, *m); nerr != nil {
		statusText = "NOTIFY_FAILED"
		return m, fmt.Errorf("notification: %w", nerr)
	}
	return m, nil
}
