package notification

import (
	"context"
	"errors"
	"testing"

	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	observability.Logger
	msgs []string
}

func (l *recordingLogger) Info(msg string, _ ...observability.Field) { l.msgs = append(l.msgs, msg) }

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, Message) error { return errors.New("smtp down") }

func TestDispatchLogsNotification(t *testing.T) {
	logger := &recordingLogger{Logger: observability.NopLogger()}
	uc := NewDispatchUseCase(LogNotifier{Log: logger}, nil)

	m, err := uc.Execute(context.Background(), domorder.OrderCompletedEvent{
		OrderID: "ord_1", UserID: 7, Status: domorder.StatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, "Sending notification for order ord_1 (status: COMPLETED)", m.Text)
	assert.Equal(t, []string{m.Text}, logger.msgs)
}

func TestDispatchSurfacesNotifierError(t *testing.T) {
	uc := NewDispatchUseCase(failingNotifier{}, nil)

	_, err := uc.Execute(context.Background(), domorder.OrderCompletedEvent{OrderID: "ord_1"})
	assert.Error(t, err)
}
