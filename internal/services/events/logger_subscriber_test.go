package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/interfaces"
)

func TestNewLoggerSubscriber(t *testing.T) {
	subscriber := NewLoggerSubscriber(arbor.NewLogger())
	ctx := context.Background()

	err := subscriber(ctx, interfaces.Event{
		Type: interfaces.EventDriftPhase,
		Payload: map[string]interface{}{
			"request_id": "req-123",
			"phase":      "searching",
			"count":      9,
		},
	})
	assert.NoError(t, err)

	err = subscriber(ctx, interfaces.Event{Type: interfaces.EventDriftStarted})
	assert.NoError(t, err)
}

func TestSubscribeLoggerToAllEvents(t *testing.T) {
	logger := arbor.NewLogger()
	eventService := NewService(logger)
	defer eventService.Close()

	require.NoError(t, SubscribeLoggerToAllEvents(eventService, logger))

	svc := eventService.(*Service)
	for _, eventType := range AllEventTypes {
		assert.Len(t, svc.handlersFor(eventType), 1, "event type %s", eventType)
	}
}

func TestService_PublishSync(t *testing.T) {
	eventService := NewService(arbor.NewLogger())
	defer eventService.Close()

	var calls int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	require.NoError(t, eventService.Subscribe(interfaces.EventDriftCompleted, handler))
	require.NoError(t, eventService.Subscribe(interfaces.EventDriftCompleted, handler))

	require.NoError(t, eventService.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventDriftCompleted}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestService_PublishAsync(t *testing.T) {
	eventService := NewService(arbor.NewLogger())
	defer eventService.Close()

	done := make(chan struct{})
	require.NoError(t, eventService.Subscribe(interfaces.EventDriftFailed, func(ctx context.Context, event interfaces.Event) error {
		close(done)
		return nil
	}))

	require.NoError(t, eventService.Publish(context.Background(), interfaces.Event{Type: interfaces.EventDriftFailed}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestService_SubscribeNil(t *testing.T) {
	eventService := NewService(arbor.NewLogger())
	assert.Error(t, eventService.Subscribe(interfaces.EventDriftStarted, nil))
}
