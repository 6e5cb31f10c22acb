package status

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/services/events"
)

func TestService_TracksRuns(t *testing.T) {
	logger := arbor.NewLogger()
	eventService := events.NewService(logger)
	defer eventService.Close()

	svc := NewService(eventService, logger)
	require.NoError(t, svc.SubscribeToDriftEvents())

	ctx := context.Background()
	publish := func(eventType interfaces.EventType, payload map[string]interface{}) {
		require.NoError(t, eventService.PublishSync(ctx, interfaces.Event{Type: eventType, Payload: payload}))
	}

	assert.Equal(t, StateIdle, svc.GetState())

	publish(interfaces.EventDriftStarted, map[string]interface{}{"request_id": "a"})
	publish(interfaces.EventDriftStarted, map[string]interface{}{"request_id": "b"})
	publish(interfaces.EventDriftPhase, map[string]interface{}{"request_id": "a", "phase": "searching"})
	assert.Equal(t, StateDiscovering, svc.GetState())

	publish(interfaces.EventDriftCompleted, map[string]interface{}{"request_id": "a"})
	publish(interfaces.EventDriftFailed, map[string]interface{}{"request_id": "b", "error": "classifier down"})

	snap := svc.GetStatus()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 2, snap.Started)
	assert.Equal(t, 1, snap.Completed)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, "searching", snap.LastPhase)
	assert.Equal(t, "classifier down", snap.LastError)
	assert.NotNil(t, snap.LastRunAt)
}
