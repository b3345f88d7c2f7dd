package resolution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Accept(t *testing.T) {
	store := newMemResolutionStore()
	enq := &stubEnqueuer{}
	svc := NewService(store, enq)

	log, err := svc.Accept(context.Background(), testEvent(map[string]any{"region": "emea"}))
	require.NoError(t, err)
	require.NotEmpty(t, log.ID)
	assert.Equal(t, StatusQueued, log.Status)
	assert.Equal(t, []string{log.ID}, enq.enqueued)

	stored, err := store.GetByID(context.Background(), log.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "d1", stored.DealerID)
	assert.Equal(t, "order_created", stored.Event)
	assert.Equal(t, "emea", stored.Metadata["region"])
}

func TestService_AcceptFillsTimestamp(t *testing.T) {
	svc := NewService(newMemResolutionStore(), &stubEnqueuer{})

	evt := testEvent(nil)
	evt.Timestamp = time.Time{}
	log, err := svc.Accept(context.Background(), evt)
	require.NoError(t, err)
	assert.False(t, log.EventTimestamp.IsZero())
}

func TestService_AcceptInvalidEvent(t *testing.T) {
	enq := &stubEnqueuer{}
	svc := NewService(newMemResolutionStore(), enq)

	_, err := svc.Accept(context.Background(), &EventContext{Module: "m", Event: "e"})
	require.Error(t, err)
	assert.Empty(t, enq.enqueued)
}

func TestService_AcceptEnqueueFailureMarksFailed(t *testing.T) {
	store := newMemResolutionStore()
	enq := &stubEnqueuer{fail: true}
	svc := NewService(store, enq)

	_, err := svc.Accept(context.Background(), testEvent(nil))
	require.Error(t, err)

	// The log stays in the store, marked failed so the reaper will not
	// endlessly retry a record the queue never saw.
	logs, _, err := store.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, StatusFailed, logs[0].Status)
	assert.Contains(t, logs[0].ErrorMessage, "failed to enqueue")
}

func TestService_AcceptStoreFailure(t *testing.T) {
	store := newMemResolutionStore()
	store.fail = true
	svc := NewService(store, &stubEnqueuer{})

	_, err := svc.Accept(context.Background(), testEvent(nil))
	assert.Error(t, err)
}

func TestService_GetResolution(t *testing.T) {
	store := newMemResolutionStore()
	svc := NewService(store, &stubEnqueuer{})

	log, err := svc.Accept(context.Background(), testEvent(nil))
	require.NoError(t, err)

	got, err := svc.GetResolution(context.Background(), log.ID)
	require.NoError(t, err)
	assert.Equal(t, log.ID, got.ID)

	_, err = svc.GetResolution(context.Background(), "missing")
	assert.Error(t, err)
}

func TestService_ListResolutions(t *testing.T) {
	store := newMemResolutionStore()
	svc := NewService(store, &stubEnqueuer{})

	for i := 0; i < 3; i++ {
		_, err := svc.Accept(context.Background(), testEvent(nil))
		require.NoError(t, err)
	}

	resp, err := svc.ListResolutions(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Resolutions, 3)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PageSize)

	resp, err = svc.ListResolutions(context.Background(), ListFilter{Status: string(StatusFailed)})
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
}
