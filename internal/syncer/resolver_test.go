package syncer

import (
	"context"
	"encoding/json"
	"testing"

	"sisko/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConflictedAction(t *testing.T) (*Engine, string) {
	t.Helper()
	caller := newStubCaller()
	caller.results["/api/grades/g-1"] = &CallResult{
		StatusCode: 409,
		Status:     "409 Conflict",
		Body:       []byte(`{"version":3}`),
	}
	engine, m, _ := newTestEngine(t, caller, Options{})
	ctx := context.Background()

	id := m.Add(ctx, models.ActionDraft{
		Type:     models.ActionUpdate,
		Entity:   "grade",
		EntityID: "g-1",
		Data:     json.RawMessage(`{"score":90}`),
		Endpoint: "/api/grades/g-1",
		Method:   "PUT",
	})
	engine.Sync(ctx)
	require.Equal(t, models.StatusConflict, engine.queue.Queue()[0].Status)
	return engine, id
}

func TestResolveUseServer(t *testing.T) {
	engine, id := newConflictedAction(t)

	ok := engine.Resolve(context.Background(), ResolveRequest{
		ActionID:   id,
		Resolution: models.ResolutionUseServer,
	})

	assert.True(t, ok)
	assert.Empty(t, engine.queue.Queue())
}

func TestResolveKeepLocal(t *testing.T) {
	engine, id := newConflictedAction(t)

	ok := engine.Resolve(context.Background(), ResolveRequest{
		ActionID:   id,
		Resolution: models.ResolutionKeepLocal,
	})
	assert.True(t, ok)

	queued := engine.queue.Queue()
	require.Len(t, queued, 1)
	assert.Equal(t, models.StatusPending, queued[0].Status)
	assert.Equal(t, 0, queued[0].RetryCount)
	assert.Nil(t, queued[0].LastError)
	// Original payload is retried verbatim.
	assert.Equal(t, json.RawMessage(`{"score":90}`), queued[0].Data)
}

func TestResolveMerge(t *testing.T) {
	engine, id := newConflictedAction(t)

	ok := engine.Resolve(context.Background(), ResolveRequest{
		ActionID:   id,
		Resolution: models.ResolutionMerge,
		MergedData: json.RawMessage(`{"score":88,"note":"merged"}`),
	})
	assert.True(t, ok)

	queued := engine.queue.Queue()
	require.Len(t, queued, 1)
	assert.Equal(t, models.StatusPending, queued[0].Status)
	assert.Equal(t, 0, queued[0].RetryCount)
	assert.JSONEq(t, `{"score":88,"note":"merged"}`, string(queued[0].Data))
}

func TestResolveMergeWithoutData(t *testing.T) {
	engine, id := newConflictedAction(t)

	ok := engine.Resolve(context.Background(), ResolveRequest{
		ActionID:   id,
		Resolution: models.ResolutionMerge,
	})

	assert.False(t, ok)
	assert.Equal(t, models.StatusConflict, engine.queue.Queue()[0].Status)
}

func TestResolveUnknownAction(t *testing.T) {
	engine, _ := newConflictedAction(t)

	for _, resolution := range []string{models.ResolutionUseServer, models.ResolutionKeepLocal} {
		ok := engine.Resolve(context.Background(), ResolveRequest{
			ActionID:   "no-such-id",
			Resolution: resolution,
		})
		assert.False(t, ok, resolution)
	}
	assert.Len(t, engine.queue.Queue(), 1)
}

func TestResolveUnknownResolution(t *testing.T) {
	engine, id := newConflictedAction(t)

	ok := engine.Resolve(context.Background(), ResolveRequest{
		ActionID:   id,
		Resolution: "discard",
	})

	assert.False(t, ok)
	assert.Equal(t, models.StatusConflict, engine.queue.Queue()[0].Status)
}
