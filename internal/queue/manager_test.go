package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"sisko/internal/models"
	"sisko/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func newTestManager(t *testing.T) (*Manager, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	m, err := NewManager(context.Background(), st, time.Hour, testLogger())
	require.NoError(t, err)
	return m, st
}

func gradeDraft() models.ActionDraft {
	return models.ActionDraft{
		Type:     models.ActionCreate,
		Entity:   "grade",
		Data:     json.RawMessage(`{"score":85}`),
		Endpoint: "/api/grades",
		Method:   "POST",
	}
}

func TestAddAssignsFields(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	id := m.Add(ctx, gradeDraft())
	require.NotEmpty(t, id)

	queue := m.Queue()
	require.Len(t, queue, 1)
	assert.Equal(t, id, queue[0].ID)
	assert.Equal(t, models.StatusPending, queue[0].Status)
	assert.Equal(t, models.EntityIDUnknown, queue[0].EntityID)
	assert.Equal(t, 0, queue[0].RetryCount)
	assert.False(t, queue[0].Timestamp.IsZero())
}

func TestUniqueIDs(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := m.Add(ctx, gradeDraft())
		if seen[id] {
			t.Fatalf("duplicate id %s at call %d", id, i)
		}
		seen[id] = true
	}
}

func TestDurabilityAcrossRestart(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	m, err := NewManager(ctx, st, time.Hour, testLogger())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		draft := gradeDraft()
		draft.EntityID = fmt.Sprintf("g-%d", i)
		m.Add(ctx, draft)
	}
	before := m.Queue()

	// Simulated process restart: a fresh manager over the same store.
	restored, err := NewManager(ctx, st, time.Hour, testLogger())
	require.NoError(t, err)

	assert.Equal(t, before, restored.Queue())
}

func TestRemoveIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	id := m.Add(ctx, gradeDraft())
	m.Add(ctx, gradeDraft())

	assert.True(t, m.Remove(ctx, id))
	assert.False(t, m.Remove(ctx, id))
	assert.Len(t, m.Queue(), 1)
}

func TestQueueReturnsDefensiveCopy(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	m.Add(ctx, gradeDraft())

	out := m.Queue()
	out[0].Status = models.StatusCompleted
	out[0].Data[2] = 'x'

	fresh := m.Queue()
	assert.Equal(t, models.StatusPending, fresh[0].Status)
	assert.Equal(t, json.RawMessage(`{"score":85}`), fresh[0].Data)
}

func TestCounts(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	id1 := m.Add(ctx, gradeDraft())
	m.Add(ctx, gradeDraft())
	m.Add(ctx, gradeDraft())

	m.Update(ctx, id1, func(rec *models.ActionRecord) {
		rec.Status = models.StatusFailed
	})

	assert.Equal(t, 2, m.PendingCount())
	assert.Equal(t, 1, m.FailedCount())
	assert.Len(t, m.ByStatus(models.StatusFailed), 1)
	assert.Len(t, m.ByStatus(models.StatusConflict), 0)
}

func TestClearCompleted(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	now := time.Now()
	m.now = func() time.Time { return now }

	mk := func(status string, age time.Duration) string {
		id := m.Add(ctx, gradeDraft())
		m.Update(ctx, id, func(rec *models.ActionRecord) {
			rec.Status = status
			rec.Timestamp = now.Add(-age)
		})
		return id
	}

	oldCompleted := mk(models.StatusCompleted, 61*time.Minute)
	freshCompleted := mk(models.StatusCompleted, 30*time.Minute)
	oldFailed := mk(models.StatusFailed, 48*time.Hour)
	oldConflict := mk(models.StatusConflict, 48*time.Hour)
	oldPending := mk(models.StatusPending, 48*time.Hour)
	oldSyncing := mk(models.StatusSyncing, 48*time.Hour)

	removed := m.ClearCompleted(ctx)
	assert.Equal(t, 1, removed)

	remaining := make(map[string]bool)
	for _, a := range m.Queue() {
		remaining[a.ID] = true
	}
	assert.False(t, remaining[oldCompleted])
	assert.True(t, remaining[freshCompleted])
	assert.True(t, remaining[oldFailed])
	assert.True(t, remaining[oldConflict])
	assert.True(t, remaining[oldPending])
	assert.True(t, remaining[oldSyncing])
}

func TestSyncingDemotedOnRestore(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	m, err := NewManager(ctx, st, time.Hour, testLogger())
	require.NoError(t, err)
	id := m.Add(ctx, gradeDraft())
	m.Update(ctx, id, func(rec *models.ActionRecord) {
		rec.Status = models.StatusSyncing
	})

	restored, err := NewManager(ctx, st, time.Hour, testLogger())
	require.NoError(t, err)

	queue := restored.Queue()
	require.Len(t, queue, 1)
	assert.Equal(t, models.StatusPending, queue[0].Status)
}

type failingStore struct {
	loadErr error
	saveErr error
	saves   int
}

func (s *failingStore) Load(ctx context.Context) ([]models.ActionRecord, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return nil, nil
}

func (s *failingStore) Save(ctx context.Context, queue []models.ActionRecord) error {
	s.saves++
	return s.saveErr
}

func TestAddSurvivesSaveFailure(t *testing.T) {
	st := &failingStore{saveErr: errors.New("disk full")}
	m, err := NewManager(context.Background(), st, time.Hour, testLogger())
	require.NoError(t, err)

	// The mutation must survive in memory even when persistence fails.
	id := m.Add(context.Background(), gradeDraft())
	assert.NotEmpty(t, id)
	assert.Len(t, m.Queue(), 1)
	assert.Greater(t, st.saves, 0)
}

func TestNewManagerLoadError(t *testing.T) {
	st := &failingStore{loadErr: errors.New("backend gone")}
	_, err := NewManager(context.Background(), st, time.Hour, testLogger())
	assert.Error(t, err)
}

func TestBatches(t *testing.T) {
	mkActions := func(n int) []models.ActionRecord {
		out := make([]models.ActionRecord, n)
		for i := range out {
			out[i] = models.ActionRecord{ID: fmt.Sprintf("a%d", i)}
		}
		return out
	}

	tests := []struct {
		name    string
		length  int
		size    int
		batches int
	}{
		{"Empty", 0, 5, 0},
		{"SingleUnderfull", 3, 5, 1},
		{"ExactMultiple", 10, 5, 2},
		{"Remainder", 11, 5, 3},
		{"SizeOne", 4, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := mkActions(tt.length)
			batches := Batches(actions, tt.size)
			assert.Len(t, batches, tt.batches)

			var flat []models.ActionRecord
			for i, b := range batches {
				if i < len(batches)-1 {
					assert.Len(t, b, tt.size)
				} else {
					assert.LessOrEqual(t, len(b), tt.size)
					assert.NotEmpty(t, b)
				}
				flat = append(flat, b...)
			}
			if tt.length > 0 {
				assert.Equal(t, actions, flat)
			} else {
				assert.Empty(t, flat)
			}
		})
	}
}
