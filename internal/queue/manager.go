package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sisko/internal/metrics"
	"sisko/internal/models"
	"sisko/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager owns the ordered action queue. Every public mutation persists the
// full queue to the store before returning; a persist failure is logged, not
// returned, since losing durability is less severe than losing the mutation
// from memory.
type Manager struct {
	mu        sync.Mutex
	actions   []models.ActionRecord
	store     store.Store
	logger    *zerolog.Logger
	retention time.Duration
	now       func() time.Time
}

// NewManager restores the queue from the store. Actions left in "syncing" by
// a crash are demoted back to "pending" so they become eligible again.
func NewManager(ctx context.Context, st store.Store, retention time.Duration, logger *zerolog.Logger) (*Manager, error) {
	if retention <= 0 {
		retention = time.Hour
	}

	actions, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore queue: %w", err)
	}

	m := &Manager{
		actions:   actions,
		store:     st,
		logger:    logger,
		retention: retention,
		now:       time.Now,
	}

	demoted := 0
	for i := range m.actions {
		if m.actions[i].Status == models.StatusSyncing {
			m.actions[i].Status = models.StatusPending
			demoted++
		}
	}
	if demoted > 0 {
		logger.Warn().Int("count", demoted).Msg("demoted stuck syncing actions to pending")
		m.persistLocked(ctx)
	}
	m.updateGaugesLocked()

	return m, nil
}

// Add assigns id, timestamp and initial status to the draft, appends it and
// persists. Returns the new action id.
func (m *Manager) Add(ctx context.Context, draft models.ActionDraft) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	action := models.ActionRecord{
		ID:         uuid.NewString(),
		Type:       draft.Type,
		Entity:     draft.Entity,
		EntityID:   draft.EntityID,
		Data:       draft.Data,
		Endpoint:   draft.Endpoint,
		Method:     draft.Method,
		Timestamp:  m.now(),
		Status:     models.StatusPending,
		RetryCount: 0,
	}
	if action.EntityID == "" {
		action.EntityID = models.EntityIDUnknown
	}

	m.actions = append(m.actions, action)
	m.persistLocked(ctx)

	m.logger.Info().
		Str("action_id", action.ID).
		Str("entity", action.Entity).
		Str("type", action.Type).
		Str("endpoint", action.Endpoint).
		Msg("action queued")
	return action.ID
}

// Remove deletes the action with the given id and persists. Reports whether
// an action was found.
func (m *Manager) Remove(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.discardLocked(id) {
		return false
	}
	m.persistLocked(ctx)
	return true
}

// Discard deletes an action without persisting. Used by the sync engine,
// which flushes once per batch.
func (m *Manager) Discard(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discardLocked(id)
}

func (m *Manager) discardLocked(id string) bool {
	for i := range m.actions {
		if m.actions[i].ID == id {
			m.actions = append(m.actions[:i], m.actions[i+1:]...)
			return true
		}
	}
	return false
}

// Queue returns a deep copy of the full ordered queue.
func (m *Manager) Queue() []models.ActionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ActionRecord, 0, len(m.actions))
	for _, a := range m.actions {
		out = append(out, a.Clone())
	}
	return out
}

// ByStatus returns a deep copy of actions in the given status, in queue order.
func (m *Manager) ByStatus(status string) []models.ActionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.ActionRecord
	for _, a := range m.actions {
		if a.Status == status {
			out = append(out, a.Clone())
		}
	}
	return out
}

// PendingCount returns the number of pending actions, for UI badges.
func (m *Manager) PendingCount() int {
	return m.countByStatus(models.StatusPending)
}

// FailedCount returns the number of failed actions, for UI badges.
func (m *Manager) FailedCount() int {
	return m.countByStatus(models.StatusFailed)
}

func (m *Manager) countByStatus(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, a := range m.actions {
		if a.Status == status {
			n++
		}
	}
	return n
}

// Apply mutates the action with the given id in place, without persisting.
// Reports whether the action was found.
func (m *Manager) Apply(id string, fn func(*models.ActionRecord)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.actions {
		if m.actions[i].ID == id {
			fn(&m.actions[i])
			return true
		}
	}
	return false
}

// Update is Apply followed by a persist.
func (m *Manager) Update(ctx context.Context, id string, fn func(*models.ActionRecord)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.actions {
		if m.actions[i].ID == id {
			fn(&m.actions[i])
			m.persistLocked(ctx)
			return true
		}
	}
	return false
}

// Flush persists the current queue. The sync engine calls it after each
// batch fully resolves.
func (m *Manager) Flush(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistLocked(ctx)
}

// ClearCompleted removes completed actions older than the retention window
// and persists. Failed and conflict actions are never auto-removed: they hold
// user data and require explicit retry or resolution. Returns the number of
// purged actions.
func (m *Manager) ClearCompleted(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.retention)
	kept := m.actions[:0]
	removed := 0
	for _, a := range m.actions {
		if a.Status == models.StatusCompleted && a.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	m.actions = kept

	if removed > 0 {
		m.persistLocked(ctx)
		m.logger.Info().Int("count", removed).Msg("purged completed actions")
	}
	return removed
}

func (m *Manager) persistLocked(ctx context.Context) {
	if err := m.store.Save(ctx, m.actions); err != nil {
		m.logger.Error().Err(err).Msg("persist queue failed, continuing in-memory")
	}
	m.updateGaugesLocked()
}

func (m *Manager) updateGaugesLocked() {
	pending, failed, conflict := 0, 0, 0
	for _, a := range m.actions {
		switch a.Status {
		case models.StatusPending:
			pending++
		case models.StatusFailed:
			failed++
		case models.StatusConflict:
			conflict++
		}
	}
	metrics.SetQueueDepth(pending, failed, conflict)
}

// Batches splits actions into consecutive chunks of at most size; the last
// chunk may be smaller. Empty input yields no batches.
func Batches(actions []models.ActionRecord, size int) [][]models.ActionRecord {
	if size <= 0 {
		size = models.DefaultBatchSize
	}

	var batches [][]models.ActionRecord
	for start := 0; start < len(actions); start += size {
		end := start + size
		if end > len(actions) {
			end = len(actions)
		}
		batches = append(batches, actions[start:end])
	}
	return batches
}
