package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"sisko/internal/events"
	"sisko/internal/metrics"
	"sisko/internal/models"
	"sisko/internal/queue"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Options tune a sync engine. Zero values fall back to defaults.
type Options struct {
	BatchSize         int
	RequestsPerSecond float64
	Burst             int
}

// Engine dispatches pending actions in bounded batches and reconciles their
// outcomes. Batches run sequentially; actions within a batch run
// concurrently and are joined before the batch's queue state is persisted.
type Engine struct {
	queue    *queue.Manager
	caller   Caller
	notifier *events.Notifier
	logger   *zerolog.Logger

	batchSize int
	limiter   *rate.Limiter
	inFlight  atomic.Bool
}

func NewEngine(q *queue.Manager, caller Caller, notifier *events.Notifier, opts Options, logger *zerolog.Logger) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = models.DefaultBatchSize
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = opts.BatchSize
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Engine{
		queue:     q,
		caller:    caller,
		notifier:  notifier,
		logger:    logger,
		batchSize: opts.BatchSize,
		limiter:   limiter,
	}
}

// Sync dispatches every pending action and returns the aggregate result.
// It never returns an error: per-action failures are captured in the result
// and in each action's last_error. Sync is not reentrant; a second call while
// one is active returns immediately without touching the queue.
func (e *Engine) Sync(ctx context.Context) models.SyncResult {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Warn().Msg("sync requested while another is active")
		return models.SyncResult{
			Success:   false,
			Conflicts: []models.ConflictRecord{},
			Errors:    []string{"Sync already in progress"},
		}
	}
	defer e.inFlight.Store(false)

	pending := e.queue.ByStatus(models.StatusPending)
	result := &syncState{result: models.SyncResult{
		Conflicts: []models.ConflictRecord{},
		Errors:    []string{},
	}}

	batches := queue.Batches(pending, e.batchSize)
	for _, batch := range batches {
		var wg sync.WaitGroup
		for _, action := range batch {
			wg.Add(1)
			go func(a models.ActionRecord) {
				defer wg.Done()
				e.dispatch(ctx, a, result)
			}(action)
		}
		wg.Wait()
		e.queue.Flush(ctx)
	}

	out := result.result
	out.Success = out.ActionsFailed == 0

	e.logger.Info().
		Int("processed", out.ActionsProcessed).
		Int("failed", out.ActionsFailed).
		Int("conflicts", len(out.Conflicts)).
		Msg("sync pass finished")
	metrics.IncSyncPass()

	e.notifier.NotifySyncComplete(out)
	return out
}

// RetryFailed re-arms every failed action as pending and runs a sync pass.
// RetryCount is preserved across manual retries as an audit trail; it only
// resets through conflict resolution.
func (e *Engine) RetryFailed(ctx context.Context) models.SyncResult {
	failed := e.queue.ByStatus(models.StatusFailed)
	for _, a := range failed {
		e.queue.Apply(a.ID, func(rec *models.ActionRecord) {
			rec.Status = models.StatusPending
		})
	}
	if len(failed) > 0 {
		e.queue.Flush(ctx)
		e.logger.Info().Int("count", len(failed)).Msg("re-armed failed actions")
	}
	return e.Sync(ctx)
}

// syncState aggregates per-action outcomes across batch goroutines.
type syncState struct {
	mu     sync.Mutex
	result models.SyncResult
}

func (s *syncState) processed() {
	s.mu.Lock()
	s.result.ActionsProcessed++
	s.mu.Unlock()
}

func (s *syncState) conflicted(c models.ConflictRecord) {
	s.mu.Lock()
	s.result.ActionsFailed++
	s.result.Conflicts = append(s.result.Conflicts, c)
	s.mu.Unlock()
}

func (s *syncState) failed(msg string) {
	s.mu.Lock()
	s.result.ActionsFailed++
	s.result.Errors = append(s.result.Errors, msg)
	s.mu.Unlock()
}

func (e *Engine) dispatch(ctx context.Context, action models.ActionRecord, state *syncState) {
	e.queue.Apply(action.ID, func(rec *models.ActionRecord) {
		rec.Status = models.StatusSyncing
	})

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			e.fail(action.ID, state, err.Error())
			return
		}
	}

	res, err := e.caller.Call(ctx, action.Method, action.Endpoint, action.Data)
	if err != nil {
		e.fail(action.ID, state, err.Error())
		return
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		e.queue.Apply(action.ID, func(rec *models.ActionRecord) {
			rec.Status = models.StatusCompleted
		})
		e.queue.Discard(action.ID)
		state.processed()
		metrics.IncSyncAction("completed")

	case res.StatusCode == 409:
		e.queue.Apply(action.ID, func(rec *models.ActionRecord) {
			rec.Status = models.StatusConflict
		})
		state.conflicted(models.ConflictRecord{
			ActionID:      action.ID,
			ServerVersion: parseServerVersion(res.Body),
			LocalData:     action.Data,
		})
		metrics.IncSyncAction("conflict")
		e.logger.Warn().
			Str("action_id", action.ID).
			Str("entity", action.Entity).
			Msg("sync conflict, awaiting resolution")

	default:
		e.fail(action.ID, state, fmt.Sprintf("Server error: %s", res.Status))
	}
}

func (e *Engine) fail(actionID string, state *syncState, msg string) {
	e.queue.Apply(actionID, func(rec *models.ActionRecord) {
		rec.Status = models.StatusFailed
		rec.RetryCount++
		rec.LastError = &msg
	})
	state.failed(msg)
	metrics.IncSyncAction("failed")
	e.logger.Error().Str("action_id", actionID).Str("error", msg).Msg("action sync failed")
}

// parseServerVersion pulls the optional version field out of a 409 body.
func parseServerVersion(body []byte) int64 {
	var payload struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0
	}
	return payload.Version
}
