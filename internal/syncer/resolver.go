package syncer

import (
	"context"
	"encoding/json"

	"sisko/internal/models"
)

// ResolveRequest carries a user decision about a conflicted action.
type ResolveRequest struct {
	ActionID   string          `json:"action_id"`
	Resolution string          `json:"resolution"`
	MergedData json.RawMessage `json:"merged_data,omitempty"`
}

// Resolve applies a conflict decision. An unknown action id is a logged
// no-op, never an error: the resolution UI may race with a concurrent sync
// that already removed the action. Reports whether the action was found and
// the request was well-formed.
func (e *Engine) Resolve(ctx context.Context, req ResolveRequest) bool {
	switch req.Resolution {
	case models.ResolutionUseServer:
		// Defer to server state, discard the local write.
		if !e.queue.Remove(ctx, req.ActionID) {
			e.logger.Warn().Str("action_id", req.ActionID).Msg("resolve: action not found")
			return false
		}
		e.logger.Info().Str("action_id", req.ActionID).Msg("conflict resolved: use_server")
		return true

	case models.ResolutionKeepLocal:
		return e.rearm(ctx, req.ActionID, nil)

	case models.ResolutionMerge:
		if len(req.MergedData) == 0 {
			e.logger.Warn().Str("action_id", req.ActionID).Msg("resolve: merge without merged data")
			return false
		}
		return e.rearm(ctx, req.ActionID, req.MergedData)

	default:
		e.logger.Warn().
			Str("action_id", req.ActionID).
			Str("resolution", req.Resolution).
			Msg("resolve: unknown resolution")
		return false
	}
}

// rearm resets an action to pending with a clean retry slate; data is
// replaced when merged payload is supplied.
func (e *Engine) rearm(ctx context.Context, actionID string, data json.RawMessage) bool {
	found := e.queue.Update(ctx, actionID, func(rec *models.ActionRecord) {
		if data != nil {
			rec.Data = data
		}
		rec.Status = models.StatusPending
		rec.RetryCount = 0
		rec.LastError = nil
	})
	if !found {
		e.logger.Warn().Str("action_id", actionID).Msg("resolve: action not found")
		return false
	}
	e.logger.Info().Str("action_id", actionID).Msg("conflict resolved, action re-armed")
	return true
}
