package models

// Action statuses. Transitions: pending -> syncing -> completed|failed|conflict;
// failed -> pending via retry; conflict -> pending via keep_local/merge or
// removal via use_server.
const (
	StatusPending   = "pending"
	StatusSyncing   = "syncing"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusConflict  = "conflict"
)

// Action types.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionSubmit = "submit"
)

// Conflict resolutions.
const (
	ResolutionUseServer = "use_server"
	ResolutionKeepLocal = "keep_local"
	ResolutionMerge     = "merge"
)

// EntityIDUnknown is the sentinel for actions whose target id is
// server-assigned (e.g. a create that has not synced yet).
const EntityIDUnknown = "unknown"

// DefaultBatchSize bounds in-flight requests per sync batch.
const DefaultBatchSize = 5

// ValidStatus reports whether s is a known action status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusSyncing, StatusCompleted, StatusFailed, StatusConflict:
		return true
	}
	return false
}

// ValidResolution reports whether r is a known conflict resolution.
func ValidResolution(r string) bool {
	switch r {
	case ResolutionUseServer, ResolutionKeepLocal, ResolutionMerge:
		return true
	}
	return false
}
