package models

import (
	"encoding/json"
	"time"
)

// ActionRecord is one queued mutation awaiting (or having undergone) sync.
// Data is the opaque request body; the queue and engine never inspect it.
type ActionRecord struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Entity     string          `json:"entity"`
	EntityID   string          `json:"entity_id"`
	Data       json.RawMessage `json:"data,omitempty"`
	Endpoint   string          `json:"endpoint"`
	Method     string          `json:"method"`
	Timestamp  time.Time       `json:"timestamp"`
	Status     string          `json:"status"`
	RetryCount int             `json:"retry_count"`
	LastError  *string         `json:"last_error,omitempty"`
}

// ActionDraft is the caller-supplied part of an ActionRecord. ID, Timestamp,
// Status and RetryCount are assigned by the queue manager.
type ActionDraft struct {
	Type     string          `json:"type"`
	Entity   string          `json:"entity"`
	EntityID string          `json:"entity_id"`
	Data     json.RawMessage `json:"data,omitempty"`
	Endpoint string          `json:"endpoint"`
	Method   string          `json:"method"`
}

// Clone returns a deep copy so callers cannot mutate queue internals.
func (a ActionRecord) Clone() ActionRecord {
	c := a
	if a.Data != nil {
		c.Data = append(json.RawMessage(nil), a.Data...)
	}
	if a.LastError != nil {
		msg := *a.LastError
		c.LastError = &msg
	}
	return c
}

// ConflictRecord captures a 409 outcome for the resolution UI.
type ConflictRecord struct {
	ActionID      string          `json:"action_id"`
	ServerVersion int64           `json:"server_version"`
	LocalData     json.RawMessage `json:"local_data,omitempty"`
}

// SyncResult is the aggregate outcome of one sync pass.
type SyncResult struct {
	Success          bool             `json:"success"`
	ActionsProcessed int              `json:"actions_processed"`
	ActionsFailed    int              `json:"actions_failed"`
	Conflicts        []ConflictRecord `json:"conflicts"`
	Errors           []string         `json:"errors"`
}
