package offline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"sisko/internal/models"
	"sisko/internal/queue"
	"sisko/internal/syncer"

	"github.com/rs/zerolog"
)

// ErrOffline is returned for reads that cannot be served while disconnected.
var ErrOffline = errors.New("you are offline; this request needs a connection")

// NetworkStatus reports current connectivity. Owned by an external monitor,
// consumed here per call.
type NetworkStatus interface {
	IsOnline() bool
	IsSlow() bool
}

// CallRequest describes one API call routed through the wrapper.
type CallRequest struct {
	Endpoint   string
	Method     string
	ActionType string // create/update/delete/submit; inferred from Method when empty
	Entity     string // inferred from Endpoint when empty
	EntityID   string
	Data       json.RawMessage
	SkipQueue  bool
}

// CallResponse is either the remote response or a synthesized "queued"
// acknowledgement carrying the generated action id.
type CallResponse struct {
	Queued     bool   `json:"queued"`
	ActionID   string `json:"action_id,omitempty"`
	Message    string `json:"message,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       []byte `json:"-"`
}

// Wrapper decides per call whether to hit the network or divert the mutation
// into the offline queue.
type Wrapper struct {
	queue  *queue.Manager
	caller syncer.Caller
	status NetworkStatus
	logger *zerolog.Logger
}

func NewWrapper(q *queue.Manager, caller syncer.Caller, status NetworkStatus, logger *zerolog.Logger) *Wrapper {
	return &Wrapper{queue: q, caller: caller, status: status, logger: logger}
}

// Execute routes the call. Mutations are queued when the network is down or
// slow, and fall back to the queue when a direct call fails at the transport
// level. Reads are never queued: a replayed read has no one to answer. A slow
// link only diverts mutations; reads still go direct and fail only when the
// network is actually down.
func (w *Wrapper) Execute(ctx context.Context, req CallRequest) (*CallResponse, error) {
	mutating := req.Method != http.MethodGet
	online := w.status.IsOnline()

	if mutating && !req.SkipQueue && (!online || w.status.IsSlow()) {
		return w.enqueue(ctx, req), nil
	}
	if !mutating && !online {
		return nil, ErrOffline
	}

	res, err := w.caller.Call(ctx, req.Method, req.Endpoint, req.Data)
	if err != nil {
		// Transport failure, not a server answer.
		if mutating && !req.SkipQueue {
			w.logger.Warn().Err(err).Str("endpoint", req.Endpoint).Msg("direct call failed, queueing")
			return w.enqueue(ctx, req), nil
		}
		return nil, err
	}

	return &CallResponse{StatusCode: res.StatusCode, Body: res.Body}, nil
}

func (w *Wrapper) enqueue(ctx context.Context, req CallRequest) *CallResponse {
	draft := models.ActionDraft{
		Type:     req.ActionType,
		Entity:   req.Entity,
		EntityID: req.EntityID,
		Data:     req.Data,
		Endpoint: req.Endpoint,
		Method:   req.Method,
	}
	if draft.Type == "" {
		draft.Type = actionTypeForMethod(req.Method)
	}
	if draft.Entity == "" {
		draft.Entity = EntityFromPath(req.Endpoint)
	}

	id := w.queue.Add(ctx, draft)
	return &CallResponse{
		Queued:   true,
		ActionID: id,
		Message:  "queued for offline sync",
	}
}

func actionTypeForMethod(method string) string {
	switch method {
	case http.MethodPost:
		return models.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return models.ActionUpdate
	case http.MethodDelete:
		return models.ActionDelete
	default:
		return models.ActionSubmit
	}
}

// entityKeywords maps path segments to entity tags, checked in order.
var entityKeywords = []struct {
	keyword string
	entity  string
}{
	{"grades", "grade"},
	{"attendance", "attendance"},
	{"ppdb", "ppdb"},
	{"materials", "material"},
	{"assignments", "assignment"},
	{"students", "student"},
	{"announcements", "announcement"},
}

// EntityFromPath tags an endpoint with a domain entity for routing/display.
// The tag never drives engine behavior.
func EntityFromPath(path string) string {
	lower := strings.ToLower(path)
	for _, kw := range entityKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.entity
		}
	}
	return "generic"
}
