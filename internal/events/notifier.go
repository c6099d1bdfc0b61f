package events

import (
	"sync"

	"sisko/internal/models"

	"github.com/rs/zerolog"
)

// Notifier is an observer registry for sync completion. Callbacks run
// synchronously in registration order; a panicking observer is recovered and
// logged so it cannot take down the engine or starve other observers.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(models.SyncResult)
	logger *zerolog.Logger
}

func NewNotifier(logger *zerolog.Logger) *Notifier {
	return &Notifier{
		subs:   make(map[int]func(models.SyncResult)),
		logger: logger,
	}
}

// OnSyncComplete registers a callback and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (n *Notifier) OnSyncComplete(fn func(models.SyncResult)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// NotifySyncComplete invokes every registered callback with the result.
func (n *Notifier) NotifySyncComplete(result models.SyncResult) {
	n.mu.Lock()
	callbacks := make([]func(models.SyncResult), 0, len(n.subs))
	for i := 0; i < n.nextID; i++ {
		if fn, ok := n.subs[i]; ok {
			callbacks = append(callbacks, fn)
		}
	}
	n.mu.Unlock()

	for _, fn := range callbacks {
		n.invoke(fn, result)
	}
}

func (n *Notifier) invoke(fn func(models.SyncResult), result models.SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error().Interface("panic", r).Msg("sync observer panicked")
		}
	}()
	fn(result)
}
