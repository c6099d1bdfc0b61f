package netmon

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Monitor probes a health URL on an interval and derives connectivity state.
// A slow probe (latency above SlowThreshold) keeps IsOnline true but flips
// IsSlow, so callers can divert writes without treating the link as dead.
type Monitor struct {
	probeURL      string
	interval      time.Duration
	slowThreshold time.Duration
	client        *http.Client
	logger        *zerolog.Logger

	online atomic.Bool
	slow   atomic.Bool

	mu          sync.Mutex
	onReconnect []func()
}

func NewMonitor(probeURL string, interval, slowThreshold time.Duration, logger *zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if slowThreshold <= 0 {
		slowThreshold = 2 * time.Second
	}

	m := &Monitor{
		probeURL:      probeURL,
		interval:      interval,
		slowThreshold: slowThreshold,
		client:        &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
	}
	// Optimistic until the first probe says otherwise.
	m.online.Store(true)
	return m
}

func (m *Monitor) IsOnline() bool { return m.online.Load() }
func (m *Monitor) IsSlow() bool   { return m.slow.Load() }

// OnReconnect registers a callback fired on each offline-to-online
// transition. Callbacks run on the monitor goroutine; keep them short.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}

// Start probes until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe performs one connectivity check and updates state.
func (m *Monitor) Probe(ctx context.Context) {
	wasOnline := m.online.Load()

	start := time.Now()
	ok := m.check(ctx)
	elapsed := time.Since(start)

	m.online.Store(ok)
	m.slow.Store(ok && elapsed > m.slowThreshold)

	switch {
	case ok && !wasOnline:
		m.logger.Info().Dur("latency", elapsed).Msg("network restored")
		m.fireReconnect()
	case !ok && wasOnline:
		m.logger.Warn().Msg("network lost")
	case ok && m.slow.Load():
		m.logger.Debug().Dur("latency", elapsed).Msg("network slow")
	}
}

func (m *Monitor) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

func (m *Monitor) fireReconnect() {
	m.mu.Lock()
	callbacks := append([]func(){}, m.onReconnect...)
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}
