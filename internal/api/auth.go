package api

import (
	"crypto/subtle"
	"net/http"
	"sync"

	"sisko/internal/config"

	"golang.org/x/time/rate"
)

// auth gates the admin API with a shared API key header and a per-key rate
// limit. Health and metrics stay open for scrapers.
type auth struct {
	cfg      config.AdminConfig
	limiters sync.Map
}

func newAuth(cfg config.AdminConfig) *auth {
	return &auth{cfg: cfg}
}

func (a *auth) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(a.cfg.Auth.HeaderAPIKey)
		if a.cfg.Auth.Enabled {
			if !a.validKey(key) {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
		}

		if a.cfg.RateLimit.RPS > 0 && !a.limiter(key).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *auth) validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, known := range a.cfg.Auth.APIKeys {
		if subtle.ConstantTimeCompare([]byte(known), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func (a *auth) limiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}
	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, _ := a.limiters.LoadOrStore(key, lim)
	return actual.(*rate.Limiter)
}
