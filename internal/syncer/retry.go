package syncer

import "time"

// RetryPolicy spaces out automatic sync passes after consecutive failures,
// so a dead or erroring backend is probed less and less often. Individual
// actions are never retried inside a pass; the daemon loop applies the
// policy between whole passes and resets it on the first success.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the pause before the given attempt (1-based). The delay
// grows by BackoffFactor per attempt and never exceeds MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	initial := r.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	delay := float64(initial)
	for i := 1; i < attempt; i++ {
		delay *= factor
		if r.MaxDelay > 0 && delay >= float64(r.MaxDelay) {
			return r.MaxDelay
		}
	}
	return time.Duration(delay)
}
