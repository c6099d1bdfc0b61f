package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sisko/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverStore writes through a primary store and falls back to a secondary
// when the primary errors. The primary is re-probed after recoveryInterval;
// a later successful Save against it reconciles the full queue since every
// Save is a full overwrite.
type FailoverStore struct {
	primary  Store
	fallback Store
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (s *FailoverStore) Load(ctx context.Context) ([]models.ActionRecord, error) {
	if s.shouldTryPrimary() {
		queue, err := s.primary.Load(ctx)
		if err == nil {
			s.markUp()
			return queue, nil
		}
		s.markDown(err)
	}
	return s.fallback.Load(ctx)
}

func (s *FailoverStore) Save(ctx context.Context, queue []models.ActionRecord) error {
	if s.shouldTryPrimary() {
		err := s.primary.Save(ctx, queue)
		if err == nil {
			s.markUp()
			return nil
		}
		s.markDown(err)
	}
	return s.fallback.Save(ctx, queue)
}

func (s *FailoverStore) shouldTryPrimary() bool {
	if !s.isDown.Load() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.lastCheck) > recoveryInterval {
		s.lastCheck = time.Now()
		return true
	}
	return false
}

func (s *FailoverStore) markDown(err error) {
	if s.isDown.CompareAndSwap(false, true) {
		s.logger.Error().Err(err).Msg("primary store failed, falling back")
	}
	s.mu.Lock()
	s.lastCheck = time.Now()
	s.mu.Unlock()
}

func (s *FailoverStore) markUp() {
	if s.isDown.CompareAndSwap(true, false) {
		s.logger.Info().Msg("primary store recovered")
	}
}
