package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cartridge/expbuffer/internal/metrics"
	"github.com/cartridge/expbuffer/internal/space"
	"github.com/cartridge/expbuffer/internal/storage"
)

// ErrInvalidArgument marks requests rejected before they reach the backend
var ErrInvalidArgument = errors.New("invalid argument")

// ReplayService serializes producer and consumer access to a buffer backend
type ReplayService struct {
	mu      sync.Mutex
	backend storage.Backend
	cfg     storage.BufferConfig
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewReplayService creates a new ReplayService
func NewReplayService(backend storage.Backend, logger zerolog.Logger) *ReplayService {
	return &ReplayService{
		backend: backend,
		cfg:     backend.Config(),
		metrics: metrics.NewCollector(logger),
		logger:  logger,
	}
}

// StoreTransition stores one timestep for every environment
func (s *ReplayService) StoreTransition(ctx context.Context, step *storage.Step) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := step.Validate(s.cfg); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := checkActions(s.cfg.ActionSpace, step.Actions); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.backend.StoreTransition(step)
	s.logger.Debug().Int("slot", slot).Int("current_size", s.backend.CurrentSize()).Msg("stored transition")
	return slot, nil
}

// SampleTransitions draws a uniform batch and assembles it
func (s *ReplayService) SampleTransitions(ctx context.Context, batchSize, history int) (*storage.Batch, [][]int, error) {
	if err := s.checkHistory(ctx, history); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	indexes, err := s.backend.SampleBatchUniform(batchSize, history)
	if err != nil {
		return nil, nil, fmt.Errorf("sample transitions: %w", err)
	}
	batch, err := s.backend.GetBatch(indexes, history)
	if err != nil {
		return nil, nil, fmt.Errorf("assemble batch: %w", err)
	}

	s.metrics.BatchSampled("uniform", batch, time.Since(start))
	return batch, indexes, nil
}

// SampleRollout draws one contiguous window per environment and assembles it
func (s *ReplayService) SampleRollout(ctx context.Context, rolloutLength, history int) (*storage.Batch, []int, error) {
	if err := s.checkHistory(ctx, history); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	ends, err := s.backend.SampleBatchRollout(rolloutLength, history)
	if err != nil {
		return nil, nil, fmt.Errorf("sample rollout: %w", err)
	}
	rollout, err := s.backend.GetRollout(ends, rolloutLength, history)
	if err != nil {
		return nil, nil, fmt.Errorf("assemble rollout: %w", err)
	}

	s.metrics.BatchSampled("rollout", rollout, time.Since(start))
	return rollout, ends, nil
}

// GetBatch assembles a batch from explicit slots
func (s *ReplayService) GetBatch(ctx context.Context, indexes [][]int, history int) (*storage.Batch, error) {
	if err := s.checkHistory(ctx, history); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backend.GetBatch(indexes, history)
}

// GetTransition returns a single environment's transition at slot
func (s *ReplayService) GetTransition(ctx context.Context, slot, env, history int) (*storage.Transition, error) {
	if err := s.checkHistory(ctx, history); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backend.GetTransition(slot, env, history)
}

// GetStats returns buffer statistics and records a fill metric
func (s *ReplayService) GetStats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	stats := s.backend.Stats()
	s.mu.Unlock()

	s.metrics.BufferFill(stats)
	return &stats, nil
}

// checkHistory rejects history lengths the backend would treat as a contract violation
func (s *ReplayService) checkHistory(ctx context.Context, history int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if history < 1 {
		return fmt.Errorf("%w: history length must be at least 1, got %d", ErrInvalidArgument, history)
	}
	if history == 1 {
		return nil
	}
	shape := s.cfg.ObservationSpace.Shape()
	if len(shape) == 0 || shape[len(shape)-1] != 1 {
		return fmt.Errorf("%w: history %d needs observations with a trailing axis of 1, got shape %v",
			ErrInvalidArgument, history, shape)
	}
	return nil
}

// checkActions rejects actions outside the action space. actions is either one
// element per environment or a single broadcast element.
func checkActions(actionSpace space.Space, actions []float64) error {
	size := actionSpace.Size()
	for off := 0; off+size <= len(actions); off += size {
		if a := actions[off : off+size]; !actionSpace.Contains(a) {
			return fmt.Errorf("action %v outside %v", a, actionSpace)
		}
	}
	return nil
}
