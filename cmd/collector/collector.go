package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/cartridge/expbuffer/internal/config"
	"github.com/cartridge/expbuffer/internal/env"
	"github.com/cartridge/expbuffer/internal/metrics"
	"github.com/cartridge/expbuffer/internal/policy"
	"github.com/cartridge/expbuffer/internal/roller"
	"github.com/cartridge/expbuffer/internal/service"
	"github.com/cartridge/expbuffer/internal/storage"
)

// collector wires the env harness, the buffer and the sampling loop together
type collector struct {
	cfg    *config.Config
	svc    *service.ReplayService
	roller *roller.Roller
	rng    *rand.Rand
	logger zerolog.Logger
}

// iterationReport summarizes one collect/sample round
type iterationReport struct {
	Iteration   int
	Episodes    int
	Minibatches int
	Rows        int
	RewardMean  float64
	Skipped     bool // buffer could not serve the sample yet
}

func newCollector(cfg *config.Config, logger zerolog.Logger) (*collector, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	vec, err := env.NewCartPoleVec(cfg.NumEnvs, seed)
	if err != nil {
		return nil, err
	}
	random, err := policy.NewRandom(vec.ActionSpace(), seed+1)
	if err != nil {
		return nil, err
	}
	backend, err := storage.NewRingBackend(roller.BufferConfig(vec, cfg.Capacity))
	if err != nil {
		return nil, err
	}
	backend.Seed(seed + 2)

	svc := service.NewReplayService(backend, logger)
	return &collector{
		cfg:    cfg,
		svc:    svc,
		roller: roller.New(vec, random, svc, logger),
		rng:    rand.New(rand.NewSource(seed + 3)),
		logger: logger,
	}, nil
}

func (c *collector) run(ctx context.Context) ([]iterationReport, error) {
	reports := make([]iterationReport, 0, c.cfg.Iterations)

	for i := 0; i < c.cfg.Iterations; i++ {
		result, err := c.roller.Rollout(ctx, c.cfg.Steps)
		if err != nil {
			return reports, fmt.Errorf("iteration %d: %w", i, err)
		}

		report := iterationReport{Iteration: i, Episodes: len(result.Episodes)}
		switch c.cfg.Mode {
		case config.ModeRollout:
			err = c.trainOnRollout(ctx, &report)
		case config.ModeUniform:
			err = c.trainOnUniform(ctx, &report)
		}
		if errors.Is(err, storage.ErrOutOfRange) {
			c.logger.Info().Int("iteration", i).Err(err).Msg("buffer cannot serve a sample yet")
			report.Skipped = true
		} else if err != nil {
			return reports, fmt.Errorf("iteration %d: %w", i, err)
		}

		if _, err := c.svc.GetStats(ctx); err != nil {
			return reports, err
		}
		c.logger.Info().
			Int("iteration", i).
			Int("episodes", report.Episodes).
			Int("minibatches", report.Minibatches).
			Float64("reward_mean", report.RewardMean).
			Msg("iteration finished")

		reports = append(reports, report)
	}
	return reports, nil
}

// trainOnRollout samples one rollout and replays it in shuffled minibatches
func (c *collector) trainOnRollout(ctx context.Context, report *iterationReport) error {
	rollout, _, err := c.svc.SampleRollout(ctx, c.cfg.RolloutLength, c.cfg.HistoryLength)
	if err != nil {
		return err
	}
	flat := rollout.Flatten()
	report.RewardMean = metrics.Summarize(flat).RewardMean

	for pass := 0; pass < c.cfg.ExperienceReplay; pass++ {
		for _, rows := range roller.Minibatches(flat.Len(), c.cfg.BatchSize, c.rng) {
			mb, err := flat.Take(rows)
			if err != nil {
				return err
			}
			report.Minibatches++
			report.Rows += mb.Len()
		}
	}
	return nil
}

func (c *collector) trainOnUniform(ctx context.Context, report *iterationReport) error {
	batch, _, err := c.svc.SampleTransitions(ctx, c.cfg.BatchSize, c.cfg.HistoryLength)
	if err != nil {
		return err
	}
	flat := batch.Flatten()
	report.RewardMean = metrics.Summarize(flat).RewardMean
	report.Minibatches = 1
	report.Rows = flat.Len()
	return nil
}
