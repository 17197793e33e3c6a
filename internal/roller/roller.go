// Package roller steps a vectorized environment with a policy and feeds every
// timestep into the experience buffer.
package roller

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cartridge/expbuffer/internal/env"
	"github.com/cartridge/expbuffer/internal/metrics"
	"github.com/cartridge/expbuffer/internal/policy"
	"github.com/cartridge/expbuffer/internal/storage"
)

// NeglogpField is the extra buffer field holding the policy's negative
// log-probability of each stored action
const NeglogpField = "neglogp"

// Store receives one timestep for every environment
type Store interface {
	StoreTransition(ctx context.Context, step *storage.Step) (int, error)
}

// BufferConfig returns the buffer layout the roller writes into
func BufferConfig(e env.VecEnv, capacity int) storage.BufferConfig {
	return storage.BufferConfig{
		Capacity:         capacity,
		NumEnvs:          e.NumEnvs(),
		ObservationSpace: e.ObservationSpace(),
		ActionSpace:      e.ActionSpace(),
		ExtraFields:      []storage.FieldSpec{{Name: NeglogpField}},
	}
}

// EpisodeInfo describes an episode that finished during a rollout
type EpisodeInfo struct {
	ID     uuid.UUID
	Env    int
	Length int
	Reward float64
}

// Result summarizes one call to Rollout
type Result struct {
	Steps    int
	Episodes []EpisodeInfo
	Elapsed  time.Duration
}

type episode struct {
	id     uuid.UUID
	length int
	reward float64
}

// Roller drives env/policy interaction across rollouts. Episodes in progress
// carry over from one rollout to the next.
type Roller struct {
	env     env.VecEnv
	policy  policy.Policy
	store   Store
	metrics *metrics.Collector
	logger  zerolog.Logger

	obs      []float64 // nil until the first rollout resets the env
	episodes []episode
}

// New creates a roller writing into store
func New(e env.VecEnv, p policy.Policy, store Store, logger zerolog.Logger) *Roller {
	return &Roller{
		env:     e,
		policy:  p,
		store:   store,
		metrics: metrics.NewCollector(logger),
		logger:  logger,
	}
}

// Rollout performs steps environment steps, storing the observation each
// action was chosen from together with the action's outcome.
func (r *Roller) Rollout(ctx context.Context, steps int) (*Result, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", steps)
	}

	numEnvs := r.env.NumEnvs()
	if r.obs == nil {
		r.obs = r.env.Reset()
		r.episodes = make([]episode, numEnvs)
		for i := range r.episodes {
			r.episodes[i].id = uuid.New()
		}
	}

	start := time.Now()
	result := &Result{}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		actions, neglogp, err := r.policy.SelectActions(r.obs, numEnvs)
		if err != nil {
			return nil, fmt.Errorf("failed to select actions: %w", err)
		}

		next, rewards, dones, err := r.env.Step(actions)
		if err != nil {
			return nil, fmt.Errorf("failed to step environment: %w", err)
		}

		step := &storage.Step{
			Frames:  r.obs,
			Actions: actions,
			Rewards: rewards,
			Dones:   dones,
			Extra:   map[string][]float64{NeglogpField: neglogp},
		}
		if _, err := r.store.StoreTransition(ctx, step); err != nil {
			return nil, fmt.Errorf("failed to store step %d: %w", i, err)
		}

		for envIdx := range r.episodes {
			ep := &r.episodes[envIdx]
			ep.length++
			ep.reward += rewards[envIdx]
			if !dones[envIdx] {
				continue
			}

			info := EpisodeInfo{ID: ep.id, Env: envIdx, Length: ep.length, Reward: ep.reward}
			result.Episodes = append(result.Episodes, info)
			r.metrics.EpisodeFinished(info.ID.String(), info.Env, info.Length, info.Reward)
			*ep = episode{id: uuid.New()}
		}

		r.obs = next
		result.Steps++
	}

	result.Elapsed = time.Since(start)
	r.metrics.RolloutCollected(result.Steps, numEnvs, result.Elapsed)
	r.logger.Debug().
		Int("steps", result.Steps).
		Int("episodes", len(result.Episodes)).
		Msg("Rollout finished")

	return result, nil
}

// Minibatches shuffles [0, n) and splits it into ceil(n/batchSize) chunks
// whose sizes differ by at most one, larger chunks first.
func Minibatches(n, batchSize int, rng *rand.Rand) [][]int {
	if n <= 0 {
		return nil
	}
	if batchSize <= 0 || batchSize > n {
		batchSize = n
	}

	perm := rng.Perm(n)
	count := (n + batchSize - 1) / batchSize
	base, extra := n/count, n%count

	chunks := make([][]int, 0, count)
	for i, off := 0, 0; i < count; i++ {
		size := base
		if i < extra {
			size++
		}
		chunks = append(chunks, perm[off:off+size])
		off += size
	}
	return chunks
}
