package metrics

import (
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/cartridge/expbuffer/internal/storage"
)

// Collector emits metric log lines for buffer operations
type Collector struct {
	logger zerolog.Logger
}

func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// Track buffer occupancy
func (c *Collector) BufferFill(stats storage.Stats) {
	c.logger.Info().
		Str("metric", "buffer_fill").
		Int("current_size", stats.CurrentSize).
		Int("capacity", stats.Capacity).
		Int("write_pointer", stats.WritePointer).
		Int("oldest_slot", stats.OldestSlot).
		Uint64("total_writes", stats.TotalWrites).
		Msg("Buffer fill metric")
}

// Track finished episodes
func (c *Collector) EpisodeFinished(episodeID string, env, length int, reward float64) {
	c.logger.Info().
		Str("metric", "episode_finished").
		Str("episode_id", episodeID).
		Int("env", env).
		Int("length", length).
		Float64("reward", reward).
		Msg("Episode metric")
}

// Track environment throughput
func (c *Collector) RolloutCollected(steps, numEnvs int, elapsed time.Duration) {
	frames := steps * numEnvs
	fps := 0.0
	if elapsed > 0 {
		fps = float64(frames) / elapsed.Seconds()
	}
	c.logger.Info().
		Str("metric", "rollout_collected").
		Int("steps", steps).
		Int("frames", frames).
		Float64("fps", fps).
		Dur("elapsed", elapsed).
		Msg("Rollout metric")
}

// Track sampled batches
func (c *Collector) BatchSampled(kind string, batch *storage.Batch, elapsed time.Duration) {
	e := c.logger.Debug()
	if !e.Enabled() {
		return
	}
	stats := Summarize(batch)
	e.Str("metric", "batch_sampled").
		Str("kind", kind).
		Int("rows", batch.Len()).
		Float64("reward_mean", stats.RewardMean).
		Float64("reward_max", stats.RewardMax).
		Float64("done_fraction", stats.DoneFraction).
		Dur("elapsed", elapsed).
		Msg("Batch metric")
}

// BatchStats summarizes the reward and done columns of a batch
type BatchStats struct {
	RewardMean   float64
	RewardMin    float64
	RewardMax    float64
	DoneFraction float64
}

func Summarize(batch *storage.Batch) BatchStats {
	rewards := batch.Rewards.Data
	if len(rewards) == 0 {
		return BatchStats{}
	}
	dones := batch.Dones.Floats().Data
	n := float64(len(rewards))
	return BatchStats{
		RewardMean:   floats.Sum(rewards) / n,
		RewardMin:    floats.Min(rewards),
		RewardMax:    floats.Max(rewards),
		DoneFraction: floats.Sum(dones) / n,
	}
}
