package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/expbuffer/internal/storage"
)

func testBatch() *storage.Batch {
	batch := &storage.Batch{
		Rewards: storage.NewTensor(2, 2),
		Dones:   storage.NewMask(2, 2),
	}
	copy(batch.Rewards.Data, []float64{1, 2, 3, 6})
	batch.Dones.Data[3] = true
	return batch
}

func TestSummarize(t *testing.T) {
	stats := Summarize(testBatch())

	assert.InDelta(t, 3.0, stats.RewardMean, 1e-12)
	assert.Equal(t, 1.0, stats.RewardMin)
	assert.Equal(t, 6.0, stats.RewardMax)
	assert.InDelta(t, 0.25, stats.DoneFraction, 1e-12)

	assert.Equal(t, BatchStats{}, Summarize(&storage.Batch{}))
}

func TestCollector_EmitsMetricLines(t *testing.T) {
	var buf bytes.Buffer
	collector := NewCollector(zerolog.New(&buf).Level(zerolog.DebugLevel))

	collector.EpisodeFinished("ep-1", 1, 42, 41)
	collector.RolloutCollected(100, 4, 2*time.Second)
	collector.BatchSampled("uniform", testBatch(), time.Millisecond)
	collector.BufferFill(storage.Stats{Capacity: 10, CurrentSize: 3, WritePointer: 3, TotalWrites: 3})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)

	var episode map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &episode))
	assert.Equal(t, "episode_finished", episode["metric"])
	assert.Equal(t, "ep-1", episode["episode_id"])
	assert.Equal(t, 42.0, episode["length"])

	var rollout map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[1], &rollout))
	assert.Equal(t, 400.0, rollout["frames"])
	assert.Equal(t, 200.0, rollout["fps"])

	var batch map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[2], &batch))
	assert.Equal(t, "uniform", batch["kind"])
	assert.Equal(t, 3.0, batch["reward_mean"])
}

func TestCollector_BatchSampledSkipsWorkBelowDebug(t *testing.T) {
	var buf bytes.Buffer
	collector := NewCollector(zerolog.New(&buf).Level(zerolog.InfoLevel))
	batch := testBatch()

	allocs := testing.AllocsPerRun(100, func() {
		collector.BatchSampled("uniform", batch, time.Millisecond)
	})
	assert.Zero(t, allocs)
	assert.Zero(t, buf.Len())
}
