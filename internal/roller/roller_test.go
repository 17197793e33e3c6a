package roller

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/expbuffer/internal/env"
	"github.com/cartridge/expbuffer/internal/policy"
	"github.com/cartridge/expbuffer/internal/service"
	"github.com/cartridge/expbuffer/internal/storage"
)

type fixture struct {
	env     *env.CartPoleVec
	backend *storage.RingBackend
	svc     *service.ReplayService
	roller  *Roller
}

func newFixture(t *testing.T, numEnvs, capacity int) *fixture {
	t.Helper()
	vec, err := env.NewCartPoleVec(numEnvs, 11)
	require.NoError(t, err)
	random, err := policy.NewRandom(vec.ActionSpace(), 13)
	require.NoError(t, err)
	backend, err := storage.NewRingBackend(BufferConfig(vec, capacity))
	require.NoError(t, err)
	svc := service.NewReplayService(backend, zerolog.Nop())

	return &fixture{
		env:     vec,
		backend: backend,
		svc:     svc,
		roller:  New(vec, random, svc, zerolog.Nop()),
	}
}

func TestRoller_StoresEveryStep(t *testing.T) {
	f := newFixture(t, 2, 256)
	ctx := context.Background()

	// an identically seeded env reproduces the first observation
	twin, err := env.NewCartPoleVec(2, 11)
	require.NoError(t, err)
	first := twin.Reset()

	result, err := f.roller.Rollout(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, result.Steps)
	assert.Equal(t, 200, f.backend.CurrentSize())

	for envIdx := 0; envIdx < 2; envIdx++ {
		tr, err := f.backend.GetTransition(0, envIdx, 1)
		require.NoError(t, err)
		assert.Equal(t, first[envIdx*4:(envIdx+1)*4], tr.State.Data)
		assert.Contains(t, []float64{0, 1}, tr.Action.Data[0])
		assert.InDelta(t, 0.6931, tr.Extra[NeglogpField].Data[0], 1e-4)
	}

	stats, err := f.svc.GetStats(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, result.Episodes)
	assert.Equal(t, uint64(len(result.Episodes)), stats.DonesByEnv[0]+stats.DonesByEnv[1])
}

func TestRoller_EpisodeInfos(t *testing.T) {
	f := newFixture(t, 3, 512)

	result, err := f.roller.Rollout(context.Background(), 300)
	require.NoError(t, err)
	require.NotEmpty(t, result.Episodes)

	ids := make(map[uuid.UUID]bool)
	lengths := make([]int, 3)
	for _, ep := range result.Episodes {
		assert.NotEqual(t, uuid.Nil, ep.ID)
		assert.False(t, ids[ep.ID], "episode ids are unique")
		ids[ep.ID] = true

		assert.Positive(t, ep.Length)
		// every step pays 1 except the one where the pole falls
		assert.Equal(t, float64(ep.Length-1), ep.Reward)
		lengths[ep.Env] += ep.Length
	}
	for _, n := range lengths {
		assert.LessOrEqual(t, n, 300)
	}
}

func TestRoller_EpisodesSpanRollouts(t *testing.T) {
	f := newFixture(t, 1, 512)
	ctx := context.Background()

	var total int
	for i := 0; i < 30; i++ {
		result, err := f.roller.Rollout(ctx, 5)
		require.NoError(t, err)
		for _, ep := range result.Episodes {
			total += ep.Length
		}
	}
	// finished episodes never count a step twice
	assert.LessOrEqual(t, total, 150)
	assert.Equal(t, 150, f.backend.CurrentSize())
}

func TestRoller_Errors(t *testing.T) {
	f := newFixture(t, 2, 16)

	_, err := f.roller.Rollout(context.Background(), 0)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.roller.Rollout(ctx, 4)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.backend.CurrentSize())

	broken := New(f.env, failingPolicy{}, f.svc, zerolog.Nop())
	_, err = broken.Rollout(context.Background(), 1)
	assert.ErrorIs(t, err, errPolicy)
}

var errPolicy = errors.New("policy unavailable")

type failingPolicy struct{}

func (failingPolicy) SelectActions([]float64, int) ([]float64, []float64, error) {
	return nil, nil, errPolicy
}

func TestMinibatches(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	chunks := Minibatches(10, 4, rng)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4)
	assert.Len(t, chunks[1], 3)
	assert.Len(t, chunks[2], 3)

	var all []int
	for _, c := range chunks {
		all = append(all, c...)
	}
	sort.Ints(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)

	assert.Len(t, Minibatches(8, 4, rng), 2)
	assert.Len(t, Minibatches(3, 10, rng), 1)
	assert.Nil(t, Minibatches(0, 4, rng))
}
