package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/cartridge/expbuffer/internal/space"
)

var doneSet = map[int]bool{2: true, 5: true, 10: true, 13: true, 18: true, 22: true, 28: true}

func newTestBackend(t *testing.T, obs, act space.Space, extra ...FieldSpec) *RingBackend {
	t.Helper()
	backend, err := NewRingBackend(BufferConfig{
		Capacity:         20,
		NumEnvs:          2,
		ObservationSpace: obs,
		ActionSpace:      act,
		ExtraFields:      extra,
	})
	require.NoError(t, err)
	backend.Seed(42)
	return backend
}

// scaledFrames fills env 0 with i+1 and env 1 with 10*(i+1)
func scaledFrames(i, obsSize int) []float64 {
	frames := make([]float64, 2*obsSize)
	for k := 0; k < obsSize; k++ {
		frames[k] = float64(i + 1)
		frames[obsSize+k] = float64(10 * (i + 1))
	}
	return frames
}

// fillScaled stores n steps of Box(2,2,1) observations with Discrete(4) actions
func fillScaled(t *testing.T, n int, withDones bool, extra ...FieldSpec) *RingBackend {
	t.Helper()
	backend := newTestBackend(t, space.Box(0, 255, 2, 2, 1), space.Discrete(4), extra...)
	for i := 0; i < n; i++ {
		step := &Step{
			Frames:  scaledFrames(i, 4),
			Actions: []float64{0},
			Rewards: []float64{float64(i) / 2},
			Dones:   []bool{false},
		}
		if withDones {
			step.Dones = []bool{doneSet[i], doneSet[i+1]}
		}
		if len(extra) > 0 {
			step.Extra = map[string][]float64{
				"neglogp": {float64(i) / 30.0, float64(i+1) / 30.0},
			}
		}
		backend.StoreTransition(step)
	}
	return backend
}

// fillVector stores 30 steps where element 0 of every observation is i+1 and
// element 1 is 10*(i+1), with actions arange(2*actSize)*i.
func fillVector(t *testing.T, obs, act space.Space) *RingBackend {
	t.Helper()
	backend := newTestBackend(t, obs, act)
	obsSize, actSize := obs.Size(), act.Size()
	half := obsSize / 2
	for i := 0; i < 30; i++ {
		frames := make([]float64, 2*obsSize)
		for env := 0; env < 2; env++ {
			for k := 0; k < obsSize; k++ {
				if k < half {
					frames[env*obsSize+k] = float64(i + 1)
				} else {
					frames[env*obsSize+k] = float64(10 * (i + 1))
				}
			}
		}
		actions := make([]float64, 2*actSize)
		for k := range actions {
			actions[k] = float64(k * i)
		}
		backend.StoreTransition(&Step{
			Frames:  frames,
			Actions: actions,
			Rewards: []float64{float64(i) / 2},
			Dones:   []bool{false},
		})
	}
	return backend
}

// historyMax reduces every axis but the trailing history axis with max
func historyMax(t Tensor) []float64 {
	h := t.Shape[len(t.Shape)-1]
	columns := make([][]float64, h)
	for i, v := range t.Data {
		columns[i%h] = append(columns[i%h], v)
	}
	out := make([]float64, h)
	for k, col := range columns {
		out[k] = floats.Max(col)
	}
	return out
}

// envHistoryMax applies historyMax to sample i, environment env of a batch tensor
func envHistoryMax(t Tensor, i, env int) []float64 {
	return historyMax(t.Index(i).Index(env))
}

func requireRangeError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOutOfRange)
	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
}

func requireAssertion(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected an assertion panic")
		_, ok := r.(AssertionError)
		require.Truef(t, ok, "expected AssertionError, got %T: %v", r, r)
	}()
	f()
}
