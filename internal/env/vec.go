package env

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cartridge/expbuffer/internal/space"
)

const cartPoleObsSize = 4

// CartPoleVec runs independent cart-pole environments in lockstep
type CartPoleVec struct {
	envs []*cartPole
}

// NewCartPoleVec creates numEnvs environments seeded from seed
func NewCartPoleVec(numEnvs int, seed int64) (*CartPoleVec, error) {
	if numEnvs <= 0 {
		return nil, fmt.Errorf("num_envs must be positive, got %d", numEnvs)
	}
	v := &CartPoleVec{envs: make([]*cartPole, numEnvs)}
	for i := range v.envs {
		v.envs[i] = &cartPole{rng: rand.New(rand.NewSource(seed + int64(i)))}
		v.envs[i].reset()
	}
	return v, nil
}

func (v *CartPoleVec) NumEnvs() int {
	return len(v.envs)
}

// ObservationSpace is (x, x_dot, theta, theta_dot) with a trailing channel
// axis so observations can be stacked into histories.
func (v *CartPoleVec) ObservationSpace() space.Space {
	return space.Box(math.Inf(-1), math.Inf(1), cartPoleObsSize, 1)
}

func (v *CartPoleVec) ActionSpace() space.Space {
	return space.Discrete(2)
}

// Reset implements VecEnv.Reset
func (v *CartPoleVec) Reset() []float64 {
	obs := make([]float64, len(v.envs)*cartPoleObsSize)
	for i, e := range v.envs {
		e.reset()
		e.observe(obs[i*cartPoleObsSize:])
	}
	return obs
}

// Step implements VecEnv.Step
func (v *CartPoleVec) Step(actions []float64) ([]float64, []float64, []bool, error) {
	if len(actions) != len(v.envs) {
		return nil, nil, nil, fmt.Errorf("got %d actions for %d envs", len(actions), len(v.envs))
	}

	obs := make([]float64, len(v.envs)*cartPoleObsSize)
	rewards := make([]float64, len(v.envs))
	dones := make([]bool, len(v.envs))

	for i, e := range v.envs {
		a := actions[i]
		if a != 0 && a != 1 {
			return nil, nil, nil, fmt.Errorf("env %d: action %v outside Discrete(2)", i, a)
		}
		rewards[i], dones[i] = e.step(int(a))
		if dones[i] {
			e.reset()
		}
		e.observe(obs[i*cartPoleObsSize:])
	}
	return obs, rewards, dones, nil
}
