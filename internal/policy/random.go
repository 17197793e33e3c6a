package policy

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cartridge/expbuffer/internal/space"
)

// RandomPolicy selects uniformly random actions
type RandomPolicy struct {
	rng   *rand.Rand
	space space.Space

	// negative log-density of any single draw
	neglogp float64
}

// NewRandom creates a new random policy for the given action space.
// A zero seed seeds from the clock.
func NewRandom(actionSpace space.Space, seed int64) (*RandomPolicy, error) {
	if err := actionSpace.Validate(); err != nil {
		return nil, fmt.Errorf("invalid action space: %w", err)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	policy := &RandomPolicy{
		rng:   rand.New(rand.NewSource(seed)),
		space: actionSpace,
	}

	switch actionSpace.Kind {
	case space.KindDiscrete:
		policy.neglogp = math.Log(float64(actionSpace.N))

	case space.KindMultiDiscrete:
		for _, n := range actionSpace.Nvec {
			policy.neglogp += math.Log(float64(n))
		}

	case space.KindBox:
		width := actionSpace.High - actionSpace.Low
		if math.IsInf(width, 0) || math.IsNaN(width) || width <= 0 {
			return nil, fmt.Errorf("random policy needs finite, non-empty box bounds, got [%v, %v]",
				actionSpace.Low, actionSpace.High)
		}
		policy.neglogp = float64(actionSpace.Size()) * math.Log(width)

	default:
		return nil, fmt.Errorf("unsupported action space type: %v", actionSpace.Kind)
	}

	return policy, nil
}

// SelectActions implements Policy interface
func (p *RandomPolicy) SelectActions(obs []float64, numEnvs int) ([]float64, []float64, error) {
	if numEnvs <= 0 {
		return nil, nil, fmt.Errorf("num_envs must be positive, got %d", numEnvs)
	}
	if len(obs)%numEnvs != 0 {
		return nil, nil, fmt.Errorf("%d observation values do not split across %d envs", len(obs), numEnvs)
	}

	size := p.space.Size()
	actions := make([]float64, numEnvs*size)
	neglogp := make([]float64, numEnvs)

	for env := 0; env < numEnvs; env++ {
		p.sample(actions[env*size : (env+1)*size])
		neglogp[env] = p.neglogp
	}
	return actions, neglogp, nil
}

func (p *RandomPolicy) sample(dst []float64) {
	switch p.space.Kind {
	case space.KindDiscrete:
		dst[0] = float64(p.rng.Intn(p.space.N))
	case space.KindMultiDiscrete:
		for i, n := range p.space.Nvec {
			dst[i] = float64(p.rng.Intn(n))
		}
	case space.KindBox:
		for i := range dst {
			dst[i] = p.space.Low + p.rng.Float64()*(p.space.High-p.space.Low)
		}
	}
}
