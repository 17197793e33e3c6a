// Package env provides vectorized environments that feed the experience buffer.
package env

import "github.com/cartridge/expbuffer/internal/space"

// VecEnv steps NumEnvs environments in lockstep.
//
// Observations are returned flat, NumEnvs elements of ObservationSpace back to
// back. Environments that finish an episode are reset inside Step, so the
// returned observation for a done environment already belongs to its next
// episode.
type VecEnv interface {
	NumEnvs() int
	ObservationSpace() space.Space
	ActionSpace() space.Space

	Reset() []float64
	Step(actions []float64) (obs, rewards []float64, dones []bool, err error)
}
