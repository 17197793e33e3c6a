package storage

import (
	"fmt"

	"github.com/cartridge/expbuffer/internal/space"
)

// Field names used by Batch.Field and the training-loop consumer
const (
	FieldStates     = "states"
	FieldActions    = "actions"
	FieldRewards    = "rewards"
	FieldDones      = "dones"
	FieldNextStates = "states+1"
)

// DType is the logical element type of an auxiliary field.
// Values are always held as float64; the dtype controls normalization on write.
type DType int

const (
	Float64 DType = iota
	Int64
	Bool
)

// FieldSpec declares an auxiliary per-step field
type FieldSpec struct {
	Name  string
	Shape []int
	DType DType
}

// Size is the number of values one environment contributes per step
func (f FieldSpec) Size() int {
	return space.Size(f.Shape)
}

// BufferConfig fixes every shape of a buffer at construction time
type BufferConfig struct {
	Capacity         int
	NumEnvs          int
	ObservationSpace space.Space
	ActionSpace      space.Space
	ExtraFields      []FieldSpec
}

// Clone returns a deep copy, so declared shapes cannot change underneath a buffer
func (c BufferConfig) Clone() BufferConfig {
	out := c
	out.ObservationSpace = c.ObservationSpace.Clone()
	out.ActionSpace = c.ActionSpace.Clone()
	out.ExtraFields = nil
	for _, f := range c.ExtraFields {
		f.Shape = append([]int(nil), f.Shape...)
		out.ExtraFields = append(out.ExtraFields, f)
	}
	return out
}

// Validate checks the construction arguments
func (c BufferConfig) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	}
	if c.NumEnvs <= 0 {
		return fmt.Errorf("num_envs must be positive, got %d", c.NumEnvs)
	}
	if err := c.ObservationSpace.Validate(); err != nil {
		return fmt.Errorf("observation space: %w", err)
	}
	if err := c.ActionSpace.Validate(); err != nil {
		return fmt.Errorf("action space: %w", err)
	}
	seen := make(map[string]bool, len(c.ExtraFields))
	for _, f := range c.ExtraFields {
		switch f.Name {
		case "":
			return fmt.Errorf("extra field without a name")
		case FieldStates, FieldActions, FieldRewards, FieldDones, FieldNextStates:
			return fmt.Errorf("extra field %q shadows a built-in field", f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("extra field %q declared twice", f.Name)
		}
		seen[f.Name] = true
		for _, d := range f.Shape {
			if d <= 0 {
				return fmt.Errorf("extra field %q has non-positive dimension in shape %v", f.Name, f.Shape)
			}
		}
	}
	return nil
}

// Step is one timestep across all environments, as produced by the env harness.
//
// Frames holds NumEnvs observations back to back. Actions, Rewards, Dones and
// each Extra entry either hold one element per environment or a single element
// that is broadcast to every environment.
type Step struct {
	Frames  []float64
	Actions []float64
	Rewards []float64
	Dones   []bool
	Extra   map[string][]float64
}

// Validate reports whether the step fits a buffer built from cfg
func (s *Step) Validate(cfg BufferConfig) error {
	if s == nil {
		return fmt.Errorf("step is required")
	}
	obsSize := cfg.ObservationSpace.Size()
	if len(s.Frames) != cfg.NumEnvs*obsSize {
		return fmt.Errorf("frames: got %d values, want %d (%d envs x %d)",
			len(s.Frames), cfg.NumEnvs*obsSize, cfg.NumEnvs, obsSize)
	}
	if err := checkPerEnv("actions", len(s.Actions), cfg.NumEnvs, cfg.ActionSpace.Size()); err != nil {
		return err
	}
	if err := checkPerEnv("rewards", len(s.Rewards), cfg.NumEnvs, 1); err != nil {
		return err
	}
	if err := checkPerEnv("dones", len(s.Dones), cfg.NumEnvs, 1); err != nil {
		return err
	}
	declared := make(map[string]FieldSpec, len(cfg.ExtraFields))
	for _, f := range cfg.ExtraFields {
		declared[f.Name] = f
	}
	for name, values := range s.Extra {
		f, ok := declared[name]
		if !ok {
			return fmt.Errorf("extra field %q was not declared", name)
		}
		if err := checkPerEnv(name, len(values), cfg.NumEnvs, f.Size()); err != nil {
			return err
		}
	}
	return nil
}

func checkPerEnv(name string, got, numEnvs, size int) error {
	if got == numEnvs*size || got == size {
		return nil
	}
	return fmt.Errorf("%s: got %d values, want %d per env or %d total", name, got, size, numEnvs*size)
}

// Transition is a single environment's view of one stored timestep
type Transition struct {
	State     Tensor
	Action    Tensor
	Reward    float64
	Done      bool
	NextState Tensor
	Extra     map[string]Tensor
}

// Stats represents buffer occupancy
type Stats struct {
	Capacity     int
	NumEnvs      int
	CurrentSize  int
	WritePointer int
	OldestSlot   int // slot of the oldest retained timestep, -1 when empty
	TotalWrites  uint64
	DonesByEnv   []uint64 // done flags currently retained, per environment
	StorageBytes uint64
}

// Backend defines the interface of the experience buffer
type Backend interface {
	// Store one timestep for every environment, returning the written slot
	StoreTransition(step *Step) int

	// Stacked observation history ending at slot for one environment
	GetFrame(slot, env, history int) (Tensor, error)

	// History window at slot together with its successor window
	GetFrameWithFuture(slot, env, history int) (Tensor, Tensor, error)

	// Full transition stored at slot for one environment
	GetTransition(slot, env, history int) (*Transition, error)

	// Assemble a sample-major batch from a [N][NumEnvs] slot matrix
	GetBatch(indexes [][]int, history int) (*Batch, error)

	// Assemble a time-major batch of consecutive steps ending at ends[env]
	GetRollout(ends []int, rolloutLength, history int) (*Batch, error)

	// Draw a [batchSize][NumEnvs] slot matrix uniformly from queryable slots
	SampleBatchUniform(batchSize, history int) ([][]int, error)

	// Draw one rollout end slot per environment
	SampleBatchRollout(rolloutLength, history int) ([]int, error)

	// Occupancy statistics
	Stats() Stats

	Config() BufferConfig
	CurrentSize() int
}
