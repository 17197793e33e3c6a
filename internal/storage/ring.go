package storage

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ring is a [capacity, numEnvs, elem...] float64 array stored flat
type ring struct {
	numEnvs int
	size    int // values per (slot, env) cell
	data    []float64
}

func newRing(capacity, numEnvs, size int) *ring {
	return &ring{
		numEnvs: numEnvs,
		size:    size,
		data:    make([]float64, capacity*numEnvs*size),
	}
}

func (r *ring) cell(slot, env int) []float64 {
	off := (slot*r.numEnvs + env) * r.size
	return r.data[off : off+r.size : off+r.size]
}

// write stores src at slot. src holds either one value block per environment
// or a single block broadcast to all of them.
func (r *ring) write(slot int, src []float64, dtype DType) {
	broadcast := len(src) == r.size && r.numEnvs > 1
	for env := 0; env < r.numEnvs; env++ {
		dst := r.cell(slot, env)
		if src == nil {
			clear(dst)
			continue
		}
		from := src
		if !broadcast {
			from = src[env*r.size : (env+1)*r.size]
		}
		for i, v := range from {
			dst[i] = normalize(v, dtype)
		}
	}
}

func normalize(v float64, dtype DType) float64 {
	switch dtype {
	case Int64:
		return math.Trunc(v)
	case Bool:
		if v != 0 {
			return 1
		}
		return 0
	default:
		return v
	}
}

// RingBackend implements a fixed-capacity circular buffer holding NumEnvs
// interleaved environment streams. Queries address physical slots.
//
// RingBackend is not safe for concurrent use.
type RingBackend struct {
	cfg      BufferConfig
	capacity int
	numEnvs  int

	frames  *ring
	actions *ring
	rewards *ring
	dones   []bool // [capacity, numEnvs]
	extra   map[string]*ring

	currentIdx  int // slot of the most recent write, -1 before the first one
	currentSize int
	totalWrites uint64

	rng *rand.Rand
}

// NewRingBackend allocates every ring array up front
func NewRingBackend(cfg BufferConfig) (*RingBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid buffer config: %w", err)
	}
	cfg = cfg.Clone()

	b := &RingBackend{
		cfg:        cfg,
		capacity:   cfg.Capacity,
		numEnvs:    cfg.NumEnvs,
		frames:     newRing(cfg.Capacity, cfg.NumEnvs, cfg.ObservationSpace.Size()),
		actions:    newRing(cfg.Capacity, cfg.NumEnvs, cfg.ActionSpace.Size()),
		rewards:    newRing(cfg.Capacity, cfg.NumEnvs, 1),
		dones:      make([]bool, cfg.Capacity*cfg.NumEnvs),
		extra:      make(map[string]*ring, len(cfg.ExtraFields)),
		currentIdx: -1,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, f := range cfg.ExtraFields {
		b.extra[f.Name] = newRing(cfg.Capacity, cfg.NumEnvs, f.Size())
	}

	return b, nil
}

// Seed resets the sampling source
func (b *RingBackend) Seed(seed int64) {
	b.rng = rand.New(rand.NewSource(seed))
}

// StoreTransition implements Backend.StoreTransition
func (b *RingBackend) StoreTransition(step *Step) int {
	if err := step.Validate(b.cfg); err != nil {
		assertf(false, "malformed step: %v", err)
	}

	b.currentIdx = (b.currentIdx + 1) % b.capacity
	slot := b.currentIdx

	b.frames.write(slot, step.Frames, Float64)
	b.actions.write(slot, step.Actions, Float64)
	b.rewards.write(slot, step.Rewards, Float64)

	doneRow := b.dones[slot*b.numEnvs : (slot+1)*b.numEnvs]
	for env := range doneRow {
		if len(step.Dones) == 1 {
			doneRow[env] = step.Dones[0]
		} else {
			doneRow[env] = step.Dones[env]
		}
	}

	for _, f := range b.cfg.ExtraFields {
		// fields missing from the step are zeroed, never left stale
		b.extra[f.Name].write(slot, step.Extra[f.Name], f.DType)
	}

	if b.currentSize < b.capacity {
		b.currentSize++
	}
	b.totalWrites++

	return slot
}

// Stats implements Backend.Stats
func (b *RingBackend) Stats() Stats {
	stats := Stats{
		Capacity:     b.capacity,
		NumEnvs:      b.numEnvs,
		CurrentSize:  b.currentSize,
		WritePointer: (b.currentIdx + 1) % b.capacity,
		TotalWrites:  b.totalWrites,
		OldestSlot:   -1,
		DonesByEnv:   make([]uint64, b.numEnvs),
	}
	if oldest, err := b.LogicalToSlot(0); err == nil {
		stats.OldestSlot = oldest
	}

	for slot := 0; slot < b.currentSize; slot++ {
		for env := 0; env < b.numEnvs; env++ {
			if b.done(slot, env) {
				stats.DonesByEnv[env]++
			}
		}
	}

	values := len(b.frames.data) + len(b.actions.data) + len(b.rewards.data)
	for _, r := range b.extra {
		values += len(r.data)
	}
	stats.StorageBytes = uint64(values)*8 + uint64(len(b.dones))

	return stats
}

// Config implements Backend.Config. The result is a copy.
func (b *RingBackend) Config() BufferConfig {
	return b.cfg.Clone()
}

// CurrentSize implements Backend.CurrentSize
func (b *RingBackend) CurrentSize() int {
	return b.currentSize
}

// Capacity is the number of timesteps retained per environment
func (b *RingBackend) Capacity() int {
	return b.capacity
}

// NumEnvs is the number of interleaved environment streams
func (b *RingBackend) NumEnvs() int {
	return b.numEnvs
}

// LogicalToSlot maps a position in insertion order (0 = oldest retained
// timestep) to the slot holding it.
func (b *RingBackend) LogicalToSlot(t int) (int, error) {
	if t < 0 || t >= b.currentSize {
		return 0, rangeErr("logical_to_slot", -1, -1, "logical index %d outside [0, %d)", t, b.currentSize)
	}
	return mod(b.currentIdx+1-b.currentSize+t, b.capacity), nil
}

func (b *RingBackend) full() bool {
	return b.currentSize == b.capacity
}

func (b *RingBackend) done(slot, env int) bool {
	return b.dones[slot*b.numEnvs+env]
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
