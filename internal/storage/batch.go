package storage

import (
	"fmt"

	"github.com/cartridge/expbuffer/internal/space"
)

// Batch is a set of transitions with shared leading axes:
// [N, NumEnvs, ...] for sampled batches, [rolloutLength, NumEnvs, ...] for
// rollouts, [N*NumEnvs, ...] once flattened.
type Batch struct {
	States     Tensor
	Actions    Tensor
	Rewards    Tensor
	Dones      Mask
	NextStates Tensor
	Extra      map[string]Tensor
}

// Field returns a batch array by its consumer-facing name.
// Dones are returned as a 0/1 tensor.
func (b *Batch) Field(name string) (Tensor, bool) {
	switch name {
	case FieldStates:
		return b.States, true
	case FieldActions:
		return b.Actions, true
	case FieldRewards:
		return b.Rewards, true
	case FieldDones:
		return b.Dones.Floats(), true
	case FieldNextStates:
		return b.NextStates, true
	}
	t, ok := b.Extra[name]
	return t, ok
}

// Len is the size of the leading axis
func (b *Batch) Len() int {
	return b.Rewards.Len()
}

// Flatten merges the two leading axes so every (sample, env) pair becomes a row
func (b *Batch) Flatten() *Batch {
	out := &Batch{
		States:     mergeLeading(b.States),
		Actions:    mergeLeading(b.Actions),
		Rewards:    mergeLeading(b.Rewards),
		Dones:      Mask{Shape: mergeShape(b.Dones.Shape), Data: b.Dones.Data},
		NextStates: mergeLeading(b.NextStates),
		Extra:      make(map[string]Tensor, len(b.Extra)),
	}
	for name, t := range b.Extra {
		out.Extra[name] = mergeLeading(t)
	}
	return out
}

// Take copies the given rows of the leading axis into a new batch
func (b *Batch) Take(rows []int) (*Batch, error) {
	n := b.Len()
	for _, r := range rows {
		if r < 0 || r >= n {
			return nil, fmt.Errorf("row %d outside batch of %d", r, n)
		}
	}

	out := &Batch{
		States:     takeRows(b.States, rows),
		Actions:    takeRows(b.Actions, rows),
		Rewards:    takeRows(b.Rewards, rows),
		NextStates: takeRows(b.NextStates, rows),
		Extra:      make(map[string]Tensor, len(b.Extra)),
	}
	inner := space.Size(b.Dones.Shape[1:])
	out.Dones = NewMask(append([]int{len(rows)}, b.Dones.Shape[1:]...)...)
	for i, r := range rows {
		copy(out.Dones.Data[i*inner:(i+1)*inner], b.Dones.Data[r*inner:(r+1)*inner])
	}
	for name, t := range b.Extra {
		out.Extra[name] = takeRows(t, rows)
	}
	return out, nil
}

func mergeShape(shape []int) []int {
	if len(shape) < 2 {
		return append([]int{}, shape...)
	}
	return append([]int{shape[0] * shape[1]}, shape[2:]...)
}

func mergeLeading(t Tensor) Tensor {
	if len(t.Shape) < 2 {
		return t
	}
	return t.Reshape(mergeShape(t.Shape)...)
}

func takeRows(t Tensor, rows []int) Tensor {
	out := NewTensor(append([]int{len(rows)}, t.Shape[1:]...)...)
	inner := space.Size(t.Shape[1:])
	for i, r := range rows {
		copy(out.Data[i*inner:(i+1)*inner], t.Data[r*inner:(r+1)*inner])
	}
	return out
}

// GetBatch implements Backend.GetBatch
func (b *RingBackend) GetBatch(indexes [][]int, history int) (*Batch, error) {
	return b.assemble("get_batch", indexes, history)
}

// GetRollout implements Backend.GetRollout
func (b *RingBackend) GetRollout(ends []int, rolloutLength, history int) (*Batch, error) {
	const op = "get_rollout"
	if len(ends) != b.numEnvs {
		return nil, rangeErr(op, -1, -1, "got %d end slots, want one per environment (%d)", len(ends), b.numEnvs)
	}
	if rolloutLength <= 0 {
		return nil, rangeErr(op, -1, -1, "rollout length must be positive, got %d", rolloutLength)
	}

	indexes := make([][]int, rolloutLength)
	for t := range indexes {
		row := make([]int, b.numEnvs)
		for env, end := range ends {
			row[env] = mod(end-rolloutLength+1+t, b.capacity)
		}
		indexes[t] = row
	}
	return b.assemble(op, indexes, history)
}

func (b *RingBackend) assemble(op string, indexes [][]int, history int) (*Batch, error) {
	b.checkHistory(history)

	n := len(indexes)
	if n == 0 {
		return nil, rangeErr(op, -1, -1, "empty index matrix")
	}
	for i, row := range indexes {
		if len(row) != b.numEnvs {
			return nil, rangeErr(op, -1, -1, "row %d has %d columns, want %d", i, len(row), b.numEnvs)
		}
	}

	frameShape := b.frameShape(history)
	frameSize := space.Size(frameShape)
	lead := []int{n, b.numEnvs}

	batch := &Batch{
		States:     NewTensor(append(append([]int{}, lead...), frameShape...)...),
		Actions:    NewTensor(append(append([]int{}, lead...), b.cfg.ActionSpace.Shape()...)...),
		Rewards:    NewTensor(lead...),
		Dones:      NewMask(lead...),
		NextStates: NewTensor(append(append([]int{}, lead...), frameShape...)...),
		Extra:      make(map[string]Tensor, len(b.cfg.ExtraFields)),
	}
	for _, f := range b.cfg.ExtraFields {
		batch.Extra[f.Name] = NewTensor(append(append([]int{}, lead...), f.Shape...)...)
	}

	actionSize := b.actions.size
	for i, row := range indexes {
		for env, slot := range row {
			cell := i*b.numEnvs + env
			past := batch.States.Data[cell*frameSize : (cell+1)*frameSize]
			future := batch.NextStates.Data[cell*frameSize : (cell+1)*frameSize]
			if err := b.fillPair(op, past, future, slot, env, history); err != nil {
				return nil, err
			}

			copy(batch.Actions.Data[cell*actionSize:(cell+1)*actionSize], b.actions.cell(slot, env))
			batch.Rewards.Data[cell] = b.rewards.cell(slot, env)[0]
			batch.Dones.Data[cell] = b.done(slot, env)
			for _, f := range b.cfg.ExtraFields {
				size := f.Size()
				copy(batch.Extra[f.Name].Data[cell*size:(cell+1)*size], b.extra[f.Name].cell(slot, env))
			}
		}
	}
	return batch, nil
}
