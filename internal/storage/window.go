package storage

// History windows are laid out [prefix..., history] with the oldest frame
// first. Stacking requires the observation's last axis to be 1, so a cell of
// the frame ring is exactly the prefix.

// GetFrame implements Backend.GetFrame
func (b *RingBackend) GetFrame(slot, env, history int) (Tensor, error) {
	b.checkHistory(history)
	if err := b.checkSlot("get_frame", slot, env); err != nil {
		return Tensor{}, err
	}

	out := NewTensor(b.frameShape(history)...)
	if err := b.fillWindow("get_frame", out.Data, slot, env, history); err != nil {
		return Tensor{}, err
	}
	return out, nil
}

// GetFrameWithFuture implements Backend.GetFrameWithFuture
func (b *RingBackend) GetFrameWithFuture(slot, env, history int) (Tensor, Tensor, error) {
	b.checkHistory(history)

	past := NewTensor(b.frameShape(history)...)
	future := NewTensor(b.frameShape(history)...)
	if err := b.fillPair("get_frame_with_future", past.Data, future.Data, slot, env, history); err != nil {
		return Tensor{}, Tensor{}, err
	}
	return past, future, nil
}

// GetTransition implements Backend.GetTransition
func (b *RingBackend) GetTransition(slot, env, history int) (*Transition, error) {
	past, future, err := b.GetFrameWithFuture(slot, env, history)
	if err != nil {
		return nil, err
	}

	t := &Transition{
		State:     past,
		Action:    cellTensor(b.actions, b.cfg.ActionSpace.Shape(), slot, env),
		Reward:    b.rewards.cell(slot, env)[0],
		Done:      b.done(slot, env),
		NextState: future,
		Extra:     make(map[string]Tensor, len(b.cfg.ExtraFields)),
	}
	for _, f := range b.cfg.ExtraFields {
		t.Extra[f.Name] = cellTensor(b.extra[f.Name], f.Shape, slot, env)
	}
	return t, nil
}

func cellTensor(r *ring, shape []int, slot, env int) Tensor {
	out := NewTensor(shape...)
	copy(out.Data, r.cell(slot, env))
	return out
}

// checkHistory enforces that the stored observation can be stacked
func (b *RingBackend) checkHistory(history int) {
	assertf(history >= 1, "history length must be at least 1, got %d", history)
	if history == 1 {
		return
	}
	shape := b.cfg.ObservationSpace.Shape()
	assertf(len(shape) > 0 && shape[len(shape)-1] == 1,
		"frame history %d needs observations with a trailing axis of 1, got shape %v", history, shape)
}

func (b *RingBackend) frameShape(history int) []int {
	shape := b.cfg.ObservationSpace.Shape()
	if history == 1 {
		return shape
	}
	shape[len(shape)-1] = history
	return shape
}

func (b *RingBackend) checkSlot(op string, slot, env int) error {
	if env < 0 || env >= b.numEnvs {
		return rangeErr(op, slot, env, "environment outside [0, %d)", b.numEnvs)
	}
	if slot < 0 || slot >= b.currentSize {
		return rangeErr(op, slot, env, "requested frame beyond the size of the buffer (%d)", b.currentSize)
	}
	return nil
}

// fillWindow writes the history window ending at slot into dst, which must be
// zeroed. Positions before the first stored step or across a done boundary
// stay zero. Reaching the most recent write while walking back means the
// history has been overwritten, which is an error.
func (b *RingBackend) fillWindow(op string, dst []float64, slot, env, history int) error {
	b.putFrame(dst, history, history-1, slot, env)

	cur := slot
	for k := history - 2; k >= 0; k-- {
		if !b.full() && cur == 0 {
			return nil
		}
		prev := mod(cur-1, b.capacity)
		if prev == b.currentIdx {
			return rangeErr(op, slot, env, "cannot provide enough history for the frame")
		}
		if b.done(prev, env) {
			return nil
		}
		cur = prev
		b.putFrame(dst, history, k, cur, env)
	}
	return nil
}

// fillPair writes the window at slot into past and its successor into future.
// The successor drops the oldest frame and appends the next stored frame, or
// zeros when the episode ended at slot.
func (b *RingBackend) fillPair(op string, past, future []float64, slot, env, history int) error {
	if err := b.checkSlot(op, slot, env); err != nil {
		return err
	}
	if slot == b.currentIdx {
		return rangeErr(op, slot, env, "cannot provide the future frame for the most recent write")
	}
	if err := b.fillWindow(op, past, slot, env, history); err != nil {
		return err
	}

	prefix := len(past) / history
	for p := 0; p < prefix; p++ {
		copy(future[p*history:(p+1)*history-1], past[p*history+1:(p+1)*history])
	}
	if b.done(slot, env) {
		for p := 0; p < prefix; p++ {
			future[(p+1)*history-1] = 0
		}
		return nil
	}
	b.putFrame(future, history, history-1, mod(slot+1, b.capacity), env)
	return nil
}

func (b *RingBackend) putFrame(dst []float64, history, k, slot, env int) {
	for p, v := range b.frames.cell(slot, env) {
		dst[p*history+k] = v
	}
}
