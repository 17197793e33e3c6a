package storage

// Once the buffer is full, queryable slots are described by their forward
// distance d from the most recent write: d == 0 has no successor yet, and a
// window reaching back from d < history would cross into the newest write.

// SampleBatchUniform implements Backend.SampleBatchUniform
func (b *RingBackend) SampleBatchUniform(batchSize, history int) ([][]int, error) {
	const op = "sample_batch_uniform"
	assertf(history >= 1, "history length must be at least 1, got %d", history)

	if batchSize <= 0 {
		return nil, rangeErr(op, -1, -1, "batch size must be positive, got %d", batchSize)
	}

	var draw func() int
	if !b.full() {
		// the most recent write has no successor
		n := b.currentSize - 1
		if n <= 0 {
			return nil, rangeErr(op, -1, -1, "not enough elements in the buffer to sample (size %d)", b.currentSize)
		}
		draw = func() int { return b.rng.Intn(n) }
	} else {
		n := b.capacity - history
		if n <= 0 {
			return nil, rangeErr(op, -1, -1, "history %d leaves no queryable slots in capacity %d", history, b.capacity)
		}
		draw = func() int { return mod(b.currentIdx+history+b.rng.Intn(n), b.capacity) }
	}

	indexes := make([][]int, batchSize)
	for i := range indexes {
		row := make([]int, b.numEnvs)
		for env := range row {
			row[env] = draw()
		}
		indexes[i] = row
	}
	return indexes, nil
}

// SampleBatchRollout implements Backend.SampleBatchRollout.
// The returned slot is the LAST step of each environment's rollout.
func (b *RingBackend) SampleBatchRollout(rolloutLength, history int) ([]int, error) {
	const op = "sample_batch_rollout"
	assertf(history >= 1, "history length must be at least 1, got %d", history)

	if rolloutLength <= 0 {
		return nil, rangeErr(op, -1, -1, "rollout length must be positive, got %d", rolloutLength)
	}

	ends := make([]int, b.numEnvs)
	if !b.full() {
		if rolloutLength+1 > b.currentSize {
			return nil, rangeErr(op, -1, -1, "not enough elements in the buffer to sample the rollout (%d of %d)",
				b.currentSize, rolloutLength+1)
		}
		n := b.currentSize - rolloutLength
		for env := range ends {
			ends[env] = b.rng.Intn(n) + rolloutLength - 1
		}
		return ends, nil
	}

	if rolloutLength+history > b.capacity {
		return nil, rangeErr(op, -1, -1, "rollout %d with history %d does not fit capacity %d",
			rolloutLength, history, b.capacity)
	}
	minDist := rolloutLength + history - 1
	n := b.capacity - minDist
	for env := range ends {
		ends[env] = mod(b.currentIdx+minDist+b.rng.Intn(n), b.capacity)
	}
	return ends, nil
}
