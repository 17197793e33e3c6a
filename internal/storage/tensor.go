package storage

import "github.com/cartridge/expbuffer/internal/space"

// Tensor is a dense row-major float64 array
type Tensor struct {
	Shape []int
	Data  []float64
}

// NewTensor allocates a zeroed tensor
func NewTensor(shape ...int) Tensor {
	return Tensor{Shape: append([]int{}, shape...), Data: make([]float64, space.Size(shape))}
}

// Len is the size of the leading axis (1 for a scalar)
func (t Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 1
	}
	return t.Shape[0]
}

// At returns the element at idx; it panics on a bad index
func (t Tensor) At(idx ...int) float64 {
	return t.Data[offset(t.Shape, idx)]
}

// Set stores v at idx
func (t Tensor) Set(v float64, idx ...int) {
	t.Data[offset(t.Shape, idx)] = v
}

// Index returns the i-th sub-tensor along the leading axis, sharing storage
func (t Tensor) Index(i int) Tensor {
	assertf(len(t.Shape) > 0, "cannot index a scalar tensor")
	assertf(i >= 0 && i < t.Shape[0], "index %d out of bounds for axis of size %d", i, t.Shape[0])
	inner := space.Size(t.Shape[1:])
	return Tensor{Shape: t.Shape[1:], Data: t.Data[i*inner : (i+1)*inner]}
}

// Reshape returns a view with a new shape of the same size
func (t Tensor) Reshape(shape ...int) Tensor {
	assertf(space.Size(shape) == len(t.Data), "cannot reshape %v into %v", t.Shape, shape)
	return Tensor{Shape: append([]int{}, shape...), Data: t.Data}
}

// Mask is a dense row-major bool array
type Mask struct {
	Shape []int
	Data  []bool
}

// NewMask allocates an all-false mask
func NewMask(shape ...int) Mask {
	return Mask{Shape: append([]int{}, shape...), Data: make([]bool, space.Size(shape))}
}

func (m Mask) At(idx ...int) bool {
	return m.Data[offset(m.Shape, idx)]
}

// Floats converts the mask to a 0/1 tensor
func (m Mask) Floats() Tensor {
	t := NewTensor(m.Shape...)
	for i, v := range m.Data {
		if v {
			t.Data[i] = 1
		}
	}
	return t
}

func offset(shape, idx []int) int {
	assertf(len(idx) == len(shape), "got %d indices for shape %v", len(idx), shape)
	off := 0
	for axis, i := range idx {
		assertf(i >= 0 && i < shape[axis], "index %d out of bounds for axis %d of shape %v", i, axis, shape)
		off = off*shape[axis] + i
	}
	return off
}
