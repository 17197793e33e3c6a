// Package space describes the shape and bounds of observations and actions.
package space

import (
	"fmt"
	"math"
)

// Kind identifies the family of a space
type Kind int

const (
	KindDiscrete Kind = iota
	KindMultiDiscrete
	KindBox
)

func (k Kind) String() string {
	switch k {
	case KindDiscrete:
		return "discrete"
	case KindMultiDiscrete:
		return "multi_discrete"
	case KindBox:
		return "box"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Space is a fixed-shape set of values an environment produces or accepts.
// A Discrete space is a scalar (empty shape) in [0, N).
type Space struct {
	Kind  Kind
	N     int
	Nvec  []int
	Low   float64
	High  float64
	shape []int
}

// Discrete returns the space {0, 1, ..., n-1}
func Discrete(n int) Space {
	return Space{Kind: KindDiscrete, N: n}
}

// MultiDiscrete returns a vector space where element i lies in [0, nvec[i])
func MultiDiscrete(nvec ...int) Space {
	return Space{Kind: KindMultiDiscrete, Nvec: append([]int(nil), nvec...), shape: []int{len(nvec)}}
}

// Box returns a continuous space of the given shape with uniform bounds
func Box(low, high float64, shape ...int) Space {
	return Space{Kind: KindBox, Low: low, High: high, shape: append([]int(nil), shape...)}
}

// Shape returns a copy of the element shape
func (s Space) Shape() []int {
	return append([]int{}, s.shape...)
}

// Clone returns a copy that shares no slices with s
func (s Space) Clone() Space {
	s.Nvec = append([]int(nil), s.Nvec...)
	s.shape = append([]int(nil), s.shape...)
	return s
}

// Size is the number of scalar values in one element of the space
func (s Space) Size() int {
	return Size(s.shape)
}

// Validate checks that the space is well formed
func (s Space) Validate() error {
	switch s.Kind {
	case KindDiscrete:
		if s.N <= 0 {
			return fmt.Errorf("discrete space needs n > 0, got %d", s.N)
		}
	case KindMultiDiscrete:
		if len(s.Nvec) == 0 {
			return fmt.Errorf("multi-discrete space needs at least one dimension")
		}
		for i, n := range s.Nvec {
			if n <= 0 {
				return fmt.Errorf("multi-discrete dimension %d needs n > 0, got %d", i, n)
			}
		}
	case KindBox:
		if len(s.shape) == 0 {
			return fmt.Errorf("box space needs a shape")
		}
		for i, d := range s.shape {
			if d <= 0 {
				return fmt.Errorf("box dimension %d must be positive, got %d", i, d)
			}
		}
		if s.High < s.Low {
			return fmt.Errorf("box bounds inverted: low %v > high %v", s.Low, s.High)
		}
	default:
		return fmt.Errorf("unknown space kind %v", s.Kind)
	}
	return nil
}

// Contains reports whether v is a single element of the space
func (s Space) Contains(v []float64) bool {
	if len(v) != s.Size() {
		return false
	}
	switch s.Kind {
	case KindDiscrete:
		return isIndex(v[0], s.N)
	case KindMultiDiscrete:
		for i, n := range s.Nvec {
			if !isIndex(v[i], n) {
				return false
			}
		}
		return true
	case KindBox:
		for _, x := range v {
			if math.IsNaN(x) || x < s.Low || x > s.High {
				return false
			}
		}
		return true
	}
	return false
}

func (s Space) String() string {
	switch s.Kind {
	case KindDiscrete:
		return fmt.Sprintf("Discrete(%d)", s.N)
	case KindMultiDiscrete:
		return fmt.Sprintf("MultiDiscrete(%v)", s.Nvec)
	default:
		return fmt.Sprintf("Box(%v, [%v, %v])", s.shape, s.Low, s.High)
	}
}

// Size multiplies out a shape; the empty shape is a scalar of size 1.
func Size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func isIndex(x float64, n int) bool {
	return x >= 0 && x < float64(n) && x == math.Trunc(x)
}
