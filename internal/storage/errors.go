package storage

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is wrapped by every RangeError
var ErrOutOfRange = errors.New("out of range")

// RangeError reports a query the current buffer contents cannot satisfy
type RangeError struct {
	Op     string
	Slot   int // -1 when the query is not about a single slot
	Env    int // -1 when the query is not about a single environment
	Reason string
}

func (e *RangeError) Error() string {
	switch {
	case e.Slot >= 0 && e.Env >= 0:
		return fmt.Sprintf("%s: slot %d env %d: %s", e.Op, e.Slot, e.Env, e.Reason)
	case e.Slot >= 0:
		return fmt.Sprintf("%s: slot %d: %s", e.Op, e.Slot, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
}

func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}

func rangeErr(op string, slot, env int, format string, args ...interface{}) *RangeError {
	return &RangeError{Op: op, Slot: slot, Env: env, Reason: fmt.Sprintf(format, args...)}
}

// AssertionError is the panic value for violated caller contracts, such as a
// malformed Step or a frame history requested from storage that cannot stack it.
// It is a programming error and is not meant to be recovered.
type AssertionError struct {
	Msg string
}

func (e AssertionError) Error() string {
	return "assertion failed: " + e.Msg
}

func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(AssertionError{Msg: fmt.Sprintf(format, args...)})
	}
}
