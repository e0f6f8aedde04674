// Package validate provides the pure range/enum checks shared by every RPC
// mutator (spec.md §4.1). No component performs ad-hoc range checks; they
// all call into this package so the accepted ranges live in exactly one
// place.
package validate

import (
	"fmt"
	"math"
)

// Error names the offending parameter and the reason it was rejected. It
// satisfies the error interface and is the value wrapped into an
// invalid-params RPC error.
type Error struct {
	Param  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Param, e.Reason)
}

func newError(param, format string, args ...any) *Error {
	return &Error{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// positionBound keeps x+width and y+height comfortably inside int32 range so
// downstream rectangle arithmetic never overflows.
const positionBound = math.MaxInt32 / 2

// Position rejects coordinates outside [-positionBound, positionBound] on
// either axis.
func Position(x, y int32) error {
	if x < -positionBound || x > positionBound {
		return newError("x", "out of range [%d, %d]", -positionBound, positionBound)
	}
	if y < -positionBound || y > positionBound {
		return newError("y", "out of range [%d, %d]", -positionBound, positionBound)
	}
	return nil
}

// Size rejects non-positive width or height.
func Size(width, height int64) error {
	if width <= 0 {
		return newError("width", "must be > 0, got %d", width)
	}
	if height <= 0 {
		return newError("height", "must be > 0, got %d", height)
	}
	return nil
}

// Opacity rejects NaN and values outside [0.0, 1.0].
func Opacity(o float64) error {
	if math.IsNaN(o) {
		return newError("opacity", "must not be NaN")
	}
	if o < 0 || o > 1 {
		return newError("opacity", "must be within [0.0, 1.0], got %v", o)
	}
	return nil
}

// Orientation rejects degree values not divisible by 90.
func Orientation(deg int32) error {
	if deg%90 != 0 {
		return newError("orientation", "must be a multiple of 90 degrees, got %d", deg)
	}
	return nil
}

// ZOrder rejects values outside [min, max].
func ZOrder(v, min, max int32) error {
	if v < min || v > max {
		return newError("z_order", "must be within [%d, %d], got %d", min, max, v)
	}
	return nil
}
