package hdrhistogram

import (
	"github.com/pingcap/errors"
)

// Error kinds surfaced at the public API boundary. Every exported kind is a
// sentinel pingcap/errors value; callers compare against them with
// errors.Cause(err) == ErrXxx after it has passed through errors.Trace or
// errors.Annotatef, and can pull a stack trace with errors.ErrorStack.
var (
	// ErrOutOfRange is returned when a value exceeds the histogram's
	// trackable range and auto-resize is disabled.
	ErrOutOfRange = errors.New("value is out of the histogram's trackable range")

	// ErrInvalidArgument is returned for malformed construction parameters
	// or out-of-domain query arguments.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSubtractionUnderflow is returned when subtracting one histogram
	// from another would drive a cell below zero, or when the operand
	// contains values outside the receiver's trackable range.
	ErrSubtractionUnderflow = errors.New("subtraction would underflow a bucket count")

	// ErrRecorderMismatch is returned when a recycled histogram handed
	// back to a Recorder was not produced by that Recorder.
	ErrRecorderMismatch = errors.New("recycled histogram was not produced by this recorder")
)
