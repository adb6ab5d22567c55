package govledger

import (
	"errors"
	"fmt"
)

// HaltError stops the chain. ExecuteBlock returns one when the block
// cannot be applied at all: a height gap, or a record store that fails
// underneath an instruction. Ledger rule violations never halt; they
// are reported per transaction.
//
// The engine must not Commit after a HaltError.
type HaltError struct {
	Height uint64
	Reason string
	// Cause is the underlying failure, if any. It does not survive the
	// gRPC transport.
	Cause error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("HALT at height %d: %s", e.Height, e.Reason)
}

func (e *HaltError) Unwrap() error { return e.Cause }

// NewHaltError creates a HaltError with no underlying cause.
func NewHaltError(height uint64, reason string) *HaltError {
	return &HaltError{Height: height, Reason: reason}
}

// Halt wraps cause into a HaltError at height.
func Halt(height uint64, cause error) *HaltError {
	return &HaltError{Height: height, Reason: cause.Error(), Cause: cause}
}

// IsHalt reports whether err is, or wraps, a HaltError.
func IsHalt(err error) (*HaltError, bool) {
	var h *HaltError
	if errors.As(err, &h) {
		return h, true
	}
	return nil, false
}
