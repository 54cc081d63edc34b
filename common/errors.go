package common

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every package in the module. Callers wrap these with fmt.Errorf("...: %w")
// and match them with errors.Is.
var (
	// ErrConfig reports an invalid descriptor or configuration value (zero instance count, empty path, bad slice counts).
	ErrConfig = errors.New("config error")

	// ErrAssetLoad reports a model source that could not be opened or parsed.
	ErrAssetLoad = errors.New("asset load error")

	// ErrIndexOutOfRange reports an invalid model, instance, or entry index.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrResourceExhausted reports a buffer or per-cluster budget that would be exceeded.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrGPUSync reports a missing or mismatched barrier, or a frame recorded out of order.
	ErrGPUSync = errors.New("gpu sync error")
)

// IndexError describes an out-of-range index. It unwraps to ErrIndexOutOfRange.
type IndexError struct {
	// What names the indexed collection, e.g. "model" or "instance".
	What string
	// Index is the rejected index.
	Index int
	// Len is the length of the collection at the time of the lookup.
	Len int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0, %d)", e.What, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}

// CheckIndex returns an *IndexError when index is outside [0, length).
//
// Parameters:
//   - what: the collection name used in the error message
//   - index: the index to validate
//   - length: the collection length
//
// Returns:
//   - error: nil when the index is valid, otherwise an *IndexError
func CheckIndex(what string, index, length int) error {
	if index < 0 || index >= length {
		return &IndexError{What: what, Index: index, Len: length}
	}
	return nil
}
