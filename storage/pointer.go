package storage

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrPointerConflict indicates the pointer no longer holds the expected value
	ErrPointerConflict = errors.New("pointer changed concurrently")
	// ErrIO indicates a failure reading or writing the backing medium
	ErrIO = errors.New("storage I/O error")
)

// Pointer is a single mutable reference to the latest content identifier of a document
type Pointer interface {
	// Load returns the current value, or "" when nothing was stored yet
	Load(ctx context.Context) (string, error)
	// CompareAndSwap replaces expected with next, returning ErrPointerConflict on mismatch
	CompareAndSwap(ctx context.Context, expected, next string) error
}
