package orientation

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported is returned when the orientation sensor does not exist
	// in the current environment.
	ErrUnsupported = errors.New("orientation sensor not supported")

	// ErrPermissionPending is returned when a permission request is made while
	// another one is still waiting for an answer.
	ErrPermissionPending = errors.New("permission request already pending")
)

// Source defines the interface for tilt sensor implementations.
type Source interface {
	// Supported reports whether the sensor exists, regardless of permission.
	Supported() bool

	// Subscribe registers fn to receive readings in arrival order. Readings are
	// delivered one at a time from the source's own goroutine. The returned
	// cancel func unsubscribes and is safe to call more than once.
	Subscribe(fn func(Reading)) (cancel func(), err error)
}

// PermissionRequester is implemented by sources that gate sensor access
// behind explicit user consent.
type PermissionRequester interface {
	// RequestPermission asks the user for sensor access and reports whether it
	// was granted.
	RequestPermission(ctx context.Context) (bool, error)
}
