package dispatch

import (
	"errors"
	"fmt"

	"github.com/mj1618/uibridge/internal/model"
)

var (
	// ErrTargetNotFound means the index is absent from the current NodeMap.
	ErrTargetNotFound = errors.New("target not found")

	// ErrUnroutableTarget means no engine owns the node.
	ErrUnroutableTarget = errors.New("unroutable target")

	// ErrUnreachableClickTarget means neither the node nor anything else
	// in the tree can receive a click.
	ErrUnreachableClickTarget = errors.New("unreachable click target")

	// ErrMalformedActionRequest means required arguments are missing or
	// have the wrong type.
	ErrMalformedActionRequest = errors.New("malformed action request")

	// ErrStaleSnapshot means the request names a superseded NodeMap.
	ErrStaleSnapshot = errors.New("stale snapshot")
)

// UnreachableTargetError identifies a click target that could not be
// reached.
type UnreachableTargetError struct {
	ResourceID string
	ClassName  string
	Text       string
	Bounds     model.Rect
}

func (e *UnreachableTargetError) Error() string {
	return fmt.Sprintf("no clickable element reaches target (resource-id=%q class=%q text=%q bounds=%s)",
		e.ResourceID, e.ClassName, e.Text, e.Bounds)
}

func (e *UnreachableTargetError) Unwrap() error { return ErrUnreachableClickTarget }

// MalformedRequestError describes a rejected action request.
type MalformedRequestError struct {
	Action string // as received, possibly empty
	Reason string
}

func (e *MalformedRequestError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("malformed action request: %s", e.Reason)
	}
	return fmt.Sprintf("malformed %q request: %s", e.Action, e.Reason)
}

func (e *MalformedRequestError) Unwrap() error { return ErrMalformedActionRequest }

func malformed(action, format string, args ...any) error {
	return &MalformedRequestError{Action: action, Reason: fmt.Sprintf(format, args...)}
}
