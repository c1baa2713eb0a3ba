package session

import (
	"errors"

	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/stability"
	"github.com/mj1618/uibridge/internal/transport"
	"github.com/mj1618/uibridge/internal/web"
)

// ErrorKind names a failure in reports sent to the controller.
type ErrorKind string

const (
	KindExtractionUnavailable  ErrorKind = "ExtractionUnavailable"
	KindBridgeNotReady         ErrorKind = "BridgeNotReady"
	KindTargetNotFound         ErrorKind = "TargetNotFound"
	KindUnroutableTarget       ErrorKind = "UnroutableTarget"
	KindUnreachableClickTarget ErrorKind = "UnreachableClickTarget"
	KindActionTimeout          ErrorKind = "ActionTimeout"
	KindMalformedActionRequest ErrorKind = "MalformedActionRequest"
	KindStaleSnapshot          ErrorKind = "StaleSnapshot"
	KindUnsupported            ErrorKind = "Unsupported"
	KindActionFailed           ErrorKind = "ActionFailed"
)

// Classify maps err onto the report taxonomy.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, dispatch.ErrMalformedActionRequest):
		return KindMalformedActionRequest
	case errors.Is(err, dispatch.ErrTargetNotFound):
		return KindTargetNotFound
	case errors.Is(err, dispatch.ErrUnroutableTarget):
		return KindUnroutableTarget
	case errors.Is(err, dispatch.ErrUnreachableClickTarget):
		return KindUnreachableClickTarget
	case errors.Is(err, dispatch.ErrStaleSnapshot):
		return KindStaleSnapshot
	case errors.Is(err, stability.ErrActionTimeout):
		return KindActionTimeout
	case errors.Is(err, web.ErrBridgeNotReady):
		return KindBridgeNotReady
	case errors.Is(err, platform.ErrNoActiveScreen):
		return KindExtractionUnavailable
	case errors.Is(err, platform.ErrUnsupported):
		return KindUnsupported
	default:
		return KindActionFailed
	}
}

func reportType(kind ErrorKind) transport.ErrorType {
	switch kind {
	case KindExtractionUnavailable, KindBridgeNotReady:
		return transport.ErrorTypeSystem
	default:
		return transport.ErrorTypeAction
	}
}
