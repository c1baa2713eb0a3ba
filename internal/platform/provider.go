package platform

import (
	"errors"

	"go.uber.org/zap"
)

// Provider bundles the collaborators of one device backend.
type Provider struct {
	Classifier PageClassifier
	Screen     Screen
	Actions    ViewActions
	Touch      TouchInjector
	Navigator  Navigator
	Observer   LayoutObserver
	Fallback   AccessibilityFallback // optional

	// Close releases backend resources such as devtools connections.
	Close func() error
}

// ErrNoBackend is returned when no device backend has been registered.
var ErrNoBackend = errors.New("no device backend registered; import internal/platform/adb")

// NewProviderFunc is set by backend packages via init().
// See internal/platform/adb/init.go for the adb registration.
var NewProviderFunc func(opts Options, logger *zap.Logger) (*Provider, error)

// NewProvider returns a Provider from the registered backend.
func NewProvider(opts Options, logger *zap.Logger) (*Provider, error) {
	if NewProviderFunc == nil {
		return nil, ErrNoBackend
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewProviderFunc(opts, logger)
}

// Shutdown calls Close when the backend set one.
func (p *Provider) Shutdown() error {
	if p == nil || p.Close == nil {
		return nil
	}
	return p.Close()
}
