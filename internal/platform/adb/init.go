package adb

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/platform/cdp"
)

const connectTimeout = 15 * time.Second

func init() {
	platform.NewProviderFunc = NewProvider
}

// NewProvider connects to the device described by opts and, when a
// devtools URL is set, to its WebView.
func NewProvider(opts platform.Options, logger *zap.Logger) (*platform.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("adb")
	sh, err := NewExecShell(opts.ADBPath, opts.Serial)
	if err != nil {
		return nil, err
	}
	return newProvider(sh, opts, logger)
}

func newProvider(sh Shell, opts platform.Options, logger *zap.Logger) (*platform.Provider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	dev := NewDevice(sh, opts.DumpPath, opts.DumpRetries, logger)
	density := opts.Density
	if density <= 0 {
		d, err := dev.Density(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect to device %q: %w", opts.Serial, err)
		}
		density = d
	}
	screen := NewScreen(dev, ScreenOptions{Density: density, MaxAge: opts.PollInterval}, logger)
	input := NewInput(dev)
	p := &platform.Provider{
		Classifier: Classifier{},
		Screen:     screen,
		Actions:    NewActions(dev),
		Touch:      input,
		Navigator:  input,
		Observer:   NewObserver(screen, opts.PollInterval, logger),
	}
	if opts.DevToolsURL != "" {
		surface, err := cdp.Dial(ctx, opts.DevToolsURL, screen.WebViewBounds, logger)
		if err != nil {
			return nil, err
		}
		screen.SetWebSurface(surface)
		p.Close = surface.Close
	}
	logger.Info("device backend ready", zap.String("serial", opts.Serial), zap.Float64("density", density))
	return p, nil
}
