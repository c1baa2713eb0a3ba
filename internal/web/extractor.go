// Package web extracts and drives the DOM of an embedded web surface
// through an injected probe script.
package web

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
)

//go:embed probe.js
var probeScript string

// ProbeScript returns the bridge installer. It is safe to evaluate any
// number of times.
func ProbeScript() string { return probeScript }

const (
	readyScript = "!!(window.__uibridge && window.__uibridge.getElementTree)"
	treeScript  = "window.__uibridge.getElementTree()"
)

// ErrBridgeNotReady is returned when the bridge object is still missing
// after a fresh injection.
var ErrBridgeNotReady = errors.New("web bridge not ready")

// Options configures the web extractor and executor.
type Options struct {
	// ProbeTimeout bounds one extraction or action round trip.
	ProbeTimeout time.Duration
	// CSSPxPerDp is the CSS pixels per dp. 1 treats them as identical.
	CSSPxPerDp float64
}

func (o Options) withDefaults() Options {
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 5 * time.Second
	}
	if o.CSSPxPerDp <= 0 {
		o.CSSPxPerDp = 1
	}
	return o
}

// Extractor serializes a web surface's DOM into a GenericElement tree.
type Extractor struct {
	opts   Options
	logger *zap.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(opts Options, logger *zap.Logger) *Extractor {
	return &Extractor{opts: opts.withDefaults(), logger: logger.Named("web")}
}

// Extract returns the surface's DOM in document coordinates. Failures of
// any kind come back as a synthetic error node.
func (e *Extractor) Extract(ctx context.Context, surface platform.WebSurface) *model.GenericElement {
	ctx, cancel := context.WithTimeout(ctx, e.opts.ProbeTimeout)
	defer cancel()

	if err := ensureBridge(ctx, surface, e.logger); err != nil {
		e.logger.Warn("web extraction unavailable", zap.String("surface", surface.ID()), zap.Error(err))
		return model.ErrorElement(fmt.Sprintf("web extraction unavailable: %v", err))
	}
	raw, err := surface.EvaluateScript(ctx, treeScript)
	if err != nil {
		e.logger.Warn("getElementTree failed", zap.String("surface", surface.ID()), zap.Error(err))
		return model.ErrorElement(fmt.Sprintf("getElementTree failed: %v", err))
	}
	root, err := DecodeTree(raw)
	if err != nil {
		e.logger.Warn("unusable tree result", zap.String("surface", surface.ID()), zap.Error(err))
		return model.ErrorElement(fmt.Sprintf("unusable tree result: %v", err))
	}
	if e.opts.CSSPxPerDp != 1 {
		model.Walk(root, func(el *model.GenericElement, _ int) bool {
			el.Bounds = el.Bounds.Scale(e.opts.CSSPxPerDp)
			return true
		})
	}
	e.logger.Debug("web tree extracted", zap.String("surface", surface.ID()), zap.Int("nodes", model.Count(root)))
	return root
}

// ensureBridge checks for the bridge and, when it is missing, injects the
// probe and checks exactly once more.
func ensureBridge(ctx context.Context, surface platform.WebSurface, logger *zap.Logger) error {
	if ready, err := bridgeReady(ctx, surface); err != nil {
		return err
	} else if ready {
		return nil
	}
	logger.Debug("bridge missing, injecting probe", zap.String("surface", surface.ID()))
	if _, err := surface.EvaluateScript(ctx, probeScript); err != nil {
		return fmt.Errorf("inject probe: %w", err)
	}
	ready, err := bridgeReady(ctx, surface)
	if err != nil {
		return err
	}
	if !ready {
		return ErrBridgeNotReady
	}
	return nil
}

func bridgeReady(ctx context.Context, surface platform.WebSurface) (bool, error) {
	raw, err := surface.EvaluateScript(ctx, readyScript)
	if err != nil {
		return false, fmt.Errorf("readiness check: %w", err)
	}
	ready, err := decodeBool(raw)
	if err != nil {
		// An unreadable readiness answer counts as not ready.
		return false, nil
	}
	return ready, nil
}
