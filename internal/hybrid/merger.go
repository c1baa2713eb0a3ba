// Package hybrid produces one snapshot tree for the whole screen, merging
// the native scene graph and an embedded web surface when both are shown.
package hybrid

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
)

// Synthetic node identities.
const (
	RootID             = "root_mix"
	RootClass          = "MixedPage"
	ContainerIDPrefix  = "webview_"
	ContainerClass     = "WebViewContainer"
	UnrecognizedPage   = "unrecognized page"
	containerPropValue = "WebView"
)

// NativeExtractor reads the native scene graph.
type NativeExtractor interface {
	Extract(ctx context.Context, screen platform.Screen) *model.GenericElement
}

// WebExtractor reads an embedded web surface.
type WebExtractor interface {
	Extract(ctx context.Context, surface platform.WebSurface) *model.GenericElement
}

// Merger captures snapshot trees.
type Merger struct {
	native   NativeExtractor
	web      WebExtractor
	fallback platform.AccessibilityFallback
	logger   *zap.Logger
}

// NewMerger creates a Merger. fallback may be nil.
func NewMerger(nativeExt NativeExtractor, webExt WebExtractor, fallback platform.AccessibilityFallback, logger *zap.Logger) *Merger {
	return &Merger{
		native:   nativeExt,
		web:      webExt,
		fallback: fallback,
		logger:   logger.Named("hybrid"),
	}
}

// Capture extracts the screen according to kind and returns a fully tagged
// and indexed tree. It never returns nil.
func (m *Merger) Capture(ctx context.Context, screen platform.Screen, kind platform.PageKind) *model.GenericElement {
	switch kind {
	case platform.PageNative, platform.PageEmbeddedWeb:
	default:
		return m.captureUnknown(ctx)
	}

	surface, hasWeb := screen.WebSurface()
	if !hasWeb {
		if kind == platform.PageEmbeddedWeb {
			m.logger.Warn("classified as embedded web but no web surface is attached")
		}
		root := m.native.Extract(ctx, screen)
		model.TagTree(root, model.PageNative, model.SourceNative)
		model.AssignIndices(root)
		return root
	}

	var nativeRoot, webRoot *model.GenericElement
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		nativeRoot = m.native.Extract(gctx, screen)
		return nil
	})
	g.Go(func() error {
		webRoot = m.web.Extract(gctx, surface)
		return nil
	})
	// Extraction degrades to error nodes, so Wait has nothing to report.
	_ = g.Wait()

	root := Merge(nativeRoot, webRoot, surface.ID(), surface.Bounds().Scale(density(screen)))
	m.logger.Debug("merged snapshot",
		zap.String("surface", surface.ID()),
		zap.Int("nodes", model.Count(root)),
		zap.Bool("native_error", nativeRoot.IsError()),
		zap.Bool("web_error", webRoot.IsError()))
	return root
}

func (m *Merger) captureUnknown(ctx context.Context) *model.GenericElement {
	if m.fallback == nil {
		m.logger.Info("page not recognized and no accessibility fallback configured")
		return model.ErrorElement(UnrecognizedPage)
	}
	root, err := m.fallback.Tree(ctx)
	if err != nil || root == nil {
		m.logger.Warn("accessibility fallback failed", zap.Error(err))
		return model.ErrorElement(UnrecognizedPage)
	}
	model.TagTree(root, model.PageNative, model.SourceAccessibility)
	model.AssignIndices(root)
	return root
}

// Merge tags both trees, wraps the web tree in a container spanning
// surfaceBounds (dp) and indexes the result in one pre-order pass from the
// synthetic root. The container takes its label and interaction flags from
// the native node hosting the surface when one is found.
func Merge(nativeRoot, webRoot *model.GenericElement, surfaceID string, surfaceBounds model.Rect) *model.GenericElement {
	model.TagTree(nativeRoot, model.PageNative, model.SourceNative)
	model.TagTree(webRoot, model.PageWebView, model.SourceWeb)

	container := &model.GenericElement{
		ResourceID: ContainerIDPrefix + surfaceID,
		ClassName:  ContainerClass,
		Bounds:     surfaceBounds,
		Enabled:    true,
		Important:  true,
		PageType:   model.PageWebView,
		Children:   []*model.GenericElement{webRoot},
	}
	if host := findHost(nativeRoot, surfaceBounds); host != nil {
		container.ContentDesc = host.ContentDesc
		container.Enabled = host.Enabled
		container.Clickable = host.Clickable
		container.LongClickable = host.LongClickable
		container.Scrollable = host.Scrollable
	}
	container.SetProp(model.PropSource, model.SourceWeb)
	container.SetProp(model.PropContainer, containerPropValue)

	root := &model.GenericElement{
		ResourceID: RootID,
		ClassName:  RootClass,
		Bounds:     union(nativeRoot.Bounds, surfaceBounds),
		Enabled:    true,
		PageType:   model.PageMixed,
		Children:   []*model.GenericElement{nativeRoot, container},
	}
	model.AssignIndices(root)
	return root
}

// findHost returns the native WebView node overlapping bounds the most.
func findHost(nativeRoot *model.GenericElement, bounds model.Rect) *model.GenericElement {
	var host *model.GenericElement
	best := 0
	model.Walk(nativeRoot, func(el *model.GenericElement, _ int) bool {
		if !strings.Contains(el.ClassName, containerPropValue) {
			return true
		}
		if area := el.Bounds.IntersectionArea(bounds); area > best {
			host, best = el, area
		}
		return true
	})
	return host
}

func union(a, b model.Rect) model.Rect {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}
	return model.Rect{
		Left:   min(a.Left, b.Left),
		Top:    min(a.Top, b.Top),
		Right:  max(a.Right, b.Right),
		Bottom: max(a.Bottom, b.Bottom),
	}
}

func density(screen platform.Screen) float64 {
	if d := screen.Density(); d > 0 {
		return d
	}
	return 1
}
