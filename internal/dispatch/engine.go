package dispatch

import (
	"context"
	"fmt"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/native"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/web"
)

// Engine executes actions on the nodes of one rendering engine.
type Engine interface {
	Name() string
	Click(ctx context.Context, el *model.GenericElement) error
	LongClick(ctx context.Context, el *model.GenericElement) error
	SetInput(ctx context.Context, el *model.GenericElement, text string) error
	// ScreenPoint maps the node's center to screen dp.
	ScreenPoint(ctx context.Context, el *model.GenericElement) (model.Point, error)
}

type nativeEngine struct {
	x *native.Executor
}

func (e nativeEngine) Name() string { return "native" }

func (e nativeEngine) Click(ctx context.Context, el *model.GenericElement) error {
	return e.x.Click(ctx, el)
}

func (e nativeEngine) LongClick(ctx context.Context, el *model.GenericElement) error {
	return e.x.LongClick(ctx, el)
}

func (e nativeEngine) SetInput(ctx context.Context, el *model.GenericElement, text string) error {
	return e.x.SetInput(ctx, el, text)
}

func (e nativeEngine) ScreenPoint(_ context.Context, el *model.GenericElement) (model.Point, error) {
	return el.Bounds.Center(), nil
}

// webEngine drives DOM nodes through the bridge. Nodes without a DOM id
// are clicked by coordinates through the native touch path.
type webEngine struct {
	x      *web.Executor
	touch  *native.Executor
	screen platform.Screen
}

func (e webEngine) Name() string { return "web" }

func (e webEngine) surface() (platform.WebSurface, error) {
	s, ok := e.screen.WebSurface()
	if !ok {
		return nil, fmt.Errorf("web surface detached: %w", platform.ErrNoActiveScreen)
	}
	return s, nil
}

func (e webEngine) Click(ctx context.Context, el *model.GenericElement) error {
	s, err := e.surface()
	if err != nil {
		return err
	}
	if el.ResourceID == "" {
		p, err := e.ScreenPoint(ctx, el)
		if err != nil {
			return err
		}
		return e.touch.TapAt(ctx, p)
	}
	return e.x.Click(ctx, s, el)
}

func (e webEngine) LongClick(ctx context.Context, el *model.GenericElement) error {
	s, err := e.surface()
	if err != nil {
		return err
	}
	return e.x.LongClick(ctx, s, el)
}

func (e webEngine) SetInput(ctx context.Context, el *model.GenericElement, text string) error {
	s, err := e.surface()
	if err != nil {
		return err
	}
	return e.x.SetInput(ctx, s, el, text)
}

func (e webEngine) ScreenPoint(ctx context.Context, el *model.GenericElement) (model.Point, error) {
	s, err := e.surface()
	if err != nil {
		return model.Point{}, err
	}
	return e.x.ScreenCenter(ctx, s, el, e.screen.Density())
}

type fallbackEngine struct {
	fb platform.AccessibilityFallback
}

func (e fallbackEngine) Name() string { return "accessibility" }

func (e fallbackEngine) Click(ctx context.Context, el *model.GenericElement) error {
	return e.fb.Click(ctx, el)
}

func (e fallbackEngine) LongClick(ctx context.Context, el *model.GenericElement) error {
	return e.fb.LongClick(ctx, el)
}

func (e fallbackEngine) SetInput(ctx context.Context, el *model.GenericElement, text string) error {
	return e.fb.SetInput(ctx, el, text)
}

func (e fallbackEngine) ScreenPoint(_ context.Context, el *model.GenericElement) (model.Point, error) {
	return el.Bounds.Center(), nil
}
