package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
)

var (
	// ErrNotAddressable is returned for elements without a DOM id.
	ErrNotAddressable = errors.New("element has no DOM id")

	// ErrElementMissing is returned when the bridge cannot find the id.
	ErrElementMissing = errors.New("element not found in DOM")
)

const scrollScript = "JSON.stringify([window.pageXOffset || 0, window.pageYOffset || 0])"

// Executor performs actions on web nodes through the bridge.
type Executor struct {
	opts   Options
	logger *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(opts Options, logger *zap.Logger) *Executor {
	return &Executor{opts: opts.withDefaults(), logger: logger.Named("web")}
}

// Click calls clickElement for the node's id.
func (x *Executor) Click(ctx context.Context, surface platform.WebSurface, el *model.GenericElement) error {
	if el.ResourceID == "" {
		return ErrNotAddressable
	}
	return x.call(ctx, surface, "clickElement", el.ResourceID)
}

// SetInput calls setInputValue for the node's id.
func (x *Executor) SetInput(ctx context.Context, surface platform.WebSurface, el *model.GenericElement, text string) error {
	if el.ResourceID == "" {
		return ErrNotAddressable
	}
	return x.call(ctx, surface, "setInputValue", el.ResourceID, text)
}

// LongClick always fails: the bridge has no long-press primitive.
func (x *Executor) LongClick(context.Context, platform.WebSurface, *model.GenericElement) error {
	return fmt.Errorf("web long-click: %w", platform.ErrUnsupported)
}

// ScreenCenter maps a node's center from document coordinates to screen dp,
// using the surface's current scroll offsets.
func (x *Executor) ScreenCenter(ctx context.Context, surface platform.WebSurface, el *model.GenericElement, density float64) (model.Point, error) {
	ctx, cancel := context.WithTimeout(ctx, x.opts.ProbeTimeout)
	defer cancel()

	raw, err := surface.EvaluateScript(ctx, scrollScript)
	if err != nil {
		return model.Point{}, fmt.Errorf("read scroll offsets: %w", err)
	}
	s, err := unwrap(raw)
	if err != nil {
		return model.Point{}, fmt.Errorf("read scroll offsets: %w", err)
	}
	offsets := gjson.Parse(s).Array()
	var sx, sy float64
	if len(offsets) == 2 {
		sx, sy = offsets[0].Float(), offsets[1].Float()
	}

	origin := surface.Bounds().Scale(density)
	c := el.Bounds.Center()
	return model.Point{
		X: origin.Left + int(math.Round(float64(c.X)-sx/x.opts.CSSPxPerDp)),
		Y: origin.Top + int(math.Round(float64(c.Y)-sy/x.opts.CSSPxPerDp)),
	}, nil
}

func (x *Executor) call(ctx context.Context, surface platform.WebSurface, fn string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, x.opts.ProbeTimeout)
	defer cancel()

	if err := ensureBridge(ctx, surface, x.logger); err != nil {
		return err
	}
	script, err := callScript(fn, args...)
	if err != nil {
		return err
	}
	raw, err := surface.EvaluateScript(ctx, script)
	if err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	ok, err := decodeBool(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	if !ok {
		return fmt.Errorf("%s(%q): %w", fn, args[0], ErrElementMissing)
	}
	x.logger.Debug("bridge call", zap.String("fn", fn), zap.String("id", args[0]))
	return nil
}

// callScript builds a bridge call with JSON-quoted arguments.
func callScript(fn string, args ...string) (string, error) {
	quoted := make([]byte, 0, 64)
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encode argument: %w", err)
		}
		if i > 0 {
			quoted = append(quoted, ',')
		}
		quoted = append(quoted, b...)
	}
	return fmt.Sprintf("window.__uibridge.%s(%s)", fn, quoted), nil
}
