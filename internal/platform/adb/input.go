package adb

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
)

const (
	defaultLongPress     = time.Second
	defaultActionTimeout = 10 * time.Second
)

// Input implements touch injection and navigation with input commands.
type Input struct {
	dev *Device
}

// NewInput returns an Input on dev.
func NewInput(dev *Device) *Input { return &Input{dev: dev} }

func (in *Input) Tap(ctx context.Context, p model.Point) error { return in.dev.Tap(ctx, p) }

func (in *Input) LongPress(ctx context.Context, p model.Point, d time.Duration) error {
	return in.dev.Swipe(ctx, p, p, d)
}

func (in *Input) Drag(ctx context.Context, from, to model.Point, d time.Duration) error {
	return in.dev.Swipe(ctx, from, to, d)
}

func (in *Input) InputText(ctx context.Context, text string) error { return in.dev.Text(ctx, text) }

func (in *Input) Back(ctx context.Context) error { return in.dev.KeyEvent(ctx, KeyBack) }

func (in *Input) Home(ctx context.Context) error { return in.dev.KeyEvent(ctx, KeyHome) }

// Actions performs direct view actions. adb has no handle on live views,
// so each action becomes input at the view's center.
type Actions struct {
	dev       *Device
	longPress time.Duration
	timeout   time.Duration
}

// NewActions returns Actions on dev.
func NewActions(dev *Device) *Actions {
	return &Actions{dev: dev, longPress: defaultLongPress, timeout: defaultActionTimeout}
}

func (a *Actions) PerformClick(v platform.View) bool {
	return a.do(v, func(ctx context.Context, p model.Point) error { return a.dev.Tap(ctx, p) })
}

func (a *Actions) PerformLongClick(v platform.View) bool {
	return a.do(v, func(ctx context.Context, p model.Point) error { return a.dev.Swipe(ctx, p, p, a.longPress) })
}

// SetText focuses the field, deletes its current text and types text.
func (a *Actions) SetText(v platform.View, text string) bool {
	existing := len([]rune(v.State().Text))
	return a.do(v, func(ctx context.Context, p model.Point) error {
		if err := a.dev.Tap(ctx, p); err != nil {
			return err
		}
		if existing > 0 {
			codes := []int{KeyMoveEnd}
			for i := 0; i < existing; i++ {
				codes = append(codes, KeyDelete)
			}
			if err := a.dev.KeyEvent(ctx, codes...); err != nil {
				return err
			}
		}
		return a.dev.Text(ctx, text)
	})
}

func (a *Actions) do(v platform.View, fn func(ctx context.Context, p model.Point) error) bool {
	st := v.State()
	if !st.Enabled || st.Bounds.Empty() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := fn(ctx, st.Bounds.Center()); err != nil {
		a.dev.logger.Debug("view action failed", zap.String("class", st.ClassName), zap.Error(err))
		return false
	}
	return true
}
