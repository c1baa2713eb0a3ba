package native

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/uithread"
)

var (
	// ErrDetached means the node's live view is gone and could not be found
	// again by resource id.
	ErrDetached = errors.New("live view is no longer attached")

	// ErrRejected means the live view refused the action.
	ErrRejected = errors.New("view rejected the action")
)

// Executor performs actions on native nodes. View actions and touch
// injection run on the UI thread; callers block only their own goroutine.
type Executor struct {
	looper    *uithread.Looper
	screen    platform.Screen
	actions   platform.ViewActions
	touch     platform.TouchInjector
	nav       platform.Navigator
	longPress time.Duration
	logger    *zap.Logger
}

// ExecutorOptions wires an Executor.
type ExecutorOptions struct {
	Screen            platform.Screen
	Actions           platform.ViewActions
	Touch             platform.TouchInjector
	Navigator         platform.Navigator
	LongPressDuration time.Duration
}

// NewExecutor creates an Executor.
func NewExecutor(looper *uithread.Looper, opts ExecutorOptions, logger *zap.Logger) *Executor {
	lp := opts.LongPressDuration
	if lp <= 0 {
		lp = time.Second
	}
	return &Executor{
		looper:    looper,
		screen:    opts.Screen,
		actions:   opts.Actions,
		touch:     opts.Touch,
		nav:       opts.Navigator,
		longPress: lp,
		logger:    logger.Named("native"),
	}
}

// Click performs a direct click on the node's live view. Without a live
// view it taps the node's center instead.
func (x *Executor) Click(ctx context.Context, el *model.GenericElement) error {
	err := x.onView(ctx, el, x.actions.PerformClick)
	if !errors.Is(err, ErrDetached) {
		return err
	}
	x.logger.Debug("no live view, tapping coordinates", zap.Int("index", el.Index))
	return x.TapAt(ctx, el.Bounds.Center())
}

// LongClick long-clicks the live view when it accepts long clicks,
// otherwise long-presses the node's center.
func (x *Executor) LongClick(ctx context.Context, el *model.GenericElement) error {
	if el.LongClickable {
		err := x.onView(ctx, el, x.actions.PerformLongClick)
		if !errors.Is(err, ErrDetached) && !errors.Is(err, ErrRejected) {
			return err
		}
		x.logger.Debug("direct long click failed, pressing coordinates", zap.Int("index", el.Index), zap.Error(err))
	}
	return x.LongPressAt(ctx, el.Bounds.Center())
}

// SetInput replaces the live view's text. Without a live view it taps the
// node and types the text instead.
func (x *Executor) SetInput(ctx context.Context, el *model.GenericElement, text string) error {
	err := x.onView(ctx, el, func(v platform.View) bool { return x.actions.SetText(v, text) })
	if !errors.Is(err, ErrDetached) {
		return err
	}
	if err := x.TapAt(ctx, el.Bounds.Center()); err != nil {
		return err
	}
	return x.looper.Call(ctx, func() error { return x.touch.InputText(ctx, text) })
}

// TapAt taps a screen point given in dp.
func (x *Executor) TapAt(ctx context.Context, p model.Point) error {
	px := x.toPx(p)
	return x.looper.Call(ctx, func() error { return x.touch.Tap(ctx, px) })
}

// LongPressAt long-presses a screen point given in dp.
func (x *Executor) LongPressAt(ctx context.Context, p model.Point) error {
	px := x.toPx(p)
	return x.looper.Call(ctx, func() error { return x.touch.LongPress(ctx, px, x.longPress) })
}

// Drag drags between two screen points given in dp.
func (x *Executor) Drag(ctx context.Context, from, to model.Point, d time.Duration) error {
	a, b := x.toPx(from), x.toPx(to)
	return x.looper.Call(ctx, func() error { return x.touch.Drag(ctx, a, b, d) })
}

// Back issues system back navigation.
func (x *Executor) Back(ctx context.Context) error {
	return x.looper.Call(ctx, func() error { return x.nav.Back(ctx) })
}

// Home issues system home navigation.
func (x *Executor) Home(ctx context.Context) error {
	return x.looper.Call(ctx, func() error { return x.nav.Home(ctx) })
}

func (x *Executor) onView(ctx context.Context, el *model.GenericElement, fn func(platform.View) bool) error {
	return x.looper.Call(ctx, func() error {
		v := x.liveView(el)
		if v == nil {
			return ErrDetached
		}
		if !fn(v) {
			return ErrRejected
		}
		return nil
	})
}

// liveView returns the node's view while it is attached, falling back to
// the first visible view with the same resource id. UI thread only.
func (x *Executor) liveView(el *model.GenericElement) platform.View {
	if v, ok := el.View.(platform.View); ok && v.Attached() {
		return v
	}
	if el.ResourceID == "" {
		return nil
	}
	root, err := x.screen.Root()
	if err != nil || root == nil {
		return nil
	}
	return findByID(root, el.ResourceID)
}

func findByID(v platform.View, id string) platform.View {
	st := v.State()
	if !st.Visible {
		return nil
	}
	if st.ID == id {
		return v
	}
	for _, child := range v.Children() {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func (x *Executor) toPx(p model.Point) model.Point {
	d := density(x.screen)
	return model.Point{
		X: int(math.Round(float64(p.X) * d)),
		Y: int(math.Round(float64(p.Y) * d)),
	}
}
