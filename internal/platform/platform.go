package platform

import (
	"context"
	"time"

	"github.com/mj1618/uibridge/internal/model"
)

// PageClassifier reports which rendering engine owns the active surface.
// It is called before every snapshot and every action, so it must be cheap.
type PageClassifier interface {
	Classify(screen Screen) PageKind
}

// ViewState is a read-only copy of one native control's properties.
// Bounds are physical pixels on screen.
type ViewState struct {
	ID            string // resource entry name, "" when the control has none
	ClassName     string
	Text          string
	ContentDesc   string
	Bounds        model.Rect
	Visible       bool
	Clickable     bool
	LongClickable bool
	Checkable     bool
	Checked       bool
	Scrollable    bool
	Selected      bool
	Enabled       bool
	Important     bool
	NAF           bool
}

// View is one live control of the native scene graph. The scene graph owns
// it; callers must only touch it on the UI thread.
type View interface {
	model.LiveControl
	State() ViewState
	Children() []View
}

// Screen is the active foreground surface.
type Screen interface {
	// Root returns the visible root control, or ErrNoActiveScreen.
	Root() (View, error)

	// Density is the physical pixels per device-independent unit.
	Density() float64

	// WebSurface returns the embedded web surface shown on this screen.
	WebSurface() (WebSurface, bool)
}

// WebSurface is an embedded web rendering surface addressable by script.
type WebSurface interface {
	// ID names the surface; it is stable for the surface's lifetime.
	ID() string

	// Bounds is the surface's on-screen rectangle in physical pixels.
	Bounds() model.Rect

	// EvaluateScript runs script in the page and returns the raw result
	// exactly as the engine reports it, often a JSON-encoded string.
	EvaluateScript(ctx context.Context, script string) (string, error)
}

// ViewActions performs direct actions on live controls. Every method must
// be invoked on the UI thread and reports whether the control accepted it.
type ViewActions interface {
	PerformClick(v View) bool
	PerformLongClick(v View) bool
	SetText(v View, text string) bool
}

// TouchInjector synthesizes touch input at physical pixel coordinates.
type TouchInjector interface {
	Tap(ctx context.Context, p model.Point) error
	LongPress(ctx context.Context, p model.Point, d time.Duration) error
	Drag(ctx context.Context, from, to model.Point, d time.Duration) error
	InputText(ctx context.Context, text string) error
}

// Navigator issues system navigation.
type Navigator interface {
	Back(ctx context.Context) error
	Home(ctx context.Context) error
}

// LayoutObserver reports layout-change notifications until ctx is done.
// fn is called from the observer's own goroutine.
type LayoutObserver interface {
	Observe(ctx context.Context, fn func(reason string)) error
}

// AccessibilityFallback reads and drives pages no engine recognizes.
type AccessibilityFallback interface {
	Tree(ctx context.Context) (*model.GenericElement, error)
	Click(ctx context.Context, el *model.GenericElement) error
	LongClick(ctx context.Context, el *model.GenericElement) error
	SetInput(ctx context.Context, el *model.GenericElement, text string) error
}
