// Package platformtest provides in-memory platform collaborators for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
)

// View is a mutable in-memory control.
type View struct {
	mu       sync.Mutex
	state    platform.ViewState
	children []*View
	detached bool

	// Clicks, LongClicks and Texts record accepted direct actions.
	Clicks     int
	LongClicks int
	Texts      []string
	// Reject makes every direct action fail.
	Reject bool
}

// NewView returns a visible, enabled view.
func NewView(className string, bounds model.Rect, children ...*View) *View {
	return &View{
		state: platform.ViewState{
			ClassName: className,
			Bounds:    bounds,
			Visible:   true,
			Enabled:   true,
			Important: true,
		},
		children: children,
	}
}

// With mutates the view's state and returns the view.
func (v *View) With(fn func(st *platform.ViewState)) *View {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(&v.state)
	return v
}

// Detach marks the view as removed from the scene graph.
func (v *View) Detach() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.detached = true
}

func (v *View) Attached() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.detached
}

func (v *View) State() platform.ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *View) Children() []platform.View {
	out := make([]platform.View, len(v.children))
	for i, c := range v.children {
		out[i] = c
	}
	return out
}

// Screen is an in-memory platform.Screen.
type Screen struct {
	mu      sync.Mutex
	root    *View
	density float64
	web     platform.WebSurface
	rootErr error
}

// NewScreen returns a screen showing root at the given density.
func NewScreen(root *View, density float64) *Screen {
	return &Screen{root: root, density: density}
}

// SetRoot swaps the visible root.
func (s *Screen) SetRoot(root *View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
}

// SetWebSurface attaches or, with nil, removes the web surface.
func (s *Screen) SetWebSurface(w platform.WebSurface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.web = w
}

// FailRoot makes Root return err.
func (s *Screen) FailRoot(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rootErr = err
}

func (s *Screen) Root() (platform.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rootErr != nil {
		return nil, s.rootErr
	}
	if s.root == nil {
		return nil, platform.ErrNoActiveScreen
	}
	return s.root, nil
}

func (s *Screen) Density() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.density
}

func (s *Screen) WebSurface() (platform.WebSurface, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.web, s.web != nil
}

// Classifier returns a fixed verdict.
type Classifier struct {
	Kind  platform.PageKind
	Calls int
}

func (c *Classifier) Classify(platform.Screen) platform.PageKind {
	c.Calls++
	return c.Kind
}

// Actions applies direct actions to *View fakes.
type Actions struct{}

func (Actions) PerformClick(v platform.View) bool {
	fv := v.(*View)
	fv.mu.Lock()
	defer fv.mu.Unlock()
	if fv.Reject {
		return false
	}
	fv.Clicks++
	return true
}

func (Actions) PerformLongClick(v platform.View) bool {
	fv := v.(*View)
	fv.mu.Lock()
	defer fv.mu.Unlock()
	if fv.Reject {
		return false
	}
	fv.LongClicks++
	return true
}

func (Actions) SetText(v platform.View, text string) bool {
	fv := v.(*View)
	fv.mu.Lock()
	defer fv.mu.Unlock()
	if fv.Reject {
		return false
	}
	fv.Texts = append(fv.Texts, text)
	fv.state.Text = text
	return true
}

// Gesture is one recorded touch or navigation event.
type Gesture struct {
	Kind     string // tap, longpress, drag, text, back, home
	From, To model.Point
	Duration time.Duration
	Text     string
}

// Touch records gestures; it implements TouchInjector and Navigator.
type Touch struct {
	mu       sync.Mutex
	gestures []Gesture
	Err      error
}

func (t *Touch) record(g Gesture) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return t.Err
	}
	t.gestures = append(t.gestures, g)
	return nil
}

// Gestures returns a copy of everything recorded so far.
func (t *Touch) Gestures() []Gesture {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Gesture(nil), t.gestures...)
}

func (t *Touch) Tap(_ context.Context, p model.Point) error {
	return t.record(Gesture{Kind: "tap", From: p, To: p})
}

func (t *Touch) LongPress(_ context.Context, p model.Point, d time.Duration) error {
	return t.record(Gesture{Kind: "longpress", From: p, To: p, Duration: d})
}

func (t *Touch) Drag(_ context.Context, from, to model.Point, d time.Duration) error {
	return t.record(Gesture{Kind: "drag", From: from, To: to, Duration: d})
}

func (t *Touch) InputText(_ context.Context, text string) error {
	return t.record(Gesture{Kind: "text", Text: text})
}

func (t *Touch) Back(context.Context) error { return t.record(Gesture{Kind: "back"}) }
func (t *Touch) Home(context.Context) error { return t.record(Gesture{Kind: "home"}) }

// WebSurface answers scripts through a handler.
type WebSurface struct {
	SurfaceID string
	Rect      model.Rect
	Handler   func(script string) (string, error)

	mu      sync.Mutex
	scripts []string
}

func (w *WebSurface) ID() string         { return w.SurfaceID }
func (w *WebSurface) Bounds() model.Rect { return w.Rect }

func (w *WebSurface) EvaluateScript(ctx context.Context, script string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w.mu.Lock()
	w.scripts = append(w.scripts, script)
	w.mu.Unlock()
	if w.Handler == nil {
		return "", fmt.Errorf("no handler")
	}
	return w.Handler(script)
}

// Scripts returns every script evaluated so far.
func (w *WebSurface) Scripts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.scripts...)
}
