package adb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
)

// WebViewClass is the platform class of embedded web views.
const WebViewClass = "android.webkit.WebView"

const defaultDumpTimeout = 15 * time.Second

// Dumper produces hierarchy documents.
type Dumper interface {
	Dump(ctx context.Context) ([]byte, error)
}

// ScreenOptions configures a Screen.
type ScreenOptions struct {
	Density float64
	// MaxAge is how old the cached dump may be before Root dumps again.
	MaxAge time.Duration
	// DumpTimeout bounds the dump Root performs on a stale cache.
	DumpTimeout time.Duration
}

// Screen is the device's foreground surface as of the latest dump.
type Screen struct {
	dumper Dumper
	opts   ScreenOptions
	now    func() time.Time
	logger *zap.Logger

	refreshMu sync.Mutex // serializes dumps

	mu    sync.Mutex
	root  *View
	flat  []model.FlatElement
	live  map[viewKey]int
	at    time.Time
	err   error
	web   platform.WebSurface
	webAt model.Rect
	hasWV bool
}

// NewScreen returns a Screen reading from dumper.
func NewScreen(dumper Dumper, opts ScreenOptions, logger *zap.Logger) *Screen {
	if opts.Density <= 0 {
		opts.Density = 1
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultPollInterval
	}
	if opts.DumpTimeout <= 0 {
		opts.DumpTimeout = defaultDumpTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Screen{dumper: dumper, opts: opts, now: time.Now, logger: logger}
}

// SetWebSurface attaches the devtools surface of the device's WebView.
// It is reported only while a WebView is on screen.
func (s *Screen) SetWebSurface(w platform.WebSurface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.web = w
}

// Refresh dumps the hierarchy, swaps it in and returns what changed since
// the previous dump.
func (s *Screen) Refresh(ctx context.Context) ([]model.UIChange, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	doc, err := s.dumper.Dump(ctx)
	var tree *model.GenericElement
	if err == nil {
		tree, err = model.ParseHierarchy(doc)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.at = s.now()
	if err != nil {
		s.err = err
		return nil, err
	}

	root := s.build(tree)
	flat := model.Flatten(tree)
	changes := model.DiffSnapshots(s.flat, flat)
	s.root, s.flat, s.err = root, flat, nil
	s.live = make(map[viewKey]int)
	s.hasWV = false
	s.index(root)
	return changes, nil
}

func (s *Screen) index(v *View) {
	s.live[keyOf(v.state)]++
	if v.state.ClassName == WebViewClass && !s.hasWV {
		s.hasWV, s.webAt = true, v.state.Bounds
	}
	for _, c := range v.children {
		s.index(c)
	}
}

// Root returns the root of the latest dump, dumping first when the cache
// is older than MaxAge.
func (s *Screen) Root() (platform.View, error) {
	s.mu.Lock()
	stale := s.root == nil || s.now().Sub(s.at) > s.opts.MaxAge
	s.mu.Unlock()
	if stale {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.DumpTimeout)
		_, err := s.Refresh(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("hierarchy dump failed", zap.Error(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrNoActiveScreen, s.err)
	}
	if s.root == nil {
		return nil, platform.ErrNoActiveScreen
	}
	return s.root, nil
}

func (s *Screen) Density() float64 { return s.opts.Density }

// WebSurface returns the attached devtools surface while the latest dump
// shows a WebView.
func (s *Screen) WebSurface() (platform.WebSurface, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.web == nil || !s.hasWV {
		return nil, false
	}
	return s.web, true
}

// WebViewBounds returns the first WebView's rectangle in pixels.
func (s *Screen) WebViewBounds() model.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.webAt
}

func (s *Screen) attached(k viewKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[k] > 0
}

func (s *Screen) build(el *model.GenericElement) *View {
	v := &View{screen: s, state: platform.ViewState{
		ID:            entryName(el.ResourceID),
		ClassName:     el.ClassName,
		Text:          el.Text,
		ContentDesc:   el.ContentDesc,
		Bounds:        el.Bounds,
		Visible:       !el.Bounds.Empty(),
		Clickable:     el.Clickable,
		LongClickable: el.LongClickable,
		Checkable:     el.Checkable,
		Checked:       el.Checked,
		Scrollable:    el.Scrollable,
		Selected:      el.Selected,
		Enabled:       el.Enabled,
		Important:     true,
		NAF:           el.NAF,
	}}
	for _, c := range el.Children {
		v.children = append(v.children, s.build(c))
	}
	return v
}

// entryName strips the package from "com.example:id/name".
func entryName(resourceID string) string {
	if _, name, ok := strings.Cut(resourceID, ":id/"); ok {
		return name
	}
	return resourceID
}

type viewKey struct {
	class  string
	id     string
	bounds model.Rect
}

func keyOf(st platform.ViewState) viewKey {
	return viewKey{class: st.ClassName, id: st.ID, bounds: st.Bounds}
}

// View is one node of a dump. It stays attached while later dumps still
// show a node of the same class and id at the same place.
type View struct {
	screen   *Screen
	state    platform.ViewState
	children []*View
}

func (v *View) Attached() bool { return v.screen.attached(keyOf(v.state)) }

func (v *View) State() platform.ViewState { return v.state }

func (v *View) Children() []platform.View {
	out := make([]platform.View, len(v.children))
	for i, c := range v.children {
		out[i] = c
	}
	return out
}
