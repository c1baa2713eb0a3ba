// Package dispatch takes snapshots of the screen and executes action
// requests against the nodes they contain.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/hybrid"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/native"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/uithread"
	"github.com/mj1618/uibridge/internal/web"
)

// Default scroll gesture.
const (
	DefaultScrollDistance = 400
	DefaultScrollDuration = 300 * time.Millisecond
)

// Snapshot is one indexed capture of the screen. It is immutable once
// returned.
type Snapshot struct {
	Root    *model.GenericElement
	Nodes   *model.NodeMap
	Kind    platform.PageKind
	TakenAt time.Time
}

// Generation identifies the snapshot's NodeMap.
func (s *Snapshot) Generation() string { return s.Nodes.Generation() }

// XML serializes the snapshot as a hierarchy document.
func (s *Snapshot) XML() ([]byte, error) { return model.MarshalHierarchy(s.Root) }

// Options wires a Dispatcher.
type Options struct {
	Classifier platform.PageClassifier
	Screen     platform.Screen
	Merger     *hybrid.Merger
	Native     *native.Executor
	Web        *web.Executor
	Fallback   platform.AccessibilityFallback // optional

	ScrollDistance int // dp
	ScrollDuration time.Duration
}

// Dispatcher owns the current snapshot. The snapshot pointer is only read
// and replaced on the UI thread.
type Dispatcher struct {
	looper     *uithread.Looper
	classifier platform.PageClassifier
	screen     platform.Screen
	merger     *hybrid.Merger
	native     *native.Executor
	engines    map[string]Engine
	scrollBy   int
	scrollDur  time.Duration
	logger     *zap.Logger

	current *Snapshot
}

// New creates a Dispatcher.
func New(looper *uithread.Looper, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.ScrollDistance <= 0 {
		opts.ScrollDistance = DefaultScrollDistance
	}
	if opts.ScrollDuration <= 0 {
		opts.ScrollDuration = DefaultScrollDuration
	}
	d := &Dispatcher{
		looper:     looper,
		classifier: opts.Classifier,
		screen:     opts.Screen,
		merger:     opts.Merger,
		native:     opts.Native,
		scrollBy:   opts.ScrollDistance,
		scrollDur:  opts.ScrollDuration,
		logger:     logger.Named("dispatch"),
		engines: map[string]Engine{
			model.SourceNative: nativeEngine{x: opts.Native},
		},
	}
	if opts.Web != nil {
		d.engines[model.SourceWeb] = webEngine{x: opts.Web, touch: opts.Native, screen: opts.Screen}
	}
	if opts.Fallback != nil {
		d.engines[model.SourceAccessibility] = fallbackEngine{fb: opts.Fallback}
	}
	return d
}

// Snapshot classifies the screen, captures it and makes the result the
// current snapshot.
func (d *Dispatcher) Snapshot(ctx context.Context) (*Snapshot, error) {
	kind := d.classifier.Classify(d.screen)
	root := d.merger.Capture(ctx, d.screen, kind)
	snap := &Snapshot{
		Root:    root,
		Nodes:   model.BuildNodeMap(root),
		Kind:    kind,
		TakenAt: d.looper.Clock().Now(),
	}
	if err := d.looper.Call(ctx, func() error {
		d.current = snap
		return nil
	}); err != nil {
		return nil, err
	}
	d.logger.Debug("snapshot taken",
		zap.Stringer("kind", kind),
		zap.Int("nodes", snap.Nodes.Len()),
		zap.String("generation", snap.Generation()))
	return snap, nil
}

// Current returns the latest snapshot, or nil before the first one.
func (d *Dispatcher) Current(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	err := d.looper.Call(ctx, func() error {
		snap = d.current
		return nil
	})
	return snap, err
}

// ActAsync runs Act on its own goroutine and delivers the outcome on the
// returned channel.
func (d *Dispatcher) ActAsync(ctx context.Context, req Request) <-chan error {
	done := make(chan error, 1)
	go func() { done <- d.Act(ctx, req) }()
	return done
}

// Act executes req against the current snapshot and returns once the
// engine reported completion.
func (d *Dispatcher) Act(ctx context.Context, req Request) error {
	logger := d.logger.With(zap.String("action", string(req.Action)), zap.Int("index", req.Index))
	if kind := d.classifier.Classify(d.screen); kind == platform.PageUnknown {
		logger.Debug("acting on an unrecognized page")
	}

	switch req.Action {
	case ActionBack:
		return d.native.Back(ctx)
	case ActionHome:
		return d.native.Home(ctx)
	}

	snap, err := d.Current(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("index %d: no snapshot taken yet: %w", req.Index, ErrTargetNotFound)
	}
	if req.Generation != "" && req.Generation != snap.Generation() {
		return fmt.Errorf("request for snapshot %s, current is %s: %w", req.Generation, snap.Generation(), ErrStaleSnapshot)
	}
	el, ok := snap.Nodes.Lookup(req.Index)
	if !ok {
		return fmt.Errorf("index %d of %d: %w", req.Index, snap.Nodes.Len(), ErrTargetNotFound)
	}
	eng, err := d.route(el)
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("engine", eng.Name()), zap.String("class", el.ClassName))

	switch req.Action {
	case ActionClick:
		err = d.click(ctx, snap.Root, el, eng, logger)
	case ActionLongClick:
		err = eng.LongClick(ctx, el)
	case ActionInput:
		err = eng.SetInput(ctx, el, req.Text)
	case ActionScroll:
		err = d.scroll(ctx, el, eng, req.Direction)
	default:
		err = malformed(string(req.Action), "unknown action")
	}
	if err != nil {
		logger.Info("action failed", zap.Error(err))
		return err
	}
	logger.Debug("action done")
	return nil
}

// route picks the engine owning el by its page type.
func (d *Dispatcher) route(el *model.GenericElement) (Engine, error) {
	var key string
	switch el.PageType {
	case model.PageNative:
		key = model.SourceNative
		if el.Prop(model.PropSource) == model.SourceAccessibility {
			key = model.SourceAccessibility
		}
	case model.PageWebView:
		key = model.SourceWeb
	default:
		return nil, fmt.Errorf("index %d has page type %q: %w", el.Index, el.PageType, ErrUnroutableTarget)
	}
	eng, ok := d.engines[key]
	if !ok {
		return nil, fmt.Errorf("index %d: no %s engine configured: %w", el.Index, key, ErrUnroutableTarget)
	}
	return eng, nil
}

func (d *Dispatcher) click(ctx context.Context, root, el *model.GenericElement, eng Engine, logger *zap.Logger) error {
	if el.CanClick() {
		return eng.Click(ctx, el)
	}
	candidate, ok := ResolveClickTarget(root, el.Bounds)
	if !ok {
		return &UnreachableTargetError{
			ResourceID: el.ResourceID,
			ClassName:  el.ClassName,
			Text:       el.Text,
			Bounds:     el.Bounds,
		}
	}
	if model.IsScrollContainer(candidate) {
		logger.Debug("click resolves to a scroll container, tapping target center", zap.Int("container", candidate.Index))
		p, err := eng.ScreenPoint(ctx, el)
		if err != nil {
			return err
		}
		return d.native.TapAt(ctx, p)
	}
	ceng, err := d.route(candidate)
	if err != nil {
		return err
	}
	logger.Debug("click redirected", zap.Int("candidate", candidate.Index), zap.String("candidate_engine", ceng.Name()))
	return ceng.Click(ctx, candidate)
}

// scroll drags from the node's center toward direction. Scrolling is
// always a touch gesture, whatever engine owns the node.
func (d *Dispatcher) scroll(ctx context.Context, el *model.GenericElement, eng Engine, dir platform.Direction) error {
	from, err := eng.ScreenPoint(ctx, el)
	if err != nil {
		return err
	}
	dx, dy := dir.Unit()
	to := model.Point{X: from.X + dx*d.scrollBy, Y: from.Y + dy*d.scrollBy}
	return d.native.Drag(ctx, from, to, d.scrollDur)
}
