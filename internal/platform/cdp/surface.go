// Package cdp exposes a WebView's page as a platform.WebSurface over the
// Chrome DevTools protocol.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/model"
)

// ErrNoPageTarget is returned when the devtools endpoint lists no page.
var ErrNoPageTarget = errors.New("devtools endpoint has no page target")

// BoundsFunc reports the surface's current on-screen rectangle in pixels.
type BoundsFunc func() model.Rect

// Surface is a WebView page reached through a devtools socket.
type Surface struct {
	id       string
	bounds   BoundsFunc
	evaluate func(ctx context.Context, script string) (json.RawMessage, error)
	logger   *zap.Logger

	closeOnce sync.Once
	cancel    context.CancelFunc
}

// Dial attaches to the first page target behind devtoolsURL. The surface
// stays attached until Close.
func Dial(ctx context.Context, devtoolsURL string, bounds BoundsFunc, logger *zap.Logger) (*Surface, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), devtoolsURL)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}

	var infos []*target.Info
	err := within(ctx, func() error {
		var err error
		// The first call on a chromedp context fixes the connection's
		// lifetime to that context, so it must be the long-lived one.
		infos, err = chromedp.Targets(browserCtx)
		return err
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("list devtools targets at %s: %w", devtoolsURL, err)
	}
	var page *target.Info
	for _, info := range infos {
		if info.Type == "page" {
			page = info
			break
		}
	}
	if page == nil {
		cancel()
		return nil, ErrNoPageTarget
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx, chromedp.WithTargetID(page.TargetID))
	s := &Surface{
		id:     string(page.TargetID),
		bounds: bounds,
		logger: logger,
		cancel: func() {
			cancelTab()
			cancel()
		},
	}
	s.evaluate = func(ctx context.Context, script string) (json.RawMessage, error) {
		var res json.RawMessage
		err := runActions(tabCtx, ctx, chromedp.Evaluate(script, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
		return res, err
	}
	if err := within(ctx, func() error { return chromedp.Run(tabCtx) }); err != nil {
		s.Close()
		return nil, fmt.Errorf("attach to page %s: %w", page.URL, err)
	}
	logger.Info("attached to web surface", zap.String("target", s.id), zap.String("url", page.URL))
	return s, nil
}

// within runs fn and gives up when ctx is done first. fn must stop on its
// own once the caller cancels the chromedp contexts.
func within(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runActions runs actions on the chromedp context base while honoring the
// caller's cancellation and deadline.
func runActions(base, ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(base)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Surface) ID() string { return s.id }

func (s *Surface) Bounds() model.Rect {
	if s.bounds == nil {
		return model.Rect{}
	}
	return s.bounds()
}

// EvaluateScript returns the JSON encoding of the script's value, the way
// a WebView's evaluateJavascript reports it. Undefined and null both read
// "null".
func (s *Surface) EvaluateScript(ctx context.Context, script string) (string, error) {
	res, err := s.evaluate(ctx, script)
	switch {
	case errors.Is(err, chromedp.ErrJSUndefined), errors.Is(err, chromedp.ErrJSNull):
		return "null", nil
	case err != nil:
		return "", fmt.Errorf("evaluate on %s: %w", s.id, err)
	case len(res) == 0:
		return "null", nil
	}
	return string(res), nil
}

// Close detaches from the page.
func (s *Surface) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.logger.Debug("detached from web surface", zap.String("target", s.id))
	})
	return nil
}
