package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/config"
	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/hybrid"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/native"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/platform"
	_ "github.com/mj1618/uibridge/internal/platform/adb" // registers the adb backend
	"github.com/mj1618/uibridge/internal/stability"
	"github.com/mj1618/uibridge/internal/uithread"
	"github.com/mj1618/uibridge/internal/web"
)

// bridge is the capture and action stack for one device: the UI thread,
// the extractors and executors, and the dispatcher over them.
type bridge struct {
	cfg      *config.Config
	provider *platform.Provider
	looper   *uithread.Looper
	disp     *dispatch.Dispatcher
	logger   *zap.Logger
}

func openBridge(cfg *config.Config, logger *zap.Logger) (*bridge, error) {
	provider, err := platform.NewProvider(platform.Options{
		Serial:       cfg.Device.Serial,
		ADBPath:      cfg.Device.ADBPath,
		Density:      cfg.Device.Density,
		DumpPath:     cfg.Device.DumpPath,
		DumpRetries:  cfg.Device.DumpRetries,
		PollInterval: cfg.Device.PollInterval,
		DevToolsURL:  cfg.Web.DevToolsURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to device: %w", err)
	}
	return newBridge(cfg, provider, uithread.RealClock(), logger), nil
}

func newBridge(cfg *config.Config, provider *platform.Provider, clock uithread.Clock, logger *zap.Logger) *bridge {
	looper := uithread.New(clock, logger)
	looper.Start()

	webOpts := web.Options{ProbeTimeout: cfg.Web.ProbeTimeout, CSSPxPerDp: cfg.Web.CSSPxPerDp}
	nx := native.NewExecutor(looper, native.ExecutorOptions{
		Screen:            provider.Screen,
		Actions:           provider.Actions,
		Touch:             provider.Touch,
		Navigator:         provider.Navigator,
		LongPressDuration: cfg.Dispatch.LongPressDuration,
	}, logger)
	merger := hybrid.NewMerger(native.NewExtractor(looper, logger), web.NewExtractor(webOpts, logger), provider.Fallback, logger)
	disp := dispatch.New(looper, dispatch.Options{
		Classifier:     provider.Classifier,
		Screen:         provider.Screen,
		Merger:         merger,
		Native:         nx,
		Web:            web.NewExecutor(webOpts, logger),
		Fallback:       provider.Fallback,
		ScrollDistance: cfg.Dispatch.ScrollDistance,
		ScrollDuration: cfg.Dispatch.ScrollDuration,
	}, logger)

	return &bridge{cfg: cfg, provider: provider, looper: looper, disp: disp, logger: logger}
}

func (b *bridge) close() {
	if err := b.provider.Shutdown(); err != nil {
		b.logger.Warn("device shutdown failed", zap.Error(err))
	}
	b.looper.Stop()
}

func (b *bridge) timing() stability.Timing {
	return stability.Timing{
		FirstLoad: b.cfg.Stability.FirstLoadDelay,
		Settle:    b.cfg.Stability.SettleDelay,
		Ceiling:   b.cfg.Stability.CeilingDelay,
	}
}

func (b *bridge) newWaiter() *stability.Waiter {
	return stability.NewWaiter(b.looper, b.timing(), b.logger)
}

// watch feeds the device's layout changes to notify until stop is called.
func (b *bridge) watch(ctx context.Context, notify func(reason string)) (stop func()) {
	if b.provider.Observer == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := b.provider.Observer.Observe(ctx, notify); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Warn("layout observer stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// act executes req. With a waiter it then blocks until the screen settles;
// the capture's Err is set when the action produced no layout change.
func (b *bridge) act(ctx context.Context, w *stability.Waiter, req dispatch.Request) (stability.Capture, error) {
	actCtx := ctx
	if d := b.cfg.Dispatch.ActionTimeout; d > 0 {
		var cancel context.CancelFunc
		actCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	if w == nil {
		return stability.Capture{}, b.disp.Act(actCtx, req)
	}
	w.ArmForAction(string(req.Action))
	if err := b.disp.Act(actCtx, req); err != nil {
		w.Reset()
		return stability.Capture{}, err
	}
	return settle(ctx, w)
}

// settle waits for the armed cycle of w. A cycle always ends within the
// first-load delay or two ceilings.
func settle(ctx context.Context, w *stability.Waiter) (stability.Capture, error) {
	t := w.Timing()
	ctx, cancel := context.WithTimeout(ctx, t.FirstLoad+2*t.Ceiling+time.Second)
	defer cancel()
	c, err := w.Wait(ctx)
	if err != nil {
		return c, fmt.Errorf("wait for screen: %w", err)
	}
	return c, nil
}

func snapshotResult(snap *dispatch.Snapshot) output.SnapshotResult {
	return output.SnapshotResult{
		Generation: snap.Generation(),
		Kind:       snap.Kind.String(),
		TS:         snap.TakenAt.UnixMilli(),
		Nodes:      snap.Nodes.Len(),
		Root:       snap.Root,
	}
}

// resolveText returns the index of the node best matching text: the first
// clickable match, otherwise the first match of any kind.
func resolveText(root *model.GenericElement, text string) (int, error) {
	matches := model.FilterByText(root, text)
	if clickable := model.FilterClickable(matches); len(clickable) > 0 {
		return clickable[0].Index, nil
	}
	if len(matches) == 0 {
		return 0, fmt.Errorf("no node matches %q", text)
	}
	return matches[0].Index, nil
}

// Parameter extraction helpers for step maps

func stringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		// Handle numeric values that YAML may parse as int/float
		return fmt.Sprintf("%v", v)
	}
	return defaultVal
}

func intParam(params map[string]interface{}, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case int64:
			return int(n)
		}
	}
	return defaultVal
}

func boolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
