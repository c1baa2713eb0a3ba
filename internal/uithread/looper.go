// Package uithread provides the single UI-owning thread: a goroutine that
// runs posted tasks one at a time, in order, together with cancellable
// delayed tasks scheduled on the same queue.
package uithread

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned when work is posted to a stopped looper.
var ErrStopped = errors.New("ui thread stopped")

const queueSize = 256

// Looper serializes every task it runs on one goroutine.
type Looper struct {
	clock  Clock
	logger *zap.Logger
	tasks  chan func()
	quit   chan struct{}
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a looper. Call Start before posting work.
func New(clock Clock, logger *zap.Logger) *Looper {
	if clock == nil {
		clock = RealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Looper{
		clock:  clock,
		logger: logger.Named("uithread"),
		tasks:  make(chan func(), queueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Clock returns the looper's time source.
func (l *Looper) Clock() Clock { return l.clock }

// Start launches the loop goroutine. Calling it again has no effect.
func (l *Looper) Start() {
	l.startOnce.Do(func() { go l.loop() })
}

// Stop ends the loop and waits for the running task to return. Tasks still
// queued are dropped.
func (l *Looper) Stop() {
	l.stopOnce.Do(func() {
		close(l.quit)
		l.startOnce.Do(func() { close(l.done) })
	})
	<-l.done
}

func (l *Looper) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.quit:
			return
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Looper) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// Post queues fn. It returns false when the looper has stopped.
func (l *Looper) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Handle is a pending delayed task.
type Handle struct {
	cancelled atomic.Bool
	timer     Timer
}

// Cancel prevents the task from running. When called on the loop it is
// exact: a timer that already fired but whose task has not yet run is
// skipped as well. Cancel on a nil Handle is a no-op.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.cancelled.Store(true)
	if h.timer != nil {
		h.timer.Stop()
	}
}

// PostDelayed queues fn on the loop after d.
func (l *Looper) PostDelayed(d time.Duration, fn func()) *Handle {
	h := &Handle{}
	h.timer = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if h.cancelled.Load() {
				return
			}
			fn()
		})
	})
	return h
}

// Call runs fn on the loop and waits for its result. It must never be
// called from the loop itself.
func (l *Looper) Call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	posted := l.Post(func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("ui thread task panicked: %v", r)
			}
		}()
		result <- fn()
	})
	if !posted {
		return ErrStopped
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrStopped
	}
}

// Sync waits until every task posted before it has run.
func (l *Looper) Sync(ctx context.Context) error {
	return l.Call(ctx, func() error { return nil })
}
