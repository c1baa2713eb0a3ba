package stability

import (
	"context"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/uithread"
)

// Waiter is a Scheduler whose captures are delivered on a channel, for
// callers that block until the screen settles instead of reacting to a
// callback.
type Waiter struct {
	*Scheduler
	ch chan Capture
}

// NewWaiter creates a Waiter whose timers run on looper.
func NewWaiter(looper *uithread.Looper, timing Timing, logger *zap.Logger) *Waiter {
	w := &Waiter{ch: make(chan Capture, 1)}
	w.Scheduler = New(looper, timing, w.deliver, logger)
	return w
}

// deliver runs on the loop and never blocks. A capture nobody collected
// is replaced by the newer one.
func (w *Waiter) deliver(c Capture) {
	select {
	case <-w.ch:
	default:
	}
	w.ch <- c
}

func (w *Waiter) drain() {
	select {
	case <-w.ch:
	default:
	}
}

// ArmForInstruction drops any uncollected capture and starts a first-load
// cycle.
func (w *Waiter) ArmForInstruction() {
	w.looper.Post(w.drain)
	w.Scheduler.ArmForInstruction()
}

// ArmForAction drops any uncollected capture and starts an action cycle.
func (w *Waiter) ArmForAction(action string) {
	w.looper.Post(w.drain)
	w.Scheduler.ArmForAction(action)
}

// Wait blocks until the armed cycle produces a capture or ctx is done.
// The capture is acknowledged before it is returned.
func (w *Waiter) Wait(ctx context.Context) (Capture, error) {
	select {
	case c := <-w.ch:
		w.CaptureCompleted(c.Cycle)
		return c, nil
	case <-ctx.Done():
		w.Reset()
		return Capture{}, ctx.Err()
	}
}
