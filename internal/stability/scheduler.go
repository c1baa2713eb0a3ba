// Package stability decides when the screen has settled after an
// instruction or an action, turning a burst of layout-change notifications
// into a single capture.
package stability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/uithread"
)

// ErrActionTimeout is reported when an action produced no layout change
// within the ceiling delay.
var ErrActionTimeout = errors.New("no layout change observed after action")

// Default delays.
const (
	DefaultFirstLoadDelay = 2 * time.Second
	DefaultSettleDelay    = 5 * time.Second
	DefaultCeilingDelay   = 10 * time.Second
)

// Timing holds the scheduler's delays.
type Timing struct {
	FirstLoad time.Duration
	Settle    time.Duration
	Ceiling   time.Duration
}

// DefaultTiming returns the default delays.
func DefaultTiming() Timing {
	return Timing{
		FirstLoad: DefaultFirstLoadDelay,
		Settle:    DefaultSettleDelay,
		Ceiling:   DefaultCeilingDelay,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.FirstLoad <= 0 {
		t.FirstLoad = d.FirstLoad
	}
	if t.Settle <= 0 {
		t.Settle = d.Settle
	}
	if t.Ceiling <= 0 {
		t.Ceiling = d.Ceiling
	}
	return t
}

// Reason says which timer triggered a capture.
type Reason string

const (
	ReasonFirstLoad     Reason = "first-load"
	ReasonSettled       Reason = "settled"
	ReasonCeiling       Reason = "ceiling"
	ReasonActionTimeout Reason = "action-timeout"
)

// Capture is handed to the capture callback.
type Capture struct {
	Reason Reason
	// Cycle identifies the arm that produced the capture.
	Cycle uint64
	// Action and Err are set for ReasonActionTimeout.
	Action string
	Err    error
}

// CaptureFunc runs on the UI thread. It must not block; long work such as
// taking a snapshot belongs on another goroutine.
type CaptureFunc func(Capture)

// State is a copy of the scheduler flags.
type State struct {
	Armed      bool
	UpdateOwed bool
	FirstLoad  bool

	SettlePending  bool
	CeilingPending bool
	FailurePending bool
}

// Scheduler is the stability state machine for one foreground screen
// session. Every field below the logger is owned by the looper goroutine.
type Scheduler struct {
	looper  *uithread.Looper
	timing  Timing
	capture CaptureFunc
	logger  *zap.Logger

	armed      bool
	updateOwed bool
	firstLoad  bool
	action     string
	cycle      uint64

	settle  *uithread.Handle
	ceiling *uithread.Handle
	failure *uithread.Handle
}

// New creates a Scheduler whose timers run on looper.
func New(looper *uithread.Looper, timing Timing, capture CaptureFunc, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		looper:  looper,
		timing:  timing.withDefaults(),
		capture: capture,
		logger:  logger.Named("stability"),
	}
}

// Timing returns the delays in effect.
func (s *Scheduler) Timing() Timing { return s.timing }

// ArmForInstruction starts the first-load cycle that follows an
// instruction: only the single first-load delay applies.
func (s *Scheduler) ArmForInstruction() {
	s.looper.Post(func() {
		s.cancelAll()
		s.cycle++
		s.armed, s.updateOwed, s.firstLoad = true, true, true
		s.action = ""
		s.logger.Debug("armed for instruction")
		s.evaluate()
	})
}

// ArmForAction starts a cycle after action was executed. If no layout
// change follows within the ceiling delay, the cycle ends with
// ErrActionTimeout.
func (s *Scheduler) ArmForAction(action string) {
	s.looper.Post(func() {
		s.cancelAll()
		s.cycle++
		s.armed, s.updateOwed, s.firstLoad = true, true, false
		s.action = action
		s.logger.Debug("armed for action", zap.String("action", action))
		s.failure = s.looper.PostDelayed(s.timing.Ceiling, s.onActionTimeout)
	})
}

// Notify records a layout change.
func (s *Scheduler) Notify(reason string) {
	s.looper.Post(func() {
		if !s.armed {
			return
		}
		s.logger.Debug("layout changed", zap.String("reason", reason))
		s.evaluate()
	})
}

// Disarm tears the cycle down until the next arm, for example while an
// action menu is shown: timers are cancelled, flags cleared, and a capture
// already emitted for the old cycle is no longer acknowledged.
func (s *Scheduler) Disarm() {
	s.looper.Post(func() {
		s.cancelAll()
		s.cycle++
		s.armed, s.updateOwed, s.firstLoad = false, false, false
		s.action = ""
		s.logger.Debug("disarmed")
	})
}

// CaptureCompleted clears the flags once the capture of cycle was sent.
// It is ignored when a newer arm or a reset has happened since.
func (s *Scheduler) CaptureCompleted(cycle uint64) {
	s.looper.Post(func() {
		if cycle != s.cycle {
			return
		}
		s.armed, s.updateOwed, s.firstLoad = false, false, false
	})
}

// Reset cancels every timer and clears the flags.
func (s *Scheduler) Reset() {
	s.looper.Post(func() {
		s.cancelAll()
		s.cycle++
		s.armed, s.updateOwed, s.firstLoad = false, false, false
		s.action = ""
	})
}

// State reads the flags on the UI thread.
func (s *Scheduler) State(ctx context.Context) (State, error) {
	var st State
	err := s.looper.Call(ctx, func() error {
		st = State{
			Armed:          s.armed,
			UpdateOwed:     s.updateOwed,
			FirstLoad:      s.firstLoad,
			SettlePending:  s.settle != nil,
			CeilingPending: s.ceiling != nil,
			FailurePending: s.failure != nil,
		}
		return nil
	})
	return st, err
}

// evaluate runs on the loop for every arm and every layout change.
func (s *Scheduler) evaluate() {
	if s.updateOwed {
		s.updateOwed = false
		if s.firstLoad {
			s.ceiling = s.looper.PostDelayed(s.timing.FirstLoad, func() { s.fire(ReasonFirstLoad) })
			return
		}
		s.failure.Cancel()
		s.failure = nil
		s.ceiling = s.looper.PostDelayed(s.timing.Ceiling, func() { s.fire(ReasonCeiling) })
	}
	if !s.firstLoad {
		s.settle.Cancel()
		s.settle = s.looper.PostDelayed(s.timing.Settle, func() { s.fire(ReasonSettled) })
	}
}

func (s *Scheduler) fire(reason Reason) {
	s.cancelAll()
	s.updateOwed = false
	if !s.firstLoad {
		s.armed = false
	}
	s.logger.Debug("screen stable", zap.String("reason", string(reason)))
	s.emit(Capture{Reason: reason, Cycle: s.cycle})
}

func (s *Scheduler) onActionTimeout() {
	action := s.action
	s.cancelAll()
	s.armed, s.updateOwed = false, false
	s.logger.Warn("action timed out", zap.String("action", action), zap.Duration("after", s.timing.Ceiling))
	s.emit(Capture{
		Reason: ReasonActionTimeout,
		Cycle:  s.cycle,
		Action: action,
		Err:    fmt.Errorf("%s: %w", action, ErrActionTimeout),
	})
}

func (s *Scheduler) emit(c Capture) {
	if s.capture != nil {
		s.capture(c)
	}
}

func (s *Scheduler) cancelAll() {
	s.settle.Cancel()
	s.ceiling.Cancel()
	s.failure.Cancel()
	s.settle, s.ceiling, s.failure = nil, nil, nil
}
