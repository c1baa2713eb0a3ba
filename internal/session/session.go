// Package session runs the foreground screen session for one controller:
// it forwards instructions, executes the controller's actions and sends a
// fresh screen each time the stability scheduler reports the screen settled.
package session

import (
	"context"
	"sync"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/stability"
	"github.com/mj1618/uibridge/internal/transport"
	"github.com/mj1618/uibridge/internal/uithread"
)

// Transport sends frames to the controller.
type Transport interface {
	SendInstruction(ctx context.Context, text string) error
	SendScreen(ctx context.Context, xml []byte) error
	SendError(ctx context.Context, report transport.ErrorReport) error
	RequestActions(ctx context.Context) error
}

// Options configures a Session.
type Options struct {
	Timing stability.Timing
	// OnFinished runs when the controller reports the task finished.
	OnFinished func()
}

// Session is the state of one foreground screen session.
type Session struct {
	disp       *dispatch.Dispatcher
	sched      *stability.Scheduler
	transport  Transport
	onFinished func()
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	instruction string
	action      string
	lastScreen  []byte
}

// New creates a Session. Close must be called to stop capture workers.
func New(looper *uithread.Looper, disp *dispatch.Dispatcher, t Transport, opts Options, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		disp:       disp,
		transport:  t,
		onFinished: opts.OnFinished,
		logger:     logger.Named("session"),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.sched = stability.New(looper, opts.Timing, s.onCapture, logger)
	return s
}

// Scheduler returns the session's stability scheduler.
func (s *Session) Scheduler() *stability.Scheduler { return s.sched }

// Instruction returns the instruction in effect.
func (s *Session) Instruction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instruction
}

// LastScreen returns the most recently sent hierarchy document.
func (s *Session) LastScreen() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScreen
}

// HandleInstruction starts a task: the instruction goes to the controller
// and the first screen follows once the first-load delay has passed.
func (s *Session) HandleInstruction(ctx context.Context, text string) error {
	s.mu.Lock()
	s.instruction = text
	s.action = ""
	s.mu.Unlock()

	if err := s.transport.SendInstruction(ctx, text); err != nil {
		return err
	}
	s.logger.Info("instruction sent", zap.String("instruction", text))
	s.sched.ArmForInstruction()
	return nil
}

// HandleMessage reacts to one controller message. Action failures are
// reported to the controller; only transport failures are returned.
func (s *Session) HandleMessage(ctx context.Context, msg transport.Message) error {
	switch msg.Kind {
	case transport.MessageAppSelected:
		s.logger.Debug("app selection acknowledged", zap.String("app", msg.Payload))
		return nil
	case transport.MessageSubtask:
		s.logger.Info("subtask", zap.String("subtask", msg.Payload))
		return nil
	case transport.MessageFinished:
		s.finish()
		return nil
	}

	name := gjson.Get(msg.Payload, "name").String()
	s.mu.Lock()
	s.action = name
	s.mu.Unlock()

	switch name {
	case "speak":
		s.logger.Info("controller says", zap.String("message", gjson.Get(msg.Payload, "parameters.message").String()))
		return nil
	case "ask":
		s.logger.Info("controller asks",
			zap.String("info", gjson.Get(msg.Payload, "parameters.info_name").String()),
			zap.String("question", gjson.Get(msg.Payload, "parameters.question").String()))
		return nil
	case "finish":
		s.finish()
		return nil
	}

	req, err := dispatch.ParseActionMessage(msg.Payload)
	if err != nil {
		return s.report(ctx, name, err)
	}
	s.sched.ArmForAction(string(req.Action))
	if err := s.disp.Act(ctx, req); err != nil {
		s.sched.Reset()
		return s.report(ctx, string(req.Action), err)
	}
	return nil
}

// OnLayoutChanged feeds a layout-change notification to the scheduler.
func (s *Session) OnLayoutChanged(reason string) {
	s.sched.Notify(reason)
}

// ShowActionMenu suspends captures while the action menu is up and asks
// the controller for the action list. The next instruction re-arms.
func (s *Session) ShowActionMenu(ctx context.Context) error {
	s.sched.Disarm()
	return s.transport.RequestActions(ctx)
}

// Close tears the session down and waits for capture workers.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.sched.Reset()
	s.cancel()
	s.wg.Wait()
}

func (s *Session) finish() {
	s.logger.Info("task finished")
	s.sched.Reset()
	s.mu.Lock()
	s.instruction, s.action, s.lastScreen = "", "", nil
	s.mu.Unlock()
	if s.onFinished != nil {
		s.onFinished()
	}
}

// onCapture runs on the UI thread; the capture itself runs on a worker.
func (s *Session) onCapture(c stability.Capture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.capture(c)
	}()
}

func (s *Session) capture(c stability.Capture) {
	ctx := s.ctx
	if c.Err != nil {
		if err := s.report(ctx, c.Action, c.Err); err != nil {
			s.logger.Warn("send action timeout report", zap.Error(err))
		}
	}
	snap, err := s.disp.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("capture failed", zap.String("reason", string(c.Reason)), zap.Error(err))
		return
	}
	if snap.Root.IsError() {
		s.logger.Warn("sending degraded screen", zap.String("error", snap.Root.Text))
	}
	xml, err := snap.XML()
	if err != nil {
		s.logger.Error("serialize screen", zap.Error(err))
		return
	}
	if err := s.transport.SendScreen(ctx, xml); err != nil {
		s.logger.Warn("send screen", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.lastScreen = xml
	s.mu.Unlock()
	s.sched.CaptureCompleted(c.Cycle)
	s.logger.Info("screen sent",
		zap.String("reason", string(c.Reason)),
		zap.Int("nodes", snap.Nodes.Len()),
		zap.String("generation", snap.Generation()))
}

// report sends a structured error carrying the last screen the controller
// saw and the instruction in effect.
func (s *Session) report(ctx context.Context, action string, err error) error {
	kind := Classify(err)
	s.mu.Lock()
	r := transport.ErrorReport{
		Type:           reportType(kind),
		Message:        err.Error(),
		Action:         action,
		Instruction:    s.instruction,
		PreviousScreen: s.lastScreen,
		Remark:         string(kind),
	}
	s.mu.Unlock()
	s.logger.Info("reporting action failure", zap.String("kind", string(kind)), zap.String("action", action), zap.Error(err))
	return s.transport.SendError(ctx, r)
}
