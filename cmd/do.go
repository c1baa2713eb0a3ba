package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/session"
	"github.com/mj1618/uibridge/internal/stability"
)

// DoResult is the output of a batch do command.
type DoResult struct {
	OK        bool         `yaml:"ok"              json:"ok"`
	Action    string       `yaml:"action"          json:"action"`
	Steps     int          `yaml:"steps"           json:"steps"`
	Completed int          `yaml:"completed"       json:"completed"`
	Error     string       `yaml:"error,omitempty" json:"error,omitempty"`
	Results   []StepResult `yaml:"results"         json:"results"`
}

// StepResult is the output for a single step within a batch.
type StepResult struct {
	Step       int    `yaml:"step"                 json:"step"`
	OK         bool   `yaml:"ok"                   json:"ok"`
	Action     string `yaml:"action"               json:"action"`
	Index      int    `yaml:"index,omitempty"      json:"index,omitempty"`
	Error      string `yaml:"error,omitempty"      json:"error,omitempty"`
	Kind       string `yaml:"kind,omitempty"       json:"kind,omitempty"`
	Settled    string `yaml:"settled,omitempty"    json:"settled,omitempty"`
	Generation string `yaml:"generation,omitempty" json:"generation,omitempty"`
	Elapsed    string `yaml:"elapsed,omitempty"    json:"elapsed,omitempty"`
}

var doCmd = &cobra.Command{
	Use:   "do",
	Short: "Execute multiple actions in a batch",
	Long: `Execute a sequence of actions from a YAML list on stdin (or --file).

Each step is an action name with its parameters as a map. Before every step
a fresh snapshot is taken, so a node can be picked by text with find instead
of an index. After every action the screen is given time to settle.
By default execution stops on the first error.

Supported step types: click, input, scroll, long-click, go-back, go-home,
snapshot, sleep

Example:
  uibridge do <<'EOF'
  - click: { find: "Email" }
  - input: { find: "Email", input_text: "john@example.com" }
  - scroll: { index: 2, direction: down }
  - click: { find: "Submit" }
  - sleep: { ms: 500 }
  - go-back: {}
  EOF`,
	Annotations: needsDevice,
	RunE:        runDo,
}

func init() {
	rootCmd.AddCommand(doCmd)
	doCmd.Flags().String("file", "", "Read steps from this file instead of stdin")
	doCmd.Flags().Bool("stop-on-error", true, "Stop execution on first error (default: true)")
	doCmd.Flags().Bool("wait", true, "Wait for the screen to settle after every action")
}

func runDo(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	stopOnError, _ := cmd.Flags().GetBool("stop-on-error")
	wait, _ := cmd.Flags().GetBool("wait")

	var data []byte
	var err error
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read steps: %w", err)
	}
	steps, err := parseSteps(data)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var w *stability.Waiter
	if wait {
		w = dev.newWaiter()
		stop := dev.watch(ctx, w.Notify)
		defer stop()
	}

	runner := &stepRunner{dev: dev, waiter: w, stopOnError: stopOnError}
	result := runner.run(ctx, steps)
	if err := output.Print(result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("%s", result.Error)
	}
	return nil
}

// step is one parsed entry of a do list.
type step struct {
	action string
	params map[string]interface{}
	err    error
}

// parseSteps decodes a YAML list of single-key maps. A malformed entry is
// kept as a failing step so numbering stays aligned with the input.
func parseSteps(data []byte) ([]step, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no steps provided: pipe a YAML list of actions")
	}
	var raw []map[string]map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML steps: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no steps provided: expected a YAML list of actions")
	}
	steps := make([]step, 0, len(raw))
	for i, entry := range raw {
		if len(entry) != 1 {
			steps = append(steps, step{err: fmt.Errorf("step %d: expected exactly one action key, got %d", i+1, len(entry))})
			continue
		}
		for action, params := range entry {
			if params == nil {
				params = map[string]interface{}{}
			}
			steps = append(steps, step{action: action, params: params})
		}
	}
	return steps, nil
}

// actor is the part of a bridge a stepRunner drives.
type actor interface {
	snapshot(ctx context.Context) (*dispatch.Snapshot, error)
	act(ctx context.Context, w *stability.Waiter, req dispatch.Request) (stability.Capture, error)
}

func (b *bridge) snapshot(ctx context.Context) (*dispatch.Snapshot, error) {
	return b.disp.Snapshot(ctx)
}

type stepRunner struct {
	dev         actor
	waiter      *stability.Waiter
	stopOnError bool
	sleep       func(time.Duration)
}

func (r *stepRunner) run(ctx context.Context, steps []step) DoResult {
	result := DoResult{OK: true, Action: "do", Steps: len(steps), Results: []StepResult{}}
	for i, s := range steps {
		start := time.Now()
		sr := r.runStep(ctx, s)
		sr.Step = i + 1
		sr.Elapsed = fmt.Sprintf("%dms", time.Since(start).Milliseconds())
		result.Results = append(result.Results, sr)
		if sr.OK {
			result.Completed++
			continue
		}
		result.OK = false
		if result.Error == "" {
			result.Error = fmt.Sprintf("step %d: %s", sr.Step, sr.Error)
		}
		if r.stopOnError {
			break
		}
	}
	return result
}

func (r *stepRunner) runStep(ctx context.Context, s step) StepResult {
	sr := StepResult{Action: s.action}
	fail := func(err error) StepResult {
		sr.OK = false
		sr.Error = err.Error()
		sr.Kind = string(session.Classify(err))
		return sr
	}
	if s.err != nil {
		sr.Error = s.err.Error()
		return sr
	}

	switch s.action {
	case "sleep":
		ms := intParam(s.params, "ms", 0)
		if ms <= 0 {
			return fail(fmt.Errorf("ms must be > 0"))
		}
		r.doSleep(ctx, time.Duration(ms)*time.Millisecond)
		sr.OK = true
		return sr
	case "snapshot":
		snap, err := r.dev.snapshot(ctx)
		if err != nil {
			return fail(err)
		}
		sr.OK = true
		sr.Generation = snap.Generation()
		return sr
	}

	snap, err := r.dev.snapshot(ctx)
	if err != nil {
		return fail(err)
	}
	params := make(map[string]interface{}, len(s.params)+1)
	for k, v := range s.params {
		if k != "find" {
			params[k] = v
		}
	}
	if text := stringParam(s.params, "find", ""); text != "" {
		index, err := resolveText(snap.Root, text)
		if err != nil {
			return fail(fmt.Errorf("%w: %v", dispatch.ErrTargetNotFound, err))
		}
		params["index"] = index
	}
	params["generation"] = snap.Generation()

	req, err := dispatch.ParseRequest(s.action, params)
	if err != nil {
		return fail(err)
	}
	sr.Action = string(req.Action)
	sr.Index = req.Index

	c, err := r.dev.act(ctx, r.waiter, req)
	if err != nil {
		return fail(err)
	}
	sr.Settled = string(c.Reason)
	if c.Err != nil {
		return fail(c.Err)
	}
	sr.OK = true
	return sr
}

func (r *stepRunner) doSleep(ctx context.Context, d time.Duration) {
	if r.sleep != nil {
		r.sleep(d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
