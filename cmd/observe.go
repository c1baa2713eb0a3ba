package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/stability"
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Watch for UI changes and stream diffs as JSONL",
	Long: `Take a snapshot every time the screen settles after a layout change and emit
the differences to the previous snapshot (added, removed, changed nodes) as
JSONL to stdout.

Each line is a JSON object representing one change event. No output is emitted
while the screen is quiet. Output is always JSONL regardless of --format.

Use Ctrl+C or --duration to stop observing.`,
	Annotations: needsDevice,
	RunE:        runObserve,
}

func init() {
	rootCmd.AddCommand(observeCmd)
	observeCmd.Flags().Int("duration", 0, "Max seconds to observe (0 = until Ctrl+C)")
	observeCmd.Flags().Bool("ignore-bounds", false, "Ignore node position changes")
}

func runObserve(cmd *cobra.Command, args []string) error {
	durationSec, _ := cmd.Flags().GetInt("duration")
	ignoreBounds, _ := cmd.Flags().GetBool("ignore-bounds")

	ctx := cmd.Context()
	if durationSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(durationSec)*time.Second)
		defer cancel()
	}

	w := dev.newWaiter()
	stop := dev.watch(ctx, w.Notify)
	defer stop()

	o := &observer{snapshot: dev.snapshot, out: os.Stdout, ignoreBounds: ignoreBounds}
	return o.run(ctx, w)
}

// observer streams snapshot diffs. snapshot is swapped out in tests.
type observer struct {
	snapshot     func(ctx context.Context) (*dispatch.Snapshot, error)
	out          io.Writer
	ignoreBounds bool
}

func (o *observer) run(ctx context.Context, w *stability.Waiter) error {
	enc := json.NewEncoder(o.out)
	enc.SetEscapeHTML(false)
	start := time.Now()

	// Initial snapshot to establish baseline
	snap, err := o.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("initial snapshot failed: %w", err)
	}
	prevFlat := model.Flatten(snap.Root)
	enc.Encode(map[string]interface{}{
		"type":       "snapshot",
		"ts":         time.Now().Unix(),
		"count":      len(prevFlat),
		"generation": snap.Generation(),
	})

	eventCount := 0
	for {
		w.ArmForAction("observe")
		c, err := w.Wait(ctx)
		if err != nil {
			break
		}
		if c.Reason == stability.ReasonActionTimeout {
			// Quiet for a whole ceiling: nothing to report.
			continue
		}

		snap, err := o.snapshot(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			enc.Encode(map[string]interface{}{
				"type":  "error",
				"ts":    time.Now().Unix(),
				"error": err.Error(),
			})
			continue
		}
		currFlat := model.Flatten(snap.Root)
		eventCount += o.emit(enc, model.DiffSnapshots(prevFlat, currFlat))
		prevFlat = currFlat
	}

	// Emit done event
	elapsed := time.Since(start)
	enc.Encode(map[string]interface{}{
		"type":    "done",
		"ts":      time.Now().Unix(),
		"events":  eventCount,
		"elapsed": fmt.Sprintf("%.1fs", elapsed.Seconds()),
	})
	return nil
}

func (o *observer) emit(enc *json.Encoder, changes []model.UIChange) int {
	n := 0
	for _, change := range changes {
		if change.Type == model.ChangeChanged {
			if o.ignoreBounds {
				delete(change.Changes, "b")
			}
			if len(change.Changes) == 0 {
				continue
			}
		}
		enc.Encode(change)
		n++
	}
	return n
}
