package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/stability"
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for the screen to settle",
	Long: `Block until the device reports a quiet screen, then print the reason and the
generation of a fresh snapshot.

Without --first-load the wait behaves as if an action had just been made: it
ends after the settle delay following the last layout change, or at the
ceiling on a screen that keeps changing. With --first-load it ends after the
first-load delay, which is what a newly opened screen needs.`,
	Annotations: needsDevice,
	RunE:        runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().Bool("first-load", false, "Wait as for a newly opened screen")
	waitCmd.Flags().Int("timeout", 30, "Max seconds to wait (default: 30)")
}

func runWait(cmd *cobra.Command, args []string) error {
	firstLoad, _ := cmd.Flags().GetBool("first-load")
	timeoutSec, _ := cmd.Flags().GetInt("timeout")
	ctx := cmd.Context()

	w := dev.newWaiter()
	stop := dev.watch(ctx, w.Notify)
	defer stop()

	start := time.Now()
	if firstLoad {
		w.ArmForInstruction()
	} else {
		w.ArmForAction("wait")
	}
	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}
	c, err := settle(ctx, w)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	result := output.WaitResult{Reason: string(waitReason(c)), ElapsedMS: elapsed.Milliseconds()}
	snap, err := dev.disp.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	result.Generation = snap.Generation()
	return output.Print(result)
}

// waitReason reports an action timeout as settled. Nothing changed before
// the ceiling, which for a plain wait is a quiet screen, not a failure.
func waitReason(c stability.Capture) stability.Reason {
	if c.Reason == stability.ReasonActionTimeout {
		return stability.ReasonSettled
	}
	return c.Reason
}
