package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/session"
)

var actCmd = &cobra.Command{
	Use:   "act <action> [index]",
	Short: "Perform one action on a node of a fresh snapshot",
	Long: `Take a fresh snapshot, then perform an action on the node with the given index.

Actions: click, input, scroll, long-click, go-back, go-home.
go-back and go-home take no index. A node can also be picked by text with
--find instead of an index.

Examples:
  uibridge act click 4
  uibridge act input 7 --text "hello@example.com"
  uibridge act scroll 2 --direction down
  uibridge act click --find "Sign in" --wait
  uibridge act go-back`,
	Args:        cobra.RangeArgs(1, 2),
	Annotations: needsDevice,
	RunE:        runAct,
}

func init() {
	rootCmd.AddCommand(actCmd)
	actCmd.Flags().String("text", "", "Text to enter (input)")
	actCmd.Flags().String("direction", "", "Scroll direction: up, down, left, right")
	actCmd.Flags().String("find", "", "Pick the node by text instead of index")
	actCmd.Flags().Bool("wait", false, "Wait for the screen to settle and report the new snapshot's generation")
}

func runAct(cmd *cobra.Command, args []string) error {
	text, _ := cmd.Flags().GetString("text")
	direction, _ := cmd.Flags().GetString("direction")
	find, _ := cmd.Flags().GetString("find")
	wait, _ := cmd.Flags().GetBool("wait")
	ctx := cmd.Context()

	snap, err := dev.disp.Snapshot(ctx)
	if err != nil {
		return err
	}

	params := map[string]interface{}{"generation": snap.Generation()}
	switch {
	case len(args) == 2:
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("index must be an integer, got %q", args[1])
		}
		params["index"] = index
	case find != "":
		index, err := resolveText(snap.Root, find)
		if err != nil {
			return err
		}
		params["index"] = index
	}
	if cmd.Flags().Changed("text") {
		params["input_text"] = text
	}
	if direction != "" {
		params["direction"] = direction
	}

	result := output.ActResult{Action: args[0]}
	req, err := dispatch.ParseRequest(args[0], params)
	if err == nil {
		result.Action = string(req.Action)
		result.Index = req.Index
		err = runRequest(cmd, req, wait, &result)
	}
	if err != nil {
		result.Error = err.Error()
		result.Kind = string(session.Classify(err))
		output.Print(result)
		return err
	}
	result.OK = true
	return output.Print(result)
}

// runRequest executes req and, when wait is set, records the generation
// of the snapshot taken once the screen settled.
func runRequest(cmd *cobra.Command, req dispatch.Request, wait bool, result *output.ActResult) error {
	ctx := cmd.Context()
	if !wait {
		_, err := dev.act(ctx, nil, req)
		return err
	}
	w := dev.newWaiter()
	stop := dev.watch(ctx, w.Notify)
	defer stop()

	c, err := dev.act(ctx, w, req)
	if err != nil {
		return err
	}
	snap, err := dev.disp.Snapshot(ctx)
	if err != nil {
		return err
	}
	result.Generation = snap.Generation()
	return c.Err
}
