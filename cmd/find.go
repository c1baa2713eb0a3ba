package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/output"
)

var findCmd = &cobra.Command{
	Use:         "find",
	Short:       "Search the current screen for nodes by text",
	Long:        "Take a snapshot and list the nodes whose text, content description or resource id contains the given text (case-insensitive), with the indices act accepts.",
	Annotations: needsDevice,
	RunE:        runFind,
}

func init() {
	rootCmd.AddCommand(findCmd)
	findCmd.Flags().String("text", "", "Text to search for (case-insensitive substring match on text/description/id)")
	findCmd.Flags().Bool("clickable", false, "Only list nodes that accept a click")
	findCmd.Flags().Int("limit", 0, "Max matching nodes to return (0 = unlimited)")
}

func runFind(cmd *cobra.Command, args []string) error {
	text, _ := cmd.Flags().GetString("text")
	clickable, _ := cmd.Flags().GetBool("clickable")
	limit, _ := cmd.Flags().GetInt("limit")
	if text == "" {
		return fmt.Errorf("--text is required")
	}

	snap, err := dev.disp.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	return output.Print(findNodes(snap.Root, snap.Generation(), text, clickable, limit))
}

func findNodes(root *model.GenericElement, generation, text string, clickable bool, limit int) output.FindResult {
	elements := model.FilterByText(root, text)
	if clickable {
		elements = model.FilterClickable(elements)
	}
	if limit > 0 && len(elements) > limit {
		elements = elements[:limit]
	}
	if elements == nil {
		elements = []model.FlatElement{}
	}
	return output.FindResult{Generation: generation, Text: text, Elements: elements}
}
