package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/web"
	"github.com/mj1618/uibridge/internal/web/jsdom"
)

var probeCmd = &cobra.Command{
	Use:   "probe <dom.json>",
	Short: "Run the web probe against a DOM fixture",
	Long: `Load a DOM fixture into an offline script runtime, inject the web probe and
print the tree it extracts, exactly as snapshot would for an embedded web
surface. No device is needed.

Examples:
  uibridge probe signup.json
  uibridge probe signup.json --width 1080 --height 2400 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().Int("width", 360, "Width of the surface in dp")
	probeCmd.Flags().Int("height", 640, "Height of the surface in dp")
}

func runProbe(cmd *cobra.Command, args []string) error {
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")

	surface, err := jsdom.Load(args[0], "probe", model.Rect{Right: width, Bottom: height})
	if err != nil {
		return err
	}
	ext := web.NewExtractor(web.Options{ProbeTimeout: cfg.Web.ProbeTimeout, CSSPxPerDp: cfg.Web.CSSPxPerDp}, logger)
	return output.Print(probeSurface(cmd.Context(), ext, surface))
}

func probeSurface(ctx context.Context, ext *web.Extractor, surface platform.WebSurface) output.SnapshotResult {
	root := ext.Extract(ctx, surface)
	model.TagTree(root, model.PageWebView, model.SourceWeb)
	model.AssignIndices(root)
	nodes := model.BuildNodeMap(root)
	return output.SnapshotResult{
		Generation: nodes.Generation(),
		Kind:       platform.PageEmbeddedWeb.String(),
		TS:         time.Now().UnixMilli(),
		Nodes:      nodes.Len(),
		Root:       root,
	}
}
