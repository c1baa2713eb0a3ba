package cmd

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/overlay"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture the current screen as one element tree",
	Long: `Classify the active screen, extract its native and web content and print the
merged tree. Every node carries the index that act and do refer to.

Use --format xml for the hierarchy document sent to controllers, and
--overlay to draw bounds and indices onto a PNG.

Examples:
  uibridge snapshot
  uibridge snapshot --format xml > screen.xml
  uibridge snapshot --overlay annotated.png --screenshot screen.png`,
	Annotations: needsDevice,
	RunE:        runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().String("overlay", "", "Write an annotated PNG to this path")
	snapshotCmd.Flags().String("screenshot", "", "Screenshot (PNG or JPEG) to draw the overlay on (default: blank canvas)")
	snapshotCmd.Flags().Bool("all", false, "Annotate every node, not only interactive ones")
	snapshotCmd.Flags().Bool("coords", false, "Label nodes with their center coordinates instead of indices")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	overlayPath, _ := cmd.Flags().GetString("overlay")
	screenshotPath, _ := cmd.Flags().GetString("screenshot")
	all, _ := cmd.Flags().GetBool("all")
	coords, _ := cmd.Flags().GetBool("coords")

	snap, err := dev.disp.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	if snap.Root.IsError() {
		logger.Warn("snapshot is an error node", zap.String("text", snap.Root.Text))
	}

	if overlayPath != "" {
		mode := overlay.LabelIndices
		if coords {
			mode = overlay.LabelCoords
		}
		opts := overlay.Options{Mode: mode, All: all, Density: dev.provider.Screen.Density()}
		if err := writeOverlay(overlayPath, screenshotPath, snap.Root, opts); err != nil {
			return err
		}
	}
	return output.Print(snapshotResult(snap))
}

func writeOverlay(path, background string, root *model.GenericElement, opts overlay.Options) error {
	var bg image.Image
	if background != "" {
		f, err := os.Open(background)
		if err != nil {
			return fmt.Errorf("open screenshot: %w", err)
		}
		defer f.Close()
		if bg, _, err = image.Decode(f); err != nil {
			return fmt.Errorf("decode screenshot: %w", err)
		}
	}
	img, err := overlay.Render(bg, root, opts)
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create overlay: %w", err)
	}
	if err := overlay.WritePNG(out, img); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
