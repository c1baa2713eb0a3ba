package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/config"
	"github.com/mj1618/uibridge/internal/observability"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/version"
)

// needsDevice marks commands that talk to a device; the root pre-run
// connects before they run.
var needsDevice = map[string]string{"device": "true"}

var (
	cfg    *config.Config
	logger *zap.Logger
	dev    *bridge
)

var rootCmd = &cobra.Command{
	Use:   "uibridge",
	Short: "Snapshot and drive on-device UIs across native and web engines",
	Long: `uibridge captures whatever an Android device is showing, native widgets and
embedded WebViews alike, as one indexed element tree. It executes actions
against those indices and reports when the screen has settled.`,
	SilenceUsage: true,
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if dev != nil {
		// PersistentPostRunE is skipped when a command fails.
		dev.close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./uibridge.yaml or $HOME/.config/uibridge/uibridge.yaml)")
	rootCmd.PersistentFlags().String("format", "yaml", "Output format: yaml, json, xml (snapshot only)")
	rootCmd.PersistentFlags().Bool("pretty", false, "Indent JSON output")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override: debug, info, warn, error")
	rootCmd.PersistentFlags().String("serial", "", "Device serial (default: the only attached device)")
	rootCmd.PersistentPreRunE = preRun
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if dev != nil {
			dev.close()
			dev = nil
		}
		observability.Sync()
		return nil
	}
}

func preRun(cmd *cobra.Command, args []string) error {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	if level, _ := rootCmd.PersistentFlags().GetString("log-level"); level != "" {
		loaded.Logger.Level = level
		if err := loaded.Validate(); err != nil {
			return err
		}
	}
	if serial, _ := rootCmd.PersistentFlags().GetString("serial"); serial != "" {
		loaded.Device.Serial = serial
	}
	cfg = loaded

	observability.InitializeLogger(cfg.Logger)
	logger = observability.GetLogger()

	format, _ := rootCmd.PersistentFlags().GetString("format")
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	output.OutputFormat = f
	if pretty, _ := rootCmd.PersistentFlags().GetBool("pretty"); pretty {
		output.PrettyOutput = true
	}

	if cmd.Annotations["device"] != "true" {
		return nil
	}
	dev, err = openBridge(cfg, logger)
	return err
}
