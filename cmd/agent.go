package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/session"
	"github.com/mj1618/uibridge/internal/transport"
)

var agentCmd = &cobra.Command{
	Use:   "agent [instruction]",
	Short: "Stream screens to a remote controller and execute its actions",
	Long: `Connect to the controller at controller.address and run a screen session:
every time the screen settles its hierarchy is sent, and every action line the
controller replies with is executed against the last snapshot. Failures are
reported back as structured error reports.

An instruction given as an argument is sent on every (re)connect and starts
the first capture. Without one the agent waits for the controller.

Examples:
  uibridge agent "Sign in with the demo account"
  uibridge agent --exit-on-finish "Turn on dark mode"`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: needsDevice,
	RunE:        runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.Flags().Bool("exit-on-finish", false, "Exit once the controller reports the task finished")
}

func runAgent(cmd *cobra.Command, args []string) error {
	exitOnFinish, _ := cmd.Flags().GetBool("exit-on-finish")
	var instruction string
	if len(args) == 1 {
		instruction = args[0]
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client := transport.NewClient(transport.Options{
		Address:           cfg.Controller.Address,
		DialTimeout:       cfg.Controller.DialTimeout,
		ReconnectInterval: cfg.Controller.ReconnectInterval,
	}, logger)
	defer client.Close()

	opts := session.Options{Timing: dev.timing()}
	if exitOnFinish {
		opts.OnFinished = cancel
	}
	sess := session.New(dev.looper, dev.disp, client, opts, logger)
	defer sess.Close()

	stop := dev.watch(ctx, sess.OnLayoutChanged)
	defer stop()

	onConnect := func(ctx context.Context) error {
		if instruction == "" {
			return nil
		}
		return sess.HandleInstruction(ctx, instruction)
	}
	handle := func(msg transport.Message) {
		if err := sess.HandleMessage(ctx, msg); err != nil {
			logger.Warn("controller message failed",
				zap.String("kind", msg.Kind.String()),
				zap.String("payload", msg.Payload),
				zap.Error(err))
		}
	}

	logger.Info("agent starting", zap.String("controller", cfg.Controller.Address))
	err := client.Run(ctx, onConnect, handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
