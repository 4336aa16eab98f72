package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/biobot-lab/biobot/internal/errors"
	"github.com/biobot-lab/biobot/internal/mailbox"
)

var waitCmd = &cobra.Command{
	Use:   "wait <observations|interventions> <experiment_index> <iteration>",
	Short: "Block until a message arrives in the mailbox",
	Long: `Wait until the message for <experiment_index> at <iteration> exists on the
given channel. The mailbox is watched for changes and polled every
wait.poll_interval.

Use --timeout 0 to wait without limit.`,
	Args: exactArgs(3),
	RunE: runWait,
}

func init() {
	waitCmd.Flags().Duration("timeout", 0, "maximum time to wait (default wait.timeout)")
	rootCmd.AddCommand(waitCmd)
}

func runWait(cmd *cobra.Command, args []string) error {
	ch, err := mailbox.ParseChannel(args[0])
	if err != nil {
		return errors.NewValidationError(err.Error()).WithField("channel").WithValue(args[0])
	}
	index, err := parseIndex("experiment_index", args[1])
	if err != nil {
		return err
	}
	iteration, err := parseIndex("iteration", args[2])
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	timeout := a.cfg.Wait.Timeout
	if cmd.Flags().Changed("timeout") {
		timeout, _ = cmd.Flags().GetDuration("timeout")
	}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var addr mailbox.Address
	label := fmt.Sprintf("Waiting for %s %d", ch, iteration)
	err = a.run(ctx, cmd, label, func(ctx context.Context) (err error) {
		addr, err = a.ctrl.Await(ctx, ch, index, iteration)
		return err
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewNotFoundError("message", fmt.Sprintf("%s %d", ch, iteration)).
			WithCause(fmt.Errorf("gave up after %s", timeout.Round(time.Millisecond)))
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Message available: %s/%s\n", addr.Channel, addr.FileName())
	return nil
}
