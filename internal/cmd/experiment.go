package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biobot-lab/biobot/internal/round"
)

var startExperimentCmd = &cobra.Command{
	Use:   "start-experiment",
	Short: "Register a new experiment and capture its first observation",
	Long: `Generate a timestamp identifier for a new biobot, append it to the
experiment registry and write observation 0 to the mailbox.

The identifier is derived from the current time. When it is already taken
the configured collision policy (ids.collision_policy) picks another one.`,
	Args: exactArgs(0),
	RunE: runStartExperiment,
}

var proposeInterventionCmd = &cobra.Command{
	Use:   "propose-intervention <experiment_index> <iteration>",
	Short: "Read an observation and propose the matching intervention",
	Long: `Resolve the experiment at <experiment_index>, read observation <iteration>
and write intervention <iteration>.`,
	Args: exactArgs(2),
	RunE: runProposeIntervention,
}

var captureObservationCmd = &cobra.Command{
	Use:   "capture-observation <experiment_index> <iteration>",
	Short: "Read an intervention and capture the next observation",
	Long: `Resolve the experiment at <experiment_index>, read intervention <iteration>
and write observation <iteration>+1.`,
	Args: exactArgs(2),
	RunE: runCaptureObservation,
}

func init() {
	for _, c := range []*cobra.Command{startExperimentCmd, proposeInterventionCmd, captureObservationCmd} {
		c.Flags().StringP("payload", "p", "", "JSON object file merged into the message (- for stdin)")
		rootCmd.AddCommand(c)
	}
}

func runStartExperiment(cmd *cobra.Command, args []string) error {
	payload, err := readPayload(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	var res round.Result
	err = a.run(cmd.Context(), cmd, "Registering biobot", func(ctx context.Context) (err error) {
		res, err = a.ctrl.StartExperiment(ctx, payload)
		return err
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Biobot %s registered as experiment %d\n", res.ID, res.Index)
	fmt.Fprintf(out, "Observation saved: %s%s\n", res.FileName, existedNote(res))
	return nil
}

func runProposeIntervention(cmd *cobra.Command, args []string) error {
	return runStep(cmd, args, "Proposing intervention",
		(*round.Controller).ProposeIntervention,
		func(res round.Result) string {
			return fmt.Sprintf("Intervention number %d for biobot %s proposed: %s", res.Iteration, res.ID, res.FileName)
		})
}

func runCaptureObservation(cmd *cobra.Command, args []string) error {
	return runStep(cmd, args, "Capturing observation",
		(*round.Controller).CaptureObservation,
		func(res round.Result) string {
			return fmt.Sprintf("Observation number %d for biobot %s captured: %s", res.Iteration, res.ID, res.FileName)
		})
}

type stepFunc func(c *round.Controller, ctx context.Context, index, iteration int, payload []byte) (round.Result, error)

func runStep(cmd *cobra.Command, args []string, label string, step stepFunc, confirm func(round.Result) string) error {
	index, err := parseIndex("experiment_index", args[0])
	if err != nil {
		return err
	}
	iteration, err := parseIndex("iteration", args[1])
	if err != nil {
		return err
	}
	payload, err := readPayload(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	var res round.Result
	err = a.run(cmd.Context(), cmd, label, func(ctx context.Context) (err error) {
		res, err = step(a.ctrl, ctx, index, iteration, payload)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), confirm(res)+existedNote(res))
	return nil
}

func existedNote(res round.Result) string {
	if res.Existed {
		return " (identical message already present)"
	}
	return ""
}
