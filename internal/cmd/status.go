package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biobot-lab/biobot/internal/round"
)

var statusCmd = &cobra.Command{
	Use:   "status <experiment_index>",
	Short: "Show the round state of an experiment",
	Long: `Derive the state of the experiment at <experiment_index> from the messages
in the mailbox and suggest the next step.`,
	Args: exactArgs(1),
	RunE: runStatus,
}

var experimentsCmd = &cobra.Command{
	Use:   "experiments",
	Short: "List registered experiments",
	Args:  exactArgs(0),
	RunE:  runExperiments,
}

func init() {
	addOutputFlag(statusCmd)
	addOutputFlag(experimentsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(experimentsCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	index, err := parseIndex("experiment_index", args[0])
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	st, err := a.ctrl.Inspect(cmd.Context(), index)
	if err != nil {
		return err
	}
	if format != formatText {
		return encode(cmd.OutOrStdout(), format, st)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Experiment %d: %s\n", st.Index, st.ID)
	fmt.Fprintf(out, "State: %s\n", st)
	fmt.Fprintf(out, "Observations: %s\n", joinInts(st.Observations))
	fmt.Fprintf(out, "Interventions: %s\n", joinInts(st.Interventions))
	if st.Next != "" {
		fmt.Fprintf(out, "Next: %s %s\n", rootCmd.Name(), st.Next)
	}
	for _, anomaly := range st.Anomalies {
		fmt.Fprintf(out, "Warning: %s\n", anomaly)
	}
	return nil
}

func runExperiments(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	list, err := a.ctrl.Experiments(cmd.Context())
	if err != nil {
		return err
	}
	if list == nil {
		list = []round.Status{}
	}
	if format != formatText {
		return encode(cmd.OutOrStdout(), format, list)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No experiments registered")
		return nil
	}
	fmt.Fprintf(out, "%-6s %-22s %s\n", "INDEX", "ID", "STATE")
	for _, st := range list {
		state := string(st.State)
		if st.State != round.StateStart {
			state = fmt.Sprintf("%s (iteration %d)", st.State, st.Iteration)
		}
		if len(st.Anomalies) > 0 {
			state += fmt.Sprintf(" [%d warnings]", len(st.Anomalies))
		}
		fmt.Fprintf(out, "%-6d %-22s %s\n", st.Index, st.ID, state)
	}
	return nil
}
