package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/biobot-lab/biobot/internal/errors"
)

// Exit codes by error kind.
const (
	ExitFailure          = 1
	ExitUsage            = 2
	ExitNotFound         = 3
	ExitMalformedMessage = 4
	ExitIdentityMismatch = 5
	ExitAddressConflict  = 6
	ExitRegistryCorrupt  = 7
)

// ExitCode maps err to the process exit status. nil maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch errors.Kind(err) {
	case errors.KindValidation:
		return ExitUsage
	case errors.KindNotFound:
		return ExitNotFound
	case errors.KindMalformedMessage:
		return ExitMalformedMessage
	case errors.KindIdentityMismatch:
		return ExitIdentityMismatch
	case errors.KindAddressConflict:
		return ExitAddressConflict
	case errors.KindRegistryCorrupt:
		return ExitRegistryCorrupt
	default:
		return ExitFailure
	}
}

// PrintError writes err as "Error [<kind>]: <message>", followed by a hint
// line for critical, retryable and unexpected failures.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "Error [%s]: %v\n", errors.Kind(err), err)
	if hint := errorHint(err); hint != "" {
		fmt.Fprintf(w, "  %s\n", hint)
	}
}

func errorHint(err error) string {
	switch {
	case errors.GetSeverity(err) == errors.SeverityCritical:
		return "CRITICAL: shared experiment data is inconsistent; inspect it before running further steps."
	case errors.IsRetryable(err):
		return "Retry once the missing experiment or message has been produced."
	case !errors.IsUserFacing(err):
		return "Unexpected failure; re-run with --log-level debug and check the debug log."
	}
	return ""
}

// exactArgs is cobra.ExactArgs reporting a validation error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return errors.NewValidationError(err.Error())
		}
		return nil
	}
}

func parseIndex(field, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.NewValidationError("must be a non-negative integer").WithField(field).WithValue(s)
	}
	return n, nil
}
