// Command biobot coordinates observation and intervention rounds between
// the two sides of a biobot experiment.
package main

import (
	"os"

	"github.com/biobot-lab/biobot/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		cmd.PrintError(os.Stderr, err)
		os.Exit(cmd.ExitCode(err))
	}
}
