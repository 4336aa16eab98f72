package cmd

import (
	"encoding/json"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/biobot-lab/biobot/internal/errors"
)

// Output formats accepted by -o.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validFormats() []string {
	return []string{formatText, formatJSON, formatYAML}
}

func addOutputFlag(c *cobra.Command) {
	c.Flags().StringP("output", "o", formatText, "output format: "+strings.Join(validFormats(), ", "))
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	if !slices.Contains(validFormats(), format) {
		return "", errors.NewValidationError("must be one of: " + strings.Join(validFormats(), ", ")).
			WithField("output").WithValue(format)
	}
	return format, nil
}

// encode writes v as JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// joinInts renders iterations as "0, 1, 2", or "none".
func joinInts(ns []int) string {
	if len(ns) == 0 {
		return "none"
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
