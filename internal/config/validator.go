package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/biobot-lab/biobot/internal/idgen"
	"github.com/biobot-lab/biobot/internal/registry"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "ids.max_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidRegistryBackends returns the registry backends usable across processes
func ValidRegistryBackends() []string {
	return registry.ValidBackends()
}

// ValidMailboxBackends returns the mailbox backends usable across processes
func ValidMailboxBackends() []string {
	return []string{"file", "afs"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Root) == "" {
		errors = append(errors, ValidationError{Field: "root", Value: c.Root, Message: "must not be empty"})
	}
	errors = append(errors, c.validateRegistry()...)
	errors = append(errors, c.validateMailbox()...)
	errors = append(errors, c.validateIDs()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)
	errors = append(errors, c.validateWait()...)

	return errors
}

func oneOf(field, value string, valid []string) []ValidationError {
	if slices.Contains(valid, value) {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(valid, ", ")),
	}}
}

// validateRegistry validates the RegistryConfig
func (c *Config) validateRegistry() []ValidationError {
	errors := oneOf("registry.backend", c.Registry.Backend, ValidRegistryBackends())
	switch c.Registry.Backend {
	case "file":
		if c.Registry.File == "" {
			errors = append(errors, ValidationError{Field: "registry.file", Value: c.Registry.File, Message: "required for the file backend"})
		}
	case "sqlite":
		if c.Registry.SQLiteFile == "" {
			errors = append(errors, ValidationError{Field: "registry.sqlite_file", Value: c.Registry.SQLiteFile, Message: "required for the sqlite backend"})
		}
	}
	return errors
}

// validateMailbox validates the MailboxConfig
func (c *Config) validateMailbox() []ValidationError {
	errors := oneOf("mailbox.backend", c.Mailbox.Backend, ValidMailboxBackends())
	switch c.Mailbox.Backend {
	case "file":
		if c.Mailbox.Dir == "" {
			errors = append(errors, ValidationError{Field: "mailbox.dir", Value: c.Mailbox.Dir, Message: "required for the file backend"})
		}
	case "afs":
		if !strings.Contains(c.Mailbox.AFSURL, "://") {
			errors = append(errors, ValidationError{Field: "mailbox.afs_url", Value: c.Mailbox.AFSURL, Message: "must be a URL with a scheme, e.g. file:///srv/dropbox"})
		}
	}
	return errors
}

// validateIDs validates the IDsConfig
func (c *Config) validateIDs() []ValidationError {
	errors := oneOf("ids.collision_policy", c.IDs.CollisionPolicy, idgen.ValidPolicies())

	const maxAttempts = 1000
	if c.IDs.MaxAttempts < 1 || c.IDs.MaxAttempts > maxAttempts {
		errors = append(errors, ValidationError{
			Field:   "ids.max_attempts",
			Value:   c.IDs.MaxAttempts,
			Message: fmt.Sprintf("must be between 1 and %d", maxAttempts),
		})
	}
	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateMetrics validates the MetricsConfig
func (c *Config) validateMetrics() []ValidationError {
	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		return []ValidationError{{Field: "metrics.textfile", Value: c.Metrics.Textfile, Message: "required when metrics are enabled"}}
	}
	return nil
}

// validateWait validates the WaitConfig
func (c *Config) validateWait() []ValidationError {
	var errors []ValidationError
	if c.Wait.Timeout < 0 {
		errors = append(errors, ValidationError{Field: "wait.timeout", Value: c.Wait.Timeout, Message: "must be non-negative"})
	}
	if c.Wait.PollInterval < 10*time.Millisecond {
		errors = append(errors, ValidationError{Field: "wait.poll_interval", Value: c.Wait.PollInterval, Message: "must be at least 10ms"})
	}
	return errors
}
