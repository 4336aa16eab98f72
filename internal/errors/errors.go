// Package errors provides the error taxonomy for the experiment round
// protocol. It defines sentinel errors, typed errors carrying the address or
// record they refer to, and classification helpers used at the CLI boundary.
//
// # Error Types
//
// Protocol errors describe a broken invariant of the shared directory tree:
//   - RegistryCorruptError: the registry record exists but cannot be parsed
//   - MalformedMessageError: a message file exists but has an invalid shape
//   - IdentityMismatchError: a message's ID disagrees with its address
//   - AddressConflictError: a write targets an address holding other content
//
// Semantic errors represent common conditions:
//   - NotFoundError: experiment index or message file absent
//   - AlreadyExistsError: identifier already registered
//   - ValidationError: invalid input
//
// # Usage
//
//	err := errors.NewNotFoundError("message", "observations/20240101120000_5.json")
//
//	if errors.Is(err, errors.ErrNotFound) { ... }
//
//	var mismatch *errors.IdentityMismatchError
//	if errors.As(err, &mismatch) { ... }
//
//	fmt.Println(errors.Kind(err)) // "not_found"
//
// # Error Classification
//
// Errors carry a severity and retryable/user-facing flags. NotFoundError is
// retryable by an operator once the missing artifact is produced; corruption
// and identity mismatches are never retried automatically.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrRegistryCorrupt indicates that the registry record cannot be parsed.
	ErrRegistryCorrupt = New("registry record corrupted")
	// ErrNotFound indicates that an experiment or message does not exist.
	ErrNotFound = New("not found")
	// ErrMalformedMessage indicates that a message file has an invalid shape.
	ErrMalformedMessage = New("malformed message")
	// ErrIdentityMismatch indicates that a message ID disagrees with its address.
	ErrIdentityMismatch = New("identity mismatch")
	// ErrAddressConflict indicates that an address already holds other content.
	ErrAddressConflict = New("address conflict")
	// ErrAlreadyExists indicates that an identifier is already registered.
	ErrAlreadyExists = New("already exists")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// Kind names used in CLI output, log fields and metric labels.
const (
	KindRegistryCorrupt  = "registry_corrupt"
	KindNotFound         = "not_found"
	KindMalformedMessage = "malformed_message"
	KindIdentityMismatch = "identity_mismatch"
	KindAddressConflict  = "address_conflict"
	KindAlreadyExists    = "already_exists"
	KindValidation       = "validation"
	KindInternal         = "internal"
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// BiobotError is the base interface for all typed errors in this module.
type BiobotError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Kind returns the stable kind name of this error.
	Kind() string

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed when retried
	// after an operator action.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

type baseError struct {
	message    string
	cause      error
	sentinel   error
	kind       string
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is matches the kind sentinel first, then the cause chain.
func (e *baseError) Is(target error) bool {
	if e.sentinel != nil && target == e.sentinel {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Kind returns the stable kind name.
func (e *baseError) Kind() string {
	return e.kind
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Protocol Errors
// -----------------------------------------------------------------------------

// RegistryCorruptError reports a registry record that exists but cannot be
// parsed. Automatic retry cannot repair it.
//
// Example:
//
//	err := errors.NewRegistryCorruptError("/data/experiment_ids.json", jsonErr)
//	fmt.Println(err) // "registry corrupt [path=/data/experiment_ids.json]: unexpected end of JSON input"
type RegistryCorruptError struct {
	baseError
	Path string
}

// NewRegistryCorruptError creates a new RegistryCorruptError.
func NewRegistryCorruptError(path string, cause error) *RegistryCorruptError {
	return &RegistryCorruptError{
		baseError: baseError{
			message:    "registry record cannot be parsed",
			cause:      cause,
			sentinel:   ErrRegistryCorrupt,
			kind:       KindRegistryCorrupt,
			severity:   SeverityCritical,
			userFacing: true,
		},
		Path: path,
	}
}

// Error returns the formatted error message.
func (e *RegistryCorruptError) Error() string {
	prefix := "registry corrupt"
	if e.Path != "" {
		prefix = fmt.Sprintf("registry corrupt [path=%s]", e.Path)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *RegistryCorruptError) Is(target error) bool {
	if _, ok := target.(*RegistryCorruptError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// MalformedMessageError reports a message file whose content is not a JSON
// object with a string ID field.
type MalformedMessageError struct {
	baseError
	Address string
	Reason  string
}

// NewMalformedMessageError creates a new MalformedMessageError.
func NewMalformedMessageError(address, reason string) *MalformedMessageError {
	return &MalformedMessageError{
		baseError: baseError{
			message:    reason,
			sentinel:   ErrMalformedMessage,
			kind:       KindMalformedMessage,
			severity:   SeverityError,
			userFacing: true,
		},
		Address: address,
		Reason:  reason,
	}
}

// WithCause adds a cause to the error.
func (e *MalformedMessageError) WithCause(cause error) *MalformedMessageError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *MalformedMessageError) Error() string {
	base := fmt.Sprintf("malformed message [address=%s]: %s", e.Address, e.Reason)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *MalformedMessageError) Is(target error) bool {
	if _, ok := target.(*MalformedMessageError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// IdentityMismatchError reports a message whose embedded ID differs from the
// ID of the address it was found under or written to. It points at a
// mis-wired pipeline rather than a missing artifact.
type IdentityMismatchError struct {
	baseError
	Address  string
	Expected string
	Found    string
}

// NewIdentityMismatchError creates a new IdentityMismatchError.
func NewIdentityMismatchError(address, expected, found string) *IdentityMismatchError {
	return &IdentityMismatchError{
		baseError: baseError{
			message:    "message ID does not match address",
			sentinel:   ErrIdentityMismatch,
			kind:       KindIdentityMismatch,
			severity:   SeverityCritical,
			userFacing: true,
		},
		Address:  address,
		Expected: expected,
		Found:    found,
	}
}

// Error returns the formatted error message.
func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("identity mismatch [address=%s]: expected ID %q, found %q",
		e.Address, e.Expected, e.Found)
}

// Is checks if this error matches the target.
func (e *IdentityMismatchError) Is(target error) bool {
	if _, ok := target.(*IdentityMismatchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AddressConflictError reports a write refused because the address already
// holds content that differs from the new message.
type AddressConflictError struct {
	baseError
	Address string
}

// NewAddressConflictError creates a new AddressConflictError.
func NewAddressConflictError(address string) *AddressConflictError {
	return &AddressConflictError{
		baseError: baseError{
			message:    "address already holds different content",
			sentinel:   ErrAddressConflict,
			kind:       KindAddressConflict,
			severity:   SeverityError,
			userFacing: true,
		},
		Address: address,
	}
}

// WithCause adds a cause to the error.
func (e *AddressConflictError) WithCause(cause error) *AddressConflictError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AddressConflictError) Error() string {
	base := fmt.Sprintf("address conflict [address=%s]: %s", e.Address, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *AddressConflictError) Is(target error) bool {
	if _, ok := target.(*AddressConflictError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("experiment index", "4")
//	fmt.Println(err) // "experiment index '4' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			sentinel:   ErrNotFound,
			kind:       KindNotFound,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			sentinel:   ErrAlreadyExists,
			kind:       KindAlreadyExists,
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input.
//
// Example:
//
//	err := errors.NewValidationError("iteration must not be negative").WithField("iteration").WithValue(-1)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			sentinel:   ErrInvalidInput,
			kind:       KindValidation,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// Kind returns the stable kind name of err, or KindInternal for errors that
// are not part of the taxonomy. Returns "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var typed BiobotError
	if As(err, &typed) {
		return typed.Kind()
	}
	return KindInternal
}

// IsRetryable returns true if the error represents a condition an operator
// can resolve by producing the missing artifact and re-running the step.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var typed BiobotError
	if As(err, &typed) {
		return typed.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var typed BiobotError
	if As(err, &typed) {
		return typed.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement BiobotError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    logger.Error("pipeline broken", "error", err)
//	case errors.SeverityWarning:
//	    logger.Warn("step not ready", "error", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var typed BiobotError
	if As(err, &typed) {
		return typed.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike a bare string, %w keeps the typed error reachable through As.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
