package models

import "fmt"

// ValidationError reports a rejected input value. Inputs are never coerced
// to defaults; the caller gets the error and the original record stays
// untouched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConfigurationError reports an invalid engine configuration (matrix rows
// non-contiguous, ordering violations, bad thresholds). It is fatal at
// config-load time, before any planning call runs.
type ConfigurationError struct {
	Section string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration in %s: %s", e.Section, e.Message)
}

// NewConfigurationError creates a ConfigurationError for a config section.
func NewConfigurationError(section, message string) *ConfigurationError {
	return &ConfigurationError{Section: section, Message: message}
}

// StateTransitionError reports an attempted lifecycle transition outside the
// allowed table, or a partial exit that would overdraw the position.
type StateTransitionError struct {
	From    string
	Action  string
	Message string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s from state %s: %s", e.Action, e.From, e.Message)
}

// NewStateTransitionError creates a StateTransitionError.
func NewStateTransitionError(from, action, message string) *StateTransitionError {
	return &StateTransitionError{From: from, Action: action, Message: message}
}
