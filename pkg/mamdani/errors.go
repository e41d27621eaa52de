package mamdani

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a structurally invalid model rejected by Build.
	ErrConfiguration = errors.New("configuration error")
	// ErrMissingInput marks a Compute call lacking a value for a referenced antecedent.
	ErrMissingInput = errors.New("missing input")
	// ErrUndefinedOutput marks a consequent whose aggregated activation is zero everywhere.
	ErrUndefinedOutput = errors.New("undefined output")
)

// ConfigurationError describes why a model definition was rejected.
// It matches both ErrConfiguration and, when set, the underlying cause.
type ConfigurationError struct {
	// Component is the kind of definition at fault: "variable", "set", "rule" or "model".
	Component string
	// Name identifies the offending definition.
	Name   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("%s: %s %q: %s", ErrConfiguration, e.Component, e.Name, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

func configErr(component, name string, cause error, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{
		Component: component,
		Name:      name,
		Reason:    fmt.Sprintf(format, args...),
		Err:       cause,
	}
}

// MissingInputError names the antecedent that had no crisp value bound.
type MissingInputError struct {
	Variable VariableName
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: no value for antecedent %q", ErrMissingInput, e.Variable)
}

func (e *MissingInputError) Unwrap() error { return ErrMissingInput }

// UndefinedOutputError names the consequent that received no activation.
type UndefinedOutputError struct {
	Variable VariableName
}

func (e *UndefinedOutputError) Error() string {
	return fmt.Sprintf("%s: no rule activated consequent %q", ErrUndefinedOutput, e.Variable)
}

func (e *UndefinedOutputError) Unwrap() error { return ErrUndefinedOutput }
