package entities

import (
	"fmt"
)

// MissingParameterError is returned when a required run parameter is absent
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Name)
}

// InvalidParameterError is returned when a parameter value cannot be passed to the tool
type InvalidParameterError struct {
	Name   string
	Value  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q (%q): %s", e.Name, e.Value, e.Reason)
}

// ExternalToolError is returned when the external tool exits non-zero or cannot finish
type ExternalToolError struct {
	Command  string
	ExitCode int
	Output   []byte
	Err      error
}

func (e *ExternalToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("external tool failed (exit %d): %v\nCommand: %s\nOutput:\n%s",
			e.ExitCode, e.Err, e.Command, e.Output)
	}
	return fmt.Sprintf("external tool failed (exit %d)\nCommand: %s\nOutput:\n%s",
		e.ExitCode, e.Command, e.Output)
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// MalformedSummaryError is returned when the summary file is missing or has an unexpected shape
type MalformedSummaryError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *MalformedSummaryError) Error() string {
	msg := "malformed summary"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedSummaryError) Unwrap() error {
	return e.Err
}

// DirectoryCreateError is returned when a working or staging directory cannot be created
type DirectoryCreateError struct {
	Path string
	Err  error
}

func (e *DirectoryCreateError) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryCreateError) Unwrap() error {
	return e.Err
}

// PublishError is returned when the report cannot be uploaded or registered
type PublishError struct {
	Stage string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish report (%s): %v", e.Stage, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
