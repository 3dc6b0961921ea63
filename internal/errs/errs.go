// Package errs defines the three error classes the orchestrator escalates:
// configuration errors (run-wide), metadata errors (one grammar could not be
// read or parsed) and processor errors (a generator stage or a reconcile copy
// failed). Each carries enough context to be logged on its own.
package errs

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid parameter or a bad path. It is run-wide:
// depending on policy it aborts the run or skips the whole execution, never a
// single unit.
type ConfigError struct {
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Message, e.Cause)
	}
	return "configuration: " + e.Message
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Config builds a ConfigError from a formatted message.
func Config(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// ConfigWrap builds a ConfigError wrapping a cause.
func ConfigWrap(cause error, format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

// MetadataError reports that a grammar file could not be read or did not
// contain the required structural markers. Scoped to one unit.
type MetadataError struct {
	Path    string
	Message string
	Cause   error
}

func (e *MetadataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("grammar %q: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("grammar %q: %s", e.Path, e.Message)
}

func (e *MetadataError) Unwrap() error { return e.Cause }

// Metadata builds a MetadataError for the grammar at path.
func Metadata(path, format string, args ...any) *MetadataError {
	return &MetadataError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// MetadataWrap builds a MetadataError wrapping a cause.
func MetadataWrap(cause error, path, format string, args ...any) *MetadataError {
	return &MetadataError{Path: path, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ProcessorError reports a failed stage invocation or a failed copy of
// generated output. Scoped to one unit and stage.
type ProcessorError struct {
	Stage   string
	Unit    string
	Message string
	Cause   error
}

func (e *ProcessorError) Error() string {
	msg := fmt.Sprintf("processor %q", e.Stage)
	if e.Unit != "" {
		msg += fmt.Sprintf(" on %q", e.Unit)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProcessorError) Unwrap() error { return e.Cause }

// Processor builds a ProcessorError for a stage and unit.
func Processor(stage, unit, format string, args ...any) *ProcessorError {
	return &ProcessorError{Stage: stage, Unit: unit, Message: fmt.Sprintf(format, args...)}
}

// ProcessorWrap builds a ProcessorError wrapping a cause.
func ProcessorWrap(cause error, stage, unit, format string, args ...any) *ProcessorError {
	return &ProcessorError{Stage: stage, Unit: unit, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsConfig reports whether err is or wraps a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsMetadata reports whether err is or wraps a MetadataError.
func IsMetadata(err error) bool {
	var me *MetadataError
	return errors.As(err, &me)
}

// IsProcessor reports whether err is or wraps a ProcessorError.
func IsProcessor(err error) bool {
	var pe *ProcessorError
	return errors.As(err, &pe)
}
