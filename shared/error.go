package shared

import (
	"errors"
	"fmt"
)

type ErrorSource int

const (
	ErrorSourceTool ErrorSource = iota
	ErrorSourceAgent
	ErrorSourceTransport
	ErrorSourceConfig
	ErrorSourceUnknown
)

func (s ErrorSource) String() string {
	switch s {
	case ErrorSourceTool:
		return "tool"
	case ErrorSourceAgent:
		return "agent"
	case ErrorSourceTransport:
		return "transport"
	case ErrorSourceConfig:
		return "config"
	}
	return "unknown"
}

// EmberError tags an error with the subsystem it originated from, so callers
// can distinguish a fatal transport failure from a recoverable tool failure.
type EmberError struct {
	Source  ErrorSource
	Message string
	Err     error
}

func Errorf(source ErrorSource, format string, a ...any) *EmberError {
	return &EmberError{
		Source:  source,
		Message: fmt.Sprintf(format, a...),
	}
}

func Wrap(source ErrorSource, message string, err error) *EmberError {
	return &EmberError{
		Source:  source,
		Message: message,
		Err:     err,
	}
}

func (e *EmberError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *EmberError) Unwrap() error {
	return e.Err
}

func (e *EmberError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func (e *EmberError) As(target interface{}) bool {
	return errors.As(e.Err, target)
}

// SourceOf reports the error source of err, or ErrorSourceUnknown when err
// does not carry one.
func SourceOf(err error) ErrorSource {
	var ee *EmberError
	if errors.As(err, &ee) {
		return ee.Source
	}
	return ErrorSourceUnknown
}
