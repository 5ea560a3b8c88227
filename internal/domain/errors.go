package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnrecognizedOutput = errors.New("unrecognized probe output")
	ErrMissingTotal       = errors.New("memory total not found")
	ErrMetricsNotFound    = errors.New("metrics not found")
)

// LaunchError reports a probe command that could not start or exited non-zero.
type LaunchError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *LaunchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "probe %q failed", e.Command)
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, " (stderr: %s)", e.Stderr)
	}
	return b.String()
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ParseError reports probe output that does not match the expected shape.
type ParseError struct {
	Family Family
	Input  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s output %q: %v", e.Family, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func NewParseError(family Family, input string, err error) *ParseError {
	const maxInput = 120
	if len(input) > maxInput {
		input = input[:maxInput] + "..."
	}
	return &ParseError{Family: family, Input: input, Err: err}
}

// ConfigError lists every invalid configuration field.
type ConfigError struct {
	Fields map[string]string
}

func (e *ConfigError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid configuration"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, k := range sortedKeys(e.Fields) {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// ErrorKind names the taxonomy bucket of err for logs and metrics.
func ErrorKind(err error) string {
	var launch *LaunchError
	var parse *ParseError
	var cfg *ConfigError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &launch):
		return "launch"
	case errors.As(err, &parse):
		return "parse"
	case errors.As(err, &cfg):
		return "config"
	default:
		return "other"
	}
}
