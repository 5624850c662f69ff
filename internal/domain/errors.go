package domain

import (
	"errors"
	"strings"
)

var (
	ErrUnsupportedType     = errors.New("unsupported execution type")
	ErrProcessGone         = errors.New("process gone")
	ErrSamplingUnavailable = errors.New("sampling unavailable")
	ErrRunTimeout          = errors.New("run timed out")
	ErrInvalidTransition   = errors.New("invalid session state transition")
)

// ConfigurationError aggregates scenario problems found before any run starts.
type ConfigurationError struct {
	Scenario string
	Issues   []string
	Err      error
}

func (e *ConfigurationError) Error() string {
	prefix := "configuration invalid"
	if strings.TrimSpace(e.Scenario) != "" {
		prefix = "scenario " + e.Scenario + ": configuration invalid"
	}
	if len(e.Issues) == 0 {
		return prefix
	}
	return prefix + ": " + strings.Join(e.Issues, "; ")
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func (e *ConfigurationError) Add(issue string) {
	if strings.TrimSpace(issue) == "" {
		return
	}
	e.Issues = append(e.Issues, issue)
}

func (e *ConfigurationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// LaunchError reports that a run's executable could not be started.
type LaunchError struct {
	Executable string
	Err        error
}

func (e *LaunchError) Error() string {
	return "launch " + e.Executable + ": " + e.Err.Error()
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
