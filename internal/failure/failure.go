// Package failure defines the error taxonomy shared by the host and page sides
// of a benchmark run.
package failure

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a benchmark error.
type Kind string

const (
	KindNone             Kind = ""
	KindConfiguration    Kind = "configuration"
	KindConnectorTimeout Kind = "connector_timeout"
	KindStepExecution    Kind = "step_execution"
	KindAggregation      Kind = "aggregation"
	KindChannel          Kind = "channel"
)

// PhaseReady marks a timeout while waiting for a page to announce readiness.
const PhaseReady = "ready"

// PhaseRun marks a timeout while waiting for a suite run response.
const PhaseRun = "run"

// ConfigurationError reports duplicate or unknown suite names and invalid run configuration.
type ConfigurationError struct {
	issues []string
}

// NewConfigurationError builds a ConfigurationError from one or more issues.
func NewConfigurationError(issues ...string) ConfigurationError {
	return ConfigurationError{issues: append([]string(nil), issues...)}
}

func (e ConfigurationError) Error() string {
	if len(e.issues) == 0 {
		return "invalid configuration"
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.issues, "; "))
}

// Issues returns a copy of the individual problems found.
func (e ConfigurationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// ConnectorTimeoutError reports that a page did not answer within the bound.
type ConnectorTimeoutError struct {
	Suite     string
	Iteration int
	Phase     string
	Timeout   time.Duration
}

func (e *ConnectorTimeoutError) Error() string {
	if e.Phase == PhaseReady {
		return fmt.Sprintf("page for suite %q did not become ready within %s", e.Suite, e.Timeout)
	}
	return fmt.Sprintf("suite %q iteration %d: no response within %s", e.Suite, e.Iteration, e.Timeout)
}

// StepExecutionError reports a step that returned an error, panicked, or a page
// fault raised while the suite was running.
type StepExecutionError struct {
	Suite   string
	Step    string
	Message string
	Cause   error
}

func (e *StepExecutionError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Step == "" {
		return fmt.Sprintf("suite %q failed: %s", e.Suite, msg)
	}
	return fmt.Sprintf("suite %q step %q failed: %s", e.Suite, e.Step, msg)
}

func (e *StepExecutionError) Unwrap() error { return e.Cause }

// AggregationError reports that there was nothing to aggregate.
type AggregationError struct {
	Iteration int
	Reason    string
}

func (e *AggregationError) Error() string {
	if e.Iteration < 0 {
		return fmt.Sprintf("aggregation failed: %s", e.Reason)
	}
	return fmt.Sprintf("aggregation failed for iteration %d: %s", e.Iteration, e.Reason)
}

// ChannelError reports a broken channel between host and page, such as a
// closed websocket or an undecodable frame.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// KindOf classifies err by walking its wrap chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var cfgErr ConfigurationError
	if errors.As(err, &cfgErr) {
		return KindConfiguration
	}
	var timeoutErr *ConnectorTimeoutError
	if errors.As(err, &timeoutErr) {
		return KindConnectorTimeout
	}
	var stepErr *StepExecutionError
	if errors.As(err, &stepErr) {
		return KindStepExecution
	}
	var aggErr *AggregationError
	if errors.As(err, &aggErr) {
		return KindAggregation
	}
	var chErr *ChannelError
	if errors.As(err, &chErr) {
		return KindChannel
	}
	return KindNone
}

// IsFatal reports whether err must abort the whole run rather than a single
// suite iteration.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindConfiguration, KindAggregation:
		return true
	case KindConnectorTimeout:
		var timeoutErr *ConnectorTimeoutError
		errors.As(err, &timeoutErr)
		return timeoutErr.Phase == PhaseReady
	default:
		return false
	}
}
