// Package protocol defines the typed request/response contract between the
// hosting Run Controller and the connector embedded in a page.
//
// Every frame is a JSON object carrying the connector key and the page's
// application id (appName + "-" + appVersion). Requests are correlated with
// their responses by a per-request id, so a response to an abandoned request
// can be recognised and dropped.
package protocol

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/torosent/pagebench/internal/failure"
)

// Key tags every frame that belongs to this protocol.
const Key = "benchmark-connector"

// DefaultSuiteName is the suite a page exposes when the host does not name one.
const DefaultSuiteName = "default"

// Type discriminates frames.
type Type string

const (
	TypeReady    Type = "benchmark-ready"
	TypeRunSuite Type = "benchmark-suite"
	TypeResult   Type = "benchmark-suite-result"
)

// AppID builds the application id a page announces.
func AppID(appName, appVersion string) string {
	return appName + "-" + appVersion
}

// Header is common to all frames.
type Header struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Type Type   `json:"type"`
}

// Ready is sent by a page once its connector is listening. Tags holds the
// page's own tags per suite name, for suites that declare any.
type Ready struct {
	Header
	Suites []string            `json:"suites"`
	Tags   map[string][]string `json:"tags,omitempty"`
}

// RunParams tune a single suite run on the page.
type RunParams struct {
	// WarmupBeforeSync is the number of untimed iterations run first.
	WarmupBeforeSync int `json:"warmupBeforeSync"`
	// WaitBeforeSync is a settle pause in milliseconds before the timed iteration.
	WaitBeforeSync int `json:"waitBeforeSync"`
}

// Request asks a page to run one suite.
type Request struct {
	Header
	Name      string            `json:"name"`
	RequestID string            `json:"requestId"`
	Params    RunParams         `json:"params"`
	Trace     map[string]string `json:"trace,omitempty"`
}

// StepResult is the measured duration of one step in milliseconds.
type StepResult struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
	Warmup   bool    `json:"warmup,omitempty"`
}

// Result carries a successful run's timing in milliseconds.
type Result struct {
	Duration float64      `json:"duration"`
	Steps    []StepResult `json:"steps,omitempty"`
}

// ErrorPayload describes a failed run.
type ErrorPayload struct {
	Kind    failure.Kind `json:"kind"`
	Step    string       `json:"step,omitempty"`
	Message string       `json:"message"`
}

// Response answers a Request with either a Result or an Error.
type Response struct {
	Header
	Name      string        `json:"name"`
	RequestID string        `json:"requestId"`
	Result    *Result       `json:"result,omitempty"`
	Error     *ErrorPayload `json:"error,omitempty"`
}

// NewReady builds a ready frame.
func NewReady(appID string, suites []string) Ready {
	return Ready{
		Header: Header{ID: appID, Key: Key, Type: TypeReady},
		Suites: append([]string(nil), suites...),
	}
}

// NewRequest builds a run request for suite name.
func NewRequest(appID, name, requestID string, params RunParams) Request {
	return Request{
		Header:    Header{ID: appID, Key: Key, Type: TypeRunSuite},
		Name:      name,
		RequestID: requestID,
		Params:    params,
	}
}

// Reply builds a response header for req.
func (req Request) Reply() Response {
	return Response{
		Header:    Header{ID: req.ID, Key: Key, Type: TypeResult},
		Name:      req.Name,
		RequestID: req.RequestID,
	}
}

// Duration returns the successful run duration.
func (r Response) Duration() time.Duration {
	if r.Result == nil {
		return 0
	}
	return Millis(r.Result.Duration)
}

// Err converts an error payload back into the failure taxonomy.
func (r Response) Err() error {
	if r.Error == nil {
		if r.Result == nil {
			return &failure.ChannelError{Op: "decode", Err: fmt.Errorf("response for %q carries neither result nor error", r.Name)}
		}
		return nil
	}
	switch r.Error.Kind {
	case failure.KindConfiguration:
		return failure.NewConfigurationError(r.Error.Message)
	case failure.KindStepExecution:
		return &failure.StepExecutionError{Suite: r.Name, Step: r.Error.Step, Message: r.Error.Message}
	default:
		return &failure.StepExecutionError{Suite: r.Name, Step: r.Error.Step, Message: fmt.Sprintf("%s: %s", r.Error.Kind, r.Error.Message)}
	}
}

// ErrorFrom builds an error payload from err.
func ErrorFrom(err error) *ErrorPayload {
	payload := &ErrorPayload{Kind: failure.KindOf(err), Message: err.Error()}
	if payload.Kind == failure.KindNone {
		payload.Kind = failure.KindStepExecution
	}
	var cfgErr failure.ConfigurationError
	if errors.As(err, &cfgErr) {
		payload.Message = strings.Join(cfgErr.Issues(), "; ")
	}
	if stepErr, ok := asStepError(err); ok {
		payload.Step = stepErr.Step
		if stepErr.Message != "" {
			payload.Message = stepErr.Message
		} else if stepErr.Cause != nil {
			payload.Message = stepErr.Cause.Error()
		}
	}
	return payload
}

// Milliseconds converts d to fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Millis converts fractional milliseconds to a duration.
func Millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
