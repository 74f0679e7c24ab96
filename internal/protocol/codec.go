package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/torosent/pagebench/internal/failure"
)

// ErrForeignFrame marks a frame that does not belong to this protocol. Such
// frames are skipped, the way a page ignores unrelated postMessage traffic.
var ErrForeignFrame = errors.New("foreign frame")

// Encode serialises a frame.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &failure.ChannelError{Op: "encode", Err: err}
	}
	return data, nil
}

// Decode parses a frame into a Ready, Request or Response value. Frames
// without the connector key, or with an unknown type, return ErrForeignFrame.
func Decode(frame []byte) (any, error) {
	if !gjson.ValidBytes(frame) {
		return nil, fmt.Errorf("%w: not a JSON object", ErrForeignFrame)
	}
	fields := gjson.GetManyBytes(frame, "key", "type")
	if fields[0].String() != Key {
		return nil, ErrForeignFrame
	}

	switch Type(fields[1].String()) {
	case TypeReady:
		var msg Ready
		return unmarshal(frame, &msg)
	case TypeRunSuite:
		var msg Request
		return unmarshal(frame, &msg)
	case TypeResult:
		var msg Response
		return unmarshal(frame, &msg)
	default:
		return nil, fmt.Errorf("%w: type %q", ErrForeignFrame, fields[1].String())
	}
}

func unmarshal[T any](frame []byte, msg *T) (any, error) {
	if err := json.Unmarshal(frame, msg); err != nil {
		return nil, &failure.ChannelError{Op: "decode", Err: err}
	}
	return *msg, nil
}

func asStepError(err error) (*failure.StepExecutionError, bool) {
	var stepErr *failure.StepExecutionError
	if errors.As(err, &stepErr) {
		return stepErr, true
	}
	return nil, false
}
