package suite

import (
	"errors"
	"fmt"

	"github.com/torosent/pagebench/internal/failure"
)

var errNilSuite = failure.NewConfigurationError("suite is nil")

func duplicateError(name string) error {
	return failure.NewConfigurationError(fmt.Sprintf("duplicate suite name %q", name))
}

// UnknownSuiteError builds the configuration error for a name that is not registered.
func UnknownSuiteError(name string) error {
	return failure.NewConfigurationError(fmt.Sprintf("unknown suite %q", name))
}

// IsPanic reports whether err came from a panicking step body.
func IsPanic(err error) bool {
	return errors.Is(err, ErrPanic)
}
