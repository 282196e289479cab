package coach

import (
	"errors"
	"fmt"
)

// Error kinds of a chat turn. The messages are returned to clients verbatim.
//
//nolint:staticcheck // capitalized to match existing clients
var (
	ErrUnauthorized  = errors.New("Unauthorized")
	ErrValidation    = errors.New("message is required")
	ErrConfiguration = errors.New("completion API key not configured")
	ErrUpstream      = errors.New("completion service error")
)

// Machine-readable error codes returned next to the error message.
const (
	CodeUnauthorized  = "unauthorized"
	CodeValidation    = "validation_error"
	CodeConfiguration = "configuration_error"
	CodeUpstream      = "upstream_error"
	CodeInternal      = "internal_error"
)

// ConfigurationError names the missing credential of the active provider.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string { return e.Key + " not configured" }

// Is makes every ConfigurationError match ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// UpstreamError is a failed completion call. Status is 0 for transport faults.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("completion request failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes every UpstreamError match ErrUpstream.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// ErrorCode classifies err into one of the Code constants.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrUpstream):
		return CodeUpstream
	default:
		return CodeInternal
	}
}
