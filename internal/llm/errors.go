package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestFailed matches failures where no usable response arrived
	// before the retry ceiling.
	ErrRequestFailed = errors.New("generation request failed")

	// ErrMalformedResponse matches successful responses that carry no chart text.
	ErrMalformedResponse = errors.New("malformed generation response")
)

// FailureKind distinguishes why a generation ended without a chart.
type FailureKind int

const (
	FailureRequest FailureKind = iota
	FailureMalformed
)

func (k FailureKind) String() string {
	switch k {
	case FailureRequest:
		return "request"
	case FailureMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// GenerationError is the terminal error returned by GenerateChart.
type GenerationError struct {
	Kind     FailureKind
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("chart generation failed (%s) after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *GenerationError) Unwrap() []error {
	sentinel := ErrRequestFailed
	if e.Kind == FailureMalformed {
		sentinel = ErrMalformedResponse
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// StatusError is a non-2xx response from the endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("API request failed: status %d: %s", e.StatusCode, e.Message)
}
