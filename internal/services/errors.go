package services

import (
	"errors"
	"strings"
)

var (
	ErrExternalService   = errors.New("external service error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrConfiguration     = errors.New("configuration error")
	ErrTimeout           = errors.New("timeout")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrInvariant         = errors.New("invariant violation")
)

// Error carries a failure marker plus the phase and operation that produced it.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	var b strings.Builder
	if e.Marker != nil {
		b.WriteString(e.Marker.Error())
		b.WriteString(": ")
	}
	b.WriteString(detail)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes both the marker and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Wrap builds an error that includes phase context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above. Context deadline failures are re-tagged as
// ErrTimeout.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrExternalService
	}
	if err != nil && isDeadline(err) {
		marker = ErrTimeout
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Hint:      hintFor(marker),
		Cause:     err,
	}
}

// ErrorDetails summarizes an error for structured logging.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     string
}

// Details extracts structured fields from err. Errors not built with Wrap are
// reported with kind "unknown".
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var se *Error
	if !errors.As(err, &se) {
		return ErrorDetails{Kind: "unknown", Message: err.Error(), Hint: "check logs for details"}
	}
	details := ErrorDetails{
		Kind:      Kind(se.Marker),
		Stage:     se.Stage,
		Operation: se.Operation,
		Message:   se.Message,
		Hint:      se.Hint,
	}
	if se.Cause != nil {
		details.Cause = se.Cause.Error()
	}
	return details
}

// Kind returns a short label for the marker carried by err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	case errors.Is(err, ErrExternalService):
		return "external_service"
	default:
		return "unknown"
	}
}

func hintFor(marker error) string {
	switch {
	case errors.Is(marker, ErrTimeout):
		return "raise the workflow timeout or check reasoning service latency"
	case errors.Is(marker, ErrMalformedResponse):
		return "inspect the raw response snippet; the model did not return the expected JSON"
	case errors.Is(marker, ErrConfiguration):
		return "check paths.policy_file and llm settings in config.toml"
	case errors.Is(marker, ErrNotFound):
		return "verify the item id with 'labtriage queue list'"
	case errors.Is(marker, ErrInvariant):
		return "stop and report: workflow state is inconsistent"
	default:
		return "check reasoning service availability and retry with 'labtriage queue retry'"
	}
}

func isDeadline(err error) bool {
	type timeout interface{ Timeout() bool }
	var t timeout
	if errors.As(err, &t) && t.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "context deadline exceeded")
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{stage, operation, message} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
