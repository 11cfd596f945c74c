package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotConnectedError is returned when the target app is not linked for the user.
type NotConnectedError struct {
	App string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("%s is not connected. Please connect it first.", e.App)
}

func (e *NotConnectedError) From(err error) bool {
	var target *NotConnectedError
	return errors.As(err, &target)
}

// MissingCredentialsError is returned when an app is linked but has no usable credential.
type MissingCredentialsError struct {
	App string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("No credentials found for %s", e.App)
}

func (e *MissingCredentialsError) From(err error) bool {
	var target *MissingCredentialsError
	return errors.As(err, &target)
}

// UpstreamFailureError wraps failures from app APIs, the LLM or token refresh.
type UpstreamFailureError struct {
	Service   string
	Operation string
	Err       error
}

func (e *UpstreamFailureError) Error() string {
	msg := "upstream failure"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Operation != "" {
		return fmt.Sprintf("%s %s failed: %s", e.Service, e.Operation, msg)
	}
	return fmt.Sprintf("%s failed: %s", e.Service, msg)
}

func (e *UpstreamFailureError) Unwrap() error {
	return e.Err
}

func (e *UpstreamFailureError) From(err error) bool {
	var target *UpstreamFailureError
	return errors.As(err, &target)
}

// IsTimeout reports whether the upstream call ran out of time.
func (e *UpstreamFailureError) IsTimeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// InvalidResponseError is returned when LLM output does not match the expected shape.
type InvalidResponseError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *InvalidResponseError) Error() string {
	var b strings.Builder
	b.WriteString("invalid ")
	b.WriteString(e.Stage)
	b.WriteString(" response")
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

func (e *InvalidResponseError) From(err error) bool {
	var target *InvalidResponseError
	return errors.As(err, &target)
}

// UnsupportedOperationError is returned for a function the app does not expose.
type UnsupportedOperationError struct {
	App      string
	Function string
}

func (e *UnsupportedOperationError) Error() string {
	if e.App == "" {
		return fmt.Sprintf("Unsupported function: %s", e.Function)
	}
	return fmt.Sprintf("Unsupported function: %s for %s", e.Function, e.App)
}

func (e *UnsupportedOperationError) From(err error) bool {
	var target *UnsupportedOperationError
	return errors.As(err, &target)
}

// MissingParameterError is returned when required function parameters are absent.
type MissingParameterError struct {
	App      string
	Function string
	Params   []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter(s) for %s.%s: %s", e.App, e.Function, strings.Join(e.Params, ", "))
}

func (e *MissingParameterError) From(err error) bool {
	var target *MissingParameterError
	return errors.As(err, &target)
}

// InvalidParameterError is returned when a parameter is present but unusable.
type InvalidParameterError struct {
	App      string
	Function string
	Reason   string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter(s) for %s.%s: %s", e.App, e.Function, e.Reason)
}

func (e *InvalidParameterError) From(err error) bool {
	var target *InvalidParameterError
	return errors.As(err, &target)
}

// NotConfiguredError is returned when a backing service has no credentials configured.
type NotConfiguredError struct {
	Service string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Service)
}

func (e *NotConfiguredError) From(err error) bool {
	var target *NotConfiguredError
	return errors.As(err, &target)
}

// PartialActionFailure is reported alongside a successful execution when
// some actions failed or were skipped while others ran.
type PartialActionFailure struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

func (e *PartialActionFailure) Error() string {
	return fmt.Sprintf("%d of %d actions did not complete", e.Failed+e.Skipped, e.Succeeded+e.Failed+e.Skipped)
}

// ErrorKind classifies an error for API responses and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case (&NotConnectedError{}).From(err):
		return "not_connected"
	case (&MissingCredentialsError{}).From(err):
		return "missing_credentials"
	case (&UnsupportedOperationError{}).From(err):
		return "unsupported_operation"
	case (&MissingParameterError{}).From(err):
		return "missing_parameter"
	case (&InvalidParameterError{}).From(err):
		return "invalid_parameter"
	case (&InvalidResponseError{}).From(err):
		return "invalid_response"
	case (&NotConfiguredError{}).From(err):
		return "not_configured"
	case (&UpstreamFailureError{}).From(err):
		return "upstream_failure"
	}
	return "internal"
}
