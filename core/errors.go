package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported by ErrorKind.
const (
	KindValidation      = "validation"
	KindResolution      = "resolution"
	KindTransport       = "transport"
	KindUnknownFunction = "unknown_function"
	KindInternal        = "internal"
)

// ValidationError reports malformed, missing or out-of-range parameters. It
// carries every problem found so the caller (or the model) can correct all of
// them in one retry.
type ValidationError struct {
	Function string   `json:"function,omitempty"`
	Errors   []string `json:"errors"`
}

func (e *ValidationError) Error() string {
	msg := strings.Join(e.Errors, "; ")
	if e.Function != "" {
		return fmt.Sprintf("invalid parameters for %s: %s", e.Function, msg)
	}
	return "invalid parameters: " + msg
}

// NewValidationError creates a ValidationError for function with the given problems.
func NewValidationError(function string, problems ...string) *ValidationError {
	return &ValidationError{Function: function, Errors: problems}
}

// ResolutionError reports that a semantic tab required by a function is not
// present in the store's detected schema. The message is meant for the store
// owner ("add a leads tab").
type ResolutionError struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

func (e *ResolutionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("no %q tab is configured: add a %s tab to your spreadsheet", e.Role, e.Role)
}

// TransportError reports a failed call to an external collaborator
// (spreadsheet service or ranker). Status is the HTTP status, 0 when the call
// never produced a response.
type TransportError struct {
	Op      string
	Tab     string
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Tab != "" {
		fmt.Fprintf(&b, " %q", e.Tab)
	}
	b.WriteString(" failed")
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// UnknownFunctionError reports a function name without a registered handler.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function: %s", e.Name)
}

// ErrorKind classifies err into one of the Kind constants.
func ErrorKind(err error) string {
	var (
		ve *ValidationError
		re *ResolutionError
		te *TransportError
		ue *UnknownFunctionError
	)
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &re):
		return KindResolution
	case errors.As(err, &te):
		return KindTransport
	case errors.As(err, &ue):
		return KindUnknownFunction
	default:
		return KindInternal
	}
}

// PublicMessage returns the message safe to hand to the model layer.
// Validation, resolution and unknown-function messages are surfaced verbatim;
// transport failures are reported generically and anything else as an
// internal error.
func PublicMessage(err error) string {
	var te *TransportError
	switch ErrorKind(err) {
	case KindValidation, KindResolution, KindUnknownFunction:
		return err.Error()
	case KindTransport:
		errors.As(err, &te)
		if te.Tab != "" {
			return fmt.Sprintf("could not reach the spreadsheet (tab %q), please try again later", te.Tab)
		}
		return "could not reach the spreadsheet, please try again later"
	default:
		return "internal error while executing the function"
	}
}
