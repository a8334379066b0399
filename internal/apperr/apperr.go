package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind identifies which stage of the pipeline produced an error
type Kind string

const (
	KindOCR           Kind = "ocr_error"
	KindExtraction    Kind = "extraction_error"
	KindValidation    Kind = "validation_error"
	KindConfiguration Kind = "configuration_error"
)

// Issue describes a single field that failed schema validation
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is the typed error returned across the scanner boundary
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Retryable bool
	Issues    []Issue
	Cause     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Issues) > 0 {
		fmt.Fprintf(&b, " (%d issues)", len(e.Issues))
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// OCR creates an error for a failed OCR call
func OCR(op string, retryable bool, cause error) *Error {
	return &Error{Kind: KindOCR, Op: op, Retryable: retryable, Cause: cause}
}

// Extraction creates an error for a failed JSON extraction call
func Extraction(op string, retryable bool, cause error) *Error {
	return &Error{Kind: KindExtraction, Op: op, Retryable: retryable, Cause: cause}
}

// Validation creates an error carrying every schema violation found
func Validation(op string, issues []Issue) *Error {
	return &Error{
		Kind:    KindValidation,
		Op:      op,
		Message: "document does not match schema",
		Issues:  issues,
	}
}

// Configuration creates a fatal configuration error. These are never retried.
func Configuration(op, message string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: message}
}

// As returns the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// IsRetryable reports whether err was classified as transient
func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable
}

// RetryableStatus classifies an upstream HTTP status code.
// Timeouts, rate limiting and server errors are transient; other 4xx are permanent.
func RetryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusTooEarly,
		code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}

// RetryableTransport classifies an error returned before any HTTP status was received
func RetryableTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
