package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies execution failures for retry and reporting
// decisions.
type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindProtocol   ErrorKind = "protocol"
	KindPage       ErrorKind = "page"
	KindTimeout    ErrorKind = "timeout"
	KindValidation ErrorKind = "validation"
	KindUsage      ErrorKind = "usage"
)

// Error carries a kind and the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and operation name.
func E(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind ErrorKind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the classification from an error chain. Unclassified
// errors are inspected heuristically; context deadline errors are
// timeouts, connection-level failures are transport, and everything
// else is treated as a page condition.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return KindTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "websocket") ||
		strings.Contains(msg, "broken pipe") || strings.Contains(msg, "eof"):
		return KindTransport
	case strings.Contains(msg, "cdp") || strings.Contains(msg, "devtools"):
		return KindProtocol
	default:
		return KindPage
	}
}

// IsTransient reports whether the failure is worth retrying. Usage and
// validation errors never succeed on retry.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindUsage, KindValidation:
		return false
	default:
		return true
	}
}
