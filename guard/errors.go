// Package guard holds the deterministic controls wrapped around every model and
// provider call: call budgets, retries with backoff, contract validation and repair,
// and the anti-hallucination subset check.
package guard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

type Kind string

const (
	KindParse         Kind = "ParseError"
	KindValidation    Kind = "ValidationError"
	KindToolBudget    Kind = "ToolBudgetExceeded"
	KindTimeout       Kind = "TimeoutError"
	KindRateLimit     Kind = "RateLimitError"
	KindNetwork       Kind = "NetworkError"
	KindHallucination Kind = "HallucinationError"
	KindUnknown       Kind = "UnknownError"
)

// Retryable reports whether errors of this kind are transient.
func (k Kind) Retryable() bool {
	switch k {
	case KindParse, KindTimeout, KindRateLimit, KindNetwork:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrParse         = &Error{Kind: KindParse}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrToolBudget    = &Error{Kind: KindToolBudget}
	ErrTimeout       = &Error{Kind: KindTimeout}
	ErrRateLimit     = &Error{Kind: KindRateLimit}
	ErrNetwork       = &Error{Kind: KindNetwork}
	ErrHallucination = &Error{Kind: KindHallucination}
	ErrUnknown       = &Error{Kind: KindUnknown}
)

// Error is a classified guardrail failure.
type Error struct {
	Kind       Kind
	Message    string
	Retryable  bool
	Context    map[string]any
	Violations []Violation
	Offending  []string
	Err        error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError builds an error of the given kind with its default retryability.
func NewError(kind Kind, msg string, ctx map[string]any) *Error {
	return &Error{Kind: kind, Message: msg, Retryable: kind.Retryable(), Context: ctx}
}

func wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Retryable: kind.Retryable(), Err: err}
}

// Classify maps an arbitrary error onto the guardrail taxonomy.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return wrap(KindTimeout, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return wrap(KindParse, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return wrap(KindTimeout, err)
		}
		return wrap(KindNetwork, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "json") || strings.Contains(msg, "parse"):
		return wrap(KindParse, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return wrap(KindTimeout, err)
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") ||
		strings.Contains(msg, "throttl") || strings.Contains(msg, "too many requests"):
		return wrap(KindRateLimit, err)
	case strings.Contains(msg, "network") || strings.Contains(msg, "econnreset") ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset"):
		return wrap(KindNetwork, err)
	case strings.Contains(msg, "validation") || strings.Contains(msg, "schema"):
		return wrap(KindValidation, err)
	}
	return wrap(KindUnknown, err)
}
