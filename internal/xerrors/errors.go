// Package xerrors implements the error taxonomy of spec §7: a small
// closed set of error kinds, each mapped to an HTTP status family, with
// a trace id for log correlation. Modeled on the teacher repo's
// pkg/errors builder style, trimmed to the kinds this system needs.
package xerrors

import (
	"fmt"
	"net/http"

	"github.com/segmentio/ksuid"

	"github.com/rustexchange/matchd/internal/wire"
)

// Kind is one of the five categories from spec §7.
type Kind string

const (
	UserFacing    Kind = "user_facing"
	Authorization Kind = "authorization"
	Store         Kind = "store"
	MatchService  Kind = "match_service"
	OtherInternal Kind = "other_internal"
)

// Error is the typed error carried through the engine and gateway.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
	TraceID string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Wire converts e into its length-prefixed-JSON wire shape (see
// internal/wire), so the RPC fabric can carry typed errors across a
// process boundary without losing their Kind.
func (e *Error) Wire() wire.ErrorPayload {
	return wire.ErrorPayload{
		Kind:    string(e.Kind),
		Code:    e.Code,
		Message: e.Message,
		TraceID: e.TraceID,
	}
}

// HTTPStatus maps Kind to the status family from spec §7:
// UserFacing -> 4xx, Authorization -> 401/403, Store/MatchService/
// OtherInternal -> 5xx.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case UserFacing:
		if e.Code == "not_found" {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case Authorization:
		if e.Code == "forbidden" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func newTraceID() string { return ksuid.New().String() }

func new_(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, TraceID: newTraceID()}
}

// UserFacingf builds a 4xx-class error: bad input, unknown market,
// non-existent order.
func UserFacingf(code, format string, args ...any) *Error {
	return new_(UserFacing, code, fmt.Sprintf(format, args...))
}

// Forbiddenf builds a 403 authorization error (caller does not own the
// resource it is trying to act on).
func Forbiddenf(format string, args ...any) *Error {
	return new_(Authorization, "forbidden", fmt.Sprintf(format, args...))
}

// Unauthorizedf builds a 401 authorization error (missing/invalid
// bearer token).
func Unauthorizedf(format string, args ...any) *Error {
	return new_(Authorization, "unauthorized", fmt.Sprintf(format, args...))
}

// Storef wraps a store-layer failure (timeout, pool exhaustion, unique
// constraint surprise) as a 5xx-class StoreError, logged with context
// by the caller.
func Storef(cause error, format string, args ...any) *Error {
	e := new_(Store, "store_error", fmt.Sprintf(format, args...))
	e.Cause = cause
	return e
}

// MatchServicef wraps an internal invariant violation in the matching
// engine.
func MatchServicef(format string, args ...any) *Error {
	return new_(MatchService, "invariant_violation", fmt.Sprintf(format, args...))
}

// OtherInternalf wraps an unexpected internal failure (time source,
// join error) not attributable to the store or matcher.
func OtherInternalf(cause error, format string, args ...any) *Error {
	e := new_(OtherInternal, "internal", fmt.Sprintf(format, args...))
	e.Cause = cause
	return e
}

// Timeoutf builds the Timeout error named on the Engine RPC surface
// (§6) — a UserFacing-shaped error since the caller's deadline, not an
// engine fault, caused it, but reported distinctly via Code.
func Timeoutf(format string, args ...any) *Error {
	return new_(UserFacing, "timeout", fmt.Sprintf(format, args...))
}
