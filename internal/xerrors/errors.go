// Package xerrors defines edgecore's closed error-kind taxonomy. Every
// component wraps failures in an *Error carrying one Kind, so callers can
// branch on errors.As without depending on a component's internal error
// values, and so the Durable Store and structured logger always have a
// stable field to index on.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories a component may report.
// Extending this set is a deliberate, reviewed change; callers branch on it
// through HasKind and KindOf.
type Kind string

const (
	KindConfigError        Kind = "config_error"
	KindTransientNetwork   Kind = "transient_network"
	KindProtocolError      Kind = "protocol_error"
	KindDecodeError        Kind = "decode_error"
	KindValidationFailure  Kind = "validation_failure"
	KindSimulationFailure  Kind = "simulation_failure"
	KindSubmissionFailure  Kind = "submission_failure"
	KindRiskBlocked        Kind = "risk_blocked"
	KindDatabaseError      Kind = "database_error"
	KindFatal              Kind = "fatal"
)

// Error wraps an underlying error with a Kind and the component that raised
// it. Component is a short package tag (e.g. "chain", "route", "relay") used
// for log fields, not a full import path.
type Error struct {
	Kind      Kind
	Component string
	Op        string // the operation that failed, e.g. "SubscribePendingTxs"
	Err       error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error. Error has no Is method: callers test for a Kind
// with HasKind below, and errors.Is/errors.As reach the wrapped cause
// through Unwrap.
func New(kind Kind, component, op string, err error) *Error {
	return &Error{Kind: kind, Component: component, Op: op, Err: err}
}

// Wrap is New with a formatted message folded into Err, mirroring the
// teacher's fmt.Errorf("...: %w", err) call sites one-for-one.
func Wrap(kind Kind, component, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Component: component, Op: op, Err: fmt.Errorf(format, args...)}
}

// HasKind reports whether err (or anything it wraps) is an *Error of the
// given Kind.
func HasKind(err error, kind Kind) bool {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Kind, true
	}
	return "", false
}

// Retryable reports whether a failure of this Kind is worth retrying with
// backoff, as opposed to surfacing immediately. Transient network faults and
// simulation failures (which can succeed on a later, fresher block) are
// retryable; everything else is not.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransientNetwork, KindSimulationFailure:
		return true
	default:
		return false
	}
}
