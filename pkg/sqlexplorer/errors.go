package sqlexplorer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failure so callers can decide how to react to it
// without inspecting driver-specific error values.
type ErrorKind int

const (
	// KindUnknown is the zero value and is never produced by the classifiers.
	KindUnknown ErrorKind = iota
	// KindConfiguration covers bad or missing credentials and settings. Never retried.
	KindConfiguration
	// KindPoolExhausted means no handle became available within the acquire timeout.
	KindPoolExhausted
	// KindPoolClosed means the pool was used after shutdown.
	KindPoolClosed
	// KindTransientExecution covers network blips, deadlocks and timeouts.
	KindTransientExecution
	// KindPermanentExecution covers syntax errors, missing objects and permission failures.
	KindPermanentExecution
	// KindCanceled means the caller cancelled the operation.
	KindCanceled
)

// String returns a stable, human-readable name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindPoolExhausted:
		return "pool_exhausted"
	case KindPoolClosed:
		return "pool_closed"
	case KindTransientExecution:
		return "transient"
	case KindPermanentExecution:
		return "permanent"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseErrorKind is the inverse of ErrorKind.String.
func ParseErrorKind(s string) (ErrorKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "configuration", "config":
		return KindConfiguration, nil
	case "pool_exhausted":
		return KindPoolExhausted, nil
	case "pool_closed":
		return KindPoolClosed, nil
	case "transient":
		return KindTransientExecution, nil
	case "permanent":
		return KindPermanentExecution, nil
	case "canceled", "cancelled":
		return KindCanceled, nil
	}
	return KindUnknown, fmt.Errorf("unknown error kind %q: %w", s, ErrConfiguration)
}

// Sentinel errors, one per ErrorKind.
// Use errors.Is to test for them; a *QueryError matches the sentinel of its Kind.
//
//	rs, err := svc.Run(ctx, req)
//	if errors.Is(err, sqlexplorer.ErrPoolExhausted) {
//	    // back off and try again later
//	}
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrPoolExhausted       = errors.New("connection pool exhausted")
	ErrPoolClosed          = errors.New("connection pool closed")
	ErrTransientExecution  = errors.New("transient execution error")
	ErrPermanentExecution  = errors.New("permanent execution error")
	ErrCanceled            = errors.New("operation canceled")
	ErrUnsupportedDriver   = errors.New("unsupported driver")
	ErrUnsupportedAuthMode = errors.New("unsupported authentication method")
)

// Sentinel returns the sentinel error for a kind, or nil for KindUnknown.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindPoolExhausted:
		return ErrPoolExhausted
	case KindPoolClosed:
		return ErrPoolClosed
	case KindTransientExecution:
		return ErrTransientExecution
	case KindPermanentExecution:
		return ErrPermanentExecution
	case KindCanceled:
		return ErrCanceled
	}
	return nil
}

// QueryError is the final error surfaced by the query service once the
// retry executor has given up.
type QueryError struct {
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *QueryError) Error() string {
	noun := "attempts"
	if e.Attempts == 1 {
		noun = "attempt"
	}
	return fmt.Sprintf("query failed (%s) after %d %s: %v", e.Kind, e.Attempts, noun, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *QueryError) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// KindOf extracts the ErrorKind carried by err.
// A *QueryError anywhere in the chain wins; otherwise the first matching sentinel decides.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	for _, k := range []ErrorKind{
		KindCanceled, KindPoolClosed, KindPoolExhausted, KindConfiguration,
		KindPermanentExecution, KindTransientExecution,
	} {
		if errors.Is(err, k.Sentinel()) {
			return k
		}
	}
	return KindUnknown
}

// AttemptsOf returns the attempt count recorded in err, or 0.
func AttemptsOf(err error) int {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Attempts
	}
	return 0
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch KindOf(err) {
	case KindConfiguration:
		return ExitConfigError
	case KindPoolExhausted:
		return ExitPoolExhausted
	case KindPoolClosed:
		return ExitPoolClosed
	case KindTransientExecution:
		return ExitConnectionError
	case KindPermanentExecution:
		return ExitExecutionFailed
	}
	if errors.Is(err, ErrUnsupportedDriver) || errors.Is(err, ErrUnsupportedAuthMode) {
		return ExitConfigError
	}

	errStr := err.Error()
	if isUsageError(errStr) {
		return ExitUsageError
	}
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}

func isUsageError(msg string) bool {
	for _, p := range []string{"unknown flag", "unknown shorthand flag", "accepts ", "required flag", "invalid argument", "unknown command", "missing required argument"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
