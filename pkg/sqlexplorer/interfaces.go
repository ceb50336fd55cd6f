package sqlexplorer

import (
	"context"
	"time"
)

// Session is one live database connection. A session serves a single caller at a time.
type Session interface {
	// Ping performs a cheap round-trip to prove the session is usable.
	Ping(ctx context.Context) error

	// Query runs statement with positional args and materializes the full result.
	Query(ctx context.Context, statement string, args []any) (*ResultSet, error)

	// Close releases the underlying transport.
	Close() error
}

// Dialer opens new sessions. The connection pool calls Dial whenever it needs a handle.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)

	// Close releases resources shared by all sessions (driver pools, cloud dialers).
	Close() error
}

// CredentialProvider supplies connection parameters at pool construction time.
type CredentialProvider interface {
	Credentials(ctx context.Context) (*Credentials, error)

	// String returns a description for logging. Must not include secrets.
	String() string
}

// ErrorClassifier maps a failure onto an ErrorKind.
type ErrorClassifier interface {
	Classify(err error) ErrorKind
}

// BackoffStrategy calculates the delay before the next retry attempt.
type BackoffStrategy interface {
	// NextDelay returns the duration to wait before retry number attempt+1.
	// attempt is zero-indexed (0 = first retry, 1 = second retry, etc.)
	NextDelay(attempt int) time.Duration

	// MaxAttempts returns the total number of attempts, including the first one.
	MaxAttempts() int
}

// Logger provides a pluggable logging interface.
// Implementations must be safe for concurrent use by multiple goroutines.
type Logger interface {
	// Verbose logs detailed diagnostic information.
	// Only logged when verbose mode is enabled.
	Verbose(format string, args ...interface{})

	// Info logs informational messages about normal operations.
	Info(format string, args ...interface{})

	// Error logs error messages.
	Error(format string, args ...interface{})
}
