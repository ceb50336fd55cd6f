package sqlexplorer

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Command completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or credentials
	ExitConnectionError = 11 // Database unreachable or transient failures exhausted retries
	ExitPoolExhausted   = 12 // No connection available within the acquire timeout
	ExitExecutionFailed = 13 // SQL execution failed permanently
	ExitPoolClosed      = 14 // Pool used after shutdown
)

const (
	// DefaultPoolMinSize is the number of handles dialed by Warm.
	DefaultPoolMinSize = 1

	// DefaultPoolMaxSize bounds concurrent sessions against the server.
	DefaultPoolMaxSize = 5

	// DefaultAcquireTimeout bounds how long Acquire waits for a handle.
	DefaultAcquireTimeout = 5 * time.Second

	// DefaultValidationInterval is how long an idle handle may go unpinged before reuse.
	DefaultValidationInterval = 30 * time.Second

	// DefaultMaxLifetime retires handles so server-side resources are recycled.
	DefaultMaxLifetime = 30 * time.Minute

	// DefaultRetryMaxAttempts is the total number of attempts, including the first one.
	DefaultRetryMaxAttempts = 3

	// DefaultRetryBaseBackoff is the delay before the first retry.
	DefaultRetryBaseBackoff = 1 * time.Second

	// DefaultRetryMultiplier grows the delay between consecutive retries.
	DefaultRetryMultiplier = 2.0

	// DefaultRetryMaxBackoff caps a single retry delay.
	DefaultRetryMaxBackoff = 30 * time.Second

	// DefaultAttemptTimeout bounds one execution attempt.
	DefaultAttemptTimeout = 30 * time.Second

	// DefaultRetryBudget bounds the whole retry loop.
	DefaultRetryBudget = 2 * time.Minute

	// DefaultCacheTTL is how long a result stays cached when a request has no override.
	DefaultCacheTTL = 600 * time.Second

	// DefaultCacheMaxEntries bounds the in-memory result cache.
	DefaultCacheMaxEntries = 256

	// MaxLoggedStatementLength truncates statements in log lines.
	MaxLoggedStatementLength = 100

	// DefaultSQLServerPort is the standard SQL Server TCP port.
	DefaultSQLServerPort = 1433

	// DefaultPostgresPort is the standard PostgreSQL TCP port.
	DefaultPostgresPort = 5432
)
