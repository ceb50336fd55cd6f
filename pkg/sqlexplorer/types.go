package sqlexplorer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// QueryRequest is one statement submitted to the query service.
// It is treated as immutable once submitted.
type QueryRequest struct {
	// Statement is the SQL text. Parameters use the driver's placeholder syntax
	// (@p1 for SQL Server, $1 for PostgreSQL).
	Statement string

	// Params are bound positionally, in order.
	Params []any

	// TTL overrides the default cache lifetime for this result. Zero keeps the default.
	TTL time.Duration

	// ForceRefresh bypasses the cache on read; the fresh result is still cached.
	ForceRefresh bool
}

// Validate checks the request before it reaches the cache or the pool.
func (r QueryRequest) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Statement) == "" {
		errs = append(errs, fmt.Errorf("statement is required: %w", ErrConfiguration))
	}
	if r.TTL < 0 {
		errs = append(errs, fmt.Errorf("ttl cannot be negative: %w", ErrConfiguration))
	}
	return errors.Join(errs...)
}

// PoolConfig is the immutable configuration of a connection pool.
type PoolConfig struct {
	// MinSize handles are dialed eagerly by Warm.
	MinSize int

	// MaxSize bounds the number of live handles, idle and in use.
	MaxSize int

	// AcquireTimeout bounds how long Acquire waits. Zero means wait on ctx only.
	AcquireTimeout time.Duration

	// ValidationInterval: idle handles unvalidated for longer than this are pinged before reuse.
	// Zero pings on every reuse.
	ValidationInterval time.Duration

	// MaxLifetime retires handles at release time once they are older than this. Zero disables it.
	MaxLifetime time.Duration
}

// DefaultPoolConfig returns the pool settings used when nothing is configured.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinSize:            DefaultPoolMinSize,
		MaxSize:            DefaultPoolMaxSize,
		AcquireTimeout:     DefaultAcquireTimeout,
		ValidationInterval: DefaultValidationInterval,
		MaxLifetime:        DefaultMaxLifetime,
	}
}

func (c PoolConfig) Validate() error {
	var errs []error
	if c.MaxSize < 1 {
		errs = append(errs, fmt.Errorf("pool max size must be at least 1: %w", ErrConfiguration))
	}
	if c.MinSize < 0 {
		errs = append(errs, fmt.Errorf("pool min size cannot be negative: %w", ErrConfiguration))
	}
	if c.MinSize > c.MaxSize {
		errs = append(errs, fmt.Errorf("pool min size %d exceeds max size %d: %w", c.MinSize, c.MaxSize, ErrConfiguration))
	}
	if c.AcquireTimeout < 0 || c.ValidationInterval < 0 || c.MaxLifetime < 0 {
		errs = append(errs, fmt.Errorf("pool durations cannot be negative: %w", ErrConfiguration))
	}
	return errors.Join(errs...)
}

// RetryPolicy describes how failed attempts are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int

	// BaseBackoff is the delay before the first retry. The delay before retry n
	// is BaseBackoff * Multiplier^(n-1), capped at MaxBackoff.
	BaseBackoff time.Duration
	Multiplier  float64
	MaxBackoff  time.Duration

	// Jitter randomizes each delay by up to ±Jitter (0.0 to 1.0).
	Jitter float64

	// AttemptTimeout bounds one attempt. Zero disables it.
	AttemptTimeout time.Duration

	// Budget bounds the whole retry loop, delays included. Zero disables it.
	Budget time.Duration

	// Retryable is the set of kinds that trigger a retry.
	Retryable map[ErrorKind]bool
}

// DefaultRetryPolicy retries transient failures three times in total with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultRetryMaxAttempts,
		BaseBackoff:    DefaultRetryBaseBackoff,
		Multiplier:     DefaultRetryMultiplier,
		MaxBackoff:     DefaultRetryMaxBackoff,
		AttemptTimeout: DefaultAttemptTimeout,
		Budget:         DefaultRetryBudget,
		Retryable:      map[ErrorKind]bool{KindTransientExecution: true},
	}
}

// IsRetryable reports whether kind is in the retryable set.
func (p RetryPolicy) IsRetryable(kind ErrorKind) bool {
	return p.Retryable[kind]
}

func (p RetryPolicy) Validate() error {
	var errs []error
	if p.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry max attempts must be at least 1: %w", ErrConfiguration))
	}
	if p.BaseBackoff < 0 || p.MaxBackoff < 0 || p.AttemptTimeout < 0 || p.Budget < 0 {
		errs = append(errs, fmt.Errorf("retry durations cannot be negative: %w", ErrConfiguration))
	}
	if p.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("retry multiplier must be >= 1: %w", ErrConfiguration))
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		errs = append(errs, fmt.Errorf("retry jitter must be between 0 and 1: %w", ErrConfiguration))
	}
	return errors.Join(errs...)
}

// Driver selects the database backend.
type Driver string

const (
	DriverSQLServer Driver = "sqlserver"
	DriverPostgres  Driver = "postgres"
)

// ParseDriver accepts the common aliases for each backend.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlserver", "mssql", "azuresql":
		return DriverSQLServer, nil
	case "postgres", "postgresql", "pg":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnsupportedDriver)
}

// DefaultPort returns the standard TCP port for the driver.
func (d Driver) DefaultPort() int {
	if d == DriverPostgres {
		return DefaultPostgresPort
	}
	return DefaultSQLServerPort
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodSQL          AuthMethod = iota // Username/Password login
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID) access token
	AuthMethodAWSIAM                         // AWS RDS IAM token (PostgreSQL only)
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM (PostgreSQL only)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSQL:
		return "SQL"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodSQL && a <= AuthMethodGoogleIAM
}

// ParseAuthMethod maps a flag or config value to an AuthMethod.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sql", "password", "standard":
		return AuthMethodSQL, nil
	case "azure", "entra", "azure-ad":
		return AuthMethodAzureEntraID, nil
	case "aws", "aws-iam":
		return AuthMethodAWSIAM, nil
	case "google", "gcp", "google-iam":
		return AuthMethodGoogleIAM, nil
	}
	return AuthMethodSQL, fmt.Errorf("%q: %w", s, ErrUnsupportedAuthMode)
}

// Credentials are the connection parameters supplied by a CredentialProvider.
type Credentials struct {
	Driver   Driver
	Server   string
	Port     int
	Database string
	Username string
	Password string

	AuthMethod AuthMethod

	// Encrypt and TrustServerCertificate map to the SQL Server TLS options.
	// For PostgreSQL, Encrypt selects sslmode=require instead of prefer.
	Encrypt                bool
	TrustServerCertificate bool

	AppName        string
	ConnectTimeout time.Duration

	// Cloud authentication parameters.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
	AWSRegion         string
	GoogleInstance    string // project:region:instance
}

// Address returns host:port.
func (c *Credentials) Address() string {
	return fmt.Sprintf("%s:%d", c.Server, c.EffectivePort())
}

// EffectivePort returns Port, or the driver default when unset.
func (c *Credentials) EffectivePort() int {
	if c.Port > 0 {
		return c.Port
	}
	return c.Driver.DefaultPort()
}

// String describes the target without secrets.
func (c *Credentials) String() string {
	return fmt.Sprintf("%s://%s@%s/%s (%s)", c.Driver, c.Username, c.Address(), c.Database, c.AuthMethod)
}

// Validate returns an ErrConfiguration-wrapped error for missing or inconsistent fields.
func (c *Credentials) Validate() error {
	if c == nil {
		return fmt.Errorf("credentials are missing: %w", ErrConfiguration)
	}
	var errs []error
	if c.Driver != DriverSQLServer && c.Driver != DriverPostgres {
		errs = append(errs, fmt.Errorf("driver %q: %w", c.Driver, ErrConfiguration))
	}
	if c.Server == "" && c.AuthMethod != AuthMethodGoogleIAM {
		errs = append(errs, fmt.Errorf("server is required: %w", ErrConfiguration))
	}
	if c.Database == "" {
		errs = append(errs, fmt.Errorf("database is required: %w", ErrConfiguration))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range: %w", c.Port, ErrConfiguration))
	}
	if !c.AuthMethod.IsValid() {
		errs = append(errs, fmt.Errorf("auth method %v: %w", c.AuthMethod, ErrConfiguration))
	}

	switch c.AuthMethod {
	case AuthMethodSQL:
		if c.Username == "" {
			errs = append(errs, fmt.Errorf("username is required: %w", ErrConfiguration))
		}
		if c.Password == "" {
			errs = append(errs, fmt.Errorf("password is required for SQL login: %w", ErrConfiguration))
		}
	case AuthMethodAWSIAM:
		if c.Driver != DriverPostgres {
			errs = append(errs, fmt.Errorf("AWS IAM auth requires the postgres driver: %w", ErrConfiguration))
		}
		if c.AWSRegion == "" || c.Username == "" {
			errs = append(errs, fmt.Errorf("AWS IAM auth requires region and username: %w", ErrConfiguration))
		}
	case AuthMethodGoogleIAM:
		if c.Driver != DriverPostgres {
			errs = append(errs, fmt.Errorf("Google IAM auth requires the postgres driver: %w", ErrConfiguration))
		}
		if c.GoogleInstance == "" || c.Username == "" {
			errs = append(errs, fmt.Errorf("Google IAM auth requires instance and username: %w", ErrConfiguration))
		}
	}
	return errors.Join(errs...)
}
