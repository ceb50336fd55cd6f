package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// PostgreSQL error codes with a fixed classification.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeLockNotAvailable     = "55P03"
	pgCodeQueryCanceled        = "57014"
	pgCodeInvalidCatalogName   = "3D000"
)

// ForDriver returns the classifier matching a database driver.
func ForDriver(d sqlexplorer.Driver) sqlexplorer.ErrorClassifier {
	if d == sqlexplorer.DriverPostgres {
		return NewPostgreSQLErrorClassifier()
	}
	return NewSQLServerErrorClassifier()
}

// PostgreSQLErrorClassifier implements ErrorClassifier for PostgreSQL-specific errors.
type PostgreSQLErrorClassifier struct{}

// NewPostgreSQLErrorClassifier creates a new PostgreSQL error classifier.
func NewPostgreSQLErrorClassifier() *PostgreSQLErrorClassifier {
	return &PostgreSQLErrorClassifier{}
}

// Classify maps err onto an ErrorKind. Unrecognized errors are permanent.
func (c *PostgreSQLErrorClassifier) Classify(err error) sqlexplorer.ErrorKind {
	if kind, ok := classifyCommon(err); ok {
		return kind
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgCode(pgErr.Code)
	}

	if pgconn.Timeout(err) {
		return sqlexplorer.KindTransientExecution
	}

	return classifyTransport(err)
}

func classifyPgCode(code string) sqlexplorer.ErrorKind {
	switch code {
	case pgCodeSerializationFailure, pgCodeDeadlockDetected, pgCodeLockNotAvailable, pgCodeQueryCanceled:
		return sqlexplorer.KindTransientExecution
	case pgCodeInvalidCatalogName:
		return sqlexplorer.KindConfiguration
	}

	switch {
	// 08 connection exception, 53 insufficient resources, 57 operator intervention
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"), strings.HasPrefix(code, "57"):
		return sqlexplorer.KindTransientExecution
	// 28 invalid authorization specification
	case strings.HasPrefix(code, "28"):
		return sqlexplorer.KindConfiguration
	}
	return sqlexplorer.KindPermanentExecution
}

// classifyCommon handles errors that mean the same thing for every driver.
func classifyCommon(err error) (sqlexplorer.ErrorKind, bool) {
	if err == nil {
		return sqlexplorer.KindUnknown, true
	}

	var qe *sqlexplorer.QueryError
	if errors.As(err, &qe) {
		return qe.Kind, true
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, sqlexplorer.ErrCanceled):
		return sqlexplorer.KindCanceled, true
	case errors.Is(err, sqlexplorer.ErrPoolClosed):
		return sqlexplorer.KindPoolClosed, true
	case errors.Is(err, sqlexplorer.ErrPoolExhausted):
		return sqlexplorer.KindPoolExhausted, true
	case errors.Is(err, sqlexplorer.ErrConfiguration):
		return sqlexplorer.KindConfiguration, true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, sqlexplorer.ErrTransientExecution):
		return sqlexplorer.KindTransientExecution, true
	case errors.Is(err, sqlexplorer.ErrPermanentExecution):
		return sqlexplorer.KindPermanentExecution, true
	}
	return sqlexplorer.KindUnknown, false
}

// classifyTransport recognizes network-level failures; anything else is permanent.
func classifyTransport(err error) sqlexplorer.ErrorKind {
	if isNetworkError(err) || isConnectionError(err) {
		return sqlexplorer.KindTransientExecution
	}
	return sqlexplorer.KindPermanentExecution
}

func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() || dnsErr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}
		if opErr.Err != nil {
			for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ENETUNREACH, syscall.EHOSTUNREACH, syscall.EPIPE} {
				if errors.Is(opErr.Err, errno) {
					return true
				}
			}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

var transientPatterns = []string{
	"connection refused",
	"actively refused",
	"connection reset",
	"connection timeout",
	"connection failure",
	"network is unreachable",
	"i/o timeout",
	"broken pipe",
	"too many connections",
	"server closed the connection",
	"unexpected eof",
	"bad connection",
	"driver: bad connection",
	"hyt00",
	"timeout expired",
}

func isConnectionError(err error) bool {
	errMsg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
