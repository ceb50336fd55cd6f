package retry

import (
	"errors"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// SQL Server error numbers with a fixed classification.
// See: https://learn.microsoft.com/sql/relational-databases/errors-events/database-engine-events-and-errors
var sqlServerTransient = map[int32]bool{
	-2:    true, // client timeout (HYT00)
	64:    true, // network name no longer available
	233:   true, // no process on the other end of the pipe
	1205:  true, // deadlock victim
	1222:  true, // lock request time out
	4221:  true, // login to read-secondary failed due to long wait
	10053: true, // transport-level error, connection aborted
	10054: true, // connection reset by peer
	10060: true, // connection attempt timed out
	10928: true, // Azure SQL resource limit
	10929: true, // Azure SQL resource limit
	40143: true, // service encountered an error processing the request
	40197: true, // service error processing the request
	40501: true, // service is busy
	40613: true, // database unavailable
	49918: true, // not enough resources
	49919: true, // too many create/update operations
	49920: true, // too many operations in progress
}

var sqlServerConfiguration = map[int32]bool{
	4060:  true, // cannot open database requested by the login
	18452: true, // login from untrusted domain
	18456: true, // login failed
	18486: true, // account locked out
	18487: true, // password expired
	18488: true, // password must be changed
}

// SQLServerErrorClassifier implements ErrorClassifier for Microsoft SQL Server and Azure SQL.
type SQLServerErrorClassifier struct{}

// NewSQLServerErrorClassifier creates a new SQL Server error classifier.
func NewSQLServerErrorClassifier() *SQLServerErrorClassifier {
	return &SQLServerErrorClassifier{}
}

// Classify maps err onto an ErrorKind. Syntax, missing-object and permission
// errors (and anything unrecognized) are permanent.
func (c *SQLServerErrorClassifier) Classify(err error) sqlexplorer.ErrorKind {
	if kind, ok := classifyCommon(err); ok {
		return kind
	}

	if number, ok := sqlServerNumber(err); ok {
		switch {
		case sqlServerTransient[number]:
			return sqlexplorer.KindTransientExecution
		case sqlServerConfiguration[number]:
			return sqlexplorer.KindConfiguration
		default:
			return sqlexplorer.KindPermanentExecution
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "login failed") || strings.Contains(msg, "28000") {
		return sqlexplorer.KindConfiguration
	}

	return classifyTransport(err)
}

func sqlServerNumber(err error) (int32, bool) {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number, true
	}
	var msErrPtr *mssql.Error
	if errors.As(err, &msErrPtr) && msErrPtr != nil {
		return msErrPtr.Number, true
	}
	return 0, false
}
