// Package retry provides automatic retry logic with exponential backoff
// for transient database failures.
//
// # Example Usage
//
//	classifier := retry.NewSQLServerErrorClassifier()
//	executor := retry.NewPolicyExecutor(classifier, sqlexplorer.DefaultRetryPolicy())
//
//	rs, err := retry.Do(ctx, executor, func(ctx context.Context) (*sqlexplorer.ResultSet, error) {
//	    return runOnce(ctx)
//	})
//
// # Error Classification
//
// An ErrorClassifier maps each failure onto a sqlexplorer.ErrorKind. The
// SQLServerErrorClassifier knows SQL Server and Azure SQL error numbers
// (deadlocks, throttling, login failures); the PostgreSQLErrorClassifier
// knows SQLSTATE classes. Both recognize network failures, context errors
// and the connection pool sentinels.
//
// # Attempts and Timeouts
//
// MaxAttempts counts every attempt including the first. Each attempt may run
// under its own timeout, and the loop as a whole under a budget. A failed
// Execute always returns *sqlexplorer.QueryError carrying the kind and the
// number of attempts made.
//
// # Thread Safety
//
// Executor instances are safe for concurrent use. Use WithOnRetry() to create
// independent configurations per goroutine.
package retry
