// Package query is the entry point for running SQL. A Service looks the
// statement up in the result cache and, on a miss, runs it through the retry
// executor against a pooled session, caching the result on success.
//
//	svc, err := query.New(p, cache.NewLRU(256, 10*time.Minute),
//	    query.WithDriver(sqlexplorer.DriverSQLServer),
//	    query.WithRetryPolicy(policy),
//	    query.WithLogger(logger),
//	)
//	rs, err := svc.Run(ctx, sqlexplorer.QueryRequest{Statement: "SELECT 1"})
package query
