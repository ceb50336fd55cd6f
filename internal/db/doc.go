// Package db turns Credentials into a sqlexplorer.Dialer for SQL Server
// (go-mssqldb) or PostgreSQL (pgx), including Azure Entra ID, AWS RDS IAM and
// Google Cloud SQL IAM authentication. Sessions materialize results into
// ResultSets with normalized cell types.
package db
