package query

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

var systemSchemas = []string{"pg_catalog", "information_schema"}

// TablesRequest lists base tables and views from INFORMATION_SCHEMA.
func TablesRequest(driver sqlexplorer.Driver) (sqlexplorer.QueryRequest, error) {
	qb := sq.Select("TABLE_SCHEMA", "TABLE_NAME", "TABLE_TYPE").
		From("INFORMATION_SCHEMA.TABLES").
		OrderBy("TABLE_SCHEMA", "TABLE_NAME")

	switch driver {
	case sqlexplorer.DriverPostgres:
		qb = qb.Where(sq.NotEq{"TABLE_SCHEMA": systemSchemas}).PlaceholderFormat(sq.Dollar)
	case sqlexplorer.DriverSQLServer, "":
		qb = qb.PlaceholderFormat(sq.AtP)
	default:
		return sqlexplorer.QueryRequest{}, fmt.Errorf("%q: %w", driver, sqlexplorer.ErrUnsupportedDriver)
	}
	return toRequest(qb)
}

// DatabaseInfoRequest reports server name, database name and version.
func DatabaseInfoRequest(driver sqlexplorer.Driver) (sqlexplorer.QueryRequest, error) {
	var qb sq.SelectBuilder
	switch driver {
	case sqlexplorer.DriverPostgres:
		qb = sq.Select(
			"COALESCE(inet_server_addr()::text, 'localhost') AS ServerName",
			"current_database() AS DatabaseName",
			"version() AS ServerVersion",
			"current_setting('server_version') AS ProductVersion",
		)
	case sqlexplorer.DriverSQLServer, "":
		qb = sq.Select(
			"@@SERVERNAME AS ServerName",
			"DB_NAME() AS DatabaseName",
			"@@VERSION AS ServerVersion",
			"CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128)) AS ProductVersion",
		)
	default:
		return sqlexplorer.QueryRequest{}, fmt.Errorf("%q: %w", driver, sqlexplorer.ErrUnsupportedDriver)
	}
	return toRequest(qb)
}

func toRequest(qb sq.SelectBuilder) (sqlexplorer.QueryRequest, error) {
	statement, args, err := qb.ToSql()
	if err != nil {
		return sqlexplorer.QueryRequest{}, fmt.Errorf("building catalog query: %w", err)
	}
	return sqlexplorer.QueryRequest{Statement: statement, Params: args}, nil
}

// Tables lists the tables of the connected database. Results are cached like any query.
func (s *Service) Tables(ctx context.Context) (*Outcome, error) {
	req, err := TablesRequest(s.driver)
	if err != nil {
		return nil, &sqlexplorer.QueryError{Kind: sqlexplorer.KindConfiguration, Err: err}
	}
	return s.Execute(ctx, req)
}

// DatabaseInfo describes the connected server.
func (s *Service) DatabaseInfo(ctx context.Context) (*Outcome, error) {
	req, err := DatabaseInfoRequest(s.driver)
	if err != nil {
		return nil, &sqlexplorer.QueryError{Kind: sqlexplorer.KindConfiguration, Err: err}
	}
	return s.Execute(ctx, req)
}
