package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/vvka-141/sqlexplorer/internal/sqltext"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// sqlSession is a Session over one dedicated database/sql connection.
type sqlSession struct {
	conn *sql.Conn
	// broken marks the connection for disposal by database/sql on Close.
	broken bool
}

func newSQLSession(conn *sql.Conn) *sqlSession {
	return &sqlSession{conn: conn}
}

func (s *sqlSession) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		s.broken = true
		return err
	}
	return nil
}

// Query runs statement and materializes every row. Data-modifying statements
// that return no rows go through ExecContext so the affected row count is known.
func (s *sqlSession) Query(ctx context.Context, statement string, args []any) (*sqlexplorer.ResultSet, error) {
	if isExecStatement(statement) {
		res, err := s.conn.ExecContext(ctx, statement, args...)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = -1
		}
		return sqlexplorer.EmptyResultSet(n), nil
	}

	rows, err := s.conn.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

func scanRows(rows *sql.Rows) (*sqlexplorer.ResultSet, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column types: %w", err)
	}
	columns := make([]sqlexplorer.Column, len(types))
	for i, ct := range types {
		columns[i] = sqlexplorer.Column{Name: ct.Name(), DatabaseType: ct.DatabaseTypeName()}
	}

	var data [][]any
	for rows.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row %d: %w", len(data), err)
		}
		for i, v := range raw {
			raw[i] = normalizeCell(v, columns[i].DatabaseType)
		}
		data = append(data, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sqlexplorer.NewResultSet(columns, data, int64(len(data)))
}

func (s *sqlSession) Close() error {
	if s.broken {
		// Returning ErrBadConn from Raw makes database/sql discard the connection.
		_ = s.conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	err := s.conn.Close()
	if err == sql.ErrConnDone {
		return nil
	}
	return err
}

var execKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true,
	"CREATE": true, "ALTER": true, "DROP": true, "TRUNCATE": true,
	"GRANT": true, "REVOKE": true, "SET": true, "USE": true,
}

// isExecStatement reports whether statement starts with a keyword that never
// yields a row set. OUTPUT/RETURNING clauses turn a modification into a query.
func isExecStatement(statement string) bool {
	if !execKeywords[sqltext.LeadingKeyword(statement)] {
		return false
	}
	return !sqltext.ContainsKeyword(statement, "OUTPUT") && !sqltext.ContainsKeyword(statement, "RETURNING")
}
