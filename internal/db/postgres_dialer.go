package db

import (
	"context"
	"fmt"
	"net"
	"time"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/sqlexplorer/internal/logging"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// PostgresDialer opens one pgx connection per Dial.
type PostgresDialer struct {
	base   *pgx.ConnConfig
	creds  *sqlexplorer.Credentials
	tokens TokenProvider
	gcp    *cloudsqlconn.Dialer
	logger sqlexplorer.Logger
}

// NewPostgresDialer builds a dialer for creds. tokens supplies the password
// for AWS IAM and Azure auth; Google IAM uses the Cloud SQL connector instead.
func NewPostgresDialer(ctx context.Context, creds *sqlexplorer.Credentials, tokens TokenProvider, logger sqlexplorer.Logger) (*PostgresDialer, error) {
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	dsn := BuildPostgresDSN(creds)
	if creds.AuthMethod == sqlexplorer.AuthMethodGoogleIAM {
		if creds.GoogleInstance == "" {
			return nil, fmt.Errorf("Google Cloud SQL IAM auth requires an instance name (project:region:instance): %w", sqlexplorer.ErrConfiguration)
		}
		dsn = fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable", creds.GoogleInstance, creds.Username, creds.Database)
	}

	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %v: %w", err, sqlexplorer.ErrConfiguration)
	}
	cfg.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Info("%s", notice.Message)
	}

	d := &PostgresDialer{base: cfg, creds: creds, tokens: tokens, logger: logger}

	switch creds.AuthMethod {
	case sqlexplorer.AuthMethodSQL:
	case sqlexplorer.AuthMethodAWSIAM, sqlexplorer.AuthMethodAzureEntraID:
		if tokens == nil {
			return nil, fmt.Errorf("%s auth requires a token provider: %w", creds.AuthMethod, sqlexplorer.ErrConfiguration)
		}
	case sqlexplorer.AuthMethodGoogleIAM:
		gcp, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
		if err != nil {
			return nil, fmt.Errorf("failed to create Cloud SQL dialer: %w", err)
		}
		instance := creds.GoogleInstance
		cfg.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return gcp.Dial(ctx, instance)
		}
		d.gcp = gcp
	default:
		return nil, fmt.Errorf("%v: %w", creds.AuthMethod, sqlexplorer.ErrUnsupportedAuthMode)
	}
	return d, nil
}

func (d *PostgresDialer) Dial(ctx context.Context) (sqlexplorer.Session, error) {
	cfg := d.base.Copy()
	if d.tokens != nil {
		token, expiresOn, err := d.tokens.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire token from %s: %w", d.tokens, err)
		}
		if time.Until(expiresOn) < tokenExpiryWarning {
			d.logger.Info("Warning: %s token expires in %v", d.tokens, time.Until(expiresOn).Round(time.Second))
		}
		cfg.Password = token
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, wrapConnectionError(err, d.creds)
	}
	d.logger.Verbose("Opened PostgreSQL session to %s", d.creds.Address())
	return &pgxSession{conn: conn}, nil
}

// Close releases the Cloud SQL dialer, if any. Sessions are closed individually.
func (d *PostgresDialer) Close() error {
	if d.gcp != nil {
		err := d.gcp.Close()
		d.gcp = nil
		return err
	}
	return nil
}

type pgxSession struct {
	conn *pgx.Conn
}

func (s *pgxSession) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *pgxSession) Query(ctx context.Context, statement string, args []any) (*sqlexplorer.ResultSet, error) {
	rows, err := s.conn.Query(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]sqlexplorer.Column, len(fields))
	typeMap := s.conn.TypeMap()
	for i, f := range fields {
		columns[i] = sqlexplorer.Column{Name: f.Name}
		if t, ok := typeMap.TypeForOID(f.DataTypeOID); ok {
			columns[i].DatabaseType = t.Name
		}
	}

	var data [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(data), err)
		}
		for i, v := range values {
			values[i] = normalizeCell(v, columns[i].DatabaseType)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	affected := rows.CommandTag().RowsAffected()
	if len(columns) == 0 {
		return sqlexplorer.EmptyResultSet(affected), nil
	}
	return sqlexplorer.NewResultSet(columns, data, affected)
}

func (s *pgxSession) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.conn.Close(ctx)
}
