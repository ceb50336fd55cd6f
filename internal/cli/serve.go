package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlexplorer/internal/config"
	"github.com/vvka-141/sqlexplorer/internal/server"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// apiEnv holds API_* variables that complete the server section of
// sqlexplorer.yaml.
type apiEnv struct {
	SecretKey      string `split_words:"true"`
	Username       string
	HashedPassword string `split_words:"true"`
}

var serveFlags struct {
	conn connectionFlags
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the query service as a token-protected HTTP API",
	Long: `Serve the query service over HTTP.

Endpoints:
  POST   /token               exchange username/password for a bearer token
  POST   /api/query           run a statement, JSON result
  POST   /api/query/csv       run a statement, CSV attachment
  POST   /api/query/xlsx      run a statement, Excel attachment
  GET    /api/tables          list base tables
  GET    /api/database-info   server and database details
  DELETE /api/cache           clear the result cache
  GET    /api/health          liveness and database reachability
  GET    /metrics             Prometheus metrics

The JWT signing secret comes from server.jwt_secret or API_SECRET_KEY. Users come
from server.users (bcrypt hashes) plus API_USERNAME/API_HASHED_PASSWORD.
SIGINT or SIGTERM stops accepting requests, waits for in-flight ones and
drains the connection pool.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addConnectionFlags(serveCmd, &serveFlags.conn)
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "Listen address (default from config, :8000)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, getConfigDir(cmd), getVerboseFlag(cmd), &serveFlags.conn, appOptions{
		structured: true,
		metrics:    true,
		warm:       true,
		stderr:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	scfg, err := serverConfig(a.cfg.Server, serveFlags.addr)
	if err != nil {
		return err
	}
	srv, err := server.New(scfg, a.svc, a.slog, server.WithMetrics(a.metrics.Handler()))
	if err != nil {
		return fmt.Errorf("%v: %w", err, sqlexplorer.ErrConfiguration)
	}
	return srv.Run(ctx)
}

// serverConfig applies --addr and the API_* environment to the server section.
// Users from the config file win over API_USERNAME with the same name.
func serverConfig(base config.ServerConfig, addr string) (config.ServerConfig, error) {
	var env apiEnv
	if err := envconfig.Process("api", &env); err != nil {
		return base, fmt.Errorf("reading API_* environment: %v: %w", err, sqlexplorer.ErrConfiguration)
	}

	cfg := base
	if addr != "" {
		cfg.Addr = addr
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = env.SecretKey
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("no JWT secret: set server.jwt_secret in %s or API_SECRET_KEY: %w",
			config.ConfigFileName, sqlexplorer.ErrConfiguration)
	}

	users := make(map[string]string, len(base.Users)+1)
	if env.Username != "" && env.HashedPassword != "" {
		users[env.Username] = env.HashedPassword
	}
	for name, hash := range base.Users {
		users[name] = hash
	}
	cfg.Users = users
	return cfg, nil
}
