package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

const ConfigFileName = "sqlexplorer.yaml"

// ConnectionConfig holds non-secret connection settings. Passwords come from
// the environment, secrets.toml or AWS Secrets Manager, never from this file.
type ConnectionConfig struct {
	Driver                 string        `yaml:"driver"`
	Server                 string        `yaml:"server"`
	Port                   int           `yaml:"port"`
	Database               string        `yaml:"database"`
	Username               string        `yaml:"username"`
	Auth                   string        `yaml:"auth"`
	Encrypt                bool          `yaml:"encrypt"`
	TrustServerCertificate bool          `yaml:"trust_server_certificate"`
	AppName                string        `yaml:"app_name,omitempty"`
	ConnectTimeout         time.Duration `yaml:"connect_timeout"`
	AzureTenantID          string        `yaml:"azure_tenant_id,omitempty"`
	AzureClientID          string        `yaml:"azure_client_id,omitempty"`
	AWSRegion              string        `yaml:"aws_region,omitempty"`
	GoogleInstance         string        `yaml:"google_instance,omitempty"`

	// SecretsFile is a TOML file with a [sql] table, resolved relative to the config directory.
	SecretsFile string `yaml:"secrets_file,omitempty"`
	// AWSSecretID names a Secrets Manager secret holding the connection JSON.
	AWSSecretID string `yaml:"aws_secret_id,omitempty"`
}

type PoolConfig struct {
	MinSize            int           `yaml:"min_size"`
	MaxSize            int           `yaml:"max_size"`
	AcquireTimeout     time.Duration `yaml:"acquire_timeout"`
	ValidationInterval time.Duration `yaml:"validation_interval"`
	MaxLifetime        time.Duration `yaml:"max_lifetime"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseBackoff    time.Duration `yaml:"base_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Jitter         float64       `yaml:"jitter"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	Budget         time.Duration `yaml:"budget"`
	// Retryable lists error kinds by name, e.g. [transient, pool_exhausted].
	Retryable []string `yaml:"retryable"`
}

type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Disabled   bool          `yaml:"disabled"`

	// Redis enables a shared second-level cache when Addr is set.
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	JWTSecret       string        `yaml:"jwt_secret,omitempty"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Users maps user names to bcrypt password hashes.
	Users map[string]string `yaml:"users"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the content of sqlexplorer.yaml.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Pool       PoolConfig       `yaml:"pool"`
	Retry      RetryConfig      `yaml:"retry"`
	Cache      CacheConfig      `yaml:"cache"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`

	// dir is where the file was loaded from, for resolving relative paths.
	dir string
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	pool := sqlexplorer.DefaultPoolConfig()
	retry := sqlexplorer.DefaultRetryPolicy()
	return &Config{
		Connection: ConnectionConfig{
			Driver:         string(sqlexplorer.DriverSQLServer),
			Auth:           "sql",
			ConnectTimeout: 30 * time.Second,
			AppName:        "sqlexplorer",
		},
		Pool: PoolConfig{
			MinSize:            pool.MinSize,
			MaxSize:            pool.MaxSize,
			AcquireTimeout:     pool.AcquireTimeout,
			ValidationInterval: pool.ValidationInterval,
			MaxLifetime:        pool.MaxLifetime,
		},
		Retry: RetryConfig{
			MaxAttempts:    retry.MaxAttempts,
			BaseBackoff:    retry.BaseBackoff,
			Multiplier:     retry.Multiplier,
			MaxBackoff:     retry.MaxBackoff,
			AttemptTimeout: retry.AttemptTimeout,
			Budget:         retry.Budget,
			Retryable:      []string{sqlexplorer.KindTransientExecution.String()},
		},
		Cache: CacheConfig{
			TTL:        sqlexplorer.DefaultCacheTTL,
			MaxEntries: sqlexplorer.DefaultCacheMaxEntries,
		},
		Server: ServerConfig{
			Addr:            ":8000",
			TokenTTL:        30 * time.Minute,
			RateLimit:       10,
			RateBurst:       20,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads sqlexplorer.yaml from dir over the defaults. Keys absent from
// the file keep their default values.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads a config file at an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %v: %w", path, err, sqlexplorer.ErrConfiguration)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Validate checks every section and joins the problems found.
func (c *Config) Validate() error {
	var errs []error
	if _, err := sqlexplorer.ParseDriver(c.Connection.Driver); err != nil {
		errs = append(errs, fmt.Errorf("connection.driver: %v: %w", err, sqlexplorer.ErrConfiguration))
	}
	if _, err := sqlexplorer.ParseAuthMethod(c.Connection.Auth); err != nil {
		errs = append(errs, fmt.Errorf("connection.auth: %v: %w", err, sqlexplorer.ErrConfiguration))
	}
	if err := c.PoolConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	policy, err := c.RetryPolicy()
	if err != nil {
		errs = append(errs, err)
	} else if err := policy.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.TTL < 0 || c.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache ttl and max_entries cannot be negative: %w", sqlexplorer.ErrConfiguration))
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("server rate limits cannot be negative: %w", sqlexplorer.ErrConfiguration))
	}
	return errors.Join(errs...)
}

func (c *Config) PoolConfig() sqlexplorer.PoolConfig {
	return sqlexplorer.PoolConfig{
		MinSize:            c.Pool.MinSize,
		MaxSize:            c.Pool.MaxSize,
		AcquireTimeout:     c.Pool.AcquireTimeout,
		ValidationInterval: c.Pool.ValidationInterval,
		MaxLifetime:        c.Pool.MaxLifetime,
	}
}

// RetryPolicy converts the retry section; unknown kind names are configuration errors.
func (c *Config) RetryPolicy() (sqlexplorer.RetryPolicy, error) {
	p := sqlexplorer.RetryPolicy{
		MaxAttempts:    c.Retry.MaxAttempts,
		BaseBackoff:    c.Retry.BaseBackoff,
		Multiplier:     c.Retry.Multiplier,
		MaxBackoff:     c.Retry.MaxBackoff,
		Jitter:         c.Retry.Jitter,
		AttemptTimeout: c.Retry.AttemptTimeout,
		Budget:         c.Retry.Budget,
		Retryable:      make(map[sqlexplorer.ErrorKind]bool, len(c.Retry.Retryable)),
	}
	for _, name := range c.Retry.Retryable {
		kind, err := sqlexplorer.ParseErrorKind(name)
		if err != nil {
			return p, fmt.Errorf("retry.retryable: %w", err)
		}
		p.Retryable[kind] = true
	}
	return p, nil
}

// Credentials converts the connection section. The result carries no password.
func (c *Config) Credentials() (*sqlexplorer.Credentials, error) {
	cc := c.Connection
	creds := &sqlexplorer.Credentials{
		Server:                 cc.Server,
		Port:                   cc.Port,
		Database:               cc.Database,
		Username:               cc.Username,
		Encrypt:                cc.Encrypt,
		TrustServerCertificate: cc.TrustServerCertificate,
		AppName:                cc.AppName,
		ConnectTimeout:         cc.ConnectTimeout,
		AzureTenantID:          cc.AzureTenantID,
		AzureClientID:          cc.AzureClientID,
		AWSRegion:              cc.AWSRegion,
		GoogleInstance:         cc.GoogleInstance,
	}
	if cc.Driver != "" {
		d, err := sqlexplorer.ParseDriver(cc.Driver)
		if err != nil {
			return nil, err
		}
		creds.Driver = d
	}
	auth, err := sqlexplorer.ParseAuthMethod(cc.Auth)
	if err != nil {
		return nil, err
	}
	creds.AuthMethod = auth
	return creds, nil
}

// SecretsFilePath resolves connection.secrets_file against the config directory.
// It returns "" when no secrets file is configured.
func (c *Config) SecretsFilePath() string {
	p := c.Connection.SecretsFile
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}
