package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/vvka-141/sqlexplorer/internal/logging"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// DefaultSecretTTL is how long a fetched secret is reused before Secrets Manager is asked again.
const DefaultSecretTTL = 5 * time.Minute

// secretsAPI is the subset of the Secrets Manager client used here.
type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// rdsSecret is the JSON layout AWS uses for database secrets.
type rdsSecret struct {
	Engine   string          `json:"engine"`
	Host     string          `json:"host"`
	Port     json.RawMessage `json:"port"`
	Username string          `json:"username"`
	Password string          `json:"password"`
	DBName   string          `json:"dbname"`
	Database string          `json:"database"`
}

// AWSSecretsProvider reads connection details from a Secrets Manager secret
// and caches them for a TTL.
type AWSSecretsProvider struct {
	client   secretsAPI
	secretID string
	ttl      time.Duration
	logger   sqlexplorer.Logger
	now      func() time.Time

	mu        sync.Mutex
	cached    *sqlexplorer.Credentials
	fetchedAt time.Time
}

// NewAWSSecretsProvider loads the default AWS configuration for region.
func NewAWSSecretsProvider(ctx context.Context, region, secretID string, logger sqlexplorer.Logger) (*AWSSecretsProvider, error) {
	if secretID == "" {
		return nil, fmt.Errorf("AWS secret id is required: %w", sqlexplorer.ErrConfiguration)
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newAWSSecretsProvider(secretsmanager.NewFromConfig(cfg), secretID, logger), nil
}

func newAWSSecretsProvider(client secretsAPI, secretID string, logger sqlexplorer.Logger) *AWSSecretsProvider {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &AWSSecretsProvider{
		client:   client,
		secretID: secretID,
		ttl:      DefaultSecretTTL,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *AWSSecretsProvider) Credentials(ctx context.Context) (*sqlexplorer.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.now().Sub(p.fetchedAt) < p.ttl {
		c := *p.cached
		return &c, nil
	}

	p.logger.Verbose("Fetching secret %s from AWS Secrets Manager", p.secretID)
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(p.secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret value: %w", err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value: %w", p.secretID, sqlexplorer.ErrConfiguration)
	}

	creds, err := parseRDSSecret(*out.SecretString)
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", p.secretID, err)
	}
	p.cached = creds
	p.fetchedAt = p.now()

	c := *creds
	return &c, nil
}

// Invalidate drops the cached secret, e.g. after a rotation caused a login failure.
func (p *AWSSecretsProvider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

func (p *AWSSecretsProvider) String() string { return "aws-secrets(" + p.secretID + ")" }

func parseRDSSecret(s string) (*sqlexplorer.Credentials, error) {
	var secret rdsSecret
	if err := json.Unmarshal([]byte(s), &secret); err != nil {
		return nil, fmt.Errorf("failed to parse secret JSON: %v: %w", err, sqlexplorer.ErrConfiguration)
	}

	creds := &sqlexplorer.Credentials{
		Server:   secret.Host,
		Username: secret.Username,
		Password: secret.Password,
		Database: secret.DBName,
	}
	if creds.Database == "" {
		creds.Database = secret.Database
	}

	if len(secret.Port) > 0 {
		// port is a number in RDS-managed secrets and often a string in hand-written ones
		raw := string(secret.Port)
		if unq, err := strconv.Unquote(raw); err == nil {
			raw = unq
		}
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid port %s: %w", secret.Port, sqlexplorer.ErrConfiguration)
		}
		creds.Port = port
	}

	switch secret.Engine {
	case "":
	case "sqlserver", "sqlserver-ex", "sqlserver-se", "sqlserver-ee", "sqlserver-web":
		creds.Driver = sqlexplorer.DriverSQLServer
	default:
		d, err := sqlexplorer.ParseDriver(secret.Engine)
		if err != nil {
			return nil, fmt.Errorf("engine %q: %w", secret.Engine, sqlexplorer.ErrConfiguration)
		}
		creds.Driver = d
	}
	return creds, nil
}
