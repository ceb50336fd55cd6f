package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
)

const (
	// rdsTokenLifetime is fixed by AWS.
	rdsTokenLifetime = 15 * time.Minute

	// rdsTokenRefreshMargin is how long before expiry a cached token is replaced.
	rdsTokenRefreshMargin = time.Minute
)

// AWSIAMTokenProvider builds RDS IAM auth tokens using the default AWS credential chain.
// The chain is loaded on first use; tokens are reused across dials until they
// come within rdsTokenRefreshMargin of expiry.
type AWSIAMTokenProvider struct {
	endpoint string // host:port
	region   string
	username string

	mu        sync.Mutex
	creds     aws.CredentialsProvider
	token     string
	expiresOn time.Time
	now       func() time.Time
}

func NewAWSIAMTokenProvider(endpoint, region, username string) (*AWSIAMTokenProvider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("AWS IAM auth requires endpoint (host:port)")
	}
	if region == "" {
		return nil, fmt.Errorf("AWS IAM auth requires region (set DB_AWS_REGION or aws_region in config)")
	}
	if username == "" {
		return nil, fmt.Errorf("AWS IAM auth requires database username")
	}
	return &AWSIAMTokenProvider{endpoint: endpoint, region: region, username: username, now: time.Now}, nil
}

func (p *AWSIAMTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.token != "" && now.Add(rdsTokenRefreshMargin).Before(p.expiresOn) {
		return p.token, p.expiresOn, nil
	}

	if p.creds == nil {
		cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(p.region))
		if err != nil {
			return "", time.Time{}, fmt.Errorf("failed to load AWS config: %w", err)
		}
		p.creds = cfg.Credentials
	}

	token, err := auth.BuildAuthToken(ctx, p.endpoint, p.region, p.username, p.creds)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build RDS auth token: %w", err)
	}
	p.token, p.expiresOn = token, now.Add(rdsTokenLifetime)
	return p.token, p.expiresOn, nil
}

func (p *AWSIAMTokenProvider) String() string {
	return fmt.Sprintf("AWSIAMTokenProvider(endpoint=%s, region=%s, user=%s)", p.endpoint, p.region, p.username)
}
