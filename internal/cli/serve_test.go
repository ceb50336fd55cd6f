package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlexplorer/internal/config"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

func clearAPIEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"API_SECRET_KEY", "API_USERNAME", "API_HASHED_PASSWORD"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestServerConfig_SecretFromEnvironment(t *testing.T) {
	clearAPIEnv(t)
	t.Setenv("API_SECRET_KEY", "from-env")
	t.Setenv("API_USERNAME", "admin")
	t.Setenv("API_HASHED_PASSWORD", "$2a$10$hash")

	cfg, err := serverConfig(config.Defaults().Server, "127.0.0.1:9000")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, map[string]string{"admin": "$2a$10$hash"}, cfg.Users)
}

func TestServerConfig_FileWins(t *testing.T) {
	clearAPIEnv(t)
	t.Setenv("API_SECRET_KEY", "from-env")
	t.Setenv("API_USERNAME", "admin")
	t.Setenv("API_HASHED_PASSWORD", "env-hash")

	base := config.Defaults().Server
	base.JWTSecret = "from-file"
	base.Users = map[string]string{"admin": "file-hash", "ops": "ops-hash"}

	cfg, err := serverConfig(base, "")
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, map[string]string{"admin": "file-hash", "ops": "ops-hash"}, cfg.Users)
	assert.Equal(t, "file-hash", base.Users["admin"], "base config must not be mutated")
}

func TestServerConfig_MissingSecret(t *testing.T) {
	clearAPIEnv(t)

	_, err := serverConfig(config.Defaults().Server, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlexplorer.ErrConfiguration)
	assert.Contains(t, err.Error(), "API_SECRET_KEY")
}
