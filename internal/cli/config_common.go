package cli

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/vvka-141/sqlexplorer/internal/config"
	"github.com/vvka-141/sqlexplorer/internal/logging"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// loadConfig loads .env into the process environment, then sqlexplorer.yaml
// from dir. A missing config file yields the defaults.
func loadConfig(dir string, logger sqlexplorer.Logger) (*config.Config, bool, error) {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	// .env is optional; existing environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load(dir)
	if errors.Is(err, config.ErrConfigNotFound) {
		logger.Verbose("No %s in %s, using defaults", config.ConfigFileName, dir)
		return config.Defaults(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid %s: %w", config.ConfigFileName, err)
	}
	logger.Verbose("Loaded %s from %s", config.ConfigFileName, dir)
	return cfg, true, nil
}
