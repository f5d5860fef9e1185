package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blburns/simple-nfsd-sub001/internal/config"
	"github.com/blburns/simple-nfsd-sub001/internal/logger"
)

// InitLogger configures the package-level structured logger from cfg.
func InitLogger(cfg *config.Config) error {
	lcfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Configure(lcfg); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	return nil
}

// GetDefaultStateDir returns the default directory for the PID and log
// files written by daemon mode.
func GetDefaultStateDir() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "simplenfsd")
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "simplenfsd")
}

// GetDefaultPidFile returns the default PID file path.
func GetDefaultPidFile() string {
	return filepath.Join(GetDefaultStateDir(), "simplenfsd.pid")
}

// GetDefaultLogFile returns the default daemon-mode log file path.
func GetDefaultLogFile() string {
	return filepath.Join(GetDefaultStateDir(), "simplenfsd.log")
}
