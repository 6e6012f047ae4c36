package cmd

import (
	"os"

	"grimm.is/lanbridge/internal/config"
	"grimm.is/lanbridge/internal/logging"
)

// initializeLogging installs the process-wide logger described by the
// logging block. An unknown level falls back to info.
func initializeLogging(cfg *config.Config) *logging.Logger {
	lc := logging.DefaultConfig()
	lc.Output = os.Stderr
	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		lc.Level = level
	}
	lc.JSON = cfg.Logging.JSON

	logger := logging.New(lc)
	logging.SetDefault(logger)
	return logger
}
