// Package providers contains dependency injection providers for moodsync.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/moodtune/moodtune-sync/internal/config"
	"github.com/moodtune/moodtune-sync/internal/logger"
)

// ProvideConfig loads configuration. Command-line flags are read from the
// injector, where the CLI stores them before anything is invoked.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	flags, err := do.Invoke[config.Flags](i)
	if err != nil {
		flags = config.Flags{}
	}
	return config.LoadConfig(flags)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.IsDevelopment(),
		Environment: cfg.App.Environment,
		File:        cfg.Logger.File,
	})

	log.Info("Starting moodsync",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
		"remote_url", cfg.Remote.BaseURL,
	)

	return log, nil
}
