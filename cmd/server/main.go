// tariffdesk serves the public pricing page and the tariff editor.
package main

import (
	"context"
	"os"

	"github.com/mbd888/tariffdesk/internal/config"
	"github.com/mbd888/tariffdesk/internal/logging"
	"github.com/mbd888/tariffdesk/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting tariffdesk",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)
	logger.Info("configuration loaded",
		"env", cfg.Env,
		"tariffs_source", cfg.TariffsSource,
		"health_scores_source", cfg.HealthScoresSource,
		"editor", cfg.EditorEnabled,
	)

	server.Version = Version

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
