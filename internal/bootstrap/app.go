// Package bootstrap handles application initialization and lifecycle
// management for the grant matcher service.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jonesrussell/grant-matcher/internal/logger"
)

// Start initializes and runs the grant matcher service. It blocks until the
// server stops or fails to start.
func Start() error {
	cfg, configErr := LoadConfig()
	if configErr != nil {
		return fmt.Errorf("config: %w", configErr)
	}

	log, logErr := CreateLogger(cfg)
	if logErr != nil {
		return fmt.Errorf("logger: %w", logErr)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting Grant Matcher Service",
		logger.String("name", cfg.Service.Name),
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
	)

	db, dbErr := SetupDatabase(cfg, log)
	if dbErr != nil {
		return fmt.Errorf("database: %w", dbErr)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", logger.Error(closeErr))
		}
	}()

	redisClient := SetupRedis(cfg, log)
	if redisClient != nil {
		defer func() {
			if closeErr := redisClient.Close(); closeErr != nil {
				log.Error("Failed to close redis client", logger.Error(closeErr))
			}
		}()
	}

	server, serverErr := SetupHTTPServer(cfg, db, redisClient, log)
	if serverErr != nil {
		return fmt.Errorf("server setup: %w", serverErr)
	}

	if runErr := server.RunWithGracefulShutdown(context.Background()); runErr != nil {
		log.Error("Server error", logger.Error(runErr))
		return fmt.Errorf("server: %w", runErr)
	}

	log.Info("Grant Matcher Service stopped")
	return nil
}
