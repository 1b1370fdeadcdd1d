package bootstrap

import (
	"fmt"

	"github.com/jonesrussell/grant-matcher/internal/config"
	"github.com/jonesrussell/grant-matcher/internal/database"
	"github.com/jonesrussell/grant-matcher/internal/logger"
)

// SetupDatabase creates a database connection from config.
func SetupDatabase(cfg *config.Config, log logger.Logger) (*database.DB, error) {
	db, connErr := database.New(&cfg.Database, log)
	if connErr != nil {
		return nil, fmt.Errorf("database connection: %w", connErr)
	}

	return db, nil
}
