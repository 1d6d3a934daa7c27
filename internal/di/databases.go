package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/prisk/internal/config"
	"github.com/aristath/prisk/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the history database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}

	if err := historyDB.Migrate(); err != nil {
		historyDB.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	log.Info().Str("path", historyDB.Path()).Msg("History database initialized")

	return &Container{HistoryDB: historyDB}, nil
}
