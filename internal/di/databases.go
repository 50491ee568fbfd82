package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/cointax/internal/config"
	"github.com/aristath/cointax/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the three databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	specs := []struct {
		name    string
		profile database.DatabaseProfile
		target  **database.DB
	}{
		// ledger.db - wallet and transaction history
		{"ledger", database.ProfileLedger, &container.LedgerDB},
		// accounts.db - users and credentials
		{"accounts", database.ProfileStandard, &container.AccountsDB},
		// cache.db - regenerable report snapshots
		{"cache", database.ProfileCache, &container.CacheDB},
	}

	for _, spec := range specs {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, spec.name+".db"),
			Profile: spec.profile,
			Name:    spec.name,
		})
		if err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", spec.name, err)
		}
		*spec.target = db

		if err := db.Migrate(); err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", spec.name, err)
		}

		log.Debug().Str("database", spec.name).Str("path", db.Path()).Msg("Database ready")
	}

	return container, nil
}
