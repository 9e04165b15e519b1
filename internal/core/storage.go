package core

import (
	"fmt"

	"vetclinic/internal/config"
	"vetclinic/internal/infra/persistence/postgres"
	"vetclinic/internal/infra/persistence/sqlite"
	"vetclinic/pkg/domain"
)

// OpenPersistentStore selects a backend from the storage configuration.
//
//	memory:   private in-memory sqlite database (tests / ephemeral runs)
//	sqlite:   embedded database file at SQLitePath
//	postgres: PostgreSQL server at PostgresDSN
func OpenPersistentStore(cfg config.Storage, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	switch cfg.Driver {
	case config.StorageMemory:
		store, err := sqlite.NewMemoryStore(engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "", config.StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
