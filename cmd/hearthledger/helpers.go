package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/hearthledger/hearthledger/internal/config"
	"github.com/hearthledger/hearthledger/internal/engine"
	"github.com/hearthledger/hearthledger/internal/storage"
)

// initStorage opens the configured SQLite database and runs migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/hearthledger/hearthledger.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initEngine wires the engine over configured storage. The caller owns
// both and closes the engine before the store.
func initEngine(ctx context.Context) (*engine.Engine, *storage.SQLiteStorage, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}
	return engine.New(store), store, nil
}
