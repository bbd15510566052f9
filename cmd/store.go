package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/luminous-energy/plant-cli/internal/store"
)

// openStore opens the configured backend. SQLite falls back to a local file
// when no DSN is set, which keeps single-user usage free of setup.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		return st, nil
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "plant.db"
		}
		st, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
