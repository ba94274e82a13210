package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/rhermens/s3-dedupe/internal/store"
)

// initStore opens the run history database. It returns a nil Store when
// history is disabled.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, nil
	}

	st, err := store.NewSQLite(cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open run history")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate run history")
	}
	return st, nil
}

// requireStore is initStore for commands that only make sense with history
// enabled.
func requireStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("run history is disabled (set store.database_url or S3DEDUPE_STORE_DATABASE_URL)")
	}
	return st, nil
}
