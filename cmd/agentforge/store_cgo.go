//go:build cgo

package main

import (
	"context"

	"github.com/dusk-indust/agentforge/internal/config"
	"github.com/dusk-indust/agentforge/internal/store"
)

// openStore opens the durable KuzuDB status store, or the in-memory one when
// configured.
func openStore(ctx context.Context, cfg *config.Config, stageIDs []string) (store.Store, error) {
	var st store.Store
	var err error
	if cfg.InMemory {
		st = store.NewMemStore(stageIDs)
	} else {
		st, err = store.NewKuzuFileStore(cfg.DatabasePath(), stageIDs)
		if err != nil {
			return nil, err
		}
	}
	if err := st.Init(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
