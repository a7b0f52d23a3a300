//go:build !cgo

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dusk-indust/agentforge/internal/config"
	"github.com/dusk-indust/agentforge/internal/store"
)

// openStore falls back to the in-memory status store when the binary was
// built without CGO (the KuzuDB driver needs it). State will not survive
// the process.
func openStore(ctx context.Context, cfg *config.Config, stageIDs []string) (store.Store, error) {
	if !cfg.InMemory {
		fmt.Fprintln(os.Stderr, "warning: built without cgo, using in-memory status store")
	}
	st := store.NewMemStore(stageIDs)
	if err := st.Init(ctx); err != nil {
		return nil, err
	}
	return st, nil
}
