package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dusk-indust/agentforge/internal/mcptools"
)

// runServe exposes the build orchestrator as an MCP server over HTTP.
func runServe(flags cliFlags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, flags)
	if err != nil {
		return err
	}
	defer rt.close()

	svc := mcptools.NewBuildService(rt.sched, rt.store)
	fmt.Printf("agentforge MCP server listening on %s\n", rt.cfg.ListenAddr)
	return mcptools.RunMCPServer(ctx, svc, rt.cfg.ListenAddr, rt.log)
}
