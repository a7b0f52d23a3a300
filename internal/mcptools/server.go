package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// version is set by the linker at build time.
var version = "dev"

// NewBuildMCPServer creates an MCP server with all build orchestration tools
// registered.
func NewBuildMCPServer(svc *BuildService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "agentforge-build",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "submit_build",
		Description: "Queue an agent-build pipeline run for a project. Idempotent: a project that is already queued or running reports already-running instead of starting a second run. Returns the project's current status snapshot.",
	}, svc.SubmitBuild)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_status",
		Description: "Return the full persisted project record: overall status, per-stage completion list with error messages, and committed artifact references. Read-only; never blocks on an in-flight run.",
	}, svc.BuildStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_build",
		Description: "Request cooperative cancellation of a project's build. Observed at the next stage boundary; an in-flight artifact transaction always completes first.",
	}, svc.CancelBuild)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "pause_build",
		Description: "Request a cooperative pause of a project's build at the next stage boundary. A paused project resumes from its first incomplete stage on the next submit_build.",
	}, svc.PauseBuild)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_projects",
		Description: "List status snapshots for every known project.",
	}, svc.ListProjects)

	return server
}

// RunMCPServer starts an HTTP server exposing the build tools and shuts it
// down gracefully when ctx is canceled.
func RunMCPServer(ctx context.Context, svc *BuildService, addr string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	server := NewBuildMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		if err := httpServer.Shutdown(context.Background()); err != nil {
			log.Warn("mcp server shutdown", zap.Error(err))
		}
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
