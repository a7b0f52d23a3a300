package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dusk-indust/agentforge/internal/config"
)

// version is set by goreleaser at build time.
var version = "dev"

const usage = `agentforge - resumable agent-build pipeline

Usage:
  agentforge build <project-id> [-name <name>] [flags]
  agentforge status [<project-id>] [-json] [-mermaid] [flags]
  agentforge serve [flags]
  agentforge version

Flags:
  -config-dir   directory containing agentforge.yml (default ".")
  -data-dir     override the configured data directory
  -generator    override the content generator endpoint URL
  -workers      override the worker slot count
  -mem          use the in-memory status store
  -verbose      enable debug logging
`

// cliFlags are the global flags shared by all subcommands.
type cliFlags struct {
	ConfigDir string
	DataDir   string
	Generator string
	Workers   int
	InMemory  bool
	Verbose   bool

	// build
	Name string

	// status
	JSON    bool
	Mermaid bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	cmd, rest := args[0], args[1:]

	var flags cliFlags
	fs := flag.NewFlagSet("agentforge "+cmd, flag.ContinueOnError)
	fs.StringVar(&flags.ConfigDir, "config-dir", ".", "directory containing agentforge.yml")
	fs.StringVar(&flags.DataDir, "data-dir", "", "override the configured data directory")
	fs.StringVar(&flags.Generator, "generator", "", "override the content generator endpoint URL")
	fs.IntVar(&flags.Workers, "workers", 0, "override the worker slot count")
	fs.BoolVar(&flags.InMemory, "mem", false, "use the in-memory status store")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable debug logging")
	fs.StringVar(&flags.Name, "name", "", "human-readable project name")
	fs.BoolVar(&flags.JSON, "json", false, "print status as JSON")
	fs.BoolVar(&flags.Mermaid, "mermaid", false, "print status as a Mermaid diagram")

	// Positional arguments come before flags: agentforge build my-agent -verbose.
	var positional []string
	for len(rest) > 0 && rest[0] != "" && rest[0][0] != '-' {
		positional = append(positional, rest[0])
		rest = rest[1:]
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch cmd {
	case "build":
		if len(positional) != 1 {
			return fmt.Errorf("usage: agentforge build <project-id>")
		}
		return runBuild(flags, positional[0])
	case "status":
		id := ""
		if len(positional) == 1 {
			id = positional[0]
		}
		return runStatus(flags, id)
	case "serve":
		return runServe(flags)
	case "version":
		fmt.Println(version)
		return nil
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q (try 'agentforge help')", cmd)
	}
}

// loadConfig merges the YAML config with command-line overrides.
func loadConfig(flags cliFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigDir)
	if err != nil {
		return nil, err
	}
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}
	if flags.Generator != "" {
		cfg.GeneratorEndpoint = flags.Generator
	}
	if flags.Workers > 0 {
		cfg.Workers = flags.Workers
	}
	if flags.InMemory {
		cfg.InMemory = true
	}
	if flags.Verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

// newLogger builds the process logger.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}
