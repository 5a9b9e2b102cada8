package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/bdistudio/internal/config"
	"github.com/hpungsan/bdistudio/internal/contexts"
	"github.com/hpungsan/bdistudio/internal/logging"
	"github.com/hpungsan/bdistudio/internal/mcp"
	"github.com/hpungsan/bdistudio/internal/sessions"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"session": true, "context": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___ _____ _   _ ___ ___ ___
  / __|_   _| | | |   \_ _/ _ \
  \__ \ | | | |_| | |) | | (_) |
  |___/ |_|  \___/|___/___\___/

  BDI studio session and context store

  Usage: studio <command> [options]
         studio --help

  MCP server mode requires piped input.`)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Help and version need neither config nor data dir.
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, config.DefaultConfig(), zap.NewNop())
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, config.DirName)

	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ApplyEnv(cfg, ".env"); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load .env: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}

	dataDir := cfg.ResolveDataDir(baseDir)
	store := sessions.NewStore(dataDir, sessions.WithLogger(logger))
	registry := contexts.NewRegistry(dataDir, contexts.WithLogger(logger))

	if isCLIMode() {
		app := newCLIApp(store, registry, cfg, logger)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'studio --help' for usage.\n")
		os.Exit(1)
	}

	logger.Info("starting MCP server", zap.String("data_dir", dataDir))
	if err := mcp.Run(store, registry, cfg, logger, Version); err != nil {
		logger.Error("mcp server stopped", zap.Error(err))
		os.Exit(1)
	}
}
