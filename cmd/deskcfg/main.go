package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"

	"github.com/deskforge/deskcfg/internal/config"
	"github.com/deskforge/deskcfg/internal/db"
	"github.com/deskforge/deskcfg/internal/mcp"
	"github.com/deskforge/deskcfg/internal/ops"
	"github.com/deskforge/deskcfg/internal/schema"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"configure": true, "edit": true, "encode": true, "decode": true,
	"layers": true, "articles": true, "render": true,
	"quote": true, "cart": true, "schema": true,
	"catalog": true, "serve": true,
	"help": true,
}

// appEnv carries what commands need. The pipeline is built on first use so
// that commands like "catalog import" work with a broken catalog_path.
type appEnv struct {
	db     *sql.DB
	cfg    *config.Config
	logger *slog.Logger

	pipeline *ops.Pipeline
}

// Pipeline returns the configurator pipeline, building it once.
func (e *appEnv) Pipeline(ctx context.Context) (*ops.Pipeline, error) {
	if e.pipeline != nil {
		return e.pipeline, nil
	}
	p, err := buildPipeline(ctx, e.db, e.cfg, e.logger)
	if err != nil {
		return nil, err
	}
	e.pipeline = p
	return p, nil
}

// buildPipeline loads the schema and the catalog and wires the stages.
func buildPipeline(ctx context.Context, database *sql.DB, cfg *config.Config, logger *slog.Logger) (*ops.Pipeline, error) {
	s, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	cat, source, err := ops.LoadCatalog(ctx, database, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("pipeline ready", "catalog", source, "articles", cat.Len())
	return ops.NewPipeline(s, cat, cfg, logger)
}

// newLogger returns a tint handler logger writing to w. Colour is only used on
// a terminal.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isCharDevice(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	}))
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
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

func isCharDevice(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	return isCharDevice(os.Stdin)
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
     _           _            __
  __| | ___  ___| | __   ___ / _| __ _
 / _' |/ _ \/ __| |/ /  / __| |_ / _' |
| (_| |  __/\__ \   <  | (__|  _| (_| |
 \__,_|\___||___/_|\_\  \___|_|  \__, |
                                 |___/
  AST31 desk configurator

  Usage: deskcfg <command> [options]
         deskcfg serve
         deskcfg --help

  MCP server mode requires piped input.`)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(&appEnv{})
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
	baseDir := filepath.Join(homeDir, ".deskcfg")

	wd, err := os.Getwd()
	if err != nil {
		wd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, wd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	env := &appEnv{db: database, cfg: cfg, logger: logger}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'deskcfg --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	// MCP server mode (default)
	p, err := env.Pipeline(context.Background())
	if err == nil {
		err = mcp.Run(p, cfg, Version, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		database.Close()
		os.Exit(1)
	}
}
