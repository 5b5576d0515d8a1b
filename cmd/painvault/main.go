package main

import (
	"fmt"
	"os"

	"github.com/hpungsan/painvault/internal/config"
	"github.com/hpungsan/painvault/internal/db"
	"github.com/hpungsan/painvault/internal/log"
	"github.com/hpungsan/painvault/internal/mcp"
	"github.com/hpungsan/painvault/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

var cliCommands = map[string]bool{
	"send": true, "stats": true, "campaigns": true, "settings": true,
	"hud": true, "test": true, "menu": true, "deliveries": true,
	"purge": true, "export": true, "serve": true,
	"help": true,
}

var helpFlags = map[string]bool{"--help": true, "-h": true, "--version": true, "-v": true, "help": true}

type runMode int

const (
	modeMCP     runMode = iota // stdio server, the default when piped
	modeBanner                 // bare invocation from a terminal
	modeHelp                   // help/version, no vault needed
	modeCLI                    // a known subcommand
	modeUnknown                // an unrecognized argument typed at a terminal
)

// detectMode picks how to run from the arguments and whether stdin is a
// terminal. MCP clients launch painvault with piped stdio and no arguments.
func detectMode(args []string, interactive bool) runMode {
	if len(args) < 2 {
		if interactive {
			return modeBanner
		}
		return modeMCP
	}
	switch arg := args[1]; {
	case helpFlags[arg]:
		return modeHelp
	case cliCommands[arg]:
		return modeCLI
	case interactive:
		return modeUnknown
	default:
		return modeMCP
	}
}

func stdinIsTerminal() bool {
	stat, err := os.Stdin.Stat()
	return err == nil && stat.Mode()&os.ModeCharDevice != 0
}

const banner = `
              _                    _ _
   _ __  __ _(_)_ ___ ____ _ _  _| | |_
  | '_ \/ _' | | '_ \ V / _' | || | |  _|
  | .__/\__,_|_|_| |_\_/\__,_|\_,_|_|\__|
  |_|

  Pain-point capture to n8n

  Usage: painvault <command> [options]
         painvault serve     (extension bridge + dashboard)
         painvault --help

  MCP server mode requires piped input.`

func main() {
	if err := run(os.Args, stdinIsTerminal()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, interactive bool) error {
	mode := detectMode(args, interactive)
	switch mode {
	case modeBanner:
		fmt.Println(banner)
		return nil
	case modeHelp:
		return newCLIApp(nil).Run(args)
	case modeUnknown:
		return fmt.Errorf("unknown command %q\nRun 'painvault --help' for usage", args[1])
	}

	baseDir, err := ops.BaseDir()
	if err != nil {
		return err
	}
	cfg, err := config.Load(baseDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout carries CLI output and the MCP protocol.
	logger := log.New(os.Stderr, cfg.LogLevel)
	log.Set(logger)
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", "tools", unknown, "known", mcp.AllToolNames())
	}

	database, err := db.Init(baseDir)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	svc := newServices(database, cfg, nil, nil)
	if mode == modeCLI {
		return newCLIApp(svc).Run(args)
	}
	return mcp.Run(database, cfg, svc.pipeline, Version)
}
