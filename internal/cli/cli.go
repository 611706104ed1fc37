// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for phoenixlens.
//
// CLI: Comprehensive help and examples for all commands
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/phoenixlens/internal/config"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdAnalyze Command = iota
	CmdStatus
	CmdConfig
	CmdRuns
	CmdCosts
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool   // Output in JSON format
	Config  string // Config file path or preset name (dev, prod, extended)

	// Command-specific
	Subcommand string

	// Raw args (remaining after global flag parsing, minus the command)
	Raw []string
}

const usageText = `phoenixlens - LLM call analysis for Phoenix tracing backends

Phoenixlens fetches recent LLM spans from a Phoenix server, groups
playground model comparisons that share a start second, and optionally
asks OpenAI for efficiency advisories on each comparison group.

Usage:
  phoenixlens [analyze]        Analyze recent LLM calls (default)
  phoenixlens status           Check backend, advisor, cache, and storage
  phoenixlens config [show|get|set|path|init]  Configuration
  phoenixlens runs [list|show|export|delete|clear]  Stored run snapshots
  phoenixlens costs [list|total|clear]  Advisory spend tracking
  phoenixlens version          Show version information
  phoenixlens help             Show this help

Analyze Options:
  -m, --minutes-back N    Lookback window in minutes (default: from config)
  --endpoint URL          Phoenix base URL (default: http://localhost:6006)
  --project NAME          Project to analyze
  --fallback-project NAME Project tried when the primary has no spans
  --no-advisor            Skip OpenAI advisories entirely
  --auto                  Run advisories without the consent prompt
  --advisor-model NAME    Override the advisory model
  --export FORMATS        Export results (csv,json,md,xlsx; comma-separated)
  --output-dir DIR        Directory for exported files
  --max-recent N          Cap the recent-calls section of the report
  --no-cache              Bypass the local span cache

Runs Subcommands:
  phoenixlens runs list             List stored run snapshots
    --limit N                       Show at most N runs
  phoenixlens runs show <id>        Re-render a stored run (prefix match ok)
  phoenixlens runs export <id>      Export a stored run
    --format csv|json|md|xlsx       Export format (default: csv)
    --output-dir DIR                Directory for the exported file
  phoenixlens runs delete <id>      Delete a stored run
  phoenixlens runs clear --confirm  Delete all stored runs

Costs Subcommands:
  phoenixlens costs list            List per-run advisory spend
    --limit N                       Show at most N records
  phoenixlens costs total           Show total advisory spend
    --since 24h|7d                  Restrict to a recent window
  phoenixlens costs clear --confirm Clear spend records

Config Subcommands:
  phoenixlens config show           Show current configuration
  phoenixlens config get <key>      Get one value (dot notation)
  phoenixlens config set <key> <value>  Set and save one value
  phoenixlens config path           Print the config file path
  phoenixlens config init           Write the default config file

Global Flags:
  -q, --quiet       Minimal output
  -v, --verbose     Include span IDs and payload previews
  --json            Output in JSON format for scripting
  --config VALUE    Config file path, or a preset: dev, prod, extended

Examples:
  # Basic usage
  phoenixlens                             Analyze the last hour
  phoenixlens --minutes-back 15           Analyze the last 15 minutes
  phoenixlens --config dev                Quick dev preset (5 minute window)

  # Advisor control
  phoenixlens --no-advisor                Grouping only, no OpenAI calls
  phoenixlens --auto                      Advisories without the prompt
  OPENAI_API_KEY=sk-... phoenixlens       Supply the key via environment

  # Exports
  phoenixlens --export csv,xlsx           Export CSV and Excel alongside
  phoenixlens --export json --output-dir ./reports

  # Stored runs
  phoenixlens runs list                   List stored runs
  phoenixlens runs show 3fa8              Re-render by ID prefix
  phoenixlens runs export 3fa8 --format md

  # Spend tracking
  phoenixlens costs total --since 7d      Advisory spend this week

  # Configuration
  phoenixlens config set phoenix.project my-project
  phoenixlens config set advisor.enabled false

Environment:
  OPENAI_API_KEY             OpenAI key for the advisor
  PHOENIXLENS_OPENAI_KEY     Overrides OPENAI_API_KEY when set
  PHOENIXLENS_ENDPOINT       Overrides phoenix.endpoint
  PHOENIXLENS_PROJECT        Overrides phoenix.project
  PHOENIXLENS_MINUTES_BACK   Overrides analysis.minutes_back

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("phoenixlens version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses the given arguments. Split out from Parse for testing.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	// No command defaults to analyze
	if len(remaining) == 0 {
		return CmdAnalyze, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	rest := remaining[1:]

	switch cmd {
	case "analyze", "run":
		parsedArgs.Raw = rest
		return CmdAnalyze, parsedArgs

	case "status", "s":
		parsedArgs.Raw = rest
		return CmdStatus, parsedArgs

	case "config":
		// Detailed parsing is done in config_cmd.go HandleConfig
		parsedArgs.Raw = rest
		if len(rest) > 0 {
			parsedArgs.Subcommand = rest[0]
		}
		return CmdConfig, parsedArgs

	case "runs", "run-history":
		// Detailed parsing is done in runs_cmd.go HandleRuns
		parsedArgs.Raw = rest
		if len(rest) > 0 {
			parsedArgs.Subcommand = rest[0]
		}
		return CmdRuns, parsedArgs

	case "costs", "cost", "spend":
		// Detailed parsing is done in costs_cmd.go HandleCosts
		parsedArgs.Raw = rest
		if len(rest) > 0 {
			parsedArgs.Subcommand = rest[0]
		}
		return CmdCosts, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Unknown first token: treat it as analyze flags so
		// "phoenixlens --minutes-back 5" works without a command.
		parsedArgs.Raw = remaining
		return CmdAnalyze, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.Config = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--config=") {
				parsedArgs.Config = strings.TrimPrefix(arg, "--config=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// LoadConfigForArgs resolves the effective configuration for a command:
// a --config preset name, a --config file path, or the default config
// file (falling back to defaults when none exists).
func LoadConfigForArgs(args Args) (*config.Config, error) {
	if args.Config != "" {
		for _, name := range config.PresetNames {
			if args.Config == name {
				c, err := config.Preset(args.Config)
				if err != nil {
					return nil, err
				}
				c.ApplyEnvOverrides()
				return c, nil
			}
		}
		return config.Load(args.Config)
	}
	return config.LoadOrDefault("")
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// HandleVersionWithJSON handles the "version" command with JSON output support.
func HandleVersionWithJSON(args Args) {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
		}
		NewJSONResponse("version", data).Print()
		return
	}
	PrintVersion()
}

// HandleHelp handles the "help" command.
func HandleHelp() {
	PrintUsage()
}
