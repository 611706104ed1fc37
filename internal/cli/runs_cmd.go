// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// runs_cmd.go - The runs command: stored run snapshot management.
package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jeranaias/phoenixlens/internal/analyzer"
	"github.com/jeranaias/phoenixlens/internal/config"
	"github.com/jeranaias/phoenixlens/internal/export"
	"github.com/jeranaias/phoenixlens/internal/report"
	"github.com/jeranaias/phoenixlens/internal/storage"
)

// HandleRuns dispatches runs subcommands.
func HandleRuns(args Args) error {
	cfg, err := LoadConfigForArgs(args)
	if err != nil {
		return err
	}

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}
	store, err := storage.NewRunStore(filepath.Join(dataDir, "runs"), cfg.Storage.MaxRuns)
	if err != nil {
		return err
	}

	p := NewArgParser(args.Raw)
	switch p.Subcommand() {
	case "", "list", "ls", "l":
		return handleRunsList(args, p, store)
	case "show":
		return handleRunsShow(args, p, store, cfg)
	case "export":
		return handleRunsExport(args, p, store, cfg)
	case "delete", "rm":
		return handleRunsDelete(args, p, store)
	case "clear":
		return handleRunsClear(args, p, store)
	default:
		return NewValidationErrorWithExample(
			"subcommand",
			p.Subcommand(),
			"unknown runs subcommand",
			"phoenixlens runs [list|show|export|delete|clear]",
		)
	}
}

// loadRun resolves a run by full ID or unique prefix.
func loadRun(p *ArgParser, store *storage.RunStore) (*analyzer.Result, error) {
	id := p.Positional(1)
	if id == "" {
		return nil, ErrMissingArgument("run id", "phoenixlens runs show 3fa85f64")
	}
	result, err := store.Load(id)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			return nil, &NotFoundError{Resource: "run", ID: id}
		}
		return nil, err
	}
	return result, nil
}

// handleRunsList lists stored run snapshots, newest first. --limit N
// truncates the listing.
func handleRunsList(args Args, p *ArgParser, store *storage.RunStore) error {
	runs, err := store.List()
	if err != nil {
		return err
	}
	if limit := p.FlagIntOrDefault("limit", 0); limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	if args.JSON {
		return NewJSONResponse("runs", runs).Print()
	}

	if len(runs) == 0 {
		fmt.Println(DimStyle.Render("No stored runs."))
		return nil
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Stored runs"))
	fmt.Println(RenderSeparator())
	fmt.Printf("%-10s  %-20s  %-20s  %6s  %7s  %11s\n",
		"ID", "Time", "Project", "Calls", "Groups", "Singletons")
	for _, m := range runs {
		id := m.RunID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Printf("%-10s  %-20s  %-20s  %6d  %7d  %11d\n",
			id,
			m.RunTime.UTC().Format("2006-01-02 15:04:05"),
			m.Project,
			m.Calls, m.Groups, m.Singletons)
	}
	fmt.Println()
	return nil
}

// handleRunsShow re-renders a stored run snapshot.
func handleRunsShow(args Args, p *ArgParser, store *storage.RunStore, cfg *config.Config) error {
	result, err := loadRun(p, store)
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("runs", result).Print()
	}

	fmt.Print(report.Render(result, report.Options{
		Width:     GetTerminalWidth(),
		MaxRecent: cfg.Analysis.MaxRecent,
		Verbose:   args.Verbose,
	}))
	return nil
}

// handleRunsExport exports a stored run in a chosen format.
func handleRunsExport(args Args, p *ArgParser, store *storage.RunStore, cfg *config.Config) error {
	result, err := loadRun(p, store)
	if err != nil {
		return err
	}

	format := p.FlagOrDefault("format", "csv")
	if !config.ValidFormat(format) {
		return ErrUnsupportedFormat(format, config.ValidFormats)
	}
	exp, err := export.ForFormat(format)
	if err != nil {
		return err
	}

	outputDir := p.FlagOrDefault("output-dir", cfg.Export.OutputDir)
	path, err := export.ExportToFile(result, exp, outputDir)
	if err != nil {
		return NewCommandError("runs", "export", fmt.Sprintf("writing %s export", format), err)
	}

	if args.JSON {
		return NewJSONResponse("runs", map[string]string{"path": path}).Print()
	}
	fmt.Printf("%s %s\n", SuccessStyle.Render("Exported:"), path)
	return nil
}

// handleRunsDelete deletes one stored run.
func handleRunsDelete(args Args, p *ArgParser, store *storage.RunStore) error {
	result, err := loadRun(p, store)
	if err != nil {
		return err
	}

	confirmed, err := RequireConfirmation(p.BoolFlag("confirm"),
		fmt.Sprintf("delete run %s", result.RunID), args.JSON)
	if err != nil {
		return err
	}
	if !confirmed {
		ShowCancellationMessage()
		return nil
	}

	if err := store.Delete(result.RunID); err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("runs", map[string]string{"deleted": result.RunID}).Print()
	}
	fmt.Printf("%s run %s\n", SuccessStyle.Render("Deleted:"), result.RunID)
	return nil
}

// handleRunsClear deletes all stored runs.
func handleRunsClear(args Args, p *ArgParser, store *storage.RunStore) error {
	confirmed, err := RequireConfirmation(p.BoolFlag("confirm"),
		"delete all stored runs", args.JSON)
	if err != nil {
		return err
	}
	if !confirmed {
		ShowCancellationMessage()
		return nil
	}

	if err := store.Clear(); err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("runs", map[string]string{"cleared": "all"}).Print()
	}
	fmt.Println(SuccessStyle.Render("Cleared all stored runs."))
	return nil
}
