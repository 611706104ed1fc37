// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// costs_cmd.go - The costs command: advisory spend tracking.
package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/phoenixlens/internal/config"
	"github.com/jeranaias/phoenixlens/internal/telemetry"
)

// HandleCosts dispatches costs subcommands.
func HandleCosts(args Args) error {
	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}
	tracker, err := telemetry.NewTracker(filepath.Join(dataDir, "costs"))
	if err != nil {
		return err
	}

	p := NewArgParser(args.Raw)
	switch p.Subcommand() {
	case "", "list", "ls":
		return handleCostsList(args, p, tracker)
	case "total", "sum":
		return handleCostsTotal(args, p, tracker)
	case "clear":
		return handleCostsClear(args, p, tracker)
	default:
		return NewValidationErrorWithExample(
			"subcommand",
			p.Subcommand(),
			"unknown costs subcommand",
			"phoenixlens costs [list|total|clear]",
		)
	}
}

// handleCostsList lists per-run advisory spend, newest first. --limit N
// truncates the listing.
func handleCostsList(args Args, p *ArgParser, tracker *telemetry.Tracker) error {
	runs, err := tracker.List()
	if err != nil {
		return err
	}
	if limit := p.FlagIntOrDefault("limit", 0); limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	if args.JSON {
		return NewJSONResponse("costs", runs).Print()
	}

	if len(runs) == 0 {
		fmt.Println(DimStyle.Render("No advisory spend recorded."))
		return nil
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Advisory spend"))
	fmt.Println(RenderSeparator())
	fmt.Printf("%-10s  %-20s  %-20s  %7s  %8s  %10s\n",
		"ID", "Time", "Model", "Groups", "Tokens", "Cost")
	for _, s := range runs {
		id := s.RunID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Printf("%-10s  %-20s  %-20s  %7d  %8d  %10s\n",
			id,
			s.Time.UTC().Format("2006-01-02 15:04:05"),
			s.Model,
			s.Groups, s.Tokens,
			fmt.Sprintf("$%.6f", s.Cost))
	}
	fmt.Println()
	return nil
}

// handleCostsTotal sums advisory spend, optionally within a window.
func handleCostsTotal(args Args, p *ArgParser, tracker *telemetry.Tracker) error {
	var summary telemetry.Summary
	var err error

	sinceFlag := p.Flag("since")
	if sinceFlag != "" {
		window, perr := parseWindow(sinceFlag)
		if perr != nil {
			return perr
		}
		summary, err = tracker.Since(time.Now().UTC().Add(-window))
	} else {
		summary, err = tracker.Total()
	}
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("costs", summary).Print()
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Advisory spend total"))
	fmt.Println(RenderSeparator())
	if sinceFlag != "" {
		fmt.Printf("%s %s\n", RenderLabel("Window:"), ValueStyle.Render("last "+sinceFlag))
	}
	fmt.Printf("%s %s\n", RenderLabel("Runs:"), ValueStyle.Render(fmt.Sprintf("%d", summary.Runs)))
	fmt.Printf("%s %s\n", RenderLabel("Tokens:"), ValueStyle.Render(fmt.Sprintf("%d", summary.Tokens)))
	fmt.Printf("%s %s\n", RenderLabel("Cost:"), ValueStyle.Render(fmt.Sprintf("$%.6f", summary.Cost)))
	fmt.Println()
	return nil
}

// handleCostsClear deletes all spend records.
func handleCostsClear(args Args, p *ArgParser, tracker *telemetry.Tracker) error {
	confirmed, err := RequireConfirmation(p.BoolFlag("confirm"),
		"clear all advisory spend records", args.JSON)
	if err != nil {
		return err
	}
	if !confirmed {
		ShowCancellationMessage()
		return nil
	}

	if err := tracker.Clear(); err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("costs", map[string]string{"cleared": "all"}).Print()
	}
	fmt.Println(SuccessStyle.Render("Cleared advisory spend records."))
	return nil
}

// parseWindow parses durations like "90m", "24h", or "7d".
func parseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days <= 0 {
			return 0, NewValidationErrorWithExample("since", s, "invalid window", "24h or 7d")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, NewValidationErrorWithExample("since", s, "invalid window", "24h or 7d")
	}
	return d, nil
}
