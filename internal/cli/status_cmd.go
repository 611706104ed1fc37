// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status_cmd.go - The status command: backend, advisor, cache, storage.
package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jeranaias/phoenixlens/internal/cache"
	"github.com/jeranaias/phoenixlens/internal/config"
	"github.com/jeranaias/phoenixlens/internal/phoenix"
	"github.com/jeranaias/phoenixlens/internal/storage"
)

// HandleStatus checks each subsystem and reports its state.
func HandleStatus(args Args) error {
	cfg, err := LoadConfigForArgs(args)
	if err != nil {
		return err
	}

	data := collectStatus(cfg)

	if args.JSON {
		return NewJSONResponse("status", data).Print()
	}

	printStatus(cfg, data)
	return nil
}

// collectStatus probes the backend and local stores.
func collectStatus(cfg *config.Config) StatusData {
	var data StatusData

	// Phoenix backend
	data.Backend.Endpoint = cfg.Phoenix.Endpoint
	client := phoenix.NewClient(cfg.Phoenix.Endpoint,
		time.Duration(cfg.Phoenix.TimeoutSeconds)*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	projects, err := client.ListProjects(ctx)
	if err != nil {
		data.Backend.Error = err.Error()
	} else {
		data.Backend.Reachable = true
		for _, p := range projects {
			data.Backend.Projects = append(data.Backend.Projects, p.Name)
		}
	}

	// Advisor
	data.Advisor.Enabled = cfg.Advisor.Enabled
	data.Advisor.KeySet = cfg.Advisor.APIKey != ""
	data.Advisor.Model = cfg.Advisor.Model
	data.Advisor.MaxTokens = cfg.Advisor.MaxTokens

	// Span cache
	data.Cache.Enabled = cfg.Cache.Enabled
	data.Cache.TTLMinutes = cfg.Cache.TTLMinutes
	if cfg.Cache.Enabled {
		if path, sc, err := openStatusCache(cfg); err == nil {
			data.Cache.Path = path
			if stats, serr := sc.Stats(ctx); serr == nil {
				data.Cache.Spans = stats.Spans
				data.Cache.Projects = stats.Projects
			}
			sc.Close()
		}
	}

	// Run storage
	data.Storage.MaxRuns = cfg.Storage.MaxRuns
	if dataDir, err := config.DataDir(); err == nil {
		if store, err := storage.NewRunStore(filepath.Join(dataDir, "runs"), cfg.Storage.MaxRuns); err == nil {
			if runs, err := store.List(); err == nil {
				data.Storage.Runs = len(runs)
			}
		}
	}

	return data
}

func openStatusCache(cfg *config.Config) (string, *cache.Cache, error) {
	path := cfg.Cache.Path
	if path == "" {
		dataDir, err := config.DataDir()
		if err != nil {
			return "", nil, err
		}
		path = filepath.Join(dataDir, "cache.db")
	}
	c, err := cache.Open(path)
	if err != nil {
		return "", nil, err
	}
	return path, c, nil
}

// printStatus renders the human-readable status report.
func printStatus(cfg *config.Config, data StatusData) {
	fmt.Println()
	fmt.Println(TitleStyle.Render("phoenixlens status"))
	fmt.Println(RenderSeparator())

	fmt.Println(SectionStyle.Render("Phoenix backend"))
	fmt.Printf("%s %s\n", RenderLabel("Endpoint:"), ValueStyle.Render(data.Backend.Endpoint))
	if data.Backend.Reachable {
		fmt.Printf("%s %s\n", RenderLabel("Status:"), RenderStatus("OK"))
		fmt.Printf("%s %s\n", RenderLabel("Projects:"), ValueStyle.Render(fmt.Sprintf("%d", len(data.Backend.Projects))))
		for _, name := range data.Backend.Projects {
			marker := "  "
			if name == cfg.Phoenix.Project {
				marker = "* "
			}
			fmt.Printf("  %s%s\n", DimStyle.Render(marker), ValueStyle.Render(name))
		}
	} else {
		fmt.Printf("%s %s\n", RenderLabel("Status:"), RenderStatus("FAIL"))
		fmt.Printf("%s %s\n", RenderLabel("Error:"), ErrorStyle.Render(data.Backend.Error))
	}

	fmt.Println()
	fmt.Println(SectionStyle.Render("Efficiency advisor"))
	fmt.Printf("%s %s\n", RenderLabel("Enabled:"), yesNo(data.Advisor.Enabled))
	fmt.Printf("%s %s\n", RenderLabel("API key:"), keyStatus(data.Advisor.KeySet))
	fmt.Printf("%s %s\n", RenderLabel("Model:"), ValueStyle.Render(data.Advisor.Model))
	fmt.Printf("%s %s\n", RenderLabel("Max tokens:"), ValueStyle.Render(fmt.Sprintf("%d", data.Advisor.MaxTokens)))

	fmt.Println()
	fmt.Println(SectionStyle.Render("Span cache"))
	fmt.Printf("%s %s\n", RenderLabel("Enabled:"), yesNo(data.Cache.Enabled))
	if data.Cache.Enabled {
		fmt.Printf("%s %s\n", RenderLabel("Spans:"), ValueStyle.Render(fmt.Sprintf("%d", data.Cache.Spans)))
		fmt.Printf("%s %s\n", RenderLabel("Projects:"), ValueStyle.Render(fmt.Sprintf("%d", data.Cache.Projects)))
		fmt.Printf("%s %s\n", RenderLabel("TTL:"), ValueStyle.Render(fmt.Sprintf("%d minutes", data.Cache.TTLMinutes)))
	}

	fmt.Println()
	fmt.Println(SectionStyle.Render("Run storage"))
	fmt.Printf("%s %s\n", RenderLabel("Stored runs:"), ValueStyle.Render(fmt.Sprintf("%d / %d", data.Storage.Runs, data.Storage.MaxRuns)))
	fmt.Println()
}

func yesNo(b bool) string {
	if b {
		return SuccessStyle.Render("yes")
	}
	return DimStyle.Render("no")
}

func keyStatus(set bool) string {
	if set {
		return SuccessStyle.Render("configured")
	}
	return WarningStyle.Render("not set (advisories unavailable)")
}
