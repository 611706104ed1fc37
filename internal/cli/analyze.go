// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// analyze.go - The default phoenixlens command: fetch, group, advise, report.
//
// RELIABILITY: a backend fetch failure is fatal; advisory failures are not.
package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/phoenixlens/internal/advisor"
	"github.com/jeranaias/phoenixlens/internal/analyzer"
	"github.com/jeranaias/phoenixlens/internal/cache"
	"github.com/jeranaias/phoenixlens/internal/config"
	"github.com/jeranaias/phoenixlens/internal/export"
	"github.com/jeranaias/phoenixlens/internal/phoenix"
	"github.com/jeranaias/phoenixlens/internal/pipeline"
	"github.com/jeranaias/phoenixlens/internal/report"
	"github.com/jeranaias/phoenixlens/internal/storage"
	"github.com/jeranaias/phoenixlens/internal/telemetry"
)

// HandleAnalyze runs one analysis pass over the configured window.
func HandleAnalyze(args Args) error {
	cfg, err := LoadConfigForArgs(args)
	if err != nil {
		return err
	}

	p := NewArgParser(args.Raw)
	if err := applyAnalyzeFlags(cfg, p); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	config.SetGlobal(cfg)

	noAdvisor := p.BoolFlag("no-advisor")
	auto := p.BoolFlag("auto") || p.BoolFlag("y") || p.BoolFlag("yes")
	noCache := p.BoolFlag("no-cache")
	formats, err := exportFormats(cfg, p)
	if err != nil {
		return err
	}

	ctx := context.Background()

	if !args.Quiet && !args.JSON {
		fmt.Println(InfoStyle.Render(fmt.Sprintf("Analyzing project %q over the last %d minutes",
			cfg.Phoenix.Project, cfg.Analysis.MinutesBack)))
	}

	client := phoenix.NewClient(cfg.Phoenix.Endpoint,
		time.Duration(cfg.Phoenix.TimeoutSeconds)*time.Second)

	spanCache, closeCache, err := openSpanCache(cfg, noCache)
	if err != nil && !args.Quiet && !args.JSON {
		fmt.Println(WarningStyle.Render(fmt.Sprintf("Warning: span cache unavailable: %v", err)))
	}
	if closeCache != nil {
		defer closeCache()
	}

	runner := pipeline.NewRunner(cfg, client, nil, spanCache)
	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	advised := runAdvisor(ctx, cfg, args, result, noAdvisor, auto)

	if args.JSON {
		if err := NewJSONResponse("analyze", result).Print(); err != nil {
			return err
		}
	} else {
		maxRecent := cfg.Analysis.MaxRecent
		if args.Quiet {
			maxRecent = 0
		}
		fmt.Print(report.Render(result, report.Options{
			Width:     GetTerminalWidth(),
			MaxRecent: maxRecent,
			Verbose:   args.Verbose,
		}))
	}

	// RELIABILITY: export failures are per-format; the run snapshot and
	// spend record are persisted either way.
	exportErr := exportResult(result, formats, cfg.Export.OutputDir, args)

	persistRun(cfg, args, result, advised)
	return exportErr
}

// applyAnalyzeFlags layers command-line flags over the loaded config.
func applyAnalyzeFlags(cfg *config.Config, p *ArgParser) error {
	if v := flagValue(p, "minutes-back", "m"); v != "" {
		n, err := ParseIntWithValidation(v, "minutes-back")
		if err != nil {
			return err
		}
		cfg.Analysis.MinutesBack = n
	}
	if v := p.Flag("endpoint"); v != "" {
		cfg.Phoenix.Endpoint = v
	}
	if v := p.Flag("project"); v != "" {
		cfg.Phoenix.Project = v
	}
	if v := p.Flag("fallback-project"); v != "" {
		cfg.Phoenix.FallbackProject = v
	}
	if v := p.Flag("advisor-model"); v != "" {
		cfg.Advisor.Model = v
	}
	if v := p.Flag("max-recent"); v != "" {
		n, err := ParseIntWithValidation(v, "max-recent")
		if err != nil {
			return err
		}
		cfg.Analysis.MaxRecent = n
	}
	if v := p.Flag("output-dir"); v != "" {
		cfg.Export.OutputDir = v
	}
	return nil
}

// flagValue returns the long flag value, falling back to the short form.
func flagValue(p *ArgParser, long, short string) string {
	if v := p.Flag(long); v != "" {
		return v
	}
	return p.Flag(short)
}

// exportFormats resolves the formats to export. The --export flag wins;
// without it nothing is exported (config formats are the flag's default
// when --export is passed bare).
func exportFormats(cfg *config.Config, p *ArgParser) ([]string, error) {
	if !p.HasFlag("export") {
		return nil, nil
	}
	raw := p.Flag("export")
	var formats []string
	if raw == "" {
		formats = cfg.Export.Formats
	} else {
		for _, f := range strings.Split(raw, ",") {
			f = strings.TrimSpace(strings.ToLower(f))
			if f != "" {
				formats = append(formats, f)
			}
		}
	}
	for _, f := range formats {
		if !config.ValidFormat(f) {
			return nil, ErrUnsupportedFormat(f, config.ValidFormats)
		}
	}
	return formats, nil
}

// openSpanCache opens the SQLite span cache when enabled. A cache
// failure is reported by the caller but never blocks the run.
func openSpanCache(cfg *config.Config, noCache bool) (pipeline.SpanCache, func(), error) {
	if noCache || !cfg.Cache.Enabled {
		return nil, nil, nil
	}
	path := cfg.Cache.Path
	if path == "" {
		dataDir, err := config.DataDir()
		if err != nil {
			return nil, nil, err
		}
		path = filepath.Join(dataDir, "cache.db")
	}
	c, err := cache.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { c.Close() }, nil
}

// runAdvisor asks OpenAI for advisories when the advisor is enabled and
// consented to. Returns true when advisories were actually requested.
func runAdvisor(ctx context.Context, cfg *config.Config, args Args, result *analyzer.Result, noAdvisor, auto bool) bool {
	if noAdvisor || !cfg.Advisor.Enabled || len(result.Groups) == 0 {
		return false
	}

	// JSON mode never prompts; advisories there require --auto.
	if !auto {
		if args.JSON || !CanPrompt() {
			return false
		}
		question := fmt.Sprintf("Send %d comparison group(s) to OpenAI (%s) for efficiency analysis?",
			len(result.Groups), cfg.Advisor.Model)
		if !PromptYesNo(question) {
			return false
		}
	}

	a := advisor.New(cfg.Advisor)
	result.Advisories = a.AnalyzeGroups(ctx, result.Groups)
	return true
}

// persistRun saves the run snapshot and advisory spend. Storage trouble
// is reported as a warning; the analysis already succeeded.
func persistRun(cfg *config.Config, args Args, result *analyzer.Result, advised bool) {
	warn := func(format string, a ...interface{}) {
		if args.Quiet {
			return
		}
		msg := WarningStyle.Render(fmt.Sprintf(format, a...))
		if args.JSON {
			StderrPrintln(msg)
		} else {
			fmt.Println(msg)
		}
	}

	dataDir, err := config.DataDir()
	if err != nil {
		warn("Warning: run not saved: %v", err)
		return
	}

	store, err := storage.NewRunStore(filepath.Join(dataDir, "runs"), cfg.Storage.MaxRuns)
	if err == nil {
		err = store.Save(result)
	}
	if err != nil {
		warn("Warning: run not saved: %v", err)
	}

	if advised {
		tracker, err := telemetry.NewTracker(filepath.Join(dataDir, "costs"))
		if err == nil {
			err = tracker.Record(telemetry.SpendFromResult(result, cfg.Advisor.Model))
		}
		if err != nil {
			warn("Warning: advisory spend not recorded: %v", err)
		}
	}
}

// exportResult writes the result in each requested format. A failing
// format never blocks the remaining formats; failures are collected
// and reported together.
func exportResult(result *analyzer.Result, formats []string, outputDir string, args Args) error {
	var failed []string
	for _, f := range formats {
		path, err := exportOne(result, f, outputDir)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", f, err))
			if !args.Quiet {
				msg := WarningStyle.Render(fmt.Sprintf("Warning: %s export failed: %v", f, err))
				if args.JSON {
					StderrPrintln(msg)
				} else {
					fmt.Println(msg)
				}
			}
			continue
		}
		if !args.Quiet && !args.JSON {
			fmt.Printf("%s %s\n", SuccessStyle.Render("Exported:"), path)
		}
	}
	if len(failed) > 0 {
		return NewCommandError("analyze", "export", strings.Join(failed, "; "), nil)
	}
	return nil
}

// exportOne writes a single format and returns the written path.
func exportOne(result *analyzer.Result, format, outputDir string) (string, error) {
	exp, err := export.ForFormat(format)
	if err != nil {
		return "", err
	}
	return export.ExportToFile(result, exp, outputDir)
}
