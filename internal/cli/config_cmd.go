// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - The config command: show, get, set, path, init.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/phoenixlens/internal/config"
)

// HandleConfig dispatches config subcommands.
func HandleConfig(args Args) error {
	p := NewArgParser(args.Raw)

	switch p.Subcommand() {
	case "", "show":
		return handleConfigShow(args)
	case "get":
		return handleConfigGet(args, p)
	case "set":
		return handleConfigSet(args, p)
	case "path":
		return handleConfigPath(args)
	case "init":
		return handleConfigInit(args)
	default:
		return NewValidationErrorWithExample(
			"subcommand",
			p.Subcommand(),
			"unknown config subcommand",
			"phoenixlens config [show|get|set|path|init]",
		)
	}
}

// handleConfigShow prints every key and its current value.
func handleConfigShow(args Args) error {
	cfg, err := LoadConfigForArgs(args)
	if err != nil {
		return err
	}

	if args.JSON {
		values := make(map[string]string)
		for _, key := range config.Keys() {
			if v, err := cfg.Get(key); err == nil {
				values[key] = v
			}
		}
		return NewJSONResponse("config", values).Print()
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("phoenixlens configuration"))
	fmt.Println(RenderSeparator())
	for _, key := range config.Keys() {
		v, err := cfg.Get(key)
		if err != nil {
			continue
		}
		if v == "" {
			v = DimStyle.Render("(unset)")
		} else {
			v = ValueStyle.Render(v)
		}
		fmt.Printf("%s %s\n", RenderLabel(key+":", 32), v)
	}
	fmt.Println()
	return nil
}

// handleConfigGet prints one value.
func handleConfigGet(args Args, p *ArgParser) error {
	key := p.Positional(1)
	if key == "" {
		return ErrMissingArgument("key", "phoenixlens config get phoenix.project")
	}

	cfg, err := LoadConfigForArgs(args)
	if err != nil {
		return err
	}
	v, err := cfg.Get(key)
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("config", map[string]string{key: v}).Print()
	}
	fmt.Println(v)
	return nil
}

// handleConfigSet updates one value and saves the config file.
// Everything after the key joins into the value, so unquoted
// multi-word values work.
func handleConfigSet(args Args, p *ArgParser) error {
	key := p.Positional(1)
	value := strings.Join(p.PositionalFrom(2), " ")
	if key == "" || value == "" {
		return ErrMissingArgument("key/value", "phoenixlens config set analysis.minutes_back 30")
	}

	path, err := config.DefaultPath()
	if err != nil {
		return err
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("config", map[string]string{key: value}).Print()
	}
	fmt.Printf("%s %s = %s\n", SuccessStyle.Render("Set:"), key, value)
	return nil
}

// handleConfigPath prints the config file location.
func handleConfigPath(args Args) error {
	path, err := config.DefaultPath()
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("config", map[string]string{"path": path}).Print()
	}
	fmt.Println(path)
	return nil
}

// handleConfigInit writes the default config file if none exists.
func handleConfigInit(args Args) error {
	path, err := config.DefaultPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return NewCommandError("config", "init", fmt.Sprintf("config already exists at %s", path), nil)
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("config", map[string]string{"path": path}).Print()
	}
	fmt.Printf("%s %s\n", SuccessStyle.Render("Created:"), path)
	return nil
}
