// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Unified confirmation handling for all phoenixlens commands.
//
// USABILITY: TTY detection for proper terminal handling
//
// Every command that prompts follows a single pattern:
//   1. If the skip flag (--confirm / --auto) is present, proceed without prompting
//   2. If --json mode, require the skip flag (no interactive prompts in JSON mode)
//   3. If stdin is not a TTY, require the skip flag (can't prompt)
//   4. Otherwise, show an interactive prompt

package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// =============================================================================
// UNIFIED CONFIRMATION HANDLING
// =============================================================================

// RequireConfirmation checks if the user has confirmed a destructive or
// billable action.
//
// Confirmation flow:
//  1. If confirmFlag is true, return true immediately
//  2. If jsonMode is true, return error (JSON mode requires the flag)
//  3. If stdin is not a TTY, return error (can't prompt)
//  4. Otherwise, show interactive prompt and wait for user input
//
// Example:
//
//	confirmed, err := RequireConfirmation(confirmFlag, "clear all stored runs", jsonMode)
//	if err != nil {
//	    return err
//	}
//	if !confirmed {
//	    ShowCancellationMessage()
//	    return nil
//	}
func RequireConfirmation(confirmFlag bool, action string, jsonMode bool) (bool, error) {
	if confirmFlag {
		return true, nil
	}

	// In JSON mode, the flag is required (no interactive prompts)
	if jsonMode {
		return false, fmt.Errorf("confirmation required: use --confirm flag in JSON mode")
	}

	// USABILITY: TTY detection for proper terminal handling
	// Can't prompt if stdin is not a TTY (e.g., piped input, cron jobs, CI/CD)
	if !IsTTY() {
		return false, fmt.Errorf("confirmation required but stdin is not a terminal; use --confirm flag")
	}

	fmt.Println()
	fmt.Printf("Are you sure you want to %s? [y/N]: ", action)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}

// ShowCancellationMessage displays a standard cancellation message.
// Use this after RequireConfirmation returns false.
func ShowCancellationMessage() {
	fmt.Println()
	fmt.Println(DimStyle.Render("Cancelled."))
	fmt.Println()
}

// PromptYesNo prompts the user with a yes/no question.
// Returns true for yes, false for no.
// Returns false if stdin is not a TTY (cannot prompt).
//
// Example:
//
//	if PromptYesNo("Send 2 comparison groups to OpenAI for analysis?") {
//	    // Run the advisor
//	}
func PromptYesNo(question string) bool {
	// USABILITY: TTY detection for proper terminal handling
	if !IsTTY() {
		return false
	}

	fmt.Printf("%s [y/N]: ", question)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes"
}
