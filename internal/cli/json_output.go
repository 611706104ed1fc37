// json_output.go - JSON output support for scripting and automation.
//
// Provides a standardized JSON output format for all CLI commands so
// results can be piped into jq, dashboards, or log aggregation.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the ISO8601 timestamp when the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed (for audit trail)
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Error:     nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Data:      nil,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print outputs the JSON response to stdout.
// Human-readable messages should go to stderr when JSON mode is enabled.
func (r *JSONResponse) Print() error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// String returns the JSON response as a string.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

// StderrPrintln prints a line to stderr (for human-readable output in JSON mode).
func StderrPrintln(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// StatusData represents the data returned by the status command.
type StatusData struct {
	Backend StatusBackendInfo `json:"backend"`
	Advisor StatusAdvisorInfo `json:"advisor"`
	Cache   StatusCacheInfo   `json:"cache"`
	Storage StatusStorageInfo `json:"storage"`
}

// StatusBackendInfo contains Phoenix backend information for the status command.
type StatusBackendInfo struct {
	Endpoint  string   `json:"endpoint"`
	Reachable bool     `json:"reachable"`
	Projects  []string `json:"projects,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// StatusAdvisorInfo contains efficiency advisor configuration (API key masked).
type StatusAdvisorInfo struct {
	Enabled   bool   `json:"enabled"`
	KeySet    bool   `json:"api_key_configured"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
}

// StatusCacheInfo contains span cache statistics for the status command.
type StatusCacheInfo struct {
	Enabled    bool   `json:"enabled"`
	Spans      int    `json:"spans"`
	Projects   int    `json:"projects"`
	TTLMinutes int    `json:"ttl_minutes"`
	Path       string `json:"path,omitempty"`
}

// StatusStorageInfo contains stored run statistics for the status command.
type StatusStorageInfo struct {
	Runs    int `json:"runs"`
	MaxRuns int `json:"max_runs"`
}

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}
