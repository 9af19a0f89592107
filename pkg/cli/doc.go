// Package cli provides common utilities for the earshot command-line tool.
//
// This package includes:
//   - Configuration management (server contexts)
//   - Output formatting (YAML, JSON, raw)
//   - Request file loading (YAML/JSON)
//   - Terminal rendering for transcripts and chat citations
//
// Configuration is stored in the ~/.earshot/ directory, supporting
// multiple named contexts similar to kubectl so one binary can talk to
// several deployments.
//
// Example usage:
//
//	// Load the CLI config
//	cfg, err := cli.LoadConfig()
//
//	// Get current context
//	ctx, err := cfg.GetCurrentContext()
//
//	// Output result
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
package cli
