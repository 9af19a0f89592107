// Package main is the entry point for the earshot CLI.
//
// Usage:
//
//	earshot [flags] <command> [args]
//
// Commands:
//
//	serve        - Run the API server
//	enroll       - Register the caller's voiceprint from a consent recording
//	transcribe   - Submit one audio chunk to the capture pipeline
//	transcripts  - List stored transcripts
//	chat         - Ask a question over the transcript history
//	seed         - Populate a development store with demo segments
//	backfill     - Re-attempt missing segment embeddings
//	config       - Manage CLI contexts
//	version      - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/earshot-ai/earshot/cmd/earshot/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
