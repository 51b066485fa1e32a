// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command librarian serves the claim verification and grounding API.
//
// Usage:
//
//	librarian serve
//	librarian serve --config librarian.yaml
//	LIBRARIAN_SOURCE_ROOT=/path/to/repo librarian serve
//
// With an OpenAI-compatible provider for consistency runs (Ollama shown):
//
//	LIBRARIAN_PROVIDER_ENABLED=true \
//	LIBRARIAN_PROVIDER_BASE_URL=http://localhost:11434/v1 \
//	LIBRARIAN_PROVIDER_MODEL=llama3.1 librarian serve
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8088/v1/librarian/health
//
//	# Verify a line citation
//	curl -X POST http://localhost:8088/v1/librarian/verify/lines \
//	  -H "Content-Type: application/json" \
//	  -d '{"claim": "Open validates the path", "references": [{"file_path": "store.go", "line_number": 42}]}'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	debugMode  bool

	rootCmd = &cobra.Command{
		Use:   "librarian",
		Short: "Claim verification and grounding service",
		Long: `Librarian checks generated answers against the code and documents they cite:
line and symbol references, citation grounding, chain-of-verification and
cross-question consistency.`,
		SilenceUsage: true,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "librarian %s (%s)\n", version, commit)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (defaults are embedded)")
	serveCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable gin debug mode and request logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
