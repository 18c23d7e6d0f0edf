// WeddingCue Core - live wedding timeline service
//
// This is the main entry point for the weddingcue binary. It serves the
// timeline API and offers operator commands for running an event from a
// terminal:
//   - serve: HTTP/WebSocket API, clock sweep and cue button listener
//   - migrate / seed: prepare the timeline database
//   - start / complete / jump / reset / rebase / sweep: drive a timeline
//   - timeline: print an event's timers and their state
//   - token: mint offline access tokens for operators and players
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // venue appliances may ship without a zoneinfo database

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnv names the environment variable that overrides the config path.
const configEnv = "WEDDINGCUE_CONFIG"

var (
	flagConfig    string
	flagEnvFiles  []string
	flagEphemeral bool
)

var rootCmd = &cobra.Command{
	Use:           "weddingcue",
	Short:         "Live wedding timeline: timers, cues and rehearsals",
	Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "",
		"config file (default $"+configEnv+" or "+defaultConfigPath+")")
	rootCmd.PersistentFlags().StringSliceVar(&flagEnvFiles, "env-file", nil,
		"dotenv files loaded before the config (default .env)")
	rootCmd.PersistentFlags().BoolVar(&flagEphemeral, "ephemeral", false,
		"use a private in-memory database")
}

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns the configuration file path.
//
// Order: --config, then WEDDINGCUE_CONFIG, then the default path. The
// default is only used when the file exists; otherwise built-in defaults
// and environment overrides apply.
func getConfigPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}
