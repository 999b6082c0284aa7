package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ccproxy/pkg/buildinfo"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ccproxy",
	Short: "A Claude-to-OpenAI protocol translating reverse proxy",
	Long: `ccproxy accepts Claude Messages API requests and serves them against
OpenAI-compatible chat completion backends.

It provides:
  - Bidirectional translation between the Claude Messages and OpenAI
    Chat Completions schemas, for both unary and streaming requests
  - A prioritized, failure-aware pool of upstream providers with
    in-provider model rotation and cross-provider escalation
  - A small admin surface for live config inspection, reload, and
    per-provider connectivity testing`,
	Version: buildinfo.Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultConfig := "config/providers.json"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfig, "provider config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
