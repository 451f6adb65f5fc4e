package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"cblcrawl/pkg/config"
	"cblcrawl/pkg/logger"
	"cblcrawl/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	dataDir    string
	noColor    bool
	quiet      bool
)

// errReported marks a failure that has already been printed to the user
var errReported = errors.New("error already reported")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cblcrawl",
	Short: "Resumable exporter for the Community Ban List",
	Long: `cblcrawl downloads the Community Ban List GraphQL collections into
append-only CSV files.

Features:
  - Cursor pagination with periodic checkpoints
  - Resume after interruption without losing progress
  - File or Redis checkpoint backends
  - Optional retry of transient failures with exponential backoff
  - API token storage in the system keychain`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetQuietMode(quiet)
		if noColor {
			ui.SetColor(false)
		}
	},
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			ui.PrintError("Error", err.Error())
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./cblcrawl.yaml or $HOME/.config/cblcrawl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for checkpoints and CSV output (default ./data)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`cblcrawl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads configuration with the global flags applied on top
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := map[string]interface{}{
		"log-level": logLevel,
		"data-dir":  dataDir,
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
