package main

import (
	"fmt"
	"os"
	"path/filepath"

	"cblcrawl/pkg/auth"
	"cblcrawl/pkg/config"
	"cblcrawl/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage cblcrawl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (CBLCRAWL_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created in the current directory as 'cblcrawl.yaml' unless a
different path is given with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

Secrets such as the API token and Redis password are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# cblcrawl configuration file
#
# Every option can also be set through CBLCRAWL_* environment variables,
# for example CBLCRAWL_DATA_DIR or CBLCRAWL_API_TOKEN.

api:
  endpoint: "https://communitybanlist.com/graphql"
  # Per-request timeout
  timeout: 30s
  user_agent: "cblcrawl/1.0"
  # Optional bearer token. Prefer 'cblcrawl auth login' over storing it here.
  token: ""

crawl:
  # Records requested per page (1-1000)
  page_size: 500
  # Records between periodic checkpoints
  checkpoint_every: 10000

rate_limit:
  # Fixed pause between pages
  page_delay: 200ms
  # Optional ceiling on request rate; 0 disables it
  requests_per_second: 0
  burst: 1

retry:
  # Retries of transient fetch errors; 0 stops on the first failure
  max_attempts: 0
  initial_backoff: 1s
  max_backoff: 30s
  multiplier: 2.0

checkpoint:
  # file or redis
  backend: file
  # Recover the cursor from a damaged checkpoint file instead of restarting
  salvage: false
  redis_addr: ""
  redis_password: ""
  redis_db: 0
  redis_prefix: "cblcrawl:checkpoint:"

output:
  # Checkpoints and CSV files are written here
  data_directory: "./data"

logging:
  # debug, info, warn, error or disabled
  level: info
  # Optional log file in addition to stderr
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "cblcrawl.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		ui.Println("\nTo overwrite, first remove the existing file:")
		ui.Println("  rm " + configPath)
		return errReported
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	ui.Println("\nNext steps:")
	ui.Println("1. Edit the configuration file")
	ui.Println("2. Run 'cblcrawl config validate' to check it")
	ui.Println("3. Start downloading with 'cblcrawl bans' or 'cblcrawl users'")
	return nil
}

// sanitizeConfig returns a copy of cfg with secrets masked
func sanitizeConfig(cfg *config.Config) config.Config {
	display := *cfg
	if display.API.Token != "" {
		display.API.Token = auth.MaskString(display.API.Token)
	}
	if display.Checkpoint.RedisPassword != "" {
		display.Checkpoint.RedisPassword = "********"
	}
	return display
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := sanitizeConfig(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	ui.Println("")
	ui.Println(string(data))

	ui.Println("Configuration sources (in order of priority):")
	ui.Println("1. Command line flags")
	ui.Println("2. Environment variables (CBLCRAWL_*)")
	if path := configPath(); path != "" {
		ui.Println("3. Configuration file: " + path)
	} else {
		ui.Println("3. Configuration file: (none found)")
	}
	ui.Println("4. Default values")
	return nil
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.FindConfigFile()
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath()
	if path == "" {
		ui.PrintWarning("No configuration file found, validating defaults and environment")
	} else {
		ui.PrintInfo("Validating configuration", path)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return errReported
	}

	var problems []string
	if err := os.MkdirAll(cfg.Output.DataDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create data directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			ui.PrintError("  - " + p)
		}
		return errReported
	}

	if cfg.Checkpoint.Backend == "redis" && cfg.Checkpoint.Salvage {
		ui.PrintWarning("checkpoint.salvage only applies to the file backend")
	}

	ui.PrintSuccess("Configuration is valid")
	ui.Println("\nConfiguration summary:")
	ui.Println(fmt.Sprintf("  Endpoint: %s", cfg.API.Endpoint))
	ui.Println(fmt.Sprintf("  Data directory: %s", cfg.Output.DataDirectory))
	ui.Println(fmt.Sprintf("  Page size: %d", cfg.Crawl.PageSize))
	ui.Println(fmt.Sprintf("  Checkpoint every: %d records (%s backend)", cfg.Crawl.CheckpointEvery, cfg.Checkpoint.Backend))
	ui.Println(fmt.Sprintf("  Page delay: %s", cfg.RateLimit.PageDelay))
	ui.Println(fmt.Sprintf("  Max retries: %d", cfg.Retry.MaxAttempts))
	ui.Println(fmt.Sprintf("  Log level: %s", cfg.Logging.Level))
	return nil
}
