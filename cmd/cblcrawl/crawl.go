package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"cblcrawl/pkg/auth"
	"cblcrawl/pkg/cbl"
	"cblcrawl/pkg/checkpoint"
	"cblcrawl/pkg/config"
	"cblcrawl/pkg/crawler"
	"cblcrawl/pkg/graphql"
	"cblcrawl/pkg/logger"
	"cblcrawl/pkg/ratelimit"
	"cblcrawl/pkg/retry"
	"cblcrawl/pkg/storage"
	"cblcrawl/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Crawl command flags
	countOnly       bool
	endpoint        string
	pageSize        int
	checkpointEvery int
	maxRetries      int
	pageDelay       time.Duration
)

func newEntityCmd(entity *cbl.Entity) *cobra.Command {
	cmd := &cobra.Command{
		Use:   entity.Name,
		Short: fmt.Sprintf("Download all %s from the Community Ban List", entity.Noun),
		Long: fmt.Sprintf(`Download every %s record into %s, resuming from %s when present.

Progress is checkpointed every %d records by default and on interruption,
so an interrupted crawl can simply be restarted. Use --count to report on
the data collected so far without contacting the API.`,
			entity.Noun, entity.OutputFile, entity.CheckpointFile, crawler.DefaultCheckpointEvery),
		Example: fmt.Sprintf(`  # Crawl from the saved checkpoint
  cblcrawl %[1]s

  # Report what has been collected so far
  cblcrawl %[1]s --count

  # Store data elsewhere and retry transient failures
  cblcrawl %[1]s --data-dir /var/lib/cbl --max-retries 3`, entity.Name),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if countOnly {
				return runCount(cmd, entity)
			}
			return runCrawl(cmd, entity)
		},
	}

	cmd.Flags().BoolVar(&countOnly, "count", false, fmt.Sprintf("count the %s retrieved so far", entity.Noun))
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "GraphQL endpoint URL")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "records requested per page (default 500)")
	cmd.Flags().IntVar(&checkpointEvery, "checkpoint-every", 0, "records between periodic checkpoints (default 10000)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "retries for transient fetch errors (default 0)")
	cmd.Flags().DurationVar(&pageDelay, "page-delay", 0, "pause between pages (default 200ms)")

	return cmd
}

func init() {
	for _, entity := range cbl.Entities() {
		rootCmd.AddCommand(newEntityCmd(entity))
	}
}

// crawlFlags collects only the flags the user set explicitly
func crawlFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed
	if changed("endpoint") {
		flags["endpoint"] = endpoint
	}
	if changed("page-size") {
		flags["page-size"] = pageSize
	}
	if changed("checkpoint-every") {
		flags["checkpoint-every"] = checkpointEvery
	}
	if changed("max-retries") {
		flags["max-retries"] = maxRetries
	}
	if changed("page-delay") {
		flags["page-delay"] = pageDelay
	}
	return flags
}

func runCount(cmd *cobra.Command, entity *cbl.Entity) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	return printCount(entity, filepath.Join(cfg.Output.DataDirectory, entity.OutputFile))
}

// printCount prints the entity summary for the dataset at path
func printCount(entity *cbl.Entity, path string) error {
	lines, err := entity.Summarize(path)
	if errors.Is(err, storage.ErrNoData) {
		ui.Println("No data found. The CSV file does not exist.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to count %s: %w", entity.Noun, err)
	}
	for _, line := range lines {
		ui.Println(line)
	}
	return nil
}

func runCrawl(cmd *cobra.Command, entity *cbl.Entity) error {
	cfg, err := loadConfig(crawlFlags(cmd))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.GetLogger().WithField("entity", entity.Name)

	store, closeStore, err := openStore(ctx, cfg, entity, log)
	if err != nil {
		return err
	}
	defer closeStore()

	outputPath := filepath.Join(cfg.Output.DataDirectory, entity.OutputFile)
	c, err := crawler.New(crawler.Options{
		Entity:          entity,
		Fetcher:         newFetcher(cfg, entity, log),
		Store:           store,
		OutputPath:      outputPath,
		PageSize:        cfg.Crawl.PageSize,
		CheckpointEvery: cfg.Crawl.CheckpointEvery,
		Pacer:           ratelimit.NewPacer(cfg.RateLimit.PageDelay),
		Limiter:         ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		Retrier: retry.New(retry.Policy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
			Multiplier:     cfg.Retry.Multiplier,
		}, log),
		Reporter: ui.NewBatchReporter(entity.Noun),
		Logger:   log,
	})
	if err != nil {
		return err
	}

	ui.Println(fmt.Sprintf("Fetching all %s from CBL...", entity.Noun))
	res := c.Run(ctx)
	return report(entity, outputPath, res)
}

// report prints the final messages for a crawl result. A failed crawl
// returns errReported so the process exits non-zero.
func report(entity *cbl.Entity, outputPath string, res crawler.Result) error {
	switch res.Outcome {
	case crawler.Completed:
		ui.Println(fmt.Sprintf("Final checkpoint saved. Total %s fetched: %d", entity.Noun, res.Total))
		ui.PrintSuccess("Data saved to " + outputPath)
	case crawler.Interrupted:
		ui.Println(fmt.Sprintf("Final checkpoint saved. Total %s fetched: %d", entity.Noun, res.Total))
		ui.PrintWarning("Crawl interrupted by user. Progress has been saved.")
	default:
		ui.PrintError("An unexpected error occurred", res.Err)
		ui.Println("Progress has been saved.")
	}
	ui.Println("Exiting.")

	if res.Outcome == crawler.Failed {
		return errReported
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, entity *cbl.Entity, log logger.Logger) (checkpoint.Store, func(), error) {
	if cfg.Checkpoint.Backend == "redis" {
		rs, err := checkpoint.NewRedisStore(ctx, checkpoint.RedisOptions{
			Addr:     cfg.Checkpoint.RedisAddr,
			Password: cfg.Checkpoint.RedisPassword,
			DB:       cfg.Checkpoint.RedisDB,
			Prefix:   cfg.Checkpoint.RedisPrefix,
		}, entity.Name, log)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	}

	path := filepath.Join(cfg.Output.DataDirectory, entity.CheckpointFile)
	return checkpoint.NewFileStore(path, log, cfg.Checkpoint.Salvage), func() {}, nil
}

func newFetcher(cfg *config.Config, entity *cbl.Entity, log logger.Logger) *graphql.Client {
	return graphql.NewClient(graphql.Options{
		Endpoint:  cfg.API.Endpoint,
		Field:     entity.Field,
		Query:     entity.Query,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
		Token:     resolveToken(cfg, log),
		Logger:    log,
	})
}

// resolveToken prefers the configured token and falls back to stored credentials
func resolveToken(cfg *config.Config, log logger.Logger) string {
	if cfg.API.Token != "" {
		return cfg.API.Token
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Token storage unavailable")
		return ""
	}
	token, err := manager.Retrieve(auth.DefaultTokenName)
	if err != nil {
		log.Debug("No stored API token, sending anonymous requests")
		return ""
	}
	log.WithField("token", auth.MaskString(token.Value)).Debug("Using stored API token")
	return token.Value
}
