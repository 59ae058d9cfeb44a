package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/openai/openai-go"
	"github.com/spf13/cobra"

	"github.com/mempirate/electionjobs/backend"
	"github.com/mempirate/electionjobs/cache"
	"github.com/mempirate/electionjobs/config"
	"github.com/mempirate/electionjobs/failure"
	"github.com/mempirate/electionjobs/filter"
	"github.com/mempirate/electionjobs/log"
	"github.com/mempirate/electionjobs/pipeline"
	"github.com/mempirate/electionjobs/scrape"
	"github.com/mempirate/electionjobs/sheets"
	"github.com/mempirate/electionjobs/slack"
	"github.com/mempirate/electionjobs/store"
)

var runFlags struct {
	dryRun  bool
	envFile string
}

func init() {
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "Run every stage without writing the dataset or the spreadsheet.")
	runCmd.Flags().StringVar(&runFlags.envFile, "env-file", ".env", "File to load environment variables from, if it exists.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--dry-run]",
	Short: "Fetches new issues and appends their postings to the dataset.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := cfg.LoadSecrets(runFlags.envFile); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RunTimeout)
		defer cancel()

		p, closers, err := buildPipeline(ctx, cfg, runFlags.dryRun)
		defer func() {
			for _, c := range closers {
				_ = c.Close()
			}
		}()
		if err != nil {
			return err
		}

		summary, err := p.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), summary.String())
		return nil
	},
}

func buildPipeline(ctx context.Context, cfg *config.Config, dryRun bool) (*pipeline.Pipeline, []io.Closer, error) {
	logger := log.NewLogger("run")
	var closers []io.Closer

	fetcher, err := scrape.NewFetcher(cfg.BaseURL, scrape.ClientOptions{
		Timeout:   cfg.Fetch.Timeout,
		Retries:   cfg.Fetch.Retries,
		UserAgent: cfg.Fetch.UserAgent,
	})
	if err != nil {
		return nil, closers, failure.Config("invalid fetch configuration", err)
	}

	var responses cache.Cache = cache.NewMemory()
	if cfg.Model.CacheFile != "" {
		bolt, err := cache.NewBoltCache(cfg.Path(cfg.Model.CacheFile))
		if err != nil {
			return nil, closers, failure.Persistence("failed to open model cache", err)
		}
		closers = append(closers, bolt)
		responses = bolt
		logger.Debug().Int("entries", bolt.Len()).Msg("Model cache opened")
	}

	model := backend.NewBackend(backend.Options{
		APIKey:         cfg.Secrets.OpenAIKey,
		Model:          openai.ChatModel(cfg.Model.Name),
		Timeout:        cfg.Model.Timeout,
		MaxRetries:     cfg.Model.MaxRetries,
		InitialBackoff: cfg.Model.InitialBackoff,
		Cache:          responses,
	})

	deps := pipeline.Deps{
		Fetcher:   fetcher,
		Mirror:    store.NewFileStore(cfg.MirrorDir()),
		Dataset:   store.NewCSVDataset(cfg.DatasetPath()),
		Extractor: model,
	}

	if cfg.Model.Classify {
		deps.Classifier = model
	}

	if cfg.FullText.Enabled {
		if cfg.Secrets.FirecrawlKey != "" {
			fc, err := scrape.NewFirecrawlScraper(cfg.Secrets.FirecrawlKey, cfg.FullText.RequestsPerSecond)
			if err != nil {
				return nil, closers, failure.Config("failed to create Firecrawl scraper", err)
			}
			deps.Scraper = fc
			logger.Info().Msg("Scraping full descriptions with Firecrawl")
		} else {
			deps.Scraper = scrape.NewDirectScraper(scrape.ClientOptions{
				Timeout:           cfg.FullText.Timeout,
				Retries:           cfg.FullText.Retries,
				UserAgent:         cfg.Fetch.UserAgent,
				RequestsPerSecond: cfg.FullText.RequestsPerSecond,
			})
		}
	}

	if !dryRun {
		sheetCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		client, err := sheets.NewGoogleClient(sheetCtx, cfg.Secrets.GoogleCredentials, cfg.Sheets.SpreadsheetID)
		if err != nil {
			return nil, closers, failure.Config("failed to open spreadsheet", err)
		}
		deps.Publisher = sheets.NewPublisher(client)
	}

	if cfg.Secrets.SlackToken != "" && cfg.Slack.Channel != "" {
		deps.Notifier = slack.NewNotifier(cfg.Secrets.SlackToken, cfg.Slack.Channel)
	}

	opts := pipeline.Options{
		Years: cfg.WindowYears(time.Now()),
		Exclusions: filter.Exclusions{
			Employers: cfg.Exclusions.Employers,
			Domains:   cfg.Exclusions.Domains,
		},
		Concurrency: cfg.EnrichConcurrency,
		DataDir:     cfg.DataDir,
		DryRun:      dryRun,
	}

	logger.Info().
		Ints("years", opts.Years).
		Int("concurrency", opts.Concurrency).
		Bool("dry_run", dryRun).
		Str("data_dir", cfg.DataDir).
		Msg("Pipeline configured")

	return pipeline.New(opts, deps), closers, nil
}
