package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/alvmarrod/site-weaver/internal/config"
	"github.com/alvmarrod/site-weaver/internal/crawler"
	"github.com/alvmarrod/site-weaver/internal/extract"
	"github.com/alvmarrod/site-weaver/internal/fetch"
	"github.com/alvmarrod/site-weaver/internal/memory"
	"github.com/alvmarrod/site-weaver/internal/metrics"
	"github.com/alvmarrod/site-weaver/internal/robots"
	"github.com/alvmarrod/site-weaver/internal/sitemap"
	"github.com/alvmarrod/site-weaver/internal/storage"
	"github.com/alvmarrod/site-weaver/internal/version"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "sitecrawler URL",
		Short:         "Crawl a website and map how its pages link together",
		Long:          "sitecrawler walks a single site from a seed URL, stores the text of every unique page and writes a Graphviz sitemap of the links it found.",
		Version:       version.Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				v.Set("seed_url", args[0])
			}
			if cmd.Flags().Changed("timeout") {
				seconds, _ := cmd.Flags().GetInt("timeout")
				v.Set("request_timeout_ms", seconds*1000)
			}

			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(cfg.LogLevel, verbose)

			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.Int("depth", -1, "Maximum crawl depth (-1 for unlimited)")
	flags.Int("max-pages", -1, "Maximum number of pages to visit (-1 for unlimited)")
	flags.String("output-format", storage.FormatText, "Content output format: txt, xlsx or sqlite")
	flags.String("output-dir", "output", "Root folder for crawl output")
	flags.Int("timeout", 10, "Request timeout in seconds")
	flags.Int("retries", 3, "Retries for transient fetch failures")
	flags.String("config", "", "Config file path (yaml, json or toml)")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	bindings := map[string]string{
		"max_depth":      "depth",
		"max_pages":      "max-pages",
		"output_format":  "output-format",
		"output_root":    "output-dir",
		"retry_attempts": "retries",
	}
	for key, flag := range bindings {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

func setupLogging(level string, verbose bool) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	if verbose {
		lvl = logrus.DebugLevel
	}
	logrus.SetLevel(lvl)
}

func run(cfg *config.Config) error {
	runID := uuid.NewString()
	log := logrus.WithField("run", runID)
	now := time.Now()

	log.Infof("Site Weaver v%s starting...", version.Version)
	log.Infof("Configuration loaded: seed=%s, depth=%d, max_pages=%d, format=%s",
		cfg.SeedURL, cfg.MaxDepth, cfg.MaxPages, cfg.OutputFormat)

	outputDir := storage.OutputDir(cfg.OutputRoot, cfg.SeedURL)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}
	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = filepath.Join(outputDir, "metrics.json")
	}

	contentPath := filepath.Join(outputDir, storage.ContentFileName(cfg.SeedURL, cfg.OutputFormat, now))

	sink, err := storage.OpenSink(cfg.OutputFormat, outputDir, cfg.SeedURL, runID, now)
	if err != nil {
		return fmt.Errorf("failed to open content sink: %w", err)
	}
	store, isSQLite := sink.(*storage.Storage)
	if isSQLite {
		if err := store.StartRun(cfg.SeedURL, now); err != nil {
			log.Errorf("Failed to record crawl run: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The first signal cancels ctx; force sees it too and counts it
	force := make(chan os.Signal, 2)
	signal.Notify(force, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(force)
	done := make(chan struct{})
	defer close(done)

	fetcher := fetch.New(ctx, fetch.Options{
		Timeout:    cfg.RequestTimeout(),
		Retries:    cfg.RetryAttempts,
		RetryDelay: cfg.RetryDelay(),
		UserAgent:  cfg.UserAgent,
	})
	policy := robots.FetchPolicy(ctx, fetcher, cfg.SeedURL)

	graph := memory.NewSiteGraph(cfg.SeedURL)
	writer := sitemap.NewWriter(filepath.Join(outputDir, storage.SitemapFileName(outputDir, now)))
	tracker := metrics.NewTracker()
	progressLine := metrics.NewProgressLine(os.Stdout)

	c, err := crawler.NewCrawler(cfg.SeedURL, graph, crawler.Deps{
		Fetcher:   fetcher,
		Extractor: extract.New(),
		Policy:    policy,
		Sink:      sink,
		Exporter:  writer,
	}, crawler.Options{
		MaxDepth:    cfg.MaxDepth,
		MaxPages:    cfg.MaxPages,
		StripParams: cfg.StripParams,
		ExportEvery: cfg.ExportEvery,
		StepPause:   cfg.StepPause(),
	}, func(p crawler.Progress) {
		tracker.Observe(p)
		progressLine.Update(p)
	}, log)
	if err != nil {
		sink.Close()
		return fmt.Errorf("failed to create crawler: %w", err)
	}

	go forceExitOnSecond(force, done, func(sig os.Signal) {
		log.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
		log.Warn("Attempting emergency save...")

		if err := writer.Export(graph.Snapshot()); err != nil {
			log.Errorf("Emergency sitemap export failed: %v", err)
		}
		if cfg.OutputFormat == storage.FormatXLSX {
			if err := storage.WriteWorkbook(contentPath, graph.Pages()); err != nil {
				log.Errorf("Emergency workbook save failed: %v", err)
			}
		}
		if err := tracker.WriteToFile(metricsPath, "forced_exit"); err != nil {
			log.Errorf("Emergency metrics save failed: %v", err)
		}
		os.Exit(1)
	})

	// Periodic progress logging
	var wg sync.WaitGroup
	stopProgress := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				log.Debug(tracker.LogProgress())
			case <-stopProgress:
				return
			}
		}
	}()

	reason, runErr := c.Run(ctx)
	close(stopProgress)
	wg.Wait()
	progressLine.Done()

	interrupted := errors.Is(runErr, context.Canceled)
	if runErr != nil && !interrupted {
		log.Errorf("Crawl stopped: %v", runErr)
	}
	if interrupted {
		fmt.Println("Crawling interrupted. Saving progress...")
	}

	log.Info("Initiating shutdown...")
	log.Info("Step 1/4: Final sitemap export written by the crawler")

	var result *multierror.Error
	mapped, unmapped := graph.Counts()

	if isSQLite {
		log.Info("Step 2/4: Flushing site graph to database...")
		if err := graph.Flush(store); err != nil {
			result = multierror.Append(result, fmt.Errorf("flushing site graph: %w", err))
		}
		if err := store.FinishRun(time.Now(), mapped, unmapped); err != nil {
			result = multierror.Append(result, fmt.Errorf("finishing crawl run: %w", err))
		} else if saved, err := store.GetRun(); err == nil {
			log.Infof("Crawl run %s recorded: %d mapped, %d unmapped in %v",
				saved.RunID, saved.Mapped, saved.Unmapped, saved.FinishedAt.Sub(saved.StartedAt).Round(time.Millisecond))
		}
	} else {
		log.Info("Step 2/4: No database to flush")
	}

	log.Info("Step 3/4: Closing content sink...")
	if err := sink.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing content sink: %w", err))
	}

	log.Info("Step 4/4: Writing final metrics...")
	log.Info("Final stats: " + tracker.LogProgress())
	if err := tracker.WriteToFile(metricsPath, reason); err != nil {
		result = multierror.Append(result, err)
	} else {
		log.Infof("Metrics written to %s", metricsPath)
	}

	if err := result.ErrorOrNil(); err != nil {
		log.Errorf("Shutdown finished with errors: %v", err)
	}

	if !interrupted {
		fmt.Println("Crawling completed.")
	}
	fmt.Printf("Mapped pages: %d\n", mapped)
	fmt.Printf("Unmapped pages: %d\n", unmapped)

	return nil
}

// forceExitOnSecond calls emergency with the second signal received on sigs.
// It returns without calling it once done is closed.
func forceExitOnSecond(sigs <-chan os.Signal, done <-chan struct{}, emergency func(os.Signal)) {
	seen := 0
	for {
		select {
		case <-done:
			return
		case sig := <-sigs:
			seen++
			if seen >= 2 {
				emergency(sig)
				return
			}
		}
	}
}
