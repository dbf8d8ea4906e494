package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dpleshakov/dexgen/internal/config"
	"github.com/dpleshakov/dexgen/internal/db"
	"github.com/dpleshakov/dexgen/internal/dex"
	"github.com/dpleshakov/dexgen/internal/fetch"
	"github.com/dpleshakov/dexgen/internal/ledger"
	"github.com/dpleshakov/dexgen/internal/logging"
	"github.com/dpleshakov/dexgen/internal/pokeapi"
	"github.com/dpleshakov/dexgen/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (default "+config.DefaultPath+" if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %v", err)
	}

	logger := logging.New(cfg.Log)

	// Stop between entries on SIGINT and SIGTERM; finished cache files stay.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	layout := dex.Layout{Dir: cfg.DataDir}
	if cfg.Clean {
		logger.InfoContext(ctx, "removing cached data", slog.String("dir", cfg.DataDir))
		if err := layout.Clean(); err != nil {
			return fmt.Errorf("clean: %v", err)
		}
	}

	var (
		recorder fetch.Recorder
		runLog   *ledger.Ledger
	)
	if cfg.LedgerPath != "" {
		database, err := db.Open(cfg.LedgerPath)
		if err != nil {
			return fmt.Errorf("db: %v", err)
		}
		defer database.Close() //nolint:errcheck // Close on exit, error is inconsequential

		runLog = ledger.Start(ctx, store.New(database), logger)
		recorder = runLog
		logger = logger.With("run_id", runLog.RunID())
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second}
	fetcher := fetch.New(httpClient, logger, recorder)

	endpoints := pokeapi.Endpoints{
		APIBaseURL:      cfg.APIBaseURL,
		SpriteBaseURL:   cfg.SpriteBaseURL,
		TypeIconBaseURL: cfg.TypeIconBaseURL,
	}
	assembler := dex.NewAssembler(fetcher, endpoints, layout, dex.Options{
		Limit:           cfg.NationalDexLast,
		IconConcurrency: cfg.IconConcurrency,
		Gzip:            cfg.Gzip,
	}, logger)

	doc, stats, runErr := assembler.Run(ctx)

	entries := 0
	if doc != nil {
		entries = doc.Entries.Len()
	}
	if runLog != nil {
		sum := runLog.Finish(ctx, entries, runErr)
		for _, f := range runLog.Failures(ctx) {
			logger.DebugContext(ctx, "failed fetch",
				slog.String("url", f.URL),
				slog.String("path", f.Path),
				slog.Int64("status", f.Status),
				slog.String("error", f.Error),
			)
		}
		logger.InfoContext(ctx, "fetch ledger",
			slog.String("status", sum.Run.Status),
			slog.Int64("attempts", sum.Counts.Total),
			slog.Int64("failed", sum.Counts.Failed),
			slog.String("downloaded", humanize.Bytes(uint64(sum.Counts.Bytes))),
		)
	}
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}

	logger.InfoContext(ctx, "done",
		slog.Int("entries", entries),
		slog.Int("species", stats.Species),
		slog.Int("varieties", stats.Varieties),
		slog.Int("skipped", stats.SkippedVarieties),
		slog.Int("types", stats.Types),
		slog.Duration("took", stats.Duration.Round(time.Millisecond)),
	)
	return nil
}
