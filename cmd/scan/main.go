// Package main provides the one-shot scanner: a single scan run intended to
// be invoked from cron. Connects to storage, runs the full pipeline once,
// prints a summary and exits.
//
// Exit codes: 0 for a completed run (even with per-listing errors), 1 for
// configuration, authentication or storage failures.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"

	"card-deal-scanner/internal/config"
	"card-deal-scanner/internal/ebay"
	"card-deal-scanner/internal/normalize"
	"card-deal-scanner/internal/scanner"
	"card-deal-scanner/internal/storage"
	chstore "card-deal-scanner/internal/storage/clickhouse"
	"card-deal-scanner/internal/storage/memory"
	"card-deal-scanner/internal/storage/migrations"
	pgstore "card-deal-scanner/internal/storage/postgres"
	"card-deal-scanner/internal/valuation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	verbose := flag.Bool("verbose", false, "Log per-listing pipeline decisions")
	flag.Parse()

	logger := log.New(os.Stdout, "[scan] ", log.LstdFlags)

	if cfg.EbayClientID == "" || cfg.EbayClientSecret == "" {
		logger.Fatal("EBAY_CLIENT_ID and EBAY_CLIENT_SECRET are required")
	}
	if !*useMemory && cfg.PostgresDSN == "" {
		logger.Fatal("DATABASE_URL is required (use --use-memory for in-memory storage)")
	}

	ctx := context.Background()

	dealStore, compStore, cleanup, err := createStores(ctx, cfg, *useMemory)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	pipelineLogger := log.New(os.Stdout, "[scan] ", log.LstdFlags)
	if !*verbose {
		pipelineLogger = nil
	}

	scan := buildScanner(cfg, dealStore, compStore, pipelineLogger, logger)

	result, err := scan.Run(ctx)
	if err != nil {
		logger.Fatalf("scan failed: %v", err)
	}

	for _, e := range result.Errors {
		logger.Printf("warning: %s", e)
	}
	logger.Printf("run %s: seen=%d rejected=%d evaluated=%d kept=%d pruned=%d calls=%d duration=%s",
		result.RunID, result.Seen, result.Rejected, result.Evaluated, result.Kept,
		result.Pruned, result.CallsUsed, result.Duration)
}

// createStores wires the deal store and the optional comp sample sink.
// ClickHouse is analytics-only: when no DSN is configured samples are simply
// not recorded.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool) (storage.DealStore, storage.CompSampleStore, func(), error) {
	if useMemory {
		return memory.NewDealStore(), memory.NewCompSampleStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	var compStore storage.CompSampleStore
	cleanup := func() { pool.Close() }

	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, nil, err
		}
		compStore = chstore.NewCompSampleStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return pgstore.NewDealStore(pool), compStore, cleanup, nil
}

// buildScanner assembles the full pipeline from config.
func buildScanner(cfg *config.Config, deals storage.DealStore, comps storage.CompSampleStore, pipelineLogger, logger *log.Logger) *scanner.Scanner {
	tokens := ebay.NewTokenProvider(cfg.TokenURL, cfg.EbayClientID, cfg.EbayClientSecret, cfg.OAuthScope,
		ebay.WithTokenHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)

	exec := ebay.NewExecutor(
		ebay.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		ebay.WithMaxAttempts(cfg.MaxAttempts),
		ebay.WithBackoff(cfg.BackoffBase, cfg.BackoffCap),
		ebay.WithCallSpacing(cfg.CallSpacing),
		ebay.WithCallBudget(cfg.CallBudget),
		ebay.WithLogger(pipelineLogger),
	)

	client := ebay.NewClient(exec, tokens, cfg.SearchURL, pipelineLogger)

	normalizer := normalize.New(normalize.Config{
		BlockedTitleWords: cfg.BlockedTitleWords,
		TargetCurrency:    cfg.TargetCurrency,
		MaxTotalCost:      cfg.MaxTotalCost,
	})

	estimator := valuation.NewEstimator(client, valuation.EstimatorConfig{
		SearchLimit:  cfg.CompSearchLimit,
		MinSamples:   cfg.CompMinSamples,
		TrimFraction: cfg.CompTrimFraction,
		Percentile:   cfg.CompPercentile,
		Currency:     cfg.TargetCurrency,
	}, pipelineLogger)

	scorer := valuation.NewScorer(valuation.ScoringConfig{
		FeeRate:           cfg.FeeRate,
		FixedFee:          cfg.FixedFee,
		MinProfit:         cfg.MinProfit,
		CheapPriceCeiling: cfg.CheapPriceCeiling,
		CheapMinProfit:    cfg.CheapMinProfit,
	})

	return scanner.New(scanner.Options{
		Search:          client,
		Normalizer:      normalizer,
		Estimator:       estimator,
		Scorer:          scorer,
		DealStore:       deals,
		CompSampleStore: comps,
		Queries:         cfg.Queries,
		PerQueryLimit:   cfg.PerQueryLimit,
		Budget:          exec,
		Logger:          logger,
	})
}
