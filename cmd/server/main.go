// Package main provides the long-running service: scheduled scan runs plus
// the operator dashboard, JSON API, health and Prometheus metrics endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"card-deal-scanner/internal/config"
	"card-deal-scanner/internal/dashboard"
	"card-deal-scanner/internal/ebay"
	"card-deal-scanner/internal/normalize"
	"card-deal-scanner/internal/observability"
	"card-deal-scanner/internal/scanner"
	"card-deal-scanner/internal/storage"
	chstore "card-deal-scanner/internal/storage/clickhouse"
	"card-deal-scanner/internal/storage/memory"
	"card-deal-scanner/internal/storage/migrations"
	pgstore "card-deal-scanner/internal/storage/postgres"
	"card-deal-scanner/internal/valuation"
)

// Server holds the scheduled scanner and its shared dependencies.
type Server struct {
	cfg     *config.Config
	tokens  *ebay.TokenProvider
	deals   storage.DealStore
	comps   storage.CompSampleStore
	metrics *observability.Metrics
	logger  *log.Logger

	mu          sync.Mutex
	scanRunning bool
	lastScanRun time.Time
	scanRuns    int
	lastResult  *scanner.RunResult
	lastError   string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	httpAddr := flag.String("http-addr", cfg.HTTPAddr, "Dashboard HTTP address")
	scanInterval := flag.Duration("scan-interval", cfg.ScanInterval, "Interval between scan runs")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	if cfg.EbayClientID == "" || cfg.EbayClientSecret == "" {
		logger.Fatal("EBAY_CLIENT_ID and EBAY_CLIENT_SECRET are required")
	}
	if !*useMemory && cfg.PostgresDSN == "" {
		logger.Fatal("DATABASE_URL is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dealStore, compStore, cleanup, err := createStores(ctx, cfg, *useMemory)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	server := &Server{
		cfg: cfg,
		tokens: ebay.NewTokenProvider(cfg.TokenURL, cfg.EbayClientID, cfg.EbayClientSecret, cfg.OAuthScope,
			ebay.WithTokenHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		),
		deals:   dealStore,
		comps:   compStore,
		metrics: observability.NewMetrics(""),
		logger:  logger,
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	httpSrv := server.buildHTTPServer(*httpAddr)
	go func() {
		logger.Printf("Dashboard listening on %s", *httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("HTTP server error: %v", err)
			cancel()
		}
	}()

	server.runScheduler(ctx, *scanInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores wires the deal store and the optional comp sample sink.
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

// runScheduler runs a scan immediately, then on every tick until shutdown.
func (s *Server) runScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Printf("Starting scan scheduler (interval: %v)", interval)

	s.runScan(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runScan(ctx)
		}
	}
}

// runScan executes one scan run. Single-flight: a tick that fires while the
// previous run is still going is dropped.
func (s *Server) runScan(ctx context.Context) {
	s.mu.Lock()
	if s.scanRunning {
		s.mu.Unlock()
		s.logger.Println("Scan already running, skipping...")
		return
	}
	s.scanRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.scanRunning = false
		s.lastScanRun = time.Now()
		s.scanRuns++
		s.mu.Unlock()
	}()

	// A fresh executor per run resets the call budget; the token provider is
	// shared so a still-valid token survives across runs.
	result, err := s.buildScanner().Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = err.Error()
		s.metrics.ScanRunsTotal.WithLabelValues("error").Inc()
		s.logger.Printf("Scan error: %v", err)
		return
	}
	s.lastResult = result
	s.lastError = ""
}

// buildScanner assembles a pipeline for one run.
func (s *Server) buildScanner() *scanner.Scanner {
	cfg := s.cfg

	exec := ebay.NewExecutor(
		ebay.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		ebay.WithMaxAttempts(cfg.MaxAttempts),
		ebay.WithBackoff(cfg.BackoffBase, cfg.BackoffCap),
		ebay.WithCallSpacing(cfg.CallSpacing),
		ebay.WithCallBudget(cfg.CallBudget),
	)

	client := ebay.NewClient(exec, s.tokens, cfg.SearchURL, nil)

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
	}, nil)

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
		DealStore:       s.deals,
		CompSampleStore: s.comps,
		Queries:         cfg.Queries,
		PerQueryLimit:   cfg.PerQueryLimit,
		Budget:          exec,
		Metrics:         s.metrics,
		Logger:          s.logger,
	})
}

// buildHTTPServer wires the dashboard, metrics and status routes.
func (s *Server) buildHTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()

	dash := dashboard.New(s.deals, s.logger)
	dash.Register(mux)

	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status      string             `json:"status"`
	ScanRunning bool               `json:"scan_running"`
	ScanRuns    int                `json:"scan_runs"`
	LastScanRun time.Time          `json:"last_scan_run,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
	LastResult  *scanner.RunResult `json:"last_result,omitempty"`
}

// handleStatus returns scheduler state as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:      "ok",
		ScanRunning: s.scanRunning,
		ScanRuns:    s.scanRuns,
		LastScanRun: s.lastScanRun,
		LastError:   s.lastError,
		LastResult:  s.lastResult,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
