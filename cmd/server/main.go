package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ewagner/briefstack/internal/api"
	"github.com/ewagner/briefstack/internal/config"
	"github.com/ewagner/briefstack/internal/engine"
	"github.com/ewagner/briefstack/internal/logger"
	"github.com/ewagner/briefstack/internal/store"
)

func main() {
	cfg := config.Load()

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logg.Sync()

	// Open SQLite.
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		logg.Error("open db", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize store (runs migrations).
	s, err := store.New(db)
	if err != nil {
		logg.Error("init store", "error", err)
		os.Exit(1)
	}

	// Build pipeline dependencies.
	var modelClient engine.ModelClient
	var pages engine.PageExtractor
	var fetcher engine.URLFetcher

	if cfg.UseStubs() {
		logg.Warn("OPENAI_API_KEY not set, using stub pipeline")
		modelClient = &engine.StubModelClient{}
		pages = &engine.StubPageExtractor{}
		fetcher = &engine.StubURLFetcher{}
	} else {
		logg.Info("using OpenAI model client", "model", cfg.OpenAIModel)
		modelClient = engine.NewOpenAIClient(cfg.OpenAIKey,
			engine.WithModel(cfg.OpenAIModel),
			engine.WithBaseURL(cfg.OpenAIBaseURL),
			engine.WithTimeout(cfg.HTTPTimeout),
		)
		pages = &engine.PDFPageExtractor{}
		fetcher = engine.NewReadabilityFetcher()
	}

	limits := engine.Limits{
		MaxPDFBytes:     cfg.MaxPDFBytes,
		MaxBatchBytes:   cfg.MaxBatchBytes,
		PromptCharLimit: cfg.PromptCharLimit,
	}
	pipeline := engine.NewPipeline(
		s, s, modelClient,
		engine.NewExtractor(pages),
		fetcher,
		engine.NewDuplicateChecker(s, logg),
		limits, logg,
	)

	// Batch uploads plus multipart overhead must fit in one request body.
	maxBody := cfg.MaxBatchBytes + (1 << 20)
	srv := api.New(s, pipeline, logg, cfg.CORSOrigin, maxBody)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logg.Info("shutting down")
		httpServer.Shutdown(context.Background())
	}()

	fmt.Printf("briefstack server listening on http://localhost:%s\n", cfg.Port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logg.Error("server error", "error", err)
		os.Exit(1)
	}
}
