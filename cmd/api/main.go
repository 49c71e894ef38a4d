package main

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/card-etl/internal/acquire"
	"github.com/dvloznov/card-etl/internal/api/handlers"
	"github.com/dvloznov/card-etl/internal/api/middleware"
	"github.com/dvloznov/card-etl/internal/dataset"
	"github.com/dvloznov/card-etl/internal/domain"
	"github.com/dvloznov/card-etl/internal/jobs"
	"github.com/dvloznov/card-etl/internal/jobs/inmemory"
	"github.com/dvloznov/card-etl/internal/logger"
	"github.com/dvloznov/card-etl/internal/pipeline"
	"github.com/dvloznov/card-etl/internal/store/sqlite"
)

func main() {
	var (
		port   = flag.String("port", "8080", "HTTP server port")
		dbPath = flag.String("db", envOr("CARD_ETL_DB", "transactions.db"), "SQLite database path (or set CARD_ETL_DB env)")
	)
	flag.Parse()

	log := logger.New()

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open database")
	}
	defer store.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.CleanDatasetJob) error {
		log.Info().
			Str("job_id", job.JobID).
			Str("source", job.Source).
			Msg("Processing cleaning run")

		data, err := acquire.FetchCSV(ctx, job.Source)
		if err != nil {
			return err
		}

		raw, err := dataset.ReadCSV(bytes.NewReader(data))
		if err != nil {
			return err
		}

		cleaned, report, err := pipeline.Clean(log, raw)
		if err != nil {
			return err
		}

		txs, err := domain.FromDataset(cleaned)
		if err != nil {
			return err
		}

		if err := store.ReplaceAll(ctx, txs); err != nil {
			return err
		}

		job.RunID = report.RunID
		job.RowsIn = report.RowsIn
		job.RowsOut = report.RowsOut

		log.Info().
			Str("job_id", job.JobID).
			Str("run_id", report.RunID).
			Int("rows_in", report.RowsIn).
			Int("rows_out", report.RowsOut).
			Msg("Cleaning run completed")

		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	summaryHandler := handlers.NewSummaryHandler(store, log)
	runsHandler := handlers.NewRunsHandler(jobQueue, jobStore, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", handlers.Health)

	mux.HandleFunc("/api/summary", requireGet(summaryHandler.Summary))
	mux.HandleFunc("/api/summary/gender", requireGet(summaryHandler.ByGender))
	mux.HandleFunc("/api/summary/states", requireGet(summaryHandler.ByState))
	mux.HandleFunc("/api/summary/categories", requireGet(summaryHandler.ByCategory))
	mux.HandleFunc("/api/summary/hourly", requireGet(summaryHandler.ByHour))

	mux.HandleFunc("/api/transactions", requireGet(summaryHandler.Transactions))

	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			runsHandler.List(w, r)
		case http.MethodPost:
			runsHandler.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
	mux.HandleFunc("/api/runs/", requireGet(runsHandler.Get))

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.CORS(mux),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("db", *dbPath).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

func requireGet(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
