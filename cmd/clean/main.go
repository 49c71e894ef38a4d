package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/card-etl/internal/acquire"
	"github.com/dvloznov/card-etl/internal/dataset"
	"github.com/dvloznov/card-etl/internal/domain"
	"github.com/dvloznov/card-etl/internal/logger"
	"github.com/dvloznov/card-etl/internal/pipeline"
	"github.com/dvloznov/card-etl/internal/store/sqlite"
)

func main() {
	var (
		source = flag.String("source", "", "Input CSV: local path, http(s):// URL, or gs:// URI (zip archives are unpacked)")
		out    = flag.String("out", "cleaned.csv", "Path for the cleaned CSV output")
		dbPath = flag.String("db", "", "Optional SQLite database to load the cleaned rows into")
	)
	flag.Parse()

	log := logger.New()

	if *source == "" {
		log.Fatal().Msg("Error: -source is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	log.Info().Str("source", *source).Msg("Fetching dataset")

	data, err := acquire.FetchCSV(ctx, *source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch dataset")
	}

	raw, err := dataset.ReadCSV(bytes.NewReader(data))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse CSV")
	}

	cleaned, report, err := pipeline.Clean(log, raw)
	if err != nil {
		log.Fatal().Err(err).Msg("Cleaning pipeline failed")
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("rows_in", report.RowsIn).
		Int("rows_out", report.RowsOut).
		Int("duplicates_removed", report.DuplicatesRemoved).
		Int("rows_dropped", report.RowsDropped()).
		Msg("Cleaning completed")

	for _, w := range report.Warnings {
		log.Warn().Msg(w)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("Failed to create output file")
	}
	if err := dataset.WriteCSV(f, cleaned); err != nil {
		f.Close()
		log.Fatal().Err(err).Msg("Failed to write cleaned CSV")
	}
	if err := f.Close(); err != nil {
		log.Fatal().Err(err).Msg("Failed to close output file")
	}

	log.Info().Str("path", *out).Int("rows", cleaned.Len()).Msg("Wrote cleaned CSV")

	if *dbPath != "" {
		txs, err := domain.FromDataset(cleaned)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to convert cleaned rows")
		}

		store, err := sqlite.Open(*dbPath)
		if err != nil {
			log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open database")
		}
		defer store.Close()

		if err := store.ReplaceAll(ctx, txs); err != nil {
			log.Fatal().Err(err).Msg("Failed to load rows into database")
		}

		log.Info().Str("db", *dbPath).Int("rows", len(txs)).Msg("Loaded cleaned rows into SQLite")
	}

	fmt.Println("Cleaning completed successfully.")
}
