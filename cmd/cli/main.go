package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/card-etl/internal/acquire"
	"github.com/dvloznov/card-etl/internal/dataset"
	"github.com/dvloznov/card-etl/internal/domain"
	infraBQ "github.com/dvloznov/card-etl/internal/infra/bigquery"
	"github.com/dvloznov/card-etl/internal/logger"
	"github.com/dvloznov/card-etl/internal/pipeline"
	"github.com/dvloznov/card-etl/internal/store/sqlite"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "clean":
		runClean(log)
	case "load":
		runLoad(log)
	case "export":
		runExport(log)
	case "inspect":
		runInspect(log)
	case "report":
		runReport(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Card ETL CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  clean     Clean a raw transactions CSV and write it back out")
	fmt.Println("  load      Load a cleaned CSV into SQLite (and optionally BigQuery)")
	fmt.Println("  export    Export the SQLite transactions table to CSV")
	fmt.Println("  inspect   Print dataset summaries from SQLite")
	fmt.Println("  report    Print transactions from BigQuery for a date range")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runClean(log zerolog.Logger) {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	source := fs.String("source", "", "Input CSV: local path, http(s):// URL, or gs:// URI")
	out := fs.String("out", "cleaned.csv", "Path for the cleaned CSV output")
	fs.Parse(os.Args[2:])

	if *source == "" {
		log.Fatal().Msg("Error: -source is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

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

	if err := writeCSVFile(*out, cleaned); err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("Failed to write cleaned CSV")
	}

	fmt.Printf("Cleaned %d rows down to %d (%d duplicates, %d invalid). Wrote %s\n",
		report.RowsIn, report.RowsOut, report.DuplicatesRemoved,
		report.RowsDropped()-report.DuplicatesRemoved, *out)
}

func runLoad(log zerolog.Logger) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	file := fs.String("file", "", "Cleaned CSV file to load")
	dbPath := fs.String("db", "transactions.db", "SQLite database path")
	toBQ := fs.Bool("bq", false, "Also stream the rows into BigQuery")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: -file is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to open CSV")
	}
	ds, err := dataset.ReadCSV(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse CSV")
	}

	txs, err := domain.FromDataset(ds)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to convert rows; is the CSV cleaned?")
	}

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open database")
	}
	defer store.Close()

	if err := store.ReplaceAll(ctx, txs); err != nil {
		log.Fatal().Err(err).Msg("Failed to load rows into database")
	}

	fmt.Printf("Loaded %d rows into %s\n", len(txs), *dbPath)

	if *toBQ {
		log.Info().Int("rows", len(txs)).Msg("Streaming rows into BigQuery")
		if err := infraBQ.InsertTransactions(ctx, infraBQ.FromDomainBatch(txs)); err != nil {
			log.Fatal().Err(err).Msg("BigQuery insert failed")
		}
		fmt.Printf("Streamed %d rows into BigQuery\n", len(txs))
	}
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := fs.String("db", "transactions.db", "SQLite database path")
	out := fs.String("out", "export.csv", "Path for the exported CSV")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open database")
	}
	defer store.Close()

	txs, err := store.All(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read transactions")
	}

	if err := writeCSVFile(*out, domain.ToDataset(txs)); err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("Failed to write CSV")
	}

	fmt.Printf("Exported %d rows to %s\n", len(txs), *out)
}

func runInspect(log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dbPath := fs.String("db", "transactions.db", "SQLite database path")
	topStates := fs.Int("top-states", 10, "Number of states to show")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open database")
	}
	defer store.Close()

	summary, err := store.Summarize(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to summarize")
	}

	fmt.Printf("Transactions: %d\n", summary.Transactions)
	fmt.Printf("Total amount: %.2f (avg %.2f)\n", summary.TotalAmount, summary.AvgAmount)
	fmt.Printf("Date range: %s .. %s\n", summary.FirstDate, summary.LastDate)

	genders, err := store.TotalsByGender(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to aggregate by gender")
	}
	fmt.Println("\nBy gender:")
	for _, g := range genders {
		fmt.Printf("  %-2s  %8d rows  %12.2f\n", g.Gender, g.Transactions, g.TotalAmount)
	}

	states, err := store.TotalsByState(ctx, *topStates)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to aggregate by state")
	}
	fmt.Printf("\nTop %d states by amount:\n", len(states))
	for _, s := range states {
		fmt.Printf("  %-20s  %8d rows  %12.2f\n", s.StateName, s.Transactions, s.TotalAmount)
	}

	categories, err := store.TotalsByCategory(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to aggregate by category")
	}
	fmt.Println("\nBy category:")
	for _, c := range categories {
		fmt.Printf("  %-20s  %8d rows  %12.2f\n", c.Category, c.Transactions, c.TotalAmount)
	}
}

func runReport(log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	from := fs.String("from", "", "Start date, YYYY-MM-DD")
	to := fs.String("to", "", "End date, YYYY-MM-DD")
	fs.Parse(os.Args[2:])

	if *from == "" || *to == "" {
		log.Fatal().Msg("Usage: cli report -from YYYY-MM-DD -to YYYY-MM-DD")
	}

	start, err := time.Parse("2006-01-02", *from)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -from date")
	}
	end, err := time.Parse("2006-01-02", *to)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -to date")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	rows, err := infraBQ.QueryTransactionsByDateRange(ctx, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("BigQuery query failed")
	}

	fmt.Printf("%d transactions between %s and %s\n", len(rows), *from, *to)
	for _, row := range rows {
		amt, _ := row.Amt.Float64()
		fmt.Printf("  %s  %s  %-20s  %-15s  %8.2f\n",
			row.TransTS.Date, row.TransTS.Time, row.Merchant, row.StateName, amt)
	}
}

func writeCSVFile(path string, ds *dataset.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(f, ds); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
