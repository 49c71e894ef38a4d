package bigquery

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	defaultProjectID = "card-etl-reporting"
	datasetID        = "reporting"
	transactionsTbl  = "transactions"
)

// projectID resolves the warehouse project, overridable with BQ_PROJECT.
func projectID() string {
	if p := os.Getenv("BQ_PROJECT"); p != "" {
		return p
	}
	return defaultProjectID
}

// InsertTransactions inserts a batch of cleaned transaction rows into
// reporting.transactions.
func InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	client, err := bigquery.NewClient(ctx, projectID())
	if err != nil {
		return fmt.Errorf("InsertTransactions: bigquery client: %w", err)
	}
	defer client.Close()

	return InsertTransactionsWithClient(ctx, client, rows)
}

// InsertTransactionsWithClient inserts a batch of cleaned transaction rows
// using the provided BigQuery client.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(transactionsTbl).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return nil
}

// QueryTransactionsByDateRange returns stored transactions whose date falls
// inside [startDate, endDate].
func QueryTransactionsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*TransactionRow, error) {
	client, err := bigquery.NewClient(ctx, projectID())
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: bigquery client: %w", err)
	}
	defer client.Close()

	return QueryTransactionsByDateRangeWithClient(ctx, client, startDate, endDate)
}

// QueryTransactionsByDateRangeWithClient runs the date-range query using the
// provided BigQuery client.
func QueryTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, startDate, endDate time.Time) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			trans_num, trans_ts, trans_date,
			gender, city, state, state_name, lat, long, city_pop,
			merchant, category, amt, merch_lat, merch_long,
			year, month, day, hour, loaded_ts
		FROM %s.%s
		WHERE trans_date BETWEEN @start_date AND @end_date
		ORDER BY trans_ts
	`, datasetID, transactionsTbl))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: startDate.Format("2006-01-02")},
		{Name: "end_date", Value: endDate.Format("2006-01-02")},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: running query: %w", err)
	}

	var rows []*TransactionRow
	for {
		row := &TransactionRow{}
		err := it.Next(row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDateRange: reading row: %w", err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}
