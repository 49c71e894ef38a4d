package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Summary describes the stored dataset as a whole.
type Summary struct {
	Transactions int64   `json:"transactions"`
	TotalAmount  float64 `json:"total_amount"`
	AvgAmount    float64 `json:"avg_amount"`
	FirstDate    string  `json:"first_date"`
	LastDate     string  `json:"last_date"`
}

// GenderSummary aggregates spending per cardholder gender.
type GenderSummary struct {
	Gender       string  `json:"gender"`
	Transactions int64   `json:"transactions"`
	TotalAmount  float64 `json:"total_amount"`
	AvgAmount    float64 `json:"avg_amount"`
}

// StateSummary aggregates spending per state.
type StateSummary struct {
	StateName    string  `json:"state_name"`
	Transactions int64   `json:"transactions"`
	TotalAmount  float64 `json:"total_amount"`
}

// CategorySummary aggregates spending per merchant category.
type CategorySummary struct {
	Category     string  `json:"category"`
	Transactions int64   `json:"transactions"`
	TotalAmount  float64 `json:"total_amount"`
}

// HourlySummary aggregates transaction volume per hour of day (0-23).
type HourlySummary struct {
	Hour         int     `json:"hour"`
	Transactions int64   `json:"transactions"`
	TotalAmount  float64 `json:"total_amount"`
}

// Summarize returns the overall dataset summary.
func (s *Store) Summarize(ctx context.Context) (*Summary, error) {
	out := &Summary{}
	var total, avg sql.NullFloat64
	var first, last sql.NullString

	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*), COALESCE(SUM(amt), 0), COALESCE(AVG(amt), 0),
		MIN(trans_time), MAX(trans_time)
		FROM transactions`).Scan(&out.Transactions, &total, &avg, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	out.TotalAmount = total.Float64
	out.AvgAmount = avg.Float64
	out.FirstDate = first.String
	out.LastDate = last.String
	return out, nil
}

// TotalsByGender aggregates spending per gender.
func (s *Store) TotalsByGender(ctx context.Context) ([]GenderSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		gender, COUNT(*), SUM(amt), AVG(amt)
		FROM transactions GROUP BY gender ORDER BY gender`)
	if err != nil {
		return nil, fmt.Errorf("totals by gender: %w", err)
	}
	defer rows.Close()

	var out []GenderSummary
	for rows.Next() {
		var g GenderSummary
		if err := rows.Scan(&g.Gender, &g.Transactions, &g.TotalAmount, &g.AvgAmount); err != nil {
			return nil, fmt.Errorf("scan gender summary: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// TotalsByState aggregates spending per state, highest total first. A limit
// of 0 returns every state.
func (s *Store) TotalsByState(ctx context.Context, limit int) ([]StateSummary, error) {
	q := `SELECT state_name, COUNT(*), SUM(amt)
		FROM transactions GROUP BY state_name ORDER BY SUM(amt) DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("totals by state: %w", err)
	}
	defer rows.Close()

	var out []StateSummary
	for rows.Next() {
		var st StateSummary
		if err := rows.Scan(&st.StateName, &st.Transactions, &st.TotalAmount); err != nil {
			return nil, fmt.Errorf("scan state summary: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// TotalsByCategory aggregates spending per merchant category, highest total
// first.
func (s *Store) TotalsByCategory(ctx context.Context) ([]CategorySummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		category, COUNT(*), SUM(amt)
		FROM transactions GROUP BY category ORDER BY SUM(amt) DESC`)
	if err != nil {
		return nil, fmt.Errorf("totals by category: %w", err)
	}
	defer rows.Close()

	var out []CategorySummary
	for rows.Next() {
		var c CategorySummary
		if err := rows.Scan(&c.Category, &c.Transactions, &c.TotalAmount); err != nil {
			return nil, fmt.Errorf("scan category summary: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TotalsByHour aggregates transaction volume per hour of day, derived from
// the stored timestamp rather than the formatted hour column.
func (s *Store) TotalsByHour(ctx context.Context) ([]HourlySummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		CAST(strftime('%H', trans_time) AS INTEGER), COUNT(*), SUM(amt)
		FROM transactions
		GROUP BY strftime('%H', trans_time)
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("totals by hour: %w", err)
	}
	defer rows.Close()

	var out []HourlySummary
	for rows.Next() {
		var h HourlySummary
		if err := rows.Scan(&h.Hour, &h.Transactions, &h.TotalAmount); err != nil {
			return nil, fmt.Errorf("scan hourly summary: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
