package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dvloznov/card-etl/internal/dataset"
	"github.com/dvloznov/card-etl/internal/domain"
)

// Store persists the cleaned transactions table in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite file at dbPath and runs migrations.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer — limit to a single connection to
	// prevent SQLITE_BUSY during the replace load.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `CREATE TABLE IF NOT EXISTS transactions (
		trans_num   TEXT PRIMARY KEY,
		trans_time  TEXT NOT NULL,
		gender      TEXT NOT NULL,
		city        TEXT NOT NULL,
		state       TEXT NOT NULL,
		state_name  TEXT NOT NULL,
		lat         REAL NOT NULL,
		long        REAL NOT NULL,
		city_pop    INTEGER NOT NULL,
		merchant    TEXT NOT NULL,
		category    TEXT NOT NULL,
		amt         REAL NOT NULL,
		merch_lat   REAL NOT NULL,
		merch_long  REAL NOT NULL,
		year        INTEGER NOT NULL,
		month       INTEGER NOT NULL,
		day         INTEGER NOT NULL,
		hour        TEXT NOT NULL,
		loaded_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_transactions_state ON transactions(state_name)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_gender ON transactions(gender)`,
	}
	for _, stmt := range indexes {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceAll loads the cleaned transactions, replacing any previous load.
// The whole load is one SQL transaction so readers never see a half-replaced
// table.
func (s *Store) ReplaceAll(ctx context.Context, txs []*domain.Transaction) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	stmt, err := dbtx.PrepareContext(ctx, `INSERT INTO transactions (
		trans_num, trans_time, gender, city, state, state_name,
		lat, long, city_pop, merchant, category, amt,
		merch_lat, merch_long, year, month, day, hour
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, tx := range txs {
		_, err := stmt.ExecContext(ctx,
			tx.TransNum, tx.TransTime.Format(dataset.TimeFormat), tx.Gender,
			tx.City, tx.State, tx.StateName,
			tx.Lat, tx.Long, tx.CityPop,
			tx.Merchant, tx.Category, tx.Amt,
			tx.MerchLat, tx.MerchLong,
			tx.Year, tx.Month, tx.Day, tx.Hour,
		)
		if err != nil {
			return fmt.Errorf("insert row %d (%s): %w", i, tx.TransNum, err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// All returns every stored transaction in insertion order.
func (s *Store) All(ctx context.Context) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		trans_num, trans_time, gender, city, state, state_name,
		lat, long, city_pop, merchant, category, amt,
		merch_lat, merch_long, year, month, day, hour
		FROM transactions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		tx := &domain.Transaction{}
		var transTime string
		err := rows.Scan(
			&tx.TransNum, &transTime, &tx.Gender, &tx.City, &tx.State, &tx.StateName,
			&tx.Lat, &tx.Long, &tx.CityPop, &tx.Merchant, &tx.Category, &tx.Amt,
			&tx.MerchLat, &tx.MerchLong, &tx.Year, &tx.Month, &tx.Day, &tx.Hour,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.TransTime, err = time.Parse(dataset.TimeFormat, transTime)
		if err != nil {
			return nil, fmt.Errorf("parse trans_time %q: %w", transTime, err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// Count returns the number of stored transactions.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}
