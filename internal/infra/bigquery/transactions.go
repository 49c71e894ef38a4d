package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/card-etl/internal/domain"
)

// TransactionRow is the warehouse schema of one cleaned transaction: the
// thirteen retained source fields plus the five derived ones.
type TransactionRow struct {
	TransNum string `bigquery:"trans_num"` // REQUIRED

	TransTS   civil.DateTime `bigquery:"trans_ts"`   // REQUIRED DATETIME
	TransDate civil.Date     `bigquery:"trans_date"` // REQUIRED DATE

	Gender    string  `bigquery:"gender"`     // REQUIRED
	City      string  `bigquery:"city"`       // REQUIRED
	State     string  `bigquery:"state"`      // REQUIRED
	StateName string  `bigquery:"state_name"` // REQUIRED
	Lat       float64 `bigquery:"lat"`        // REQUIRED FLOAT64
	Long      float64 `bigquery:"long"`       // REQUIRED FLOAT64
	CityPop   int64   `bigquery:"city_pop"`   // REQUIRED INT64

	Merchant  string   `bigquery:"merchant"`   // REQUIRED
	Category  string   `bigquery:"category"`   // REQUIRED
	Amt       *big.Rat `bigquery:"amt"`        // REQUIRED NUMERIC
	MerchLat  float64  `bigquery:"merch_lat"`  // REQUIRED FLOAT64
	MerchLong float64  `bigquery:"merch_long"` // REQUIRED FLOAT64

	Year  int64  `bigquery:"year"`  // REQUIRED INT64
	Month int64  `bigquery:"month"` // REQUIRED INT64
	Day   int64  `bigquery:"day"`   // REQUIRED INT64
	Hour  string `bigquery:"hour"`  // REQUIRED STRING

	LoadedTS time.Time `bigquery:"loaded_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
}

// FromDomain maps a cleaned transaction into its warehouse row.
func FromDomain(tx *domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransNum:  tx.TransNum,
		TransTS:   civil.DateTimeOf(tx.TransTime),
		TransDate: civil.DateOf(tx.TransTime),
		Gender:    tx.Gender,
		City:      tx.City,
		State:     tx.State,
		StateName: tx.StateName,
		Lat:       tx.Lat,
		Long:      tx.Long,
		CityPop:   tx.CityPop,
		Merchant:  tx.Merchant,
		Category:  tx.Category,
		Amt:       new(big.Rat).SetFloat64(tx.Amt),
		MerchLat:  tx.MerchLat,
		MerchLong: tx.MerchLong,
		Year:      int64(tx.Year),
		Month:     int64(tx.Month),
		Day:       int64(tx.Day),
		Hour:      tx.Hour,
		LoadedTS:  time.Now(),
	}
}

// FromDomainBatch maps a batch of cleaned transactions into warehouse rows.
func FromDomainBatch(txs []*domain.Transaction) []*TransactionRow {
	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, FromDomain(tx))
	}
	return rows
}
