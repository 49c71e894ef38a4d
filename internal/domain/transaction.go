package domain

import (
	"fmt"
	"time"

	"github.com/dvloznov/card-etl/internal/dataset"
)

// Transaction is one cleaned card transaction in the 18-field output schema.
// This is a domain struct, not a storage row; the SQLite store and the
// warehouse sink map it into their own schemas.
type Transaction struct {
	TransNum  string    // unique transaction identifier
	TransTime time.Time // full transaction timestamp

	Gender    string  // cardholder gender, M or F
	City      string  // cardholder city, title case
	State     string  // two-letter state code, uppercase
	StateName string  // derived: full state name
	Lat       float64 // cardholder latitude
	Long      float64 // cardholder longitude
	CityPop   int64   // city population, > 0

	Merchant  string  // merchant name, original casing
	Category  string  // merchant category, lowercase
	Amt       float64 // transaction amount, > 0
	MerchLat  float64 // merchant latitude
	MerchLong float64 // merchant longitude

	Year  int    // derived from TransTime
	Month int    // derived, 1-12
	Day   int    // derived, day of month
	Hour  string // derived, formatted hour of day
}

// FromRecord converts one cleaned record into a Transaction. It accepts both
// the typed values the pipeline leaves behind and their string forms from a
// re-read cleaned CSV; a value outside the clean schema is an error, not a
// panic.
func FromRecord(rec dataset.Record) (*Transaction, error) {
	tx := &Transaction{}

	var err error
	if tx.TransNum, err = stringField(rec, dataset.FieldTransNum); err != nil {
		return nil, err
	}
	if tx.Gender, err = stringField(rec, dataset.FieldGender); err != nil {
		return nil, err
	}
	if tx.City, err = stringField(rec, dataset.FieldCity); err != nil {
		return nil, err
	}
	if tx.State, err = stringField(rec, dataset.FieldState); err != nil {
		return nil, err
	}
	if tx.StateName, err = stringField(rec, dataset.FieldStateName); err != nil {
		return nil, err
	}
	if tx.Merchant, err = stringField(rec, dataset.FieldMerchant); err != nil {
		return nil, err
	}
	if tx.Category, err = stringField(rec, dataset.FieldCategory); err != nil {
		return nil, err
	}
	if tx.Hour, err = stringField(rec, dataset.FieldHour); err != nil {
		return nil, err
	}

	if tx.Lat, err = floatField(rec, dataset.FieldLat); err != nil {
		return nil, err
	}
	if tx.Long, err = floatField(rec, dataset.FieldLong); err != nil {
		return nil, err
	}
	if tx.Amt, err = floatField(rec, dataset.FieldAmt); err != nil {
		return nil, err
	}
	if tx.MerchLat, err = floatField(rec, dataset.FieldMerchLat); err != nil {
		return nil, err
	}
	if tx.MerchLong, err = floatField(rec, dataset.FieldMerchLong); err != nil {
		return nil, err
	}

	pop, err := floatField(rec, dataset.FieldCityPop)
	if err != nil {
		return nil, err
	}
	tx.CityPop = int64(pop)

	if tx.Year, err = intField(rec, dataset.FieldYear); err != nil {
		return nil, err
	}
	if tx.Month, err = intField(rec, dataset.FieldMonth); err != nil {
		return nil, err
	}
	if tx.Day, err = intField(rec, dataset.FieldDay); err != nil {
		return nil, err
	}

	t, ok := dataset.ParseTimestamp(rec[dataset.FieldTransTime])
	if !ok {
		return nil, fmt.Errorf("field %q value %v is not a timestamp", dataset.FieldTransTime, rec[dataset.FieldTransTime])
	}
	tx.TransTime = t

	return tx, nil
}

// FromDataset converts a cleaned dataset into transactions, preserving row
// order.
func FromDataset(ds *dataset.Dataset) ([]*Transaction, error) {
	txs := make([]*Transaction, 0, ds.Len())
	for i, rec := range ds.Rows {
		tx, err := FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// ToDataset rebuilds a dataset in the stable output column order, used by the
// CSV export path.
func ToDataset(txs []*Transaction) *dataset.Dataset {
	ds := dataset.New(dataset.OutputColumns)
	ds.Rows = make([]dataset.Record, 0, len(txs))
	for _, tx := range txs {
		ds.Rows = append(ds.Rows, dataset.Record{
			dataset.FieldTransNum:  tx.TransNum,
			dataset.FieldTransTime: tx.TransTime,
			dataset.FieldGender:    tx.Gender,
			dataset.FieldCity:      tx.City,
			dataset.FieldState:     tx.State,
			dataset.FieldStateName: tx.StateName,
			dataset.FieldLat:       tx.Lat,
			dataset.FieldLong:      tx.Long,
			dataset.FieldCityPop:   tx.CityPop,
			dataset.FieldMerchant:  tx.Merchant,
			dataset.FieldCategory:  tx.Category,
			dataset.FieldAmt:       tx.Amt,
			dataset.FieldMerchLat:  tx.MerchLat,
			dataset.FieldMerchLong: tx.MerchLong,
			dataset.FieldYear:      tx.Year,
			dataset.FieldMonth:     tx.Month,
			dataset.FieldDay:       tx.Day,
			dataset.FieldHour:      tx.Hour,
		})
	}
	return ds
}

func stringField(rec dataset.Record, field string) (string, error) {
	s, ok := rec[field].(string)
	if !ok {
		return "", fmt.Errorf("field %q is %T, want string", field, rec[field])
	}
	return s, nil
}

func floatField(rec dataset.Record, field string) (float64, error) {
	f, ok := dataset.ToFloat(rec[field])
	if !ok {
		return 0, fmt.Errorf("field %q value %v is not numeric", field, rec[field])
	}
	return f, nil
}

func intField(rec dataset.Record, field string) (int, error) {
	n, ok := dataset.ToInt(rec[field])
	if !ok {
		return 0, fmt.Errorf("field %q value %v is not an integer", field, rec[field])
	}
	return n, nil
}
