package domain

import (
	"bytes"
	"testing"
	"time"

	"github.com/dvloznov/card-etl/internal/dataset"
)

func cleanedRecord() dataset.Record {
	return dataset.Record{
		dataset.FieldTransNum:  "t1",
		dataset.FieldTransTime: time.Date(2019, 1, 1, 14, 30, 5, 0, time.UTC),
		dataset.FieldGender:    "F",
		dataset.FieldCity:      "Houston",
		dataset.FieldState:     "TX",
		dataset.FieldStateName: "Texas",
		dataset.FieldLat:       29.76,
		dataset.FieldLong:      -95.36,
		dataset.FieldCityPop:   2300000.0,
		dataset.FieldMerchant:  "fraud_Kirlin and Sons",
		dataset.FieldCategory:  "personal_care",
		dataset.FieldAmt:       4.97,
		dataset.FieldMerchLat:  29.80,
		dataset.FieldMerchLong: -95.40,
		dataset.FieldYear:      2019,
		dataset.FieldMonth:     1,
		dataset.FieldDay:       1,
		dataset.FieldHour:      "02:30:05 PM",
	}
}

func TestFromRecord(t *testing.T) {
	tx, err := FromRecord(cleanedRecord())
	if err != nil {
		t.Fatalf("FromRecord failed: %v", err)
	}

	if tx.TransNum != "t1" {
		t.Errorf("Expected trans num t1, got %s", tx.TransNum)
	}
	if tx.StateName != "Texas" {
		t.Errorf("Expected Texas, got %s", tx.StateName)
	}
	if tx.CityPop != 2300000 {
		t.Errorf("Expected city pop 2300000, got %d", tx.CityPop)
	}
	if tx.Amt != 4.97 {
		t.Errorf("Expected amt 4.97, got %v", tx.Amt)
	}
	if tx.Year != 2019 || tx.Month != 1 || tx.Day != 1 {
		t.Errorf("Unexpected date parts: %d-%d-%d", tx.Year, tx.Month, tx.Day)
	}
	if tx.Hour != "02:30:05 PM" {
		t.Errorf("Expected hour 02:30:05 PM, got %s", tx.Hour)
	}
	if !tx.TransTime.Equal(time.Date(2019, 1, 1, 14, 30, 5, 0, time.UTC)) {
		t.Errorf("Unexpected trans time: %v", tx.TransTime)
	}
}

func TestFromRecord_StringForms(t *testing.T) {
	// A cleaned CSV read back from disk carries every cell as a string.
	rec := cleanedRecord()
	rec[dataset.FieldTransTime] = "2019-01-01 14:30:05"
	rec[dataset.FieldLat] = "29.76"
	rec[dataset.FieldLong] = "-95.36"
	rec[dataset.FieldCityPop] = "2300000"
	rec[dataset.FieldAmt] = "4.97"
	rec[dataset.FieldMerchLat] = "29.8"
	rec[dataset.FieldMerchLong] = "-95.4"
	rec[dataset.FieldYear] = "2019"
	rec[dataset.FieldMonth] = "1"
	rec[dataset.FieldDay] = "1"

	tx, err := FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord failed on string cells: %v", err)
	}
	if tx.Amt != 4.97 || tx.CityPop != 2300000 || tx.Year != 2019 {
		t.Errorf("Unexpected coerced values: %+v", tx)
	}
	if !tx.TransTime.Equal(time.Date(2019, 1, 1, 14, 30, 5, 0, time.UTC)) {
		t.Errorf("Unexpected trans time: %v", tx.TransTime)
	}
}

func TestFromRecord_InvalidValues(t *testing.T) {
	tests := []struct {
		name     string
		override func(rec dataset.Record)
	}{
		{"non-numeric amount", func(rec dataset.Record) { rec[dataset.FieldAmt] = "free" }},
		{"unparseable timestamp", func(rec dataset.Record) { rec[dataset.FieldTransTime] = "not-a-date" }},
		{"missing field", func(rec dataset.Record) { delete(rec, dataset.FieldStateName) }},
		{"non-integer year", func(rec dataset.Record) { rec[dataset.FieldYear] = "two thousand" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := cleanedRecord()
			tt.override(rec)

			if _, err := FromRecord(rec); err == nil {
				t.Error("Expected error for out-of-schema record")
			}
		})
	}
}

func TestFromDataset_RowIndexInError(t *testing.T) {
	ds := dataset.New(dataset.OutputColumns)
	good := cleanedRecord()
	bad := cleanedRecord()
	bad[dataset.FieldAmt] = "broken"
	ds.Rows = []dataset.Record{good, bad}

	_, err := FromDataset(ds)
	if err == nil {
		t.Fatal("Expected error for bad row")
	}
	if want := "row 1"; !contains(err.Error(), want) {
		t.Errorf("Expected error to name %q, got: %v", want, err)
	}
}

func TestToDataset_RoundTrip(t *testing.T) {
	tx, err := FromRecord(cleanedRecord())
	if err != nil {
		t.Fatalf("FromRecord failed: %v", err)
	}

	ds := ToDataset([]*Transaction{tx})

	if len(ds.Columns) != len(dataset.OutputColumns) {
		t.Fatalf("Expected %d columns, got %d", len(dataset.OutputColumns), len(ds.Columns))
	}

	back, err := FromDataset(ds)
	if err != nil {
		t.Fatalf("FromDataset failed: %v", err)
	}
	if len(back) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(back))
	}
	if *back[0] != *tx {
		t.Errorf("Round trip changed the transaction:\ngot:  %+v\nwant: %+v", back[0], tx)
	}
}

func TestFromDataset_ReadBackFromCSV(t *testing.T) {
	tx, err := FromRecord(cleanedRecord())
	if err != nil {
		t.Fatalf("FromRecord failed: %v", err)
	}

	// Materialize to CSV and read it back: every cell comes back as a string.
	buf := &bytes.Buffer{}
	if err := dataset.WriteCSV(buf, ToDataset([]*Transaction{tx})); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	reread, err := dataset.ReadCSV(buf)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	back, err := FromDataset(reread)
	if err != nil {
		t.Fatalf("FromDataset failed on re-read CSV: %v", err)
	}
	if len(back) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(back))
	}
	if *back[0] != *tx {
		t.Errorf("CSV round trip changed the transaction:\ngot:  %+v\nwant: %+v", back[0], tx)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
