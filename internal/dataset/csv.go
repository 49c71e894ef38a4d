package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ReadCSV parses a header-driven CSV stream into a dataset. Every cell is kept
// as a string, including empty cells; typing happens later in the pipeline.
// Short rows are padded with empty cells so ragged input does not abort a run.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("read csv: input is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	ds := New(header)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record %d: %w", len(ds.Rows)+2, err)
		}

		rec := make(Record, len(header))
		for i, col := range header {
			if i < len(record) {
				rec[col] = record[i]
			} else {
				rec[col] = ""
			}
		}
		ds.Rows = append(ds.Rows, rec)
	}

	return ds, nil
}

// WriteCSV writes the dataset with its column order as the header row.
func WriteCSV(w io.Writer, ds *Dataset) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ds.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(ds.Columns))
	for i, rec := range ds.Rows {
		for j, col := range ds.Columns {
			row[j] = FormatValue(rec[col])
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv record %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// FormatValue renders a cell for CSV output. Floats use the shortest exact
// representation; timestamps use the dataset's canonical layout.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.Format(TimeFormat)
	default:
		return fmt.Sprintf("%v", val)
	}
}
