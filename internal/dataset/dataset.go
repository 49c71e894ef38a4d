package dataset

import (
	"strings"
)

// Field names of the raw credit card transactions dataset. The pipeline only
// ever looks at these thirteen source columns; anything else in the input is
// projected away by the selection stage.
const (
	FieldTransNum  = "trans_num"
	FieldTransTime = "trans_date_trans_time"
	FieldGender    = "gender"
	FieldCity      = "city"
	FieldState     = "state"
	FieldLat       = "lat"
	FieldLong      = "long"
	FieldCityPop   = "city_pop"
	FieldMerchant  = "merchant"
	FieldCategory  = "category"
	FieldAmt       = "amt"
	FieldMerchLat  = "merch_lat"
	FieldMerchLong = "merch_long"
)

// Derived field names added by the enrichment stages.
const (
	FieldStateName = "state_name"
	FieldYear      = "year"
	FieldMonth     = "month"
	FieldDay       = "day"
	FieldHour      = "hour"
)

// RequiredColumns is the ordered set of source columns the pipeline selects.
var RequiredColumns = []string{
	FieldTransNum,
	FieldTransTime,
	FieldGender,
	FieldCity,
	FieldState,
	FieldLat,
	FieldLong,
	FieldCityPop,
	FieldMerchant,
	FieldCategory,
	FieldAmt,
	FieldMerchLat,
	FieldMerchLong,
}

// OutputColumns is the stable column order of the cleaned table: the thirteen
// retained source columns with state_name inserted after its source code, then
// the temporal columns.
var OutputColumns = []string{
	FieldTransNum,
	FieldTransTime,
	FieldGender,
	FieldCity,
	FieldState,
	FieldStateName,
	FieldLat,
	FieldLong,
	FieldCityPop,
	FieldMerchant,
	FieldCategory,
	FieldAmt,
	FieldMerchLat,
	FieldMerchLong,
	FieldYear,
	FieldMonth,
	FieldDay,
	FieldHour,
}

// Record is one row of a dataset: a mapping from column name to value. Values
// read from CSV start out as strings; cleaning stages replace them in place
// with float64, int or time.Time as columns are coerced.
type Record map[string]any

// Dataset is an ordered, mutable collection of records sharing one column set.
// A Dataset is owned by exactly one pipeline run at a time; stages filter and
// rewrite Rows in place.
type Dataset struct {
	Columns []string
	Rows    []Record
}

// New creates an empty dataset with the given column order.
func New(columns []string) *Dataset {
	return &Dataset{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// HasColumn reports whether the dataset carries the named column.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends a new column name. Callers are expected to populate the
// column on every row; adding an already present column is a no-op.
func (d *Dataset) AddColumn(name string) {
	if d.HasColumn(name) {
		return
	}
	d.Columns = append(d.Columns, name)
}

// AddColumnAfter inserts a new column directly after an existing one, so an
// enrichment column can sit next to its source. Falls back to appending when
// the anchor is absent; adding an already present column is a no-op.
func (d *Dataset) AddColumnAfter(name, after string) {
	if d.HasColumn(name) {
		return
	}
	for i, c := range d.Columns {
		if c == after {
			d.Columns = append(d.Columns[:i+1], append([]string{name}, d.Columns[i+1:]...)...)
			return
		}
	}
	d.Columns = append(d.Columns, name)
}

// Clone returns a deep copy: new column slice, new row slice, new record maps.
// The pipeline clones its input so the caller's table is never mutated.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Columns: append([]string(nil), d.Columns...),
		Rows:    make([]Record, len(d.Rows)),
	}
	for i, rec := range d.Rows {
		cp := make(Record, len(rec))
		for k, v := range rec {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// Select returns a new dataset restricted to the given columns, keeping only
// those that actually exist. Row maps are rebuilt so dropped columns do not
// linger in the records.
func (d *Dataset) Select(columns []string) (*Dataset, []string) {
	var present, missing []string
	for _, c := range columns {
		if d.HasColumn(c) {
			present = append(present, c)
		} else {
			missing = append(missing, c)
		}
	}

	out := &Dataset{
		Columns: present,
		Rows:    make([]Record, len(d.Rows)),
	}
	for i, rec := range d.Rows {
		cp := make(Record, len(present))
		for _, c := range present {
			if v, ok := rec[c]; ok {
				cp[c] = v
			}
		}
		out.Rows[i] = cp
	}
	return out, missing
}

// IsMissing reports whether a cell value counts as absent: nil, a missing key
// materialized as nil, or a blank string. Coerced values (numbers, times) are
// never missing.
func IsMissing(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
