package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Action tags how a field was treated, for diagnostic clarity in the report.
type Action string

const (
	// ActionDropInvalid marks fields whose out-of-domain values drop the row.
	ActionDropInvalid Action = "drop_invalid"
	// ActionCoerceNumeric marks fields coerced to a numeric type before checks.
	ActionCoerceNumeric Action = "coerce_numeric"
	// ActionNormalizeText marks fields normalized in place (trim, case).
	ActionNormalizeText Action = "normalize_text"
)

// FieldReport is the per-field ledger entry of the cleaning run.
type FieldReport struct {
	// MissingBefore counts cells that were absent or blank before the field
	// was processed.
	MissingBefore int `json:"missing_before"`

	// Transformed counts surviving cells whose value was rewritten by
	// normalization (case change, trimmed whitespace).
	Transformed int `json:"transformed"`

	// RowsRemoved counts rows dropped while processing this field, missing
	// and invalid alike.
	RowsRemoved int `json:"rows_removed"`

	Action Action `json:"action"`
}

// AmountStats summarizes the retained transaction amounts. Informational
// only; it never affects row survival.
type AmountStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Report is the audit trail of one pipeline run: what was removed, what was
// changed and what was added, per field and overall.
type Report struct {
	RunID string `json:"run_id"`

	RowsIn  int `json:"rows_in"`
	RowsOut int `json:"rows_out"`

	ColumnsIn       int `json:"columns_in"`
	ColumnsSelected int `json:"columns_selected"`

	DuplicatesRemoved int `json:"duplicates_removed"`

	PerField map[string]*FieldReport `json:"per_field"`

	// UnmappedStateCodes mirrors the enrichment drops caused by state codes
	// absent from the lookup, distinct from missing-value drops. The same
	// rows are also counted under PerField[state_name].
	UnmappedStateCodes int `json:"unmapped_state_codes"`

	// DerivedFields lists enrichment columns in the order they were added.
	DerivedFields []string `json:"derived_fields"`

	Warnings []string `json:"warnings,omitempty"`

	Amount *AmountStats `json:"amount,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewReport starts a report for an input of the given dimensions.
func NewReport(rowsIn, columnsIn int) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		RowsIn:    rowsIn,
		ColumnsIn: columnsIn,
		PerField:  make(map[string]*FieldReport),
		StartedAt: time.Now(),
	}
}

// Field returns the entry for a field, creating it on first use.
func (r *Report) Field(name string) *FieldReport {
	fr, ok := r.PerField[name]
	if !ok {
		fr = &FieldReport{}
		r.PerField[name] = fr
	}
	return fr
}

// AddDerived records a derived column exactly once, preserving insertion
// order across repeated pipeline construction.
func (r *Report) AddDerived(name string) {
	for _, d := range r.DerivedFields {
		if d == name {
			return
		}
	}
	r.DerivedFields = append(r.DerivedFields, name)
}

// Warn records a non-fatal condition, typically a skipped stage.
func (r *Report) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// RowsDropped sums every removal the report accounts for. For a finalized
// report it equals RowsIn - RowsOut: no row is counted by two stages, because
// a dropped row never reaches the next one.
func (r *Report) RowsDropped() int {
	n := r.DuplicatesRemoved
	for _, fr := range r.PerField {
		n += fr.RowsRemoved
	}
	return n
}

// Finalize stamps the terminal row count and finish time.
func (r *Report) Finalize(rowsOut int) {
	r.RowsOut = rowsOut
	r.FinishedAt = time.Now()
}
