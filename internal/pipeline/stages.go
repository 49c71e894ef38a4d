package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dvloznov/card-etl/internal/dataset"
)

// Stage is one ordered step of the cleaning pipeline, scoped to one or a few
// related fields. A stage filters and rewrites rows in place and keeps the
// report current. A stage whose required column is absent logs a warning,
// records it, and leaves the dataset untouched; it never fails the run.
type Stage interface {
	Name() string
	Apply(ds *dataset.Dataset, rep *Report) error
}

// skipMissingColumn handles the non-fatal missing-column case uniformly.
func skipMissingColumn(log zerolog.Logger, rep *Report, stage, column string) {
	msg := fmt.Sprintf("stage %s skipped: column %q not found", stage, column)
	log.Warn().Str("stage", stage).Str("column", column).Msg("required column not found, skipping stage")
	rep.Warn(msg)
}

// SelectColumnsStage projects the raw table down to the thirteen source
// columns. Absent columns degrade the run instead of aborting it.
type SelectColumnsStage struct {
	log zerolog.Logger
}

func (s *SelectColumnsStage) Name() string { return "select_columns" }

func (s *SelectColumnsStage) Apply(ds *dataset.Dataset, rep *Report) error {
	selected, missing := ds.Select(dataset.RequiredColumns)
	ds.Columns = selected.Columns
	ds.Rows = selected.Rows

	rep.ColumnsSelected = len(selected.Columns)
	for _, col := range missing {
		rep.Warn(fmt.Sprintf("required column %q not present in input", col))
		s.log.Warn().Str("column", col).Msg("required column not present in input")
	}

	s.log.Info().
		Int("selected", len(selected.Columns)).
		Int("missing", len(missing)).
		Msg("columns selected")
	return nil
}

// DropDuplicatesStage removes repeated transactions, keyed on the transaction
// number. The first occurrence wins.
type DropDuplicatesStage struct {
	log zerolog.Logger
}

func (s *DropDuplicatesStage) Name() string { return "drop_duplicates" }

func (s *DropDuplicatesStage) Apply(ds *dataset.Dataset, rep *Report) error {
	if !ds.HasColumn(dataset.FieldTransNum) {
		skipMissingColumn(s.log, rep, s.Name(), dataset.FieldTransNum)
		return nil
	}

	seen := make(map[string]struct{}, len(ds.Rows))
	kept := ds.Rows[:0]
	for _, rec := range ds.Rows {
		key := dataset.FormatValue(rec[dataset.FieldTransNum])
		if _, dup := seen[key]; dup {
			rep.DuplicatesRemoved++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, rec)
	}
	ds.Rows = kept

	s.log.Info().Int("duplicates_removed", rep.DuplicatesRemoved).Msg("duplicates dropped")
	return nil
}

// GenderStage trims and uppercases the gender column and drops every row
// whose value is not exactly M or F.
type GenderStage struct {
	log zerolog.Logger
}

func (s *GenderStage) Name() string { return "clean_gender" }

func (s *GenderStage) Apply(ds *dataset.Dataset, rep *Report) error {
	if !ds.HasColumn(dataset.FieldGender) {
		skipMissingColumn(s.log, rep, s.Name(), dataset.FieldGender)
		return nil
	}

	fieldRule{
		field:     dataset.FieldGender,
		action:    ActionDropInvalid,
		normalize: textNormalize(func(v string) string { return strings.ToUpper(strings.TrimSpace(v)) }),
		valid:     func(v any) bool { return v == "M" || v == "F" },
	}.apply(ds, rep)

	fr := rep.Field(dataset.FieldGender)
	s.log.Info().
		Int("missing", fr.MissingBefore).
		Int("transformed", fr.Transformed).
		Int("rows_removed", fr.RowsRemoved).
		Msg("gender cleaned")
	return nil
}

// LocationStage cleans the cardholder location columns: city (title case),
// state (uppercase, canonical form for the state-name lookup), coordinates
// (numeric) and city population (numeric, strictly positive). Sub-rules run
// in that order, each seeing only rows that survived the previous one.
type LocationStage struct {
	log zerolog.Logger
}

func (s *LocationStage) Name() string { return "clean_location" }

func (s *LocationStage) Apply(ds *dataset.Dataset, rep *Report) error {
	titler := cases.Title(language.English)

	if ds.HasColumn(dataset.FieldCity) {
		fieldRule{
			field:     dataset.FieldCity,
			action:    ActionNormalizeText,
			normalize: textNormalize(func(v string) string { return titler.String(strings.TrimSpace(v)) }),
		}.apply(ds, rep)
	} else {
		skipMissingColumn(s.log, rep, s.Name(), dataset.FieldCity)
	}

	if ds.HasColumn(dataset.FieldState) {
		fieldRule{
			field:     dataset.FieldState,
			action:    ActionNormalizeText,
			normalize: textNormalize(func(v string) string { return strings.ToUpper(strings.TrimSpace(v)) }),
		}.apply(ds, rep)
	} else {
		skipMissingColumn(s.log, rep, s.Name(), dataset.FieldState)
	}

	for _, col := range []string{dataset.FieldLat, dataset.FieldLong} {
		if !ds.HasColumn(col) {
			skipMissingColumn(s.log, rep, s.Name(), col)
			continue
		}
		fieldRule{
			field:  col,
			action: ActionCoerceNumeric,
			coerce: coerceFloat,
		}.apply(ds, rep)
	}

	if ds.HasColumn(dataset.FieldCityPop) {
		fieldRule{
			field:  dataset.FieldCityPop,
			action: ActionCoerceNumeric,
			coerce: coerceFloat,
			valid:  positiveFloat,
		}.apply(ds, rep)
	} else {
		skipMissingColumn(s.log, rep, s.Name(), dataset.FieldCityPop)
	}

	s.log.Info().Int("rows", ds.Len()).Msg("location columns cleaned")
	return nil
}

// StateNameStage maps the canonicalized state code to its full name, adding
// the state_name column. A code absent from the lookup drops the row; that is
// an unrecognized-code drop, counted apart from missing-value drops.
type StateNameStage struct {
	log    zerolog.Logger
	states map[string]string
}

// NewStateNameStage builds the enrichment stage around an injected lookup
// table, usually USStates().
func NewStateNameStage(log zerolog.Logger, states map[string]string) *StateNameStage {
	return &StateNameStage{log: log, states: states}
}

func (s *StateNameStage) Name() string { return "enrich_state_name" }

func (s *StateNameStage) Apply(ds *dataset.Dataset, rep *Report) error {
	if !ds.HasColumn(dataset.FieldState) {
		skipMissingColumn(s.log, rep, s.Name(), dataset.FieldState)
		return nil
	}

	fr := rep.Field(dataset.FieldStateName)
	fr.Action = ActionDropInvalid

	unmapped := make(map[string]struct{})
	kept := ds.Rows[:0]
	for _, rec := range ds.Rows {
		code, _ := rec[dataset.FieldState].(string)
		name, ok := s.states[code]
		if !ok {
			unmapped[code] = struct{}{}
			fr.RowsRemoved++
			rep.UnmappedStateCodes++
			continue
		}
		rec[dataset.FieldStateName] = name
		kept = append(kept, rec)
	}
	ds.Rows = kept

	ds.AddColumnAfter(dataset.FieldStateName, dataset.FieldState)
	rep.AddDerived(dataset.FieldStateName)

	if len(unmapped) > 0 {
		codes := make([]string, 0, len(unmapped))
		for c := range unmapped {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		s.log.Warn().
			Strs("codes", codes).
			Int("rows_removed", fr.RowsRemoved).
			Msg("unrecognized state codes, rows dropped")
	}

	s.log.Info().Int("rows", ds.Len()).Msg("state names enriched")
	return nil
}

// MerchantStage cleans the merchant columns: name (trim only, original casing
// preserved), category (trim and lowercase), merchant coordinates (numeric).
type MerchantStage struct {
	log zerolog.Logger
}

func (s *MerchantStage) Name() string { return "clean_merchant" }

func (s *MerchantStage) Apply(ds *dataset.Dataset, rep *Report) error {
	if ds.HasColumn(dataset.FieldMerchant) {
		fieldRule{
			field:     dataset.FieldMerchant,
			action:    ActionNormalizeText,
			normalize: textNormalize(strings.TrimSpace),
		}.apply(ds, rep)
	} else {
		skipMissingColumn(s.log, rep, s.Name(), dataset.FieldMerchant)
	}

	if ds.HasColumn(dataset.FieldCategory) {
		fieldRule{
			field:     dataset.FieldCategory,
			action:    ActionNormalizeText,
			normalize: textNormalize(func(v string) string { return strings.ToLower(strings.TrimSpace(v)) }),
		}.apply(ds, rep)
	} else {
		skipMissingColumn(s.log, rep, s.Name(), dataset.FieldCategory)
	}

	for _, col := range []string{dataset.FieldMerchLat, dataset.FieldMerchLong} {
		if !ds.HasColumn(col) {
			skipMissingColumn(s.log, rep, s.Name(), col)
			continue
		}
		fieldRule{
			field:  col,
			action: ActionCoerceNumeric,
			coerce: coerceFloat,
		}.apply(ds, rep)
	}

	s.log.Info().Int("rows", ds.Len()).Msg("merchant columns cleaned")
	return nil
}

// AmountStage coerces the amount to numeric, drops non-positive values, and
// computes min/max/mean/median over the retained amounts for the report.
type AmountStage struct {
	log zerolog.Logger
}

func (s *AmountStage) Name() string { return "clean_amount" }

func (s *AmountStage) Apply(ds *dataset.Dataset, rep *Report) error {
	if !ds.HasColumn(dataset.FieldAmt) {
		skipMissingColumn(s.log, rep, s.Name(), dataset.FieldAmt)
		return nil
	}

	fieldRule{
		field:  dataset.FieldAmt,
		action: ActionCoerceNumeric,
		coerce: coerceFloat,
		valid:  positiveFloat,
	}.apply(ds, rep)

	if ds.Len() > 0 {
		amounts := make([]float64, 0, ds.Len())
		for _, rec := range ds.Rows {
			if f, ok := rec[dataset.FieldAmt].(float64); ok {
				amounts = append(amounts, f)
			}
		}
		rep.Amount = summarizeAmounts(amounts)
		s.log.Info().
			Float64("min", rep.Amount.Min).
			Float64("max", rep.Amount.Max).
			Float64("mean", rep.Amount.Mean).
			Float64("median", rep.Amount.Median).
			Msg("amount cleaned")
	}
	return nil
}

func summarizeAmounts(amounts []float64) *AmountStats {
	if len(amounts) == 0 {
		return nil
	}
	sorted := append([]float64(nil), amounts...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, a := range sorted {
		sum += a
	}

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return &AmountStats{
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   sum / float64(n),
		Median: median,
	}
}

// TemporalStage parses the transaction timestamp and derives year, month,
// day-of-month and a formatted hour-of-day. Unparseable timestamps drop the
// row; the stage never adds rows.
type TemporalStage struct {
	log zerolog.Logger
}

func (s *TemporalStage) Name() string { return "enrich_temporal" }

func (s *TemporalStage) Apply(ds *dataset.Dataset, rep *Report) error {
	if !ds.HasColumn(dataset.FieldTransTime) {
		skipMissingColumn(s.log, rep, s.Name(), dataset.FieldTransTime)
		return nil
	}

	fr := rep.Field(dataset.FieldTransTime)
	fr.Action = ActionCoerceNumeric

	invalid := 0
	kept := ds.Rows[:0]
	for _, rec := range ds.Rows {
		v, ok := rec[dataset.FieldTransTime]
		if !ok || dataset.IsMissing(v) {
			fr.MissingBefore++
			fr.RowsRemoved++
			continue
		}
		t, ok := dataset.ParseTimestamp(v)
		if !ok {
			invalid++
			fr.RowsRemoved++
			continue
		}

		rec[dataset.FieldTransTime] = t
		rec[dataset.FieldYear] = t.Year()
		rec[dataset.FieldMonth] = int(t.Month())
		rec[dataset.FieldDay] = t.Day()
		rec[dataset.FieldHour] = t.Format(dataset.HourFormat)
		kept = append(kept, rec)
	}
	ds.Rows = kept

	for _, col := range []string{dataset.FieldYear, dataset.FieldMonth, dataset.FieldDay, dataset.FieldHour} {
		ds.AddColumn(col)
		rep.AddDerived(col)
	}

	if invalid > 0 {
		s.log.Warn().Int("unparseable", invalid).Msg("timestamps failed to parse, rows dropped")
	}
	s.log.Info().Int("rows", ds.Len()).Msg("temporal columns enriched")
	return nil
}
