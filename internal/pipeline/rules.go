package pipeline

import (
	"github.com/dvloznov/card-etl/internal/dataset"
)

// fieldRule is the reusable drop-on-invalid control flow shared by every
// column-scoped sub-rule: count missing cells, optionally coerce, optionally
// normalize, check the domain, keep or drop the row. Stages are thin
// compositions of these.
type fieldRule struct {
	field  string
	action Action

	// coerce converts the raw cell to its typed form. A false return drops
	// the row. Nil means the field stays textual.
	coerce func(v any) (any, bool)

	// normalize rewrites a surviving cell (trim, case). The bool reports
	// whether the value actually changed, feeding the Transformed counter.
	normalize func(v any) (any, bool)

	// valid is the domain check applied after coercion and normalization.
	// Nil means any present, coercible value passes.
	valid func(v any) bool
}

// apply runs the rule over every surviving row, filtering in place.
func (r fieldRule) apply(ds *dataset.Dataset, rep *Report) {
	fr := rep.Field(r.field)
	fr.Action = r.action

	kept := ds.Rows[:0]
	for _, rec := range ds.Rows {
		v, ok := rec[r.field]
		if !ok || dataset.IsMissing(v) {
			fr.MissingBefore++
			fr.RowsRemoved++
			continue
		}

		if r.coerce != nil {
			cv, ok := r.coerce(v)
			if !ok {
				fr.RowsRemoved++
				continue
			}
			v = cv
		}

		if r.normalize != nil {
			nv, changed := r.normalize(v)
			if changed {
				fr.Transformed++
			}
			v = nv
		}

		if r.valid != nil && !r.valid(v) {
			fr.RowsRemoved++
			continue
		}

		rec[r.field] = v
		kept = append(kept, rec)
	}
	ds.Rows = kept
}

// textNormalize lifts a string transform into a rule normalizer.
func textNormalize(f func(string) string) func(any) (any, bool) {
	return func(v any) (any, bool) {
		s, ok := v.(string)
		if !ok {
			// Already normalized on a previous pass, or not textual at all.
			return v, false
		}
		out := f(s)
		return out, out != s
	}
}

// coerceFloat lifts dataset.ToFloat into a rule coercion.
func coerceFloat(v any) (any, bool) {
	f, ok := dataset.ToFloat(v)
	if !ok {
		return nil, false
	}
	return f, true
}

// positiveFloat is the open-ended (0, +inf) domain check.
func positiveFloat(v any) bool {
	f, ok := v.(float64)
	return ok && f > 0
}
