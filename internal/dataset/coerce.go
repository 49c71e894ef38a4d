package dataset

import (
	"strconv"
	"strings"
	"time"
)

// TimeFormat is the canonical timestamp layout of the source dataset
// (e.g. "2019-01-01 00:00:18") and of the materialized output.
const TimeFormat = "2006-01-02 15:04:05"

// HourFormat is the layout of the derived hour-of-day column, e.g. "03:04:05 PM".
const HourFormat = "03:04:05 PM"

// timestampLayouts are tried in order when parsing a raw timestamp cell.
var timestampLayouts = []string{
	TimeFormat,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// ToFloat coerces a cell to float64. Strings are parsed after trimming;
// already numeric cells pass through, so a second cleaning pass over coerced
// data is a no-op.
func ToFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ToInt coerces a cell to int, refusing fractional floats.
func ToInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if val != float64(int(val)) {
			return 0, false
		}
		return int(val), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// ParseTimestamp coerces a cell to time.Time. A cell that already holds a
// time.Time is returned as is, which makes the temporal stage idempotent.
func ParseTimestamp(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
