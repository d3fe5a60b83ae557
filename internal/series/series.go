package series

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Record is a single published rate and the calendar window it applies to.
type Record struct {
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Value         decimal.Decimal
}

// Date returns the day the record is keyed on once expanded.
func (r Record) Date() time.Time {
	return r.EffectiveFrom
}

// Spans reports whether the validity window covers more than one day.
func (r Record) Spans() bool {
	return r.EffectiveTo != nil && r.EffectiveTo.After(r.EffectiveFrom)
}

// Series is an ordered list of rate records.
type Series []Record

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Expand replaces every multi-day record with one single-day record per day in
// its inclusive window. Single-day records pass through untouched, so the
// operation is idempotent.
func Expand(s Series) Series {
	out := make(Series, 0, len(s))
	for _, rec := range s {
		if !rec.Spans() {
			out = append(out, rec)
			continue
		}
		end := Day(*rec.EffectiveTo)
		for day := Day(rec.EffectiveFrom); !day.After(end); day = day.AddDate(0, 0, 1) {
			out = append(out, Record{EffectiveFrom: day, Value: rec.Value})
		}
	}
	return out
}

// Dedupe keeps one row per date. When the same date appears more than once the
// later row's value wins, but the row keeps the position of the first
// occurrence.
func Dedupe(s Series) Series {
	index := make(map[time.Time]int, len(s))
	out := make(Series, 0, len(s))
	for _, rec := range s {
		key := Day(rec.Date())
		if pos, ok := index[key]; ok {
			out[pos] = rec
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}
	return out
}

// Normalize expands validity ranges and collapses duplicate dates.
func Normalize(s Series) Series {
	return Dedupe(Expand(s))
}

// Sorted returns a chronologically ascending copy.
func (s Series) Sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date().Before(out[j].Date())
	})
	return out
}

// Values returns the rate values in series order.
func (s Series) Values() []decimal.Decimal {
	out := make([]decimal.Decimal, len(s))
	for i, rec := range s {
		out[i] = rec.Value
	}
	return out
}

// Span returns the first and last dates of an ascending series.
func (s Series) Span() (time.Time, time.Time) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}
	}
	return s[0].Date(), s[len(s)-1].Date()
}

// Years lists the distinct calendar years in order of first appearance.
func (s Series) Years() []int {
	seen := make(map[int]struct{})
	years := make([]int, 0)
	for _, rec := range s {
		y := rec.Date().Year()
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		years = append(years, y)
	}
	return years
}
