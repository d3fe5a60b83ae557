package stats

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trm-report/internal/series"
)

// Lookback offsets, counted in rows back from the most recent row.
const (
	DayOffset   = 1
	WeekOffset  = 7
	MonthOffset = 30
)

var (
	// ErrEmptySeries is returned when there is nothing to summarize.
	ErrEmptySeries = errors.New("stats: series is empty")
	// ErrLookbackOutOfRange is wrapped by LookbackError.
	ErrLookbackOutOfRange = errors.New("stats: lookback offset out of range")

	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// LookbackPolicy decides what happens when the series is too short for an offset.
type LookbackPolicy string

const (
	// LookbackDegrade substitutes the latest value, giving a 0% change.
	LookbackDegrade LookbackPolicy = "degrade"
	// LookbackStrict fails with a LookbackError.
	LookbackStrict LookbackPolicy = "strict"
)

// ParseLookbackPolicy maps a config value onto a policy.
func ParseLookbackPolicy(v string) (LookbackPolicy, error) {
	switch LookbackPolicy(v) {
	case "", LookbackDegrade:
		return LookbackDegrade, nil
	case LookbackStrict:
		return LookbackStrict, nil
	default:
		return "", fmt.Errorf("unknown lookback policy %q", v)
	}
}

// LookbackError describes an offset the series cannot satisfy.
type LookbackError struct {
	Offset int
	Rows   int
}

func (e *LookbackError) Error() string {
	return fmt.Sprintf("stats: lookback of %d rows needs at least %d rows, series has %d", e.Offset, e.Offset+1, e.Rows)
}

func (e *LookbackError) Unwrap() error {
	return ErrLookbackOutOfRange
}

// Options tune Summarize.
type Options struct {
	Policy LookbackPolicy
}

// Summary is a read-only snapshot of the series statistics.
type Summary struct {
	Rows       int
	From       time.Time
	To         time.Time
	LatestDate time.Time

	Max    decimal.Decimal
	Min    decimal.Decimal
	Mean   decimal.Decimal
	Median decimal.Decimal

	Latest   decimal.Decimal
	DayAgo   decimal.Decimal
	WeekAgo  decimal.Decimal
	MonthAgo decimal.Decimal

	DayChangePct   decimal.Decimal
	WeekChangePct  decimal.Decimal
	MonthChangePct decimal.Decimal
}

// Summarize computes the report statistics over an ascending series; the last
// row is the latest observation.
func Summarize(s series.Series, opts Options) (Summary, error) {
	if len(s) == 0 {
		return Summary{}, ErrEmptySeries
	}
	policy := opts.Policy
	if policy == "" {
		policy = LookbackDegrade
	}

	values := s.Values()
	from, to := s.Span()
	sum := Summary{
		Rows:       len(s),
		From:       from,
		To:         to,
		LatestDate: s[len(s)-1].Date(),
		Max:        decimal.Max(values[0], values[1:]...),
		Min:        decimal.Min(values[0], values[1:]...),
		Mean:       Mean(values),
		Median:     Median(values),
		Latest:     values[len(values)-1],
	}

	var err error
	if sum.DayAgo, err = lookback(values, DayOffset, policy); err != nil {
		return Summary{}, err
	}
	if sum.WeekAgo, err = lookback(values, WeekOffset, policy); err != nil {
		return Summary{}, err
	}
	if sum.MonthAgo, err = lookback(values, MonthOffset, policy); err != nil {
		return Summary{}, err
	}

	sum.DayChangePct = PercentChange(sum.Latest, sum.DayAgo)
	sum.WeekChangePct = PercentChange(sum.Latest, sum.WeekAgo)
	sum.MonthChangePct = PercentChange(sum.Latest, sum.MonthAgo)
	return sum, nil
}

func lookback(values []decimal.Decimal, offset int, policy LookbackPolicy) (decimal.Decimal, error) {
	latest := len(values) - 1
	if offset <= latest {
		return values[latest-offset], nil
	}
	if policy == LookbackStrict {
		return decimal.Decimal{}, &LookbackError{Offset: offset, Rows: len(values)}
	}
	return values[latest], nil
}

// PercentChange returns (latest - past) / past * 100, or zero when past is zero.
func PercentChange(latest, past decimal.Decimal) decimal.Decimal {
	if past.IsZero() {
		return decimal.Zero
	}
	return latest.Sub(past).Div(past).Mul(hundred)
}

// Mean is the arithmetic mean; zero for no values.
func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(values[0], values[1:]...).Div(decimal.NewFromInt(int64(len(values))))
}

// Median averages the two middle values for even counts; zero for no values.
func Median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(two)
}

// Direction classifies a change as up, down or flat.
func Direction(change decimal.Decimal) string {
	switch change.Sign() {
	case 1:
		return "up"
	case -1:
		return "down"
	default:
		return "flat"
	}
}
