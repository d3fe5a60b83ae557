package stats

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trm-report/internal/series"
)

func daily(start time.Time, values ...int64) series.Series {
	out := make(series.Series, len(values))
	for i, v := range values {
		out[i] = series.Record{EffectiveFrom: start.AddDate(0, 0, i), Value: decimal.NewFromInt(v)}
	}
	return out
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSummarizeThreeDayScenario(t *testing.T) {
	s := daily(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 4000, 4050, 4100)

	sum, err := Summarize(s, Options{})
	require.NoError(t, err)

	assert.True(t, sum.Max.Equal(d("4100")))
	assert.True(t, sum.Min.Equal(d("4000")))
	assert.True(t, sum.Mean.Equal(d("4050")))
	assert.True(t, sum.Median.Equal(d("4050")))
	assert.True(t, sum.Latest.Equal(d("4100")))
	assert.True(t, sum.DayAgo.Equal(d("4050")))
	assert.Equal(t, "1.2346", sum.DayChangePct.StringFixed(4))
	assert.Equal(t, 3, sum.Rows)
	assert.True(t, sum.LatestDate.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
}

func TestSummarizeEmptySeries(t *testing.T) {
	_, err := Summarize(nil, Options{})
	require.ErrorIs(t, err, ErrEmptySeries)

	_, err = Summarize(series.Series{}, Options{Policy: LookbackStrict})
	require.ErrorIs(t, err, ErrEmptySeries)
}

func TestLookbackDegradesToLatest(t *testing.T) {
	s := daily(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10, 20, 30, 40, 50, 60, 70, 80)

	sum, err := Summarize(s, Options{Policy: LookbackDegrade})
	require.NoError(t, err)

	assert.True(t, sum.DayAgo.Equal(d("70")))
	assert.True(t, sum.WeekAgo.Equal(d("10")), "8 rows is enough for the week offset")
	assert.True(t, sum.MonthAgo.Equal(sum.Latest), "month offset should fall back to latest")
	assert.True(t, sum.MonthChangePct.IsZero())
}

func TestLookbackSingleRow(t *testing.T) {
	s := daily(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3950)

	sum, err := Summarize(s, Options{})
	require.NoError(t, err)
	for _, v := range []decimal.Decimal{sum.DayAgo, sum.WeekAgo, sum.MonthAgo} {
		assert.True(t, v.Equal(d("3950")))
	}
	assert.True(t, sum.DayChangePct.IsZero())
}

func TestLookbackStrictFails(t *testing.T) {
	s := daily(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10, 20, 30, 40, 50, 60, 70, 80)

	_, err := Summarize(s, Options{Policy: LookbackStrict})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLookbackOutOfRange))

	var lbErr *LookbackError
	require.ErrorAs(t, err, &lbErr)
	assert.Equal(t, MonthOffset, lbErr.Offset)
	assert.Equal(t, 8, lbErr.Rows)
}

func TestLookbackStrictWithEnoughRows(t *testing.T) {
	values := make([]int64, 31)
	for i := range values {
		values[i] = int64(1000 + i)
	}
	s := daily(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), values...)

	sum, err := Summarize(s, Options{Policy: LookbackStrict})
	require.NoError(t, err)
	assert.True(t, sum.MonthAgo.Equal(d("1000")))
	assert.True(t, sum.WeekAgo.Equal(d("1023")))
	assert.True(t, sum.DayAgo.Equal(d("1029")))
}

func TestPercentChange(t *testing.T) {
	cases := []struct {
		latest, past, want string
	}{
		{"4100", "4050", "1.2346"},
		{"4000", "4100", "-2.4390"},
		{"4000", "4000", "0.0000"},
		{"4000", "0", "0.0000"},
		{"0", "0", "0.0000"},
	}
	for _, tc := range cases {
		got := PercentChange(d(tc.latest), d(tc.past))
		assert.Equal(t, tc.want, got.StringFixed(4), "latest=%s past=%s", tc.latest, tc.past)
	}
}

func TestMedianEvenCount(t *testing.T) {
	got := Median([]decimal.Decimal{d("4"), d("1"), d("3"), d("2")})
	assert.True(t, got.Equal(d("2.5")))
}

func TestOrderingInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 1; n <= 40; n++ {
		values := make([]int64, n)
		for i := range values {
			values[i] = 3500 + rng.Int63n(1500)
		}
		sum, err := Summarize(daily(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), values...), Options{})
		require.NoError(t, err)

		assert.True(t, sum.Min.LessThanOrEqual(sum.Median), "n=%d", n)
		assert.True(t, sum.Median.LessThanOrEqual(sum.Max), "n=%d", n)
		assert.True(t, sum.Min.LessThanOrEqual(sum.Mean), "n=%d", n)
		assert.True(t, sum.Mean.LessThanOrEqual(sum.Max), "n=%d", n)
	}
}

func TestParseLookbackPolicy(t *testing.T) {
	p, err := ParseLookbackPolicy("")
	require.NoError(t, err)
	assert.Equal(t, LookbackDegrade, p)

	p, err = ParseLookbackPolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, LookbackStrict, p)

	_, err = ParseLookbackPolicy("lenient")
	require.Error(t, err)
}

func TestDirection(t *testing.T) {
	assert.Equal(t, "up", Direction(d("0.5")))
	assert.Equal(t, "down", Direction(d("-0.5")))
	assert.Equal(t, "flat", Direction(decimal.Zero))
}
