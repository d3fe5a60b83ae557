package charting

import (
	"bytes"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"trm-report/internal/series"
)

func sample(start time.Time, values ...float64) series.Series {
	out := make(series.Series, len(values))
	for i, v := range values {
		out[i] = series.Record{EffectiveFrom: start.AddDate(0, 0, i), Value: decimal.NewFromFloat(v)}
	}
	return out
}

func decodePNG(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestRenderModes(t *testing.T) {
	s := sample(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 4000, 4050, 4020, 4100, 4080)

	for _, mode := range []Mode{ModeLine, ModeDirection, ModeAnnual} {
		t.Run(string(mode), func(t *testing.T) {
			data, err := Render(s, Options{Mode: mode, Width: 640, Height: 360})
			if err != nil {
				t.Fatalf("render should succeed: %v", err)
			}
			w, h := decodePNG(t, data)
			if w != 640 || h != 360 {
				t.Fatalf("unexpected dimensions %dx%d", w, h)
			}
		})
	}
}

func TestRenderAnnualAcrossYears(t *testing.T) {
	s := sample(time.Date(2022, 12, 20, 0, 0, 0, 0, time.UTC), 4700, 4750, 4800, 4820, 4810, 4790, 4760, 4740, 4730, 4720, 4710, 4705, 4700, 4695, 4690)
	s = append(s, sample(time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC), 3900, 3910, 3920, 3930, 3940, 3950, 3960, 3970)...)

	if len(s.Years()) != 3 {
		t.Fatalf("fixture should span three years, got %v", s.Years())
	}
	data, err := Render(s, Options{Mode: ModeAnnual})
	if err != nil {
		t.Fatalf("annual render should succeed: %v", err)
	}
	decodePNG(t, data)
}

func TestAnnualColorsDistinctAcrossManyYears(t *testing.T) {
	var s series.Series
	for year := 1991; year <= 2026; year++ {
		s = append(s, sample(time.Date(year, 3, 1, 0, 0, 0, 0, time.UTC), 1000+float64(year-1991)*100, 1010+float64(year-1991)*100)...)
	}
	if len(s.Years()) != 36 {
		t.Fatalf("fixture should span 36 years, got %d", len(s.Years()))
	}

	graph := annualChart(s, Options{}.withDefaults())
	if len(graph.Series) != 36 {
		t.Fatalf("expected one series per year, got %d", len(graph.Series))
	}
	seen := make(map[drawing.Color]string, len(graph.Series))
	for _, item := range graph.Series {
		cs, ok := item.(chart.ContinuousSeries)
		if !ok {
			t.Fatalf("unexpected series type %T", item)
		}
		if prev, dup := seen[cs.Style.DotColor]; dup {
			t.Fatalf("years %s and %s share color %v", prev, cs.Name, cs.Style.DotColor)
		}
		seen[cs.Style.DotColor] = cs.Name
	}

	data, err := Render(s, Options{Mode: ModeAnnual})
	if err != nil {
		t.Fatalf("annual render should succeed: %v", err)
	}
	decodePNG(t, data)
}

func TestYearColorsUsesPaletteForFewYears(t *testing.T) {
	colors := YearColors(3)
	for i, c := range colors {
		if c != yearPalette[i] {
			t.Fatalf("color %d should come from the palette, got %v", i, c)
		}
	}
	if len(YearColors(0)) != 0 {
		t.Fatal("zero years should give no colors")
	}
}

func TestDownsample(t *testing.T) {
	s := sample(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	got := Downsample(s, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(got))
	}
	if !got[0].Date().Equal(s[0].Date()) || !got[3].Date().Equal(s[9].Date()) {
		t.Fatalf("first and last rows must be kept: %v .. %v", got[0].Date(), got[3].Date())
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Date().After(got[i-1].Date()) {
			t.Fatalf("rows must stay ascending at %d", i)
		}
	}
	if len(Downsample(s, 0)) != 10 || len(Downsample(s, 20)) != 10 {
		t.Fatal("no cap or a large cap should keep every row")
	}
}

func TestRenderDirectionWithPointCap(t *testing.T) {
	values := make([]float64, 5000)
	for i := range values {
		values[i] = 3800 + float64(i%50)
	}
	s := sample(time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), values...)

	data, err := Render(s, Options{Mode: ModeDirection, MaxPoints: 200})
	if err != nil {
		t.Fatalf("capped direction render should succeed: %v", err)
	}
	decodePNG(t, data)
}

func TestRenderSingleRowAndFlatSeries(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]series.Series{
		"single": sample(start, 3950),
		"flat":   sample(start, 3950, 3950, 3950),
	}
	for name, s := range cases {
		for _, mode := range []Mode{ModeLine, ModeDirection, ModeAnnual} {
			if _, err := Render(s, Options{Mode: mode}); err != nil {
				t.Fatalf("%s/%s: render should succeed: %v", name, mode, err)
			}
		}
	}
}

func TestRenderUnsortedInput(t *testing.T) {
	s := sample(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1, 2, 3)
	s[0], s[2] = s[2], s[0]

	if _, err := Render(s, Options{}); err != nil {
		t.Fatalf("render should sort its input: %v", err)
	}
}

func TestRenderEmpty(t *testing.T) {
	if _, err := Render(nil, Options{}); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestRenderUnknownMode(t *testing.T) {
	s := sample(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1, 2)
	if _, err := Render(s, Options{Mode: "pie"}); err == nil {
		t.Fatal("unknown mode should fail")
	}
}

func TestSegmentColor(t *testing.T) {
	if SegmentColor(4000, 4050) != RiseColor {
		t.Fatal("increase should use the rise color")
	}
	if SegmentColor(4050, 4000) != FallColor {
		t.Fatal("decrease should use the fall color")
	}
	if SegmentColor(4000, 4000) != RiseColor {
		t.Fatal("flat segment should use the rise color")
	}
	if RiseColor == FallColor {
		t.Fatal("rise and fall colors must differ")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeLine, "line": ModeLine, "direction": ModeDirection, "annual": ModeAnnual} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("bars"); err == nil {
		t.Fatal("unknown mode should fail")
	}
}
