package charting

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"trm-report/internal/series"
)

// ErrNoData is returned when asked to plot an empty series.
var ErrNoData = errors.New("charting: no data to plot")

// Mode selects the presentation.
type Mode string

const (
	// ModeLine draws a single connected line with markers.
	ModeLine Mode = "line"
	// ModeDirection colors every segment by the sign of its change.
	ModeDirection Mode = "direction"
	// ModeAnnual overlays one scatter series per calendar year on a day-of-year axis.
	ModeAnnual Mode = "annual"
)

// ParseMode maps a config or query value onto a Mode.
func ParseMode(v string) (Mode, error) {
	switch Mode(v) {
	case "", ModeLine:
		return ModeLine, nil
	case ModeDirection, ModeAnnual:
		return Mode(v), nil
	default:
		return "", fmt.Errorf("unknown chart mode %q", v)
	}
}

// Segment colors. A flat segment is drawn with the rise color.
var (
	RiseColor = drawing.ColorFromHex("2ca02c")
	FallColor = drawing.ColorFromHex("d62728")
	lineColor = drawing.ColorFromHex("1f77b4")

	yearPalette = []drawing.Color{
		drawing.ColorFromHex("1f77b4"),
		drawing.ColorFromHex("ff7f0e"),
		drawing.ColorFromHex("2ca02c"),
		drawing.ColorFromHex("d62728"),
		drawing.ColorFromHex("9467bd"),
		drawing.ColorFromHex("8c564b"),
		drawing.ColorFromHex("e377c2"),
		drawing.ColorFromHex("7f7f7f"),
		drawing.ColorFromHex("bcbd22"),
		drawing.ColorFromHex("17becf"),
	}
)

// Options configure rendering.
type Options struct {
	Mode   Mode
	Width  int
	Height int
	Title  string

	// MaxPoints caps the rows drawn by the line and direction modes; 0 draws all.
	MaxPoints int
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeLine
	}
	if o.Width <= 0 {
		o.Width = 1000
	}
	if o.Height <= 0 {
		o.Height = 600
	}
	if o.Title == "" {
		o.Title = "TRM over time"
	}
	return o
}

// Render plots the series and returns the encoded PNG.
func Render(s series.Series, opts Options) ([]byte, error) {
	if len(s) == 0 {
		return nil, ErrNoData
	}
	opts = opts.withDefaults()
	sorted := s.Sorted()
	if opts.Mode != ModeAnnual {
		sorted = Downsample(sorted, opts.MaxPoints)
	}

	var graph chart.Chart
	switch opts.Mode {
	case ModeLine:
		graph = lineChart(sorted, opts)
	case ModeDirection:
		graph = directionChart(sorted, opts)
	case ModeAnnual:
		graph = annualChart(sorted, opts)
	default:
		return nil, fmt.Errorf("unknown chart mode %q", opts.Mode)
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render %s chart: %w", opts.Mode, err)
	}
	return buf.Bytes(), nil
}

func rateFormatter(v interface{}) string {
	return chart.FloatValueFormatterWithFormat(v, "%.0f")
}

func dateFormatter(v interface{}) string {
	return chart.TimeValueFormatterWithFormat("2006-01-02")(v)
}

func baseChart(opts Options, ys []float64) chart.Chart {
	return chart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: dateFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "TRM",
			ValueFormatter: rateFormatter,
			Range:          flatRange(ys),
		},
	}
}

// timeAxis converts the series to plot coordinates. A single row is padded
// with a copy one day later so the x range is never empty.
func timeAxis(s series.Series) ([]time.Time, []float64) {
	xs := make([]time.Time, 0, len(s)+1)
	ys := make([]float64, 0, len(s)+1)
	for _, rec := range s {
		xs = append(xs, rec.Date())
		ys = append(ys, rec.Value.InexactFloat64())
	}
	if len(xs) == 1 {
		xs = append(xs, xs[0].AddDate(0, 0, 1))
		ys = append(ys, ys[0])
	}
	return xs, ys
}

// flatRange returns an explicit range when every value is identical, since
// go-chart refuses a zero-height axis. Otherwise it returns nil so the axis
// fits the data.
func flatRange(ys []float64) chart.Range {
	if len(ys) == 0 {
		return nil
	}
	lo, hi := ys[0], ys[0]
	for _, y := range ys[1:] {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	if hi > lo {
		return nil
	}
	pad := math.Max(math.Abs(lo)*0.01, 1)
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func lineChart(s series.Series, opts Options) chart.Chart {
	xs, ys := timeAxis(s)
	graph := baseChart(opts, ys)
	graph.Series = []chart.Series{
		chart.TimeSeries{
			Name:    "TRM",
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: lineColor,
				StrokeWidth: 2,
				DotColor:    lineColor,
				DotWidth:    3,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph
}

// SegmentColor returns the color used for the move from prev to next.
func SegmentColor(prev, next float64) drawing.Color {
	if next < prev {
		return FallColor
	}
	return RiseColor
}

func directionChart(s series.Series, opts Options) chart.Chart {
	xs, ys := timeAxis(s)
	graph := baseChart(opts, ys)

	segments := make([]chart.Series, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		color := SegmentColor(ys[i-1], ys[i])
		segments = append(segments, chart.TimeSeries{
			XValues: []time.Time{xs[i-1], xs[i]},
			YValues: []float64{ys[i-1], ys[i]},
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: 2,
				DotColor:    color,
				DotWidth:    2,
			},
		})
	}
	graph.Series = segments
	return graph
}

// YearColors returns n distinct colors. Up to ten years use the fixed
// palette; beyond that hues are spaced evenly around the wheel.
func YearColors(n int) []drawing.Color {
	out := make([]drawing.Color, n)
	if n <= len(yearPalette) {
		copy(out, yearPalette[:n])
		return out
	}
	for i := range out {
		out[i] = hueColor(360 * float64(i) / float64(n))
	}
	return out
}

// hueColor converts a hue in degrees at fixed saturation and value to RGB.
func hueColor(h float64) drawing.Color {
	const sat, val = 0.75, 0.85
	c := val * sat
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := val - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return drawing.Color{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 255,
	}
}

// Downsample keeps at most max rows, evenly spaced, always including the
// first and last row. max <= 1 or a short series returns s unchanged.
func Downsample(s series.Series, max int) series.Series {
	if max <= 1 || len(s) <= max {
		return s
	}

	out := make(series.Series, 0, max)
	step := float64(len(s)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(s) {
			idx = len(s) - 1
		}
		out = append(out, s[idx])
	}
	return out
}

// dayOfYear is the x coordinate of the annual overlay.
func dayOfYear(t time.Time) float64 {
	return float64(t.YearDay())
}

func annualChart(s series.Series, opts Options) chart.Chart {
	years := s.Years()
	byYear := make(map[int]*chart.ContinuousSeries, len(years))
	allY := make([]float64, 0, len(s))
	allX := make([]float64, 0, len(s))

	colors := YearColors(len(years))
	for i, year := range years {
		color := colors[i]
		byYear[year] = &chart.ContinuousSeries{
			Name: strconv.Itoa(year),
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotColor:    color,
				DotWidth:    3,
			},
		}
	}
	for _, rec := range s {
		cs := byYear[rec.Date().Year()]
		x := dayOfYear(rec.Date())
		y := rec.Value.InexactFloat64()
		cs.XValues = append(cs.XValues, x)
		cs.YValues = append(cs.YValues, y)
		allX = append(allX, x)
		allY = append(allY, y)
	}

	graph := baseChart(opts, allY)
	graph.XAxis = chart.XAxis{
		Name:           "Day of year",
		ValueFormatter: rateFormatter,
		Range:          flatRange(allX),
	}
	graph.Series = make([]chart.Series, 0, len(years))
	for _, year := range years {
		graph.Series = append(graph.Series, *byYear[year])
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph
}
