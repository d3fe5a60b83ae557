package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trm-report/internal/series"
	"trm-report/internal/stats"
)

// Format is a downloadable report format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ParseFormat maps a config or query value onto a Format.
func ParseFormat(v string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(v))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatDOCX:
		return FormatDOCX, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown report format %q", v)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatDOCX:
		return MIMEDOCX
	case FormatXLSX:
		return MIMEXLSX
	default:
		return MIMEPDF
	}
}

// Report is everything a renderer needs.
type Report struct {
	Title       string
	GeneratedAt time.Time
	Summary     stats.Summary
	Chart       []byte
	Series      series.Series
}

// Artifact is a finished download.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Renderer turns a report into the bytes of one document format.
type Renderer interface {
	Render(report Report) ([]byte, error)
}

// RendererFor returns the renderer for a format.
func RendererFor(f Format) (Renderer, error) {
	switch f {
	case FormatPDF:
		return PDF{}, nil
	case FormatDOCX:
		return DOCX{}, nil
	case FormatXLSX:
		return XLSX{}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", f)
	}
}

// Filename builds "<prefix>_<YYYY-MM-DD>.<ext>".
func Filename(prefix string, f Format, at time.Time) string {
	if prefix == "" {
		prefix = "TRM_Report"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, at.Format("2006-01-02"), f)
}

// Build renders the report and wraps it as a dated artifact.
func Build(f Format, prefix string, report Report) (*Artifact, error) {
	if len(report.Chart) == 0 {
		return nil, fmt.Errorf("report has no chart image")
	}
	r, err := RendererFor(f)
	if err != nil {
		return nil, err
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}
	data, err := r.Render(report)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", f, err)
	}
	return &Artifact{
		Filename:    Filename(prefix, f, report.GeneratedAt),
		ContentType: f.ContentType(),
		Data:        data,
	}, nil
}

// Line is one labeled value in a report block.
type Line struct {
	Label string
	Value string
}

// ValueLines is the "relevant values" block shared by every format.
func ValueLines(s stats.Summary) []Line {
	return []Line{
		{"Maximum", money(s.Max)},
		{"Minimum", money(s.Min)},
		{"Mean", money(s.Mean)},
		{"Median", money(s.Median)},
		{"Latest", money(s.Latest)},
		{"One day ago", money(s.DayAgo)},
		{"One week ago", money(s.WeekAgo)},
		{"One month ago", money(s.MonthAgo)},
	}
}

// ChangeLines is the percentage-change block shared by every format.
func ChangeLines(s stats.Summary) []Line {
	return []Line{
		{"Daily change", percent(s.DayChangePct)},
		{"Weekly change", percent(s.WeekChangePct)},
		{"Monthly change", percent(s.MonthChangePct)},
	}
}

// Period describes the covered date span.
func Period(s stats.Summary) string {
	return fmt.Sprintf("%s to %s (%d days)", s.From.Format("2006-01-02"), s.To.Format("2006-01-02"), s.Rows)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func percent(d decimal.Decimal) string {
	return d.StringFixed(4) + "%"
}
