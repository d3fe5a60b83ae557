package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"
	"github.com/shopspring/decimal"

	"trm-report/internal/charting"
	"trm-report/internal/document"
	"trm-report/internal/fetcher"
	"trm-report/internal/service"
	"trm-report/internal/stats"
	"trm-report/internal/version"
)

// reportQuery is the download form.
type reportQuery struct {
	Format string `validate:"omitempty,oneof=pdf docx xlsx"`
	Chart  string `validate:"omitempty,oneof=line direction annual"`
}

type pageData struct {
	Title       string
	Description string
	Error       string
	Summary     *stats.Summary
	Mode        charting.Mode
	Format      document.Format
	Modes       []charting.Mode
	Formats     []document.Format
	Version     string
}

// SummaryResponse is the /api/summary payload.
type SummaryResponse struct {
	Rows           int    `json:"rows"`
	From           string `json:"from"`
	To             string `json:"to"`
	LatestDate     string `json:"latest_date"`
	Max            string `json:"max"`
	Min            string `json:"min"`
	Mean           string `json:"mean"`
	Median         string `json:"median"`
	Latest         string `json:"latest"`
	DayAgo         string `json:"day_ago"`
	WeekAgo        string `json:"week_ago"`
	MonthAgo       string `json:"month_ago"`
	DayChangePct   string `json:"day_change_pct"`
	WeekChangePct  string `json:"week_change_pct"`
	MonthChangePct string `json:"month_change_pct"`
	Direction      string `json:"direction"`
}

// Render implements render.Renderer.
func (SummaryResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func newSummaryResponse(s stats.Summary) SummaryResponse {
	const day = "2006-01-02"
	return SummaryResponse{
		Rows:           s.Rows,
		From:           s.From.Format(day),
		To:             s.To.Format(day),
		LatestDate:     s.LatestDate.Format(day),
		Max:            s.Max.StringFixed(2),
		Min:            s.Min.StringFixed(2),
		Mean:           s.Mean.StringFixed(2),
		Median:         s.Median.StringFixed(2),
		Latest:         s.Latest.StringFixed(2),
		DayAgo:         s.DayAgo.StringFixed(2),
		WeekAgo:        s.WeekAgo.StringFixed(2),
		MonthAgo:       s.MonthAgo.StringFixed(2),
		DayChangePct:   s.DayChangePct.StringFixed(4),
		WeekChangePct:  s.WeekChangePct.StringFixed(4),
		MonthChangePct: s.MonthChangePct.StringFixed(4),
		Direction:      stats.Direction(s.DayChangePct),
	}
}

// Problem is an RFC 7807 error body.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Render implements render.Renderer.
func (p *Problem) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, p.Status)
	return nil
}

func problemFor(err error) *Problem {
	var (
		acq   *fetcher.AcquisitionError
		shape *fetcher.DataShapeError
	)
	switch {
	case errors.As(err, &acq):
		return &Problem{Type: "/errors/source-unavailable", Title: "Rate source unavailable", Status: http.StatusBadGateway, Detail: err.Error()}
	case errors.As(err, &shape):
		return &Problem{Type: "/errors/source-data", Title: "Rate source returned malformed data", Status: http.StatusBadGateway, Detail: err.Error()}
	case errors.Is(err, stats.ErrEmptySeries), errors.Is(err, charting.ErrNoData):
		return &Problem{Type: "/errors/empty-series", Title: "No rates available", Status: http.StatusUnprocessableEntity, Detail: err.Error()}
	case errors.Is(err, stats.ErrLookbackOutOfRange):
		return &Problem{Type: "/errors/lookback", Title: "Not enough history", Status: http.StatusUnprocessableEntity, Detail: err.Error()}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Problem{Type: "/errors/timeout", Title: "Request timed out", Status: http.StatusGatewayTimeout, Detail: err.Error()}
	default:
		return &Problem{Type: "/errors/internal", Title: "Report generation failed", Status: http.StatusInternalServerError, Detail: err.Error()}
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	problem := problemFor(err)
	hlog.FromRequest(r).Error().Err(err).Int("status", problem.Status).Msg("request failed")
	_ = render.Render(w, r, problem)
}

func (s *Server) parseQuery(r *http.Request) (reportQuery, error) {
	q := reportQuery{
		Format: r.URL.Query().Get("format"),
		Chart:  r.URL.Query().Get("chart"),
	}
	if q.Chart == "" {
		q.Chart = r.URL.Query().Get("mode")
	}
	if err := s.validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return q, fmt.Errorf("invalid %s %q: must be one of %s", lowerField(fe.Field()), fe.Value(), fe.Param())
		}
		return q, err
	}
	return q, nil
}

func lowerField(name string) string {
	switch name {
	case "Format":
		return "format"
	case "Chart":
		return "chart"
	default:
		return name
	}
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	_ = render.Render(w, r, &Problem{Type: "/errors/validation", Title: "Invalid request", Status: http.StatusBadRequest, Detail: err.Error()})
}

func (s *Server) mode(q reportQuery) charting.Mode {
	if q.Chart == "" {
		return s.opts.DefaultMode
	}
	return charting.Mode(q.Chart)
}

func (s *Server) format(q reportQuery) document.Format {
	if q.Format == "" {
		return s.opts.DefaultFormat
	}
	return document.Format(q.Format)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}

	data := pageData{
		Title:       s.opts.Title,
		Description: s.opts.Description,
		Mode:        s.mode(q),
		Format:      s.format(q),
		Modes:       []charting.Mode{charting.ModeLine, charting.ModeDirection, charting.ModeAnnual},
		Formats:     []document.Format{document.FormatPDF, document.FormatDOCX, document.FormatXLSX},
		Version:     version.String(),
	}

	status := http.StatusOK
	_, sum, err := s.reports.Summary(r.Context())
	if err != nil {
		problem := problemFor(err)
		hlog.FromRequest(r).Error().Err(err).Int("status", problem.Status).Msg("preview failed")
		status = problem.Status
		data.Error = problem.Title + ": " + err.Error()
	} else {
		data.Summary = &sum
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render page")
		http.Error(w, "page rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	preview, err := s.reports.Preview(r.Context(), s.mode(q))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(preview.Chart)))
	_, _ = w.Write(preview.Chart)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	_, sum, err := s.reports.Summary(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	_ = render.Render(w, r, newSummaryResponse(sum))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}

	artifact, _, err := s.reports.Generate(r.Context(), service.Request{
		Format:    s.format(q),
		ChartMode: s.mode(q),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	_, _ = w.Write(artifact.Data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":  "ok",
		"version": version.Get(),
	})
}

var pageFuncs = map[string]any{
	"thousands": func(d decimal.Decimal) string {
		return humanize.FormatFloat("#,###.##", d.InexactFloat64())
	},
	"fixed": func(d decimal.Decimal, places int32) string {
		return d.StringFixed(places)
	},
	"direction": func(d decimal.Decimal) string {
		return stats.Direction(d)
	},
}
