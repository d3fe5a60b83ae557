package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trm-report/internal/charting"
	"trm-report/internal/document"
	"trm-report/internal/fetcher"
	"trm-report/internal/metrics"
	"trm-report/internal/series"
	"trm-report/internal/stats"
	"trm-report/internal/storage"
)

// Options carry the report defaults resolved from configuration.
type Options struct {
	Title       string
	FilePrefix  string
	Lookback    stats.LookbackPolicy
	ChartWidth  int
	ChartHeight int
	MaxPoints   int
}

// Request selects the artifact produced by Generate.
type Request struct {
	Format    document.Format
	ChartMode charting.Mode
}

// Preview is what the interactive page shows before a download.
type Preview struct {
	Series  series.Series
	Summary stats.Summary
	Chart   []byte
}

// Service runs fetch, summarize, render and assemble for a single request.
// It keeps no data between calls.
type Service struct {
	fetcher fetcher.RateFetcher
	runs    storage.ReportRunStore
	metrics *metrics.Recorder
	logger  zerolog.Logger
	opts    Options
	now     func() time.Time
}

// New constructs the report service; runs and rec may be nil.
func New(opts Options, rates fetcher.RateFetcher, runs storage.ReportRunStore, rec *metrics.Recorder, logger zerolog.Logger) *Service {
	if opts.Title == "" {
		opts.Title = "TRM Report"
	}
	if opts.Lookback == "" {
		opts.Lookback = stats.LookbackDegrade
	}
	return &Service{
		fetcher: rates,
		runs:    runs,
		metrics: rec,
		logger:  logger.With().Str("component", "service").Logger(),
		opts:    opts,
		now:     time.Now,
	}
}

// Series fetches the normalized series in ascending date order.
func (s *Service) Series(ctx context.Context) (series.Series, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("rate fetcher not configured")
	}
	raw, err := s.fetcher.FetchRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	return raw.Sorted(), nil
}

// Summary fetches the series and summarizes it.
func (s *Service) Summary(ctx context.Context) (series.Series, stats.Summary, error) {
	rows, err := s.Series(ctx)
	if err != nil {
		s.metrics.ReportFailed("fetch")
		return nil, stats.Summary{}, err
	}
	sum, err := stats.Summarize(rows, stats.Options{Policy: s.opts.Lookback})
	if err != nil {
		s.metrics.ReportFailed("summarize")
		return nil, stats.Summary{}, fmt.Errorf("summarize: %w", err)
	}
	return rows, sum, nil
}

// Preview returns the series, its summary and a chart in the given mode.
func (s *Service) Preview(ctx context.Context, mode charting.Mode) (*Preview, error) {
	rows, sum, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	png, err := s.chart(rows, mode)
	if err != nil {
		return nil, err
	}
	return &Preview{Series: rows, Summary: sum, Chart: png}, nil
}

// Generate runs the full pipeline and returns the finished artifact.
func (s *Service) Generate(ctx context.Context, req Request) (*document.Artifact, *stats.Summary, error) {
	if req.Format == "" {
		req.Format = document.FormatPDF
	}
	if req.ChartMode == "" {
		req.ChartMode = charting.ModeLine
	}

	start := s.now()
	preview, err := s.Preview(ctx, req.ChartMode)
	if err != nil {
		return nil, nil, err
	}

	artifact, err := document.Build(req.Format, s.opts.FilePrefix, document.Report{
		Title:       s.opts.Title,
		GeneratedAt: start,
		Summary:     preview.Summary,
		Chart:       preview.Chart,
		Series:      preview.Series,
	})
	if err != nil {
		s.metrics.ReportFailed("assemble")
		return nil, nil, err
	}
	s.metrics.ReportGenerated(string(req.Format))

	s.logger.Info().
		Str("format", string(req.Format)).
		Str("chart_mode", string(req.ChartMode)).
		Str("filename", artifact.Filename).
		Int("rows", preview.Summary.Rows).
		Int("bytes", len(artifact.Data)).
		Dur("elapsed", s.now().Sub(start)).
		Msg("report generated")

	s.record(ctx, start, req, artifact, preview.Summary)
	return artifact, &preview.Summary, nil
}

func (s *Service) chart(rows series.Series, mode charting.Mode) ([]byte, error) {
	png, err := charting.Render(rows, charting.Options{
		Mode:      mode,
		Width:     s.opts.ChartWidth,
		Height:    s.opts.ChartHeight,
		MaxPoints: s.opts.MaxPoints,
	})
	if err != nil {
		s.metrics.ReportFailed("chart")
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return png, nil
}

func (s *Service) record(ctx context.Context, at time.Time, req Request, artifact *document.Artifact, sum stats.Summary) {
	if s.runs == nil {
		return
	}
	run := storage.ReportRun{
		GeneratedAt:    at.UTC(),
		Format:         string(req.Format),
		ChartMode:      string(req.ChartMode),
		Filename:       artifact.Filename,
		SizeBytes:      len(artifact.Data),
		Rows:           sum.Rows,
		PeriodFrom:     sum.From,
		PeriodTo:       sum.To,
		Latest:         sum.Latest,
		DayChangePct:   sum.DayChangePct,
		WeekChangePct:  sum.WeekChangePct,
		MonthChangePct: sum.MonthChangePct,
	}
	if err := s.runs.InsertReportRun(ctx, run); err != nil && !errors.Is(err, storage.ErrNotConfigured) {
		s.logger.Error().Err(err).Str("filename", artifact.Filename).Msg("failed to record report run")
	}
}
