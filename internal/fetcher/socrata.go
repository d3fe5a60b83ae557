package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trm-report/internal/metrics"
	"trm-report/internal/series"
)

const (
	defaultBaseURL  = "https://www.datos.gov.co/resource/ceyp-9c7c.json"
	defaultOrder    = "vigenciadesde DESC"
	defaultPageSize = 1000

	fieldFrom  = "vigenciadesde"
	fieldTo    = "vigenciahasta"
	fieldValue = "valor"

	// maxValidityDays bounds one record's validity range; real rows span a
	// long weekend at most.
	maxValidityDays = 366

	socrataTimestamp = "2006-01-02T15:04:05.000"
)

var dateLayouts = []string{
	socrataTimestamp,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// SocrataOptions parameterise the open-data fetcher.
type SocrataOptions struct {
	BaseURL   string
	PageSize  int
	Order     string
	Since     *time.Time
	MaxPages  int
	Timeout   time.Duration
	UserAgent string
}

// Socrata pages through a SODA resource holding the TRM history.
type Socrata struct {
	opts    SocrataOptions
	logger  zerolog.Logger
	client  *http.Client
	metrics *metrics.Recorder
}

// NewSocrata constructs a paginated fetcher. rec may be nil.
func NewSocrata(opts SocrataOptions, logger zerolog.Logger, rec *metrics.Recorder) *Socrata {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	opts.BaseURL = strings.TrimSpace(opts.BaseURL)
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if strings.TrimSpace(opts.Order) == "" {
		opts.Order = defaultOrder
	}

	return &Socrata{
		opts:    opts,
		logger:  logger.With().Str("component", "rate_fetcher").Logger(),
		client:  &http.Client{Timeout: opts.Timeout},
		metrics: rec,
	}
}

// FetchRates requests pages of PageSize rows at increasing offsets until the
// source returns an empty page, then expands validity ranges into daily rows.
// Any failed page aborts the whole acquisition.
func (s *Socrata) FetchRates(ctx context.Context) (series.Series, error) {
	raw := make(series.Series, 0, s.opts.PageSize)

	for page := 0; ; page++ {
		if s.opts.MaxPages > 0 && page >= s.opts.MaxPages {
			s.logger.Warn().Int("max_pages", s.opts.MaxPages).Msg("page cap reached; history truncated")
			break
		}

		offset := page * s.opts.PageSize
		rows, err := s.fetchPage(ctx, offset)
		if err != nil {
			s.metrics.FetchFailed(failureReason(err))
			return nil, err
		}
		s.metrics.PageFetched()
		s.logger.Debug().Int("offset", offset).Int("rows", len(rows)).Msg("page fetched")

		if len(rows) == 0 {
			break
		}

		for i, row := range rows {
			rec, err := row.record(offset + i)
			if err != nil {
				s.metrics.FetchFailed("shape")
				return nil, err
			}
			raw = append(raw, rec)
		}
	}

	normalized := series.Normalize(raw)
	s.metrics.RowsFetched(len(normalized))
	s.logger.Info().Int("source_rows", len(raw)).Int("daily_rows", len(normalized)).Msg("rates fetched")
	return normalized, nil
}

func (s *Socrata) fetchPage(ctx context.Context, offset int) ([]rateRow, error) {
	params := url.Values{}
	params.Set("$order", s.opts.Order)
	params.Set("$limit", strconv.Itoa(s.opts.PageSize))
	params.Set("$offset", strconv.Itoa(offset))
	if s.opts.Since != nil {
		params.Set("$where", fmt.Sprintf("%s >= '%s'", fieldFrom, series.Day(*s.opts.Since).Format(socrataTimestamp)))
	}

	endpoint := s.opts.BaseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "trmreport/1.0")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page at offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read page at offset %d: %w", offset, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseHTTPError(resp.StatusCode, offset, payload)
	}

	var rows []rateRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("decode page at offset %d: %w", offset, err)
	}
	return rows, nil
}

type rateRow struct {
	Value json.RawMessage `json:"valor"`
	From  string          `json:"vigenciadesde"`
	To    string          `json:"vigenciahasta"`
}

func (r rateRow) record(index int) (series.Record, error) {
	from, err := parseDate(r.From)
	if err != nil {
		return series.Record{}, &DataShapeError{Index: index, Field: fieldFrom, Value: r.From, Err: err}
	}

	var to *time.Time
	if strings.TrimSpace(r.To) != "" {
		end, err := parseDate(r.To)
		if err != nil {
			return series.Record{}, &DataShapeError{Index: index, Field: fieldTo, Value: r.To, Err: err}
		}
		if end.Before(from) {
			return series.Record{}, &DataShapeError{Index: index, Field: fieldTo, Value: r.To, Err: errors.New("ends before it starts")}
		}
		if end.Sub(from) > maxValidityDays*24*time.Hour {
			return series.Record{}, &DataShapeError{Index: index, Field: fieldTo, Value: r.To, Err: fmt.Errorf("spans more than %d days", maxValidityDays)}
		}
		to = &end
	}

	value, err := parseValue(r.Value)
	if err != nil {
		return series.Record{}, &DataShapeError{Index: index, Field: fieldValue, Value: string(r.Value), Err: err}
	}

	return series.Record{EffectiveFrom: from, EffectiveTo: to, Value: value}, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return series.Day(t), nil
		}
	}
	return time.Time{}, errors.New("unrecognised date format")
}

// parseValue accepts the value as a JSON string (the documented shape) or a
// bare JSON number.
func parseValue(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Decimal{}, errors.New("missing")
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Decimal{}, err
		}
	}

	value, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a number: %w", err)
	}
	if !value.IsPositive() {
		return decimal.Decimal{}, errors.New("must be positive")
	}
	return value, nil
}

func failureReason(err error) string {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return "status"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "transport"
}

var _ RateFetcher = (*Socrata)(nil)
