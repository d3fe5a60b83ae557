package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trm-report/internal/metrics"
)

type row map[string]any

// pagedSource serves rows in pages sized by the $limit parameter.
func pagedSource(t *testing.T, rows []row) (*httptest.Server, *[]pageRequest) {
	t.Helper()
	var mu sync.Mutex
	seen := make([]pageRequest, 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("$limit"))
		offset, _ := strconv.Atoi(q.Get("$offset"))

		mu.Lock()
		seen = append(seen, pageRequest{order: q.Get("$order"), limit: limit, offset: offset, where: q.Get("$where")})
		mu.Unlock()

		end := offset + limit
		if offset > len(rows) {
			offset = len(rows)
		}
		if end > len(rows) {
			end = len(rows)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows[offset:end])
	}))
	return srv, &seen
}

type pageRequest struct {
	order  string
	limit  int
	offset int
	where  string
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestFetcher(baseURL string, pageSize int) *Socrata {
	return NewSocrata(SocrataOptions{
		BaseURL:   baseURL,
		PageSize:  pageSize,
		Timeout:   time.Second,
		UserAgent: "test",
	}, noopLogger(), nil)
}

func TestFetchPaginatesUntilEmptyPage(t *testing.T) {
	srv, seen := pagedSource(t, []row{
		{"valor": "4100", "vigenciadesde": "2024-01-03T00:00:00.000", "vigenciahasta": "2024-01-03T00:00:00.000"},
		{"valor": "4050", "vigenciadesde": "2024-01-02T00:00:00.000", "vigenciahasta": "2024-01-02T00:00:00.000"},
		{"valor": "4000", "vigenciadesde": "2024-01-01T00:00:00.000"},
	})
	defer srv.Close()

	got, err := newTestFetcher(srv.URL, 2).FetchRates(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	if !got[0].Value.Equal(decimal.NewFromInt(4100)) {
		t.Fatalf("page order should be preserved, first value %s", got[0].Value)
	}

	if len(*seen) != 3 {
		t.Fatalf("expected 3 page requests (2+1+0 rows), got %d", len(*seen))
	}
	for i, req := range *seen {
		if req.offset != i*2 || req.limit != 2 {
			t.Fatalf("request %d: offset=%d limit=%d", i, req.offset, req.limit)
		}
		if req.order != defaultOrder {
			t.Fatalf("request %d: unexpected order %q", i, req.order)
		}
	}
}

func TestFetchExpandsValidityRanges(t *testing.T) {
	srv, _ := pagedSource(t, []row{
		{"valor": "3900", "vigenciadesde": "2024-02-01T00:00:00.000", "vigenciahasta": "2024-02-03T00:00:00.000"},
	})
	defer srv.Close()

	got, err := newTestFetcher(srv.URL, 10).FetchRates(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("range should expand to 3 daily rows, got %d", len(got))
	}
	for i, rec := range got {
		want := time.Date(2024, 2, 1+i, 0, 0, 0, 0, time.UTC)
		if !rec.Date().Equal(want) {
			t.Fatalf("row %d dated %s, want %s", i, rec.Date(), want)
		}
		if !rec.Value.Equal(decimal.NewFromInt(3900)) {
			t.Fatalf("row %d value %s", i, rec.Value)
		}
	}
}

func TestFetchCollapsesOverlappingWindows(t *testing.T) {
	// Rows returned: 3 + 1; the single-day row overlaps the range.
	srv, _ := pagedSource(t, []row{
		{"valor": "3900", "vigenciadesde": "2024-02-01T00:00:00.000", "vigenciahasta": "2024-02-03T00:00:00.000"},
		{"valor": "3950", "vigenciadesde": "2024-02-03T00:00:00.000"},
	})
	defer srv.Close()

	got, err := newTestFetcher(srv.URL, 10).FetchRates(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 distinct dates, got %d", len(got))
	}
	if !got[2].Value.Equal(decimal.NewFromInt(3950)) {
		t.Fatalf("last write should win, got %s", got[2].Value)
	}
}

func TestFetchEmptyFirstPage(t *testing.T) {
	srv, seen := pagedSource(t, nil)
	defer srv.Close()

	got, err := newTestFetcher(srv.URL, 5).FetchRates(context.Background())
	if err != nil {
		t.Fatalf("empty source is not an error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty series, got %d rows", len(got))
	}
	if len(*seen) != 1 {
		t.Fatalf("expected a single request, got %d", len(*seen))
	}
}

func TestFetchHTTPErrorDiscardsPartialResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("$offset") != "0" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"code": "busy", "message": "try later", "error": true})
			return
		}
		_ = json.NewEncoder(w).Encode([]row{{"valor": "4000", "vigenciadesde": "2024-01-01"}})
	}))
	defer srv.Close()

	rec := metrics.New()
	f := NewSocrata(SocrataOptions{BaseURL: srv.URL, PageSize: 1, Timeout: time.Second}, noopLogger(), rec)
	got, err := f.FetchRates(context.Background())
	if err == nil {
		t.Fatal("HTTP 503 should fail the fetch")
	}
	if got != nil {
		t.Fatalf("partial rows must not be returned, got %d", len(got))
	}

	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected AcquisitionError, got %T", err)
	}
	if acqErr.Status != http.StatusServiceUnavailable || acqErr.Offset != 1 {
		t.Fatalf("unexpected error details: %+v", acqErr)
	}
	if acqErr.Message != "try later" {
		t.Fatalf("message should come from the error body, got %q", acqErr.Message)
	}
}

func TestFetchRejectsMalformedRecords(t *testing.T) {
	cases := []struct {
		name  string
		row   row
		field string
	}{
		{"missing start", row{"valor": "4000"}, fieldFrom},
		{"bad start", row{"valor": "4000", "vigenciadesde": "yesterday"}, fieldFrom},
		{"bad end", row{"valor": "4000", "vigenciadesde": "2024-01-01", "vigenciahasta": "soon"}, fieldTo},
		{"end before start", row{"valor": "4000", "vigenciadesde": "2024-01-05", "vigenciahasta": "2024-01-01"}, fieldTo},
		{"unbounded span", row{"valor": "4000", "vigenciadesde": "2024-01-01", "vigenciahasta": "9999-12-31T00:00:00.000"}, fieldTo},
		{"span over a year", row{"valor": "4000", "vigenciadesde": "2023-01-01", "vigenciahasta": "2024-01-03"}, fieldTo},
		{"missing value", row{"vigenciadesde": "2024-01-01"}, fieldValue},
		{"non numeric value", row{"valor": "n/a", "vigenciadesde": "2024-01-01"}, fieldValue},
		{"zero value", row{"valor": "0", "vigenciadesde": "2024-01-01"}, fieldValue},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := pagedSource(t, []row{tc.row})
			defer srv.Close()

			_, err := newTestFetcher(srv.URL, 10).FetchRates(context.Background())
			var shapeErr *DataShapeError
			if !errors.As(err, &shapeErr) {
				t.Fatalf("expected DataShapeError, got %v", err)
			}
			if shapeErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, shapeErr.Field)
			}
		})
	}
}

func TestFetchAcceptsNumericValue(t *testing.T) {
	srv, _ := pagedSource(t, []row{{"valor": 4012.5, "vigenciadesde": "2024-01-01"}})
	defer srv.Close()

	got, err := newTestFetcher(srv.URL, 10).FetchRates(context.Background())
	if err != nil {
		t.Fatalf("numeric valor should parse: %v", err)
	}
	if !got[0].Value.Equal(decimal.RequireFromString("4012.5")) {
		t.Fatalf("unexpected value %s", got[0].Value)
	}
}

func TestFetchIsDeterministic(t *testing.T) {
	srv, _ := pagedSource(t, []row{
		{"valor": "4100.25", "vigenciadesde": "2024-01-03T00:00:00.000"},
		{"valor": "4050.10", "vigenciadesde": "2024-01-01T00:00:00.000", "vigenciahasta": "2024-01-02T00:00:00.000"},
	})
	defer srv.Close()

	f := newTestFetcher(srv.URL, 1)
	first, err := f.FetchRates(context.Background())
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := f.FetchRates(context.Background())
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("two fetches of an unchanged source should be identical")
	}
}

func TestFetchSinceAndPageCap(t *testing.T) {
	rows := make([]row, 0, 5)
	for i := 1; i <= 5; i++ {
		rows = append(rows, row{"valor": "4000", "vigenciadesde": time.Date(2024, 1, i, 0, 0, 0, 0, time.UTC).Format("2006-01-02")})
	}
	srv, seen := pagedSource(t, rows)
	defer srv.Close()

	since := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	f := NewSocrata(SocrataOptions{BaseURL: srv.URL, PageSize: 2, MaxPages: 2, Since: &since}, noopLogger(), nil)
	got, err := f.FetchRates(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("page cap should stop after 4 rows, got %d", len(got))
	}
	if len(*seen) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*seen))
	}
	if !strings.Contains((*seen)[0].where, "'2024-01-01T00:00:00.000'") {
		t.Fatalf("unexpected $where clause %q", (*seen)[0].where)
	}
}
