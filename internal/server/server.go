package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"trm-report/internal/charting"
	"trm-report/internal/document"
	"trm-report/internal/metrics"
	"trm-report/internal/series"
	"trm-report/internal/service"
	"trm-report/internal/stats"
)

//go:embed templates/*.html
var templateFS embed.FS

// Reporter is the part of the report service the HTTP surface needs.
type Reporter interface {
	Summary(ctx context.Context) (series.Series, stats.Summary, error)
	Preview(ctx context.Context, mode charting.Mode) (*service.Preview, error)
	Generate(ctx context.Context, req service.Request) (*document.Artifact, *stats.Summary, error)
}

// Options configure the page and the default selections.
type Options struct {
	Title         string
	Description   string
	DefaultFormat document.Format
	DefaultMode   charting.Mode
	Metrics       bool
}

// Server serves the preview page, the chart, the summary API and downloads.
type Server struct {
	reports  Reporter
	metrics  *metrics.Recorder
	logger   zerolog.Logger
	opts     Options
	validate *validator.Validate
	page     *template.Template
}

// New builds the HTTP surface; rec may be nil.
func New(opts Options, reports Reporter, rec *metrics.Recorder, logger zerolog.Logger) (*Server, error) {
	if opts.Title == "" {
		opts.Title = "TRM Report"
	}
	if opts.Description == "" {
		opts.Description = "Daily representative market rate (COP per USD) from the open data portal."
	}
	if opts.DefaultFormat == "" {
		opts.DefaultFormat = document.FormatPDF
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = charting.ModeLine
	}

	page, err := template.New("index.html").Funcs(pageFuncs).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}

	return &Server{
		reports:  reports,
		metrics:  rec,
		logger:   logger.With().Str("component", "http").Logger(),
		opts:     opts,
		validate: validator.New(),
		page:     page,
	}, nil
}

// Routes assembles the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/chart.png", s.handleChart)
	r.Get("/report", s.handleReport)
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/summary", s.handleSummary)
	})

	if s.opts.Metrics && s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return r
}

func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			log := zerolog.Ctx(r.Context())
			log.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

// Run serves until ctx is done, then shuts down within shutdownTimeout.
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info().Msg("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
