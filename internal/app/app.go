package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"trm-report/internal/config"
	"trm-report/internal/fetcher"
	"trm-report/internal/metrics"
	"trm-report/internal/notify"
	"trm-report/internal/server"
	"trm-report/internal/service"
	"trm-report/internal/stats"
	"trm-report/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Recorder
	Out     io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:  cfg,
		Logger:  logger.With().Str("component", "app").Logger(),
		Metrics: metrics.New(),
		Out:     os.Stdout,
	}
}

func (a *App) newFetcher() (fetcher.RateFetcher, error) {
	since, err := a.Config.SinceDate()
	if err != nil {
		return nil, err
	}
	src := a.Config.Source
	return fetcher.NewSocrata(fetcher.SocrataOptions{
		BaseURL:   src.BaseURL,
		PageSize:  src.PageSize,
		Order:     src.Order,
		Since:     since,
		MaxPages:  src.MaxPages,
		Timeout:   src.RequestTimeout,
		UserAgent: src.UserAgent,
	}, a.Logger, a.Metrics), nil
}

func (a *App) newNotifier() notify.Notifier {
	if a.Config.Notify.Telegram.Enabled {
		cfg := a.Config.Notify.Telegram
		return notify.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// newService wires the report pipeline; store may be nil.
func (a *App) newService(store *storage.Store) (*service.Service, error) {
	rates, err := a.newFetcher()
	if err != nil {
		return nil, err
	}
	policy, err := stats.ParseLookbackPolicy(a.Config.Report.LookbackPolicy)
	if err != nil {
		return nil, err
	}

	var runs storage.ReportRunStore
	if store != nil {
		runs = store
	}

	return service.New(service.Options{
		Title:       a.Config.Report.Title,
		FilePrefix:  a.Config.Report.FilePrefix,
		Lookback:    policy,
		ChartWidth:  a.Config.Chart.Width,
		ChartHeight: a.Config.Chart.Height,
		MaxPoints:   a.Config.Chart.MaxPoints,
	}, rates, runs, a.Metrics, a.Logger), nil
}

// Serve runs the interactive HTTP surface until SIGINT or SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; report log disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc, err := a.newService(store)
	if err != nil {
		return err
	}

	format, err := a.Config.ResolveFormat("")
	if err != nil {
		return err
	}
	mode, err := a.Config.ResolveChartMode("")
	if err != nil {
		return err
	}

	surface, err := server.New(server.Options{
		Title:         a.Config.Report.Title,
		DefaultFormat: format,
		DefaultMode:   mode,
		Metrics:       a.Config.Server.Metrics,
	}, svc, a.Metrics, a.Logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      surface.Routes(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	err = server.Run(ctx, srv, a.Config.Server.ShutdownTimeout, a.Logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("http server terminated with error")
		return err
	}

	a.Logger.Info().Msg("http server stopped")
	return nil
}

// ReportOptions hold the per-invocation overrides of the report command.
type ReportOptions struct {
	Format    string
	ChartMode string
	OutDir    string
	Notify    bool
}

// FetchOptions configure the fetch command.
type FetchOptions struct {
	CSVPath   string
	PNGPath   string
	ChartMode string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
