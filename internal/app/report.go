package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trm-report/internal/notify"
	"trm-report/internal/service"
)

// Report generates one artifact and writes it into the output directory.
// It returns the path written.
func (a *App) Report(ctx context.Context, opts ReportOptions) (string, error) {
	format, err := a.Config.ResolveFormat(opts.Format)
	if err != nil {
		return "", err
	}
	mode, err := a.Config.ResolveChartMode(opts.ChartMode)
	if err != nil {
		return "", err
	}

	var notifier notify.Notifier
	if opts.Notify {
		notifier = a.newNotifier()
		if notifier == nil {
			return "", errors.New("--notify requires notify.telegram.enabled")
		}
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("report log unavailable; continuing without it")
		store = nil
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc, err := a.newService(store)
	if err != nil {
		return "", err
	}

	artifact, sum, err := svc.Generate(ctx, service.Request{Format: format, ChartMode: mode})
	if err != nil {
		return "", err
	}

	dir := opts.OutDir
	if dir == "" {
		dir = a.Config.Report.OutputDir
	}
	path := filepath.Join(dir, artifact.Filename)
	if err := ensureDir(path); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	a.Logger.Info().Str("path", path).Int("bytes", len(artifact.Data)).Msg("report written")

	if notifier != nil {
		note := notify.Notification{
			Title:       a.Config.Report.Title,
			GeneratedAt: time.Now(),
			Filename:    artifact.Filename,
			Summary:     *sum,
		}
		if err := notifier.Notify(ctx, note); err != nil {
			a.Logger.Error().Err(err).Msg("failed to send report headline")
		}
	}

	fmt.Fprintln(a.Out, path)
	return path, nil
}
