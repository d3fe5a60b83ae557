package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"trm-report/internal/charting"
	"trm-report/internal/series"
)

// Fetch downloads the normalized series and dumps it as CSV (stdout when no
// path is given) and optionally as a PNG chart.
func (a *App) Fetch(ctx context.Context, opts FetchOptions) error {
	svc, err := a.newService(nil)
	if err != nil {
		return err
	}

	rows, err := svc.Series(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info().Int("rows", len(rows)).Msg("series fetched")

	if opts.CSVPath == "" {
		if err := writeSeriesCSV(a.Out, rows); err != nil {
			return err
		}
	} else if err := writeSeriesCSVFile(opts.CSVPath, rows); err != nil {
		return err
	}

	if opts.PNGPath != "" {
		mode, err := a.Config.ResolveChartMode(opts.ChartMode)
		if err != nil {
			return err
		}
		if err := a.writeSeriesPNG(opts.PNGPath, rows, mode); err != nil {
			return err
		}
	}

	return nil
}

func writeSeriesCSVFile(path string, rows series.Series) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return writeSeriesCSV(file, rows)
}

func writeSeriesCSV(w io.Writer, rows series.Series) error {
	writer := csv.NewWriter(w)

	header := []string{"date", "trm"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			r.Date().Format("2006-01-02"),
			r.Value.StringFixed(2),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func (a *App) writeSeriesPNG(path string, rows series.Series, mode charting.Mode) error {
	png, err := charting.Render(rows, charting.Options{
		Mode:      mode,
		Width:     a.Config.Chart.Width,
		Height:    a.Config.Chart.Height,
		MaxPoints: a.Config.Chart.MaxPoints,
	})
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o644)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
