package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints recent report runs from the audit log.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show report runs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	runs, err := store.ListRecentRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.Out, "no report runs found")
		return nil
	}

	total, err := store.CountRuns(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Generated (UTC)\tFormat\tChart\tRows\tPeriod\tLatest\tDay%\tFile")

	for _, run := range runs {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%d\t%s..%s\t%s\t%s\t%s\n",
			run.GeneratedAt.UTC().Format(time.RFC3339),
			run.Format,
			run.ChartMode,
			run.Rows,
			run.PeriodFrom.Format("2006-01-02"),
			run.PeriodTo.Format("2006-01-02"),
			formatDecimal(run.Latest, 2),
			formatDecimal(run.DayChangePct, 4),
			run.Filename,
		)
	}

	writer.Flush()
	fmt.Fprintf(a.Out, "%d of %d runs\n", len(runs), total)
	return nil
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
