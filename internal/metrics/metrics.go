package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trmreport"

// Recorder groups the collectors exported by the service. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	pagesFetched  prometheus.Counter
	fetchFailures *prometheus.CounterVec
	rowsFetched   prometheus.Gauge
	reports       *prometheus.CounterVec
	reportErrors  *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_pages_fetched_total",
			Help:      "Pages retrieved from the rate source.",
		}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_failures_total",
			Help:      "Failed rate acquisitions by reason.",
		}, []string{"reason"}),
		rowsFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_rows_last_fetch",
			Help:      "Normalized rows produced by the last successful fetch.",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Generated report artifacts by format.",
		}, []string{"format"}),
		reportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_failures_total",
			Help:      "Report generation failures by stage.",
		}, []string{"stage"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.pagesFetched,
		r.fetchFailures,
		r.rowsFetched,
		r.reports,
		r.reportErrors,
	)
	return r
}

// Handler exposes the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) PageFetched() {
	if r == nil {
		return
	}
	r.pagesFetched.Inc()
}

func (r *Recorder) FetchFailed(reason string) {
	if r == nil {
		return
	}
	r.fetchFailures.WithLabelValues(reason).Inc()
}

func (r *Recorder) RowsFetched(n int) {
	if r == nil {
		return
	}
	r.rowsFetched.Set(float64(n))
}

func (r *Recorder) ReportGenerated(format string) {
	if r == nil {
		return
	}
	r.reports.WithLabelValues(format).Inc()
}

func (r *Recorder) ReportFailed(stage string) {
	if r == nil {
		return
	}
	r.reportErrors.WithLabelValues(stage).Inc()
}
