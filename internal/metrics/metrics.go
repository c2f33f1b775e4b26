// Package metrics exposes import and search counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cultuurnet/offerbench/pkg/offer"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

const namespace = "offerbench"

// Metrics holds every offerbench collector. It satisfies importer.Recorder
// and benchmark.Observer.
type Metrics struct {
	documentsIndexed *prometheus.CounterVec
	documentsFailed  *prometheus.CounterVec
	searchDuration   *prometheus.HistogramVec
	searchesFailed   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documentsIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_indexed_total",
			Help:      "Total documents written to the search engine",
		}, []string{"layout", "type"}),

		documentsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_failed_total",
			Help:      "Total documents skipped during import",
		}, []string{"layout", "type", "stage"}),

		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Benchmark search latency",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"layout"}),

		searchesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total benchmark searches that returned an error",
		}, []string{"layout"}),
	}

	reg.MustRegister(
		m.documentsIndexed, m.documentsFailed,
		m.searchDuration, m.searchesFailed,
	)

	return m
}

// DocumentIndexed counts a successful write.
func (m *Metrics) DocumentIndexed(layout strategy.Layout, t offer.Type) {
	m.documentsIndexed.WithLabelValues(layout.String(), t.String()).Inc()
}

// DocumentFailed counts a skipped document. Stage is fetch, decode or write.
func (m *Metrics) DocumentFailed(layout strategy.Layout, t offer.Type, stage string) {
	m.documentsFailed.WithLabelValues(layout.String(), t.String(), stage).Inc()
}

// ObserveSearch records one benchmark search.
func (m *Metrics) ObserveSearch(layout strategy.Layout, elapsed time.Duration, err error) {
	m.searchDuration.WithLabelValues(layout.String()).Observe(elapsed.Seconds())
	if err != nil {
		m.searchesFailed.WithLabelValues(layout.String()).Inc()
	}
}

// Serve starts an HTTP server exposing g on /metrics. It is shut down when
// ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger hclog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}()

	return srv
}
