// Package metrics exposes Prometheus metrics for the sign-in server on a
// listener separate from the public form.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruteri/event-signin/interfaces"
)

type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	submissions    *prometheus.CounterVec
	appendDuration prometheus.Histogram
}

// New creates a metrics server listening on addr. Metric names are prefixed
// with namespace. The server is not started until ListenAndServe is called.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()

	m := &MetricsServer{
		registry: registry,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Sign-in form submissions by result.",
		}, []string{"result"}),
		appendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "append_duration_seconds",
			Help:      "Time taken to append an attendance record to storage.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{
		m.submissions,
		m.appendDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	m.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsServer) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// ObserveSubmission counts one processed submission. result is one of
// "ok", "missing_field", "bad_secret" or "error".
func (m *MetricsServer) ObserveSubmission(result string) {
	m.submissions.WithLabelValues(result).Inc()
}

// SubmissionCounter returns the counter for one result label.
func (m *MetricsServer) SubmissionCounter(result string) prometheus.Counter {
	return m.submissions.WithLabelValues(result)
}

// InstrumentStore wraps store so that every Append is timed.
func (m *MetricsServer) InstrumentStore(store interfaces.AttendanceStore) interfaces.AttendanceStore {
	return &instrumentedStore{AttendanceStore: store, duration: m.appendDuration}
}

type instrumentedStore struct {
	interfaces.AttendanceStore
	duration prometheus.Histogram
}

func (s *instrumentedStore) Append(ctx context.Context, secret string, record interfaces.AttendanceRecord) error {
	start := time.Now()
	err := s.AttendanceStore.Append(ctx, secret, record)
	s.duration.Observe(time.Since(start).Seconds())
	return err
}
