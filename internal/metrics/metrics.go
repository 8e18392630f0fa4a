// Package metrics holds the Prometheus registry and the instruments
// recorded by the viewer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "embedview"

// Config controls registry setup.
type Config struct {
	// Namespace prefixes metric names; empty means DefaultNamespace.
	Namespace string
	// ServiceName is attached as the "service" label on every series.
	ServiceName string
	// EnableDefaultCollectors registers Go runtime, process and build info
	// collectors.
	EnableDefaultCollectors bool
}

// Metrics owns a private registry and the embedview instruments.
type Metrics struct {
	Registry *prometheus.Registry

	requests          *prometheus.CounterVec
	transformDuration prometheus.Histogram
	transformErrors   *prometheus.CounterVec
	extractedFiles    prometheus.Counter
	extractions       *prometheus.CounterVec
}

// New creates a registry and registers every instrument on it.
func New(cfg Config) *Metrics {
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	registry := prometheus.NewRegistry()
	var reg prometheus.Registerer = registry
	if cfg.ServiceName != "" {
		reg = prometheus.WrapRegistererWith(prometheus.Labels{"service": cfg.ServiceName}, registry)
	}

	if cfg.EnableDefaultCollectors {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	m := &Metrics{
		Registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by handler and status code.",
		}, []string{"handler", "code"}),
		transformDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "transform_duration_seconds",
			Help:      "Time spent converting a document into chart descriptors.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		transformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "transform_errors_total",
			Help:      "Failed transforms, by error kind.",
		}, []string{"kind"}),
		extractedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "archive_extracted_files_total",
			Help:      "Files written while extracting archives.",
		}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "archive_extractions_total",
			Help:      "Archive extractions, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.requests, m.transformDuration, m.transformErrors, m.extractedFiles, m.extractions)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveRequest counts one served request.
func (m *Metrics) ObserveRequest(handler string, code int) {
	m.requests.WithLabelValues(handler, strconv.Itoa(code)).Inc()
}

// ObserveTransform records a transform duration and, on failure, its kind.
func (m *Metrics) ObserveTransform(d time.Duration, errKind string) {
	m.transformDuration.Observe(d.Seconds())
	if errKind != "" {
		m.transformErrors.WithLabelValues(errKind).Inc()
	}
}

// ObserveExtraction records an extraction attempt. files is ignored when
// result is not "ok".
func (m *Metrics) ObserveExtraction(result string, files int) {
	m.extractions.WithLabelValues(result).Inc()
	if result == ResultOK {
		m.extractedFiles.Add(float64(files))
	}
}

// Extraction results.
const (
	ResultOK        = "ok"
	ResultTraversal = "path_traversal"
	ResultError     = "error"
)

// InstrumentHandler counts requests to next under the given handler label.
func (m *Metrics) InstrumentHandler(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.ObserveRequest(name, rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}
