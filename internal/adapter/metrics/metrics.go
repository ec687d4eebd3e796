package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes ragqa counters and request latencies on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	indexed   prometheus.Counter
	failures  prometheus.Counter
	chunks    prometheus.Counter
	questions *prometheus.CounterVec
	requests  *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		indexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragqa_documents_indexed_total",
			Help: "Documents indexed into a session",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragqa_document_failures_total",
			Help: "Documents rejected as unreadable",
		}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragqa_chunks_indexed_total",
			Help: "Chunks written to session indexes",
		}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ragqa_questions_total",
			Help: "Questions handled, by outcome",
		}, []string{"outcome"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ragqa_http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}

	r.registry.MustRegister(
		r.indexed,
		r.failures,
		r.chunks,
		r.questions,
		r.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) DocumentIndexed(chunks int) {
	r.indexed.Inc()
	r.chunks.Add(float64(chunks))
}

func (r *Recorder) DocumentFailed() {
	r.failures.Inc()
}

func (r *Recorder) QuestionAnswered(outcome string) {
	r.questions.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one HTTP request.
func (r *Recorder) ObserveRequest(route string, code int, d time.Duration) {
	r.requests.WithLabelValues(route, strconv.Itoa(code)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware times next under the route label.
func (r *Recorder) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, req)
		r.ObserveRequest(route, sw.code, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
