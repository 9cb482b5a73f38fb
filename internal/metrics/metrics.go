package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sprinklerprep"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	})

	bankQuestions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bank_questions",
		Help:      "Questions in the currently served bank",
	})

	bankDiagnostics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bank_diagnostics_total",
		Help:      "Load-time diagnostics by kind",
	}, []string{"kind"})

	bankReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bank_reloads_total",
		Help:      "Question bank reload attempts by outcome",
	}, []string{"outcome"})

	examsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exams_started_total",
		Help:      "Exam sessions started, split by whether a persisted session was restored",
	}, []string{"restored"})

	examsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exams_submitted_total",
		Help:      "Exam submissions, split by manual or automatic",
	}, []string{"trigger"})

	examScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "exam_score_ratio",
		Help:      "Fraction of questions answered correctly per submitted exam",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	proctorStrikes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proctor_strikes_total",
		Help:      "Focus losses recorded during in-progress exams",
	})
)

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps websocket upgrades working behind the middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics. Paths are labelled with the matched chi
// route pattern so per-owner URLs do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func SetBankSize(questions int) {
	bankQuestions.Set(float64(questions))
}

func ObserveDiagnostic(kind string) {
	bankDiagnostics.WithLabelValues(kind).Inc()
}

func ObserveBankReload(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	bankReloads.WithLabelValues(outcome).Inc()
}

func ObserveExamStarted(restored bool) {
	examsStarted.WithLabelValues(strconv.FormatBool(restored)).Inc()
}

func ObserveExamSubmitted(automatic bool, score, total int) {
	trigger := "manual"
	if automatic {
		trigger = "automatic"
	}
	examsSubmitted.WithLabelValues(trigger).Inc()
	if total > 0 {
		examScore.Observe(float64(score) / float64(total))
	}
}

func ObserveProctorStrike() {
	proctorStrikes.Inc()
}
