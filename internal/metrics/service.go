package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "inbox"
	subsystem = "unsubscriber"
)

type Service struct {
	registry *prometheus.Registry

	scans        *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	messages     *prometheus.CounterVec
	fetchErrors  *prometheus.CounterVec
	parseErrors  *prometheus.CounterVec
	unsubscribes *prometheus.CounterVec
}

func New() *Service {
	m := &Service{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scans_total",
			Help:      "Completed mailbox scans by outcome",
		}, []string{"account", "outcome"}),
		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of a mailbox scan",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"account"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_scanned_total",
			Help:      "Messages turned into subscription records, by locator origin",
		}, []string{"account", "origin"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetch_errors_total",
			Help:      "Messages skipped because they could not be fetched",
		}, []string{"account"}),
		parseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "extraction_errors_total",
			Help:      "Messages skipped because they could not be parsed",
		}, []string{"account"}),
		unsubscribes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "unsubscribe_attempts_total",
			Help:      "Unsubscribe attempts by method and final state",
		}, []string{"method", "state"}),
	}

	m.MustRegisterMetrics(m.registry)

	return m
}

func (m *Service) MustRegisterMetrics(registry *prometheus.Registry) {
	registry.MustRegister(
		m.scans,
		m.scanDuration,
		m.messages,
		m.fetchErrors,
		m.parseErrors,
		m.unsubscribes,
	)
}

func (m *Service) ServePrometheus() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Service) ScanFinished(account, outcome string, took time.Duration) {
	m.scans.WithLabelValues(account, outcome).Inc()
	m.scanDuration.WithLabelValues(account).Observe(took.Seconds())
}

func (m *Service) MessageScanned(account, origin string) {
	if origin == "" {
		origin = "none"
	}
	m.messages.WithLabelValues(account, origin).Inc()
}

func (m *Service) FetchFailed(account string) {
	m.fetchErrors.WithLabelValues(account).Inc()
}

func (m *Service) ExtractionFailed(account string) {
	m.parseErrors.WithLabelValues(account).Inc()
}

func (m *Service) UnsubscribeAttempt(method, state string) {
	m.unsubscribes.WithLabelValues(method, state).Inc()
}
