// Package metrics registers the proxy's Prometheus instrumentation: one
// set of counters/gauges/histograms shared by every session the supervisor
// runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ErrorKind labels the error-kind-partitioned counters (error taxonomy).
type ErrorKind string

const (
	ErrorKindBitcoinCompact       ErrorKind = "bitcoin_compact"
	ErrorKindV1Protocol           ErrorKind = "v1_protocol"
	ErrorKindV2Serialization      ErrorKind = "v2_serialization"
	ErrorKindNoiseHandshake       ErrorKind = "noise_handshake"
	ErrorKindCertificateValidation ErrorKind = "certificate_validation"
	ErrorKindProxyProtocol        ErrorKind = "proxy_protocol"
	ErrorKindTranslation          ErrorKind = "translation"
	ErrorKindTransport            ErrorKind = "transport"
)

// Metrics holds every metric the proxy exposes.
type Metrics struct {
	SessionsAccepted prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsClosed   *prometheus.CounterVec

	HandshakeDuration prometheus.Histogram
	HandshakeFailures prometheus.Counter

	ErrorsByKind *prometheus.CounterVec

	SharesSubmitted prometheus.Counter
	SharesAccepted  prometheus.Counter
	SharesRejected  *prometheus.CounterVec
}

// New builds and registers the proxy's metrics against reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "accepted_total",
			Help:      "Total number of downstream connections accepted.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of sessions currently being pumped between downstream and upstream.",
		}),
		SessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "closed_total",
			Help:      "Total number of sessions that ended, partitioned by how it ended (ok, shutdown, eof, error).",
		}, []string{"reason"}),

		HandshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "noise",
			Name:      "handshake_duration_seconds",
			Help:      "Time spent in the downstream Noise responder handshake, successful or not.",
			Buckets:   prometheus.DefBuckets,
		}),
		HandshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "noise",
			Name:      "handshake_failures_total",
			Help:      "Total number of Noise handshakes that failed or timed out.",
		}),

		ErrorsByKind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "errors",
			Name:      "total",
			Help:      "Total number of errors observed, partitioned by error taxonomy kind.",
		}, []string{"kind"}),

		SharesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shares",
			Name:      "submitted_total",
			Help:      "Total number of SubmitSharesStandard messages translated upstream.",
		}),
		SharesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shares",
			Name:      "accepted_total",
			Help:      "Total number of shares the upstream pool accepted.",
		}),
		SharesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shares",
			Name:      "rejected_total",
			Help:      "Total number of shares the upstream pool rejected, partitioned by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.SessionsAccepted,
		m.SessionsActive,
		m.SessionsClosed,
		m.HandshakeDuration,
		m.HandshakeFailures,
		m.ErrorsByKind,
		m.SharesSubmitted,
		m.SharesAccepted,
		m.SharesRejected,
	)

	return m
}

// RecordError increments the error counter for kind.
func (m *Metrics) RecordError(kind ErrorKind) {
	m.ErrorsByKind.WithLabelValues(string(kind)).Inc()
}

// SessionStarted records acceptance of a new downstream connection.
func (m *Metrics) SessionStarted() {
	m.SessionsAccepted.Inc()
	m.SessionsActive.Inc()
}

// SessionEnded records the end of a session under the given reason label.
func (m *Metrics) SessionEnded(reason string) {
	m.SessionsActive.Dec()
	m.SessionsClosed.WithLabelValues(reason).Inc()
}
