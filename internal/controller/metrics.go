package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	registeredSessionsGauge     prometheus.Gauge
	sessionStateCounter         *prometheus.CounterVec
	reconnectScheduledCounter   prometheus.Counter
	reconnectAbandonedCounter   prometheus.Counter
	sessionLogoutCounter        *prometheus.CounterVec
	inboundMessageCounter       *prometheus.CounterVec
	ingestQueueGauge            prometheus.Gauge
	outboundMessageCounter      *prometheus.CounterVec
	recorderGoRoutineGauge      prometheus.Gauge
	recorderSuccessCounter      prometheus.Counter
	recorderFailureCounter      prometheus.Counter
	backendStatusCodeCounter    *prometheus.CounterVec
	backendRequestDuration      prometheus.Histogram
	autoReplyCounter            *prometheus.CounterVec
	credentialSaveFailedCounter prometheus.Counter
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.registeredSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connector_registered_session_count",
		Help: "The number of tenant sessions in the registry",
	})

	metrics.sessionStateCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connector_session_state_transition_count",
		Help: "The number of session state transitions per target state",
	}, []string{"state"})

	metrics.reconnectScheduledCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_connector_reconnect_scheduled_count",
		Help: "The number of reconnect attempts scheduled after a transient closure",
	})

	metrics.reconnectAbandonedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_connector_reconnect_abandoned_count",
		Help: "The number of sessions left closed after too many transient closures",
	})

	metrics.sessionLogoutCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connector_session_logout_count",
		Help: "The number of sessions that were logged out per initiator",
	}, []string{"initiator"})

	metrics.inboundMessageCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connector_inbound_message_count",
		Help: "The number of inbound messages per ingestion outcome",
	}, []string{"outcome"})

	metrics.ingestQueueGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connector_ingest_queue_depth",
		Help: "The number of message batches waiting to be ingested",
	})

	metrics.outboundMessageCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connector_outbound_message_count",
		Help: "The number of outbound messages per status",
	}, []string{"status"})

	metrics.recorderGoRoutineGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connector_message_recorder_go_routine_count",
		Help: "The total number of active message recorder go routines",
	})

	metrics.recorderSuccessCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_connector_message_recorder_success_count",
		Help: "The number of messages that were recorded",
	})

	metrics.recorderFailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_connector_message_recorder_failure_count",
		Help: "The number of messages that failed to be recorded",
	})

	metrics.backendStatusCodeCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connector_backend_status_code_counter",
		Help: "The number of http status codes received from the backend",
	}, []string{"status_code"})

	metrics.backendRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "chat_connector_backend_request_duration",
		Help: "The amount of time the backend requests took",
	})

	metrics.autoReplyCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connector_auto_reply_count",
		Help: "The number of auto reply attempts per outcome",
	}, []string{"outcome"})

	metrics.credentialSaveFailedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_connector_credential_save_failure_count",
		Help: "The number of credential updates that could not be persisted",
	})

	return metrics
}

var (
	metrics = NewMetrics()
)
