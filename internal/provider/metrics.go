package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	gatewayFrameReceivedCounter *prometheus.CounterVec
	gatewayFrameSentCounter     *prometheus.CounterVec
	gatewayDialFailureCounter   *prometheus.CounterVec
	gatewayDisconnectCounter    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.gatewayFrameReceivedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connector_gateway_frame_received_count",
		Help: "The number of frames received from the messaging gateway per type",
	}, []string{"type"})

	metrics.gatewayFrameSentCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connector_gateway_frame_sent_count",
		Help: "The number of frames sent to the messaging gateway per type",
	}, []string{"type"})

	metrics.gatewayDialFailureCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connector_gateway_dial_failure_count",
		Help: "The number of failed attempts to open a gateway session",
	}, []string{"kind"})

	metrics.gatewayDisconnectCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connector_gateway_disconnect_count",
		Help: "The number of gateway sessions that closed per category",
	}, []string{"category"})

	return metrics
}

var (
	metrics = NewMetrics()
)
