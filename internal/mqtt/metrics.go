package mqtt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	messagePublishedSuccessCounter prometheus.Counter
	messagePublishedFailureCounter prometheus.Counter
	connectionLostCounter          *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.messagePublishedSuccessCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_connector_mqtt_message_published_success_count",
		Help: "The number of status messages published to the MQTT broker",
	})

	metrics.messagePublishedFailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_connector_mqtt_message_published_failure_count",
		Help: "The number of status messages that could not be published to the MQTT broker",
	})

	metrics.connectionLostCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connector_mqtt_connection_lost_count",
		Help: "The number of times the connection to the MQTT broker was lost",
	}, []string{"category"})

	return metrics
}

var (
	metrics = NewMetrics()
)
