package mqtt

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/utils/jwt_utils"

	"github.com/sirupsen/logrus"
)

const authorizationHeader = "Authorization"

type MqttClientOptionsFunc func(*MQTT.ClientOptions) error

func WithJwtAsHttpHeader(tokenGenerator jwt_utils.JwtGenerator, subject string) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		headers := http.Header{}
		jwtToken, err := tokenGenerator(context.Background(), subject)

		if err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to retrieve the JWT Token for the MQTT broker connection")
			return err
		}

		headers.Add(authorizationHeader, "Bearer "+jwtToken)
		opts.SetHTTPHeaders(headers)

		return nil
	}
}

func WithJwtReconnectingHandler(tokenGenerator jwt_utils.JwtGenerator, subject string) MqttClientOptionsFunc {
	//'Reconnecting' handler is called prior to a reconnection attempt , before 'Reconnect' handlers
	return func(opts *MQTT.ClientOptions) error {
		tokenRefresher := func(c MQTT.Client, opts *MQTT.ClientOptions) {
			logger.Log.Info("Attempting JWT token refresh")
			jwtToken, err := tokenGenerator(context.Background(), subject)
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to refresh the JWT Token for the MQTT broker connection")
			} else {
				opts.HTTPHeaders.Set(authorizationHeader, "Bearer "+jwtToken)
			}
		}
		opts.SetReconnectingHandler(tokenRefresher)
		return nil
	}
}

func WithTlsConfig(tlsConfig *tls.Config) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetTLSConfig(tlsConfig)
		return nil
	}
}

func WithClientID(clientID string) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetClientID(clientID)
		return nil
	}
}

func WithCleanSession(cleanSession bool) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetCleanSession(cleanSession)
		return nil
	}
}

func WithConnectTimeout(timeout time.Duration) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetConnectTimeout(timeout)
		return nil
	}
}

// WithAutoReconnect lets paho restore the broker connection on its own
func WithAutoReconnect() MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		return nil
	}
}

func WithConnectionLostHandler() MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetConnectionLostHandler(func(c MQTT.Client, err error) {
			lostErr := ClassifyConnectionLostError(err)
			metrics.connectionLostCounter.With(prometheus.Labels{"category": lostErr.Category}).Inc()
			logger.Log.WithFields(logrus.Fields{"error": lostErr, "code": lostErr.Code}).Warn("Lost the connection to the MQTT broker")
		})
		return nil
	}
}

func NewBrokerOptions(brokerUrl string, opts ...MqttClientOptionsFunc) (*MQTT.ClientOptions, error) {
	connOpts := MQTT.NewClientOptions()

	connOpts.AddBroker(brokerUrl)

	for _, opt := range opts {
		err := opt(connOpts)
		if err != nil {
			return nil, err
		}
	}

	return connOpts, nil
}
