package main

import (
	"crypto/tls"
	"fmt"
	"net/url"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/config"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/controller"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/mqtt"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/utils"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/utils/tls_utils"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

func buildMqttClientId(cfg *config.Config, suffix string) string {
	clientID := cfg.MqttClientId
	if clientID == "" {
		clientID = utils.GetHostname()
	}
	return clientID + suffix
}

func buildMqttTlsConfig(cfg *config.Config) (*tls.Config, error) {
	tlsConfigFuncs := []tls_utils.TlsConfigFunc{}

	if cfg.MqttBrokerCAFile != "" {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithCACerts(cfg.MqttBrokerCAFile))
	}

	if cfg.MqttBrokerSkipVerify {
		tlsConfigFuncs = append(tlsConfigFuncs, tls_utils.WithSkipVerify())
	}

	return tls_utils.NewTlsConfig(tlsConfigFuncs...)
}

func buildMqttBrokerConfigFuncList(cfg *config.Config, clientID string) ([]mqtt.MqttClientOptionsFunc, error) {

	u, err := url.Parse(cfg.MqttBrokerAddress)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to determine protocol for the MQTT connection")
		return nil, err
	}

	tlsConfig, err := buildMqttTlsConfig(cfg)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to configure TLS for the MQTT connection")
		return nil, err
	}

	brokerConfigFuncs := []mqtt.MqttClientOptionsFunc{}

	if tlsConfig != nil {
		brokerConfigFuncs = append(brokerConfigFuncs, mqtt.WithTlsConfig(tlsConfig))
	}

	brokerConfigFuncs = append(brokerConfigFuncs,
		mqtt.WithClientID(clientID),
		mqtt.WithCleanSession(true),
		mqtt.WithConnectTimeout(cfg.MqttConnectTimeout),
		mqtt.WithAutoReconnect(),
		mqtt.WithConnectionLostHandler(),
	)

	if u.Scheme == "wss" {
		jwtGenerator, err := buildGatewayJwtGenerator(cfg)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err}).Error("Unable to instantiate a JWT generator for the MQTT connection")
			return nil, err
		}

		if jwtGenerator != nil {
			brokerConfigFuncs = append(brokerConfigFuncs,
				mqtt.WithJwtAsHttpHeader(jwtGenerator, clientID),
				mqtt.WithJwtReconnectingHandler(jwtGenerator, clientID))
		}
	}

	return brokerConfigFuncs, nil
}

func buildStatusPublisher(cfg *config.Config) (controller.StatusPublisher, MQTT.Client, error) {

	logger.Log.Infof("Using \"%s\" session status publisher impl", cfg.StatusPublisherImpl)

	switch cfg.StatusPublisherImpl {
	case "none", "":
		return &controller.NoopStatusPublisher{}, nil, nil
	case "mqtt":
	default:
		return nil, nil, fmt.Errorf("invalid session status publisher impl: %s", cfg.StatusPublisherImpl)
	}

	brokerOptions, err := buildMqttBrokerConfigFuncList(cfg, buildMqttClientId(cfg, ""))
	if err != nil {
		return nil, nil, err
	}

	mqttClient, err := mqtt.CreateBrokerConnection(cfg.MqttBrokerAddress, brokerOptions...)
	if err != nil {
		return nil, nil, err
	}

	topicBuilder := mqtt.NewTopicBuilder(cfg.MqttTopicPrefix)

	publisher := mqtt.NewStatusPublisher(mqttClient, topicBuilder, cfg.MqttStatusQoS, cfg.MqttPublishWaitTimeout)

	return publisher, mqttClient, nil
}
