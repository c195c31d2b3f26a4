package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/config"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/mqtt"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

func startSessionStatusMonitor() {

	logger.InitLogger()

	logger.Log.Info("Starting Chat-Connector session status monitor")

	cfg := config.GetConfig()
	logger.Log.Info("Chat-Connector configuration:\n", cfg)

	brokerOptions, err := buildMqttBrokerConfigFuncList(cfg, buildMqttClientId(cfg, "-monitor"))
	if err != nil {
		logger.LogFatalError("Unable to configure MQTT Broker connection", err)
	}

	mqttClient, err := mqtt.CreateBrokerConnection(cfg.MqttBrokerAddress, brokerOptions...)
	if err != nil {
		logger.LogFatalError("Unable to establish MQTT Broker connection", err)
	}

	topicBuilder := mqtt.NewTopicBuilder(cfg.MqttTopicPrefix)

	subscriber := mqtt.Subscriber{
		Topic:      topicBuilder.BuildWildcardStatusTopic(),
		EntryPoint: printSessionStatus(topicBuilder),
		Qos:        cfg.MqttStatusQoS,
	}

	if err := mqtt.SubscribeToTopics(mqttClient, subscriber); err != nil {
		logger.LogFatalError("Unable to subscribe to the session status topic", err)
	}

	signalChan := make(chan os.Signal, 1)

	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan

	logger.Log.Info("Received signal to shutdown: ", sig)

	mqttClient.Disconnect(cfg.MqttDisconnectQuiesceTime)

	logger.Log.Info("Chat-Connector session status monitor shutting down")
}

func printSessionStatus(topicBuilder *mqtt.TopicBuilder) MQTT.MessageHandler {
	return func(client MQTT.Client, message MQTT.Message) {
		tenantID, err := topicBuilder.VerifySessionStatusTopic(message.Topic())
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err, "topic": message.Topic()}).Debug("Ignoring message on unexpected topic")
			return
		}

		// A cleared retained message arrives with an empty payload
		if len(message.Payload()) == 0 {
			return
		}

		controlMessage, status, err := mqtt.ParseConnectionStatusMessage(message.Payload())
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err, "tenant_id": tenantID}).Warn("Unable to parse session status message")
			return
		}

		fmt.Printf("%s %s - %s %s %s\n", controlMessage.Sent, tenantID, status.TenantName, status.ConnectionState, status.Phone)
	}
}
