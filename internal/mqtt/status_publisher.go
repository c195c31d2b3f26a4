package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StatusPublisher publishes a retained connection-status message per tenant
// so subscribers always see the latest state.  Publish never waits on the
// broker.
type StatusPublisher struct {
	client       MQTT.Client
	topicBuilder *TopicBuilder
	qos          byte
	waitTimeout  time.Duration
}

func NewStatusPublisher(client MQTT.Client, topicBuilder *TopicBuilder, qos byte, waitTimeout time.Duration) *StatusPublisher {
	return &StatusPublisher{
		client:       client,
		topicBuilder: topicBuilder,
		qos:          qos,
		waitTimeout:  waitTimeout,
	}
}

func (sp *StatusPublisher) PublishSessionStatus(ctx context.Context, status domain.SessionStatus) error {
	messageID, message, err := buildConnectionStatusMessage(status)
	if err != nil {
		return err
	}

	logger := logger.Log.WithFields(logrus.Fields{"message_id": messageID, "tenant_id": status.TenantID, "state": status.State})

	payload, err := encodeMessage(message)
	if err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Error("Unable to encode connection status message")
		return err
	}

	topic := sp.topicBuilder.BuildSessionStatusTopic(status.TenantID)

	logger.Debug("Publishing connection status on topic: ", topic, " qos: ", sp.qos)

	token := sp.client.Publish(topic, sp.qos, true, payload)

	go sp.waitForToken(logger, token)

	return nil
}

func (sp *StatusPublisher) waitForToken(logger *logrus.Entry, token MQTT.Token) {
	if !token.WaitTimeout(sp.waitTimeout) {
		logger.Warn("Timed out waiting for the MQTT broker to accept a status message")
		metrics.messagePublishedFailureCounter.Inc()
		return
	}

	if token.Error() != nil {
		logger.WithFields(logrus.Fields{"error": token.Error()}).Error("Error sending a message to MQTT broker")
		metrics.messagePublishedFailureCounter.Inc()
		return
	}

	metrics.messagePublishedSuccessCounter.Inc()
}

func buildConnectionStatusMessage(status domain.SessionStatus) (*uuid.UUID, *ControlMessage, error) {

	messageID, err := uuid.NewRandom()
	if err != nil {
		return nil, nil, err
	}

	content := ConnectionStatusMessageContent{
		TenantName:      status.TenantName,
		ConnectionState: string(status.State),
		Phone:           status.Phone,
	}

	message := ControlMessage{
		MessageType: connectionStatusMessageType,
		MessageID:   messageID.String(),
		Version:     messageVersion,
		Sent:        time.Now().UTC().Format(time.RFC3339),
		Content:     content,
	}

	return &messageID, &message, nil
}

func encodeMessage(message interface{}) ([]byte, error) {
	messageBuffer := &bytes.Buffer{}
	encoder := json.NewEncoder(messageBuffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(message); err != nil {
		return nil, err
	}
	return messageBuffer.Bytes(), nil
}

// ParseConnectionStatusMessage decodes a message published by
// StatusPublisher
func ParseConnectionStatusMessage(payload []byte) (*ControlMessage, *ConnectionStatusMessageContent, error) {
	var content ConnectionStatusMessageContent
	message := ControlMessage{Content: &content}

	if err := json.Unmarshal(payload, &message); err != nil {
		return nil, nil, err
	}

	return &message, &content, nil
}
