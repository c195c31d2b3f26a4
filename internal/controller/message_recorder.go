package controller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/config"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/queue"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	IntentReceived   = "RECIBIDO"
	StatusPending    = "pending"
	StatusResponded  = "responded"
	PlatformWhatsApp = "whatsapp"

	// OutboundMarker is recorded as the message of an operator initiated
	// send so the backend can tell it apart from a customer message
	OutboundMarker = "[CRM]"
)

type MessageRecord struct {
	CustomerPhone string `json:"customerPhone"`
	CustomerName  string `json:"customerName,omitempty"`
	OriginalJID   string `json:"originalJid,omitempty"`
	Message       string `json:"message"`
	Response      string `json:"response"`
	Intent        string `json:"intent"`
	Status        string `json:"status"`
	Platform      string `json:"platform"`
}

func newInboundRecord(msg domain.InboundMessage) MessageRecord {
	return MessageRecord{
		CustomerPhone: msg.SenderID.String(),
		CustomerName:  msg.ContactName,
		OriginalJID:   msg.OriginalSender.String(),
		Message:       msg.Text,
		Intent:        IntentReceived,
		Status:        StatusPending,
		Platform:      PlatformWhatsApp,
	}
}

func newOutboundRecord(to domain.JID, text string) MessageRecord {
	return MessageRecord{
		CustomerPhone: to.String(),
		Message:       OutboundMarker,
		Response:      text,
		Intent:        IntentReceived,
		Status:        StatusResponded,
		Platform:      PlatformWhatsApp,
	}
}

type MessageRecorder interface {
	RecordMessage(ctx context.Context, tenantID domain.TenantID, record MessageRecord) error
}

func NewMessageRecorder(impl string, cfg *config.Config) (MessageRecorder, error) {

	switch impl {
	case "http":
		return NewBackendClient(cfg.BackendBaseUrl, cfg.BackendTimeout), nil
	case "kafka":
		kafkaProducerCfg := &queue.ProducerConfig{
			Brokers:    cfg.KafkaBrokers,
			Topic:      cfg.KafkaMessagesTopic,
			BatchSize:  cfg.KafkaMessagesBatchSize,
			BatchBytes: cfg.KafkaMessagesBatchBytes,
			Balancer:   "hash",
			SaslConfig: &queue.SaslConfig{
				SaslMechanism: cfg.KafkaSASLMechanism,
				SaslUsername:  cfg.KafkaUsername,
				SaslPassword:  cfg.KafkaPassword,
				KafkaCA:       cfg.KafkaCA,
			},
		}

		kafkaProducer, err := queue.StartProducer(kafkaProducerCfg)
		if err != nil {
			return nil, err
		}

		return &KafkaMessageRecorder{
			KafkaWriter:  kafkaProducer,
			WriteTimeout: cfg.KafkaWriteTimeout,
		}, nil
	case "fake":
		return &FakeMessageRecorder{}, nil
	default:
		return nil, errors.New("Invalid MessageRecorder impl requested")
	}
}

type messageEnvelope struct {
	RequestID string        `json:"request_id"`
	TenantID  string        `json:"tenant_id"`
	Sent      time.Time     `json:"sent"`
	Record    MessageRecord `json:"record"`
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaMessageRecorder publishes records keyed by tenant so that one
// tenant's records stay on one partition
type KafkaMessageRecorder struct {
	KafkaWriter  kafkaWriter
	WriteTimeout time.Duration
}

func (kmr *KafkaMessageRecorder) RecordMessage(ctx context.Context, tenantID domain.TenantID, record MessageRecord) error {

	requestID := uuid.NewString()

	logger := logger.Log.WithFields(logrus.Fields{"request_id": requestID, "tenant_id": tenantID})

	envelope := messageEnvelope{
		RequestID: requestID,
		TenantID:  string(tenantID),
		Sent:      time.Now().UTC(),
		Record:    record,
	}

	jsonMessage, err := json.Marshal(envelope)
	if err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Error("JSON marshal of message record failed")
		return err
	}

	if kmr.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, kmr.WriteTimeout)
		defer cancel()
	}

	err = kmr.KafkaWriter.WriteMessages(ctx,
		kafka.Message{
			Key:   []byte(tenantID),
			Value: jsonMessage,
		})

	if err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Error("Error writing message record to kafka")
		return err
	}

	logger.Debug("Message record written to kafka")

	return nil
}

type FakeMessageRecorder struct {
	mu      sync.Mutex
	records []MessageRecord
}

func (fmr *FakeMessageRecorder) RecordMessage(ctx context.Context, tenantID domain.TenantID, record MessageRecord) error {
	logger := logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID})

	logger.Debug("FAKE: message recorder: ", record.CustomerPhone)

	fmr.mu.Lock()
	fmr.records = append(fmr.records, record)
	fmr.mu.Unlock()

	return nil
}

func (fmr *FakeMessageRecorder) Records() []MessageRecord {
	fmr.mu.Lock()
	defer fmr.mu.Unlock()
	return append([]MessageRecord(nil), fmr.records...)
}

// recordAsync records outside the caller's goroutine.  Failures are only
// logged.
func recordAsync(recorder MessageRecorder, tenantID domain.TenantID, record MessageRecord, timeout time.Duration) {
	go func() {
		metrics.recorderGoRoutineGauge.Inc()
		defer metrics.recorderGoRoutineGauge.Dec()

		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		recordMessage(ctx, recorder, tenantID, record)
	}()
}

func recordMessage(ctx context.Context, recorder MessageRecorder, tenantID domain.TenantID, record MessageRecord) error {
	err := recorder.RecordMessage(ctx, tenantID, record)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID, "error": err}).Warn("Unable to record message with the backend")

		if !errors.Is(err, context.Canceled) {
			metrics.recorderFailureCounter.Inc()
		}
		return err
	}

	metrics.recorderSuccessCounter.Inc()
	return nil
}
