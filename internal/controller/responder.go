package controller

import (
	"context"
	"strings"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type ResponseGenerator interface {
	BotEnabled(ctx context.Context, tenantID domain.TenantID) (bool, error)
	GenerateResponse(ctx context.Context, tenantID domain.TenantID, message string) (string, error)
}

// AutoResponder answers an inbound message when the tenant's bot is on.
// The reply goes out on the same connection and is recorded as responded.
type AutoResponder struct {
	generator  ResponseGenerator
	dispatcher *OutboundDispatcher
	recorder   MessageRecorder
	timeout    time.Duration
}

func NewAutoResponder(generator ResponseGenerator, dispatcher *OutboundDispatcher, recorder MessageRecorder, timeout time.Duration) *AutoResponder {
	return &AutoResponder{
		generator:  generator,
		dispatcher: dispatcher,
		recorder:   recorder,
		timeout:    timeout,
	}
}

func (r *AutoResponder) Respond(ctx context.Context, tenantID domain.TenantID, msg domain.InboundMessage) {
	logger := logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID, "message_id": msg.ID})

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	enabled, err := r.generator.BotEnabled(ctx, tenantID)
	if err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Warn("Unable to read the bot configuration")
		countAutoReply("error")
		return
	}

	if !enabled {
		countAutoReply("disabled")
		return
	}

	reply, err := r.generator.GenerateResponse(ctx, tenantID, msg.Text)
	if err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Warn("Unable to generate a reply")
		countAutoReply("error")
		return
	}

	if strings.TrimSpace(reply) == "" {
		countAutoReply("empty")
		return
	}

	if _, err := r.dispatcher.send(ctx, tenantID, msg.SenderID, reply); err != nil {
		countAutoReply("send_failed")
		return
	}

	countAutoReply("sent")

	record := newInboundRecord(msg)
	record.Response = reply
	record.Status = StatusResponded

	recordMessage(ctx, r.recorder, tenantID, record)
}

func countAutoReply(outcome string) {
	metrics.autoReplyCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}
