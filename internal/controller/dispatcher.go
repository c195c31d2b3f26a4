package controller

import (
	"context"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/provider"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// OutboundDispatcher sends text through a tenant's open connection
type OutboundDispatcher struct {
	sessions      SessionLocator
	recorder      MessageRecorder
	mirrorTimeout time.Duration
}

func NewOutboundDispatcher(sessions SessionLocator, recorder MessageRecorder, mirrorTimeout time.Duration) *OutboundDispatcher {
	return &OutboundDispatcher{
		sessions:      sessions,
		recorder:      recorder,
		mirrorTimeout: mirrorTimeout,
	}
}

// Send delivers text to the destination and mirrors it to the backend.  The
// mirror runs in the background and its failure does not fail the send.
func (d *OutboundDispatcher) Send(ctx context.Context, tenantID domain.TenantID, destination string, text string) (string, error) {
	to, err := domain.NormalizeDestination(destination)
	if err != nil {
		metrics.outboundMessageCounter.With(prometheus.Labels{"status": "invalid_address"}).Inc()
		return "", err
	}

	messageID, err := d.send(ctx, tenantID, to, text)
	if err != nil {
		return "", err
	}

	recordAsync(d.recorder, tenantID, newOutboundRecord(to, text), d.mirrorTimeout)

	return messageID, nil
}

func (d *OutboundDispatcher) send(ctx context.Context, tenantID domain.TenantID, to domain.JID, text string) (string, error) {
	logger := logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID, "to": to})

	session := d.sessions.Get(tenantID)
	if session == nil {
		metrics.outboundMessageCounter.With(prometheus.Labels{"status": "not_connected"}).Inc()
		return "", ErrNotConnected
	}

	conn := session.openConnection()
	if conn == nil {
		logger.WithFields(logrus.Fields{"state": session.State()}).Debug("Refusing to send on a session that is not open")
		metrics.outboundMessageCounter.With(prometheus.Labels{"status": "not_connected"}).Inc()
		return "", ErrNotConnected
	}

	messageID, err := conn.SendText(ctx, to, text)
	if err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Warn("Unable to send message")
		metrics.outboundMessageCounter.With(prometheus.Labels{"status": "failed"}).Inc()
		return "", err
	}

	logger.WithFields(logrus.Fields{"message_id": messageID}).Debug("Sent message")
	metrics.outboundMessageCounter.With(prometheus.Labels{"status": "sent"}).Inc()

	return messageID, nil
}

// ListGroups returns the group chats of the tenant's paired account
func (d *OutboundDispatcher) ListGroups(ctx context.Context, tenantID domain.TenantID) ([]provider.Group, error) {
	session := d.sessions.Get(tenantID)
	if session == nil {
		return nil, ErrNotConnected
	}

	conn := session.openConnection()
	if conn == nil {
		return nil, ErrNotConnected
	}

	groups, err := conn.ListGroups(ctx)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID, "error": err}).Warn("Unable to list groups")
		return nil, err
	}

	return groups, nil
}
