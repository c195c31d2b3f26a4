package controller

import (
	"context"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/provider"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	outcomeForwarded      = "forwarded"
	outcomeGroup          = "group"
	outcomeSelf           = "self"
	outcomeNoText         = "no_text"
	outcomeUnattributable = "unattributable"
	outcomeDuplicate      = "duplicate"
	outcomeReplay         = "replay"
	outcomeFailed         = "failed"
	outcomeOverflow       = "overflow"
)

var classOutcomes = map[provider.MessageClass]string{
	provider.ClassSelf:           outcomeSelf,
	provider.ClassGroup:          outcomeGroup,
	provider.ClassNoText:         outcomeNoText,
	provider.ClassUnattributable: outcomeUnattributable,
}

// IngestionPipeline turns live message batches into backend records.  Each
// message is attempted at most once; a failed record is not retried.
type IngestionPipeline struct {
	recorder  MessageRecorder
	responder *AutoResponder
	seen      *lru.Cache[string, struct{}]
	now       func() time.Time
}

func NewIngestionPipeline(recorder MessageRecorder, dedupCacheSize int, responder *AutoResponder) (*IngestionPipeline, error) {
	seen, err := lru.New[string, struct{}](dedupCacheSize)
	if err != nil {
		return nil, err
	}

	return &IngestionPipeline{
		recorder:  recorder,
		responder: responder,
		seen:      seen,
		now:       time.Now,
	}, nil
}

// Ingest processes one batch for a tenant.  Replayed history is skipped.
func (p *IngestionPipeline) Ingest(ctx context.Context, tenantID domain.TenantID, batch *provider.MessageBatch) {
	logger := logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID})

	if batch.Type != provider.BatchNotify {
		logger.WithFields(logrus.Fields{"batch_type": batch.Type, "count": len(batch.Messages)}).Debug("Skipping replayed message batch")
		countInbound(outcomeReplay, len(batch.Messages))
		return
	}

	for _, raw := range batch.Messages {
		p.ingestMessage(ctx, logger, tenantID, raw)
	}
}

func (p *IngestionPipeline) ingestMessage(ctx context.Context, logger *logrus.Entry, tenantID domain.TenantID, raw provider.RawMessage) {
	class, msg := raw.Classify(p.now())
	if class != provider.ClassText {
		logger.WithFields(logrus.Fields{"message_id": raw.Key.ID, "class": class}).Trace("Dropping inbound message")
		countInbound(classOutcomes[class], 1)
		return
	}

	if msg.ID != "" {
		if seen, _ := p.seen.ContainsOrAdd(string(tenantID)+"/"+msg.ID, struct{}{}); seen {
			logger.WithFields(logrus.Fields{"message_id": msg.ID}).Debug("Dropping duplicate inbound message")
			countInbound(outcomeDuplicate, 1)
			return
		}
	}

	logger = logger.WithFields(logrus.Fields{"message_id": msg.ID, "sender": msg.SenderID})

	// the reply runs even when recording failed
	if err := recordMessage(ctx, p.recorder, tenantID, newInboundRecord(msg)); err != nil {
		countInbound(outcomeFailed, 1)
	} else {
		logger.Debug("Recorded inbound message")
		countInbound(outcomeForwarded, 1)
	}

	if p.responder != nil {
		p.responder.Respond(ctx, tenantID, msg)
	}
}

func countInbound(outcome string, n int) {
	if n == 0 {
		return
	}
	metrics.inboundMessageCounter.With(prometheus.Labels{"outcome": outcome}).Add(float64(n))
}

// ingestWorker runs one tenant's batches in arrival order so that a slow
// backend never holds up the tenant's connection events
type ingestWorker struct {
	tenantID domain.TenantID
	queue    chan *provider.MessageBatch
	done     chan struct{}
}

func (p *IngestionPipeline) startWorker(tenantID domain.TenantID, depth int) *ingestWorker {
	if depth < 1 {
		depth = 1
	}

	w := &ingestWorker{
		tenantID: tenantID,
		queue:    make(chan *provider.MessageBatch, depth),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		for batch := range w.queue {
			metrics.ingestQueueGauge.Dec()
			p.Ingest(context.Background(), tenantID, batch)
		}
	}()

	return w
}

// enqueue never blocks.  A full queue drops the batch.
func (w *ingestWorker) enqueue(batch *provider.MessageBatch) bool {
	select {
	case w.queue <- batch:
		metrics.ingestQueueGauge.Inc()
		return true
	default:
		logger.Log.WithFields(logrus.Fields{"tenant_id": w.tenantID, "count": len(batch.Messages)}).Warn("Ingest queue is full, dropping message batch")
		countInbound(outcomeOverflow, len(batch.Messages))
		return false
	}
}

// stop lets the worker drain what is queued and exit.  It must be called
// from the goroutine that enqueues.
func (w *ingestWorker) stop() {
	close(w.queue)
}
