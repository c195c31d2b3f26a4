package controller

import (
	"context"
	"errors"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/credentials"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected   = errors.New("tenant session is not connected")
	ErrTenantRequired = errors.New("tenant id is required")
	ErrShuttingDown   = errors.New("session manager is shutting down")
)

type CredentialStore interface {
	Load(tenantID domain.TenantID, tenantName string) (*credentials.Bundle, error)
	Save(tenantID domain.TenantID, update *credentials.Update) error
	Clear(tenantID domain.TenantID) error
	List() ([]credentials.SavedTenant, error)
}

// StatusPublisher announces session state changes to outside observers.
// Implementations must not block the caller on network I/O.
type StatusPublisher interface {
	PublishSessionStatus(ctx context.Context, status domain.SessionStatus) error
}

type NoopStatusPublisher struct {
}

func (n *NoopStatusPublisher) PublishSessionStatus(ctx context.Context, status domain.SessionStatus) error {
	logger.Log.WithFields(logrus.Fields{"tenant_id": status.TenantID, "state": status.State}).Trace("Session status change")
	return nil
}

type SessionSnapshot struct {
	TenantID    domain.TenantID
	TenantName  string
	State       domain.ConnectionState
	PairingCode string
	Phone       string
}

type ActiveSession struct {
	TenantID   domain.TenantID        `json:"tenantId"`
	TenantName string                 `json:"tenantName"`
	Connected  bool                   `json:"connected"`
	State      domain.ConnectionState `json:"state"`
}
