package provider

import (
	"context"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/credentials"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
)

type EventKind int8

const (
	EventPairingCode EventKind = iota
	EventOpen
	EventCredentials
	EventMessages
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventPairingCode:
		return "pairing_code"
	case EventOpen:
		return "open"
	case EventCredentials:
		return "credentials"
	case EventMessages:
		return "messages"
	case EventClosed:
		return "closed"
	}
	return "unknown"
}

// Event is one lifecycle notification from a provider connection.  Only the
// field matching Kind is populated.
type Event struct {
	Kind        EventKind
	PairingCode string
	Self        domain.JID
	Credentials *credentials.Update
	Messages    *MessageBatch
	Err         *DisconnectError
}

type DialRequest struct {
	TenantID   domain.TenantID
	TenantName string
	Bundle     *credentials.Bundle
}

type Dialer interface {
	Dial(ctx context.Context, req DialRequest) (Connection, error)
}

// Connection is a live session with the messaging network.  Events are
// delivered in order and the channel is closed after the EventClosed event.
type Connection interface {
	Events() <-chan Event
	SendText(ctx context.Context, to domain.JID, text string) (string, error)
	ListGroups(ctx context.Context) ([]Group, error)
	Logout(ctx context.Context) error
	Close() error
}
