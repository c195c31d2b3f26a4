package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidTenantID = errors.New("invalid tenant id")

type TenantID string

// ValidateTenantID rejects ids that are empty or that would escape a
// per-tenant directory
func ValidateTenantID(id TenantID) error {
	s := string(id)
	switch {
	case strings.TrimSpace(s) == "":
		return ErrInvalidTenantID
	case s == "." || s == "..":
		return ErrInvalidTenantID
	case strings.ContainsAny(s, "/\\\x00"):
		return ErrInvalidTenantID
	}
	return nil
}

type ConnectionState string

const (
	Connecting      ConnectionState = "connecting"
	AwaitingPairing ConnectionState = "awaiting_pairing"
	Open            ConnectionState = "open"
	Closed          ConnectionState = "closed"

	// LoggedOut is only ever reported to status subscribers.  A logged out
	// session is removed from the registry rather than kept in this state.
	LoggedOut ConnectionState = "logged_out"
)

// InboundMessage is a customer-originated text message that is ready to be
// forwarded to the backend
type InboundMessage struct {
	ID             string
	SenderID       JID
	OriginalSender JID
	ContactName    string
	Text           string
	ReceivedAt     time.Time
}

type SessionStatus struct {
	TenantID   TenantID
	TenantName string
	State      ConnectionState
	Phone      string
}
