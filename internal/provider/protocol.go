package provider

import (
	"encoding/json"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/credentials"
)

const (
	FrameAuth           = "auth"
	FrameQR             = "qr"
	FrameOpen           = "open"
	FrameCredsUpdate    = "creds.update"
	FrameMessagesUpsert = "messages.upsert"
	FrameClose          = "close"
	FrameSend           = "send"
	FrameAck            = "ack"
	FrameLogout         = "logout"
	FrameGroups         = "groups"
	FrameGroupsResult   = "groups.result"
)

// Frame is the json envelope exchanged with the messaging gateway.  Type
// selects which of the payload fields is set.
type Frame struct {
	Type   string              `json:"type"`
	ID     string              `json:"id,omitempty"`
	Auth   *AuthPayload        `json:"auth,omitempty"`
	QR     string              `json:"qr,omitempty"`
	Me     string              `json:"me,omitempty"`
	Creds  *credentials.Update `json:"creds,omitempty"`
	Upsert *MessageBatch       `json:"upsert,omitempty"`
	Close  *ClosePayload       `json:"close,omitempty"`
	Send   *SendPayload        `json:"send,omitempty"`
	Ack    *AckPayload         `json:"ack,omitempty"`
	Groups *GroupsPayload      `json:"groups,omitempty"`
}

type AuthPayload struct {
	Creds   json.RawMessage            `json:"creds,omitempty"`
	Keys    map[string]json.RawMessage `json:"keys,omitempty"`
	Browser []string                   `json:"browser"`
}

type ClosePayload struct {
	StatusCode int    `json:"statusCode"`
	Reason     string `json:"reason,omitempty"`
}

type SendPayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type AckPayload struct {
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type GroupsPayload struct {
	Groups []Group `json:"groups"`
	Error  string  `json:"error,omitempty"`
}

// Group is a group chat the paired account participates in
type Group struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Participants int    `json:"participants"`
	IsAdmin      bool   `json:"isAdmin"`
}
