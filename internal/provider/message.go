package provider

import (
	"errors"
	"strings"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
)

var ErrUnattributable = errors.New("message sender cannot be attributed")

const (
	BatchNotify = "notify"
	BatchAppend = "append"
)

type MessageBatch struct {
	Type     string       `json:"type"`
	Messages []RawMessage `json:"messages"`
}

type MessageKey struct {
	ID          string `json:"id"`
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	Participant string `json:"participant,omitempty"`
}

type ExtendedText struct {
	Text string `json:"text"`
}

type MessageContent struct {
	Conversation        string        `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedText `json:"extendedTextMessage,omitempty"`
}

type RawMessage struct {
	Key       MessageKey      `json:"key"`
	PushName  string          `json:"pushName,omitempty"`
	Timestamp int64           `json:"messageTimestamp,omitempty"`
	Message   *MessageContent `json:"message,omitempty"`
}

type MessageClass int8

const (
	ClassText MessageClass = iota
	ClassSelf
	ClassGroup
	ClassNoText
	ClassUnattributable
)

func (c MessageClass) String() string {
	switch c {
	case ClassText:
		return "text"
	case ClassSelf:
		return "self"
	case ClassGroup:
		return "group"
	case ClassNoText:
		return "no_text"
	case ClassUnattributable:
		return "unattributable"
	}
	return "unknown"
}

// Classify turns a raw network message into a tagged value.  The returned
// InboundMessage is only meaningful for ClassText.
func (m RawMessage) Classify(now time.Time) (MessageClass, domain.InboundMessage) {
	if m.Key.FromMe {
		return ClassSelf, domain.InboundMessage{}
	}

	remote, err := domain.ParseJID(m.Key.RemoteJID)
	if err != nil {
		return ClassUnattributable, domain.InboundMessage{}
	}

	if remote.IsGroup() || remote.IsBroadcast() {
		return ClassGroup, domain.InboundMessage{}
	}

	text := m.text()
	if strings.TrimSpace(text) == "" {
		return ClassNoText, domain.InboundMessage{}
	}

	sender, err := m.attributeSender(remote)
	if err != nil {
		return ClassUnattributable, domain.InboundMessage{}
	}

	receivedAt := now
	if m.Timestamp > 0 {
		receivedAt = time.Unix(m.Timestamp, 0).UTC()
	}

	return ClassText, domain.InboundMessage{
		ID:             m.Key.ID,
		SenderID:       sender,
		OriginalSender: remote,
		ContactName:    m.PushName,
		Text:           text,
		ReceivedAt:     receivedAt,
	}
}

func (m RawMessage) text() string {
	if m.Message == nil {
		return ""
	}
	if m.Message.Conversation != "" {
		return m.Message.Conversation
	}
	if m.Message.ExtendedTextMessage != nil {
		return m.Message.ExtendedTextMessage.Text
	}
	return ""
}

// attributeSender prefers a participant address on the primary scheme when
// the remote address is hidden, then falls back to the remote's digits
func (m RawMessage) attributeSender(remote domain.JID) (domain.JID, error) {
	if remote.IsHidden() && m.Key.Participant != "" {
		if participant, err := domain.ParseJID(m.Key.Participant); err == nil && participant.IsPrimary() {
			if primary, ok := participant.ToPrimary(); ok {
				return primary, nil
			}
		}
	}
	primary, ok := remote.ToPrimary()
	if !ok {
		return domain.JID{}, ErrUnattributable
	}
	return primary, nil
}
