package domain

import (
	"errors"
	"regexp"
	"strings"
)

const (
	DefaultUserServer = "s.whatsapp.net"
	HiddenUserServer  = "lid"
	LegacyUserServer  = "c.us"
	GroupServer       = "g.us"
	BroadcastServer   = "broadcast"
)

var ErrInvalidAddress = errors.New("invalid address")

var (
	leadingDigits = regexp.MustCompile(`^[0-9]+`)
	nonDigits     = regexp.MustCompile(`[^0-9]`)
)

// JID is a network address of the form user@server.  The user part of a
// device address may carry a ":device" suffix.
type JID struct {
	User   string
	Server string
}

func NewUserJID(user string) JID {
	return JID{User: user, Server: DefaultUserServer}
}

func ParseJID(s string) (JID, error) {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return JID{}, ErrInvalidAddress
	}
	return JID{User: s[:at], Server: s[at+1:]}, nil
}

func (j JID) String() string {
	if j.IsEmpty() {
		return ""
	}
	return j.User + "@" + j.Server
}

func (j JID) IsEmpty() bool {
	return j.User == "" && j.Server == ""
}

func (j JID) IsGroup() bool {
	return j.Server == GroupServer
}

func (j JID) IsBroadcast() bool {
	return j.Server == BroadcastServer
}

func (j JID) IsHidden() bool {
	return j.Server == HiddenUserServer
}

// IsPrimary reports whether the address uses the phone number based scheme
func (j JID) IsPrimary() bool {
	return j.Server == DefaultUserServer || j.Server == LegacyUserServer
}

// Phone returns the digits of the user part without the device suffix
func (j JID) Phone() string {
	user := j.User
	if i := strings.IndexAny(user, ":_"); i >= 0 {
		user = user[:i]
	}
	return nonDigits.ReplaceAllString(user, "")
}

// ToPrimary maps the address to the phone number scheme.  Addresses on the
// hidden scheme fall back to their leading digits, which is a best-effort
// guess and may not be a real phone number.
func (j JID) ToPrimary() (JID, bool) {
	switch {
	case j.IsPrimary():
		phone := j.Phone()
		if phone == "" {
			return JID{}, false
		}
		return NewUserJID(phone), true
	case j.IsHidden():
		digits := leadingDigits.FindString(j.User)
		if digits == "" {
			return JID{}, false
		}
		return NewUserJID(digits), true
	}
	return JID{}, false
}

// NormalizeDestination accepts either a bare phone number or a fully
// qualified address and returns a sendable address
func NormalizeDestination(destination string) (JID, error) {
	destination = strings.TrimSpace(destination)
	if strings.Contains(destination, "@") {
		return ParseJID(destination)
	}

	phone := nonDigits.ReplaceAllString(destination, "")
	if phone == "" {
		return JID{}, ErrInvalidAddress
	}

	return NewUserJID(phone), nil
}
