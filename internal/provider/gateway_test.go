package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/credentials"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"
)

func init() {
	logger.InitLogger()
}

var testUpgrader = websocket.Upgrader{}

// fakeGateway plays the gateway side of a single session
type fakeGateway struct {
	t            *testing.T
	authReceived chan Frame
	authHeader   chan string
	script       func(ws *websocket.Conn)
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.authHeader <- r.Header.Get("Authorization")

	ws, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		g.t.Errorf("upgrade failed: %s", err)
		return
	}
	defer ws.Close()

	var auth Frame
	if err := ws.ReadJSON(&auth); err != nil {
		g.t.Errorf("unable to read auth frame: %s", err)
		return
	}
	g.authReceived <- auth

	g.script(ws)
}

func startFakeGateway(t *testing.T, script func(ws *websocket.Conn)) (*fakeGateway, *GatewayDialer) {
	gw := &fakeGateway{
		t:            t,
		authReceived: make(chan Frame, 1),
		authHeader:   make(chan string, 1),
		script:       script,
	}

	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	tokenGenerator := func(ctx context.Context, subject string) (string, error) {
		return "token-for-" + subject, nil
	}

	dialer, err := NewGatewayDialer(srv.URL,
		WithJwtAsHttpHeader(tokenGenerator),
		WithHandshakeTimeout(2*time.Second),
		WithKeepAlive(0),
	)
	if err != nil {
		t.Fatal("unable to create dialer ", err)
	}

	return gw, dialer
}

func nextEvent(t *testing.T, conn Connection) Event {
	select {
	case ev, ok := <-conn.Events():
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
	return Event{}
}

func TestGatewaySessionEventsAreDeliveredInOrder(t *testing.T) {
	gw, dialer := startFakeGateway(t, func(ws *websocket.Conn) {
		ws.WriteJSON(Frame{Type: FrameQR, QR: "2@abc,def"})
		ws.WriteJSON(Frame{Type: FrameOpen, Me: "5491100000000:7@s.whatsapp.net"})
		ws.WriteJSON(Frame{Type: FrameCredsUpdate, Creds: &credentials.Update{Creds: json.RawMessage(`{"registered":true}`)}})
		ws.WriteJSON(Frame{Type: FrameMessagesUpsert, Upsert: &MessageBatch{
			Type: BatchNotify,
			Messages: []RawMessage{{
				Key:     MessageKey{ID: "M1", RemoteJID: "5491122334455@s.whatsapp.net"},
				Message: &MessageContent{Conversation: "hola"},
			}},
		}})
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(4515, "restart required"))
		ws.ReadMessage()
	})

	bundle := &credentials.Bundle{Creds: json.RawMessage(`{"noiseKey":"x"}`)}
	conn, err := dialer.Dial(context.Background(), DialRequest{TenantID: "T1", TenantName: "Tenant One", Bundle: bundle})
	assert.Equal(t, err, nil)
	defer conn.Close()

	assert.Equal(t, <-gw.authHeader, "Bearer token-for-T1")

	auth := <-gw.authReceived
	assert.Equal(t, auth.Type, FrameAuth)
	assert.Equal(t, string(auth.Auth.Creds), `{"noiseKey":"x"}`)
	assert.Equal(t, auth.Auth.Browser[0], "Tenant One")

	ev := nextEvent(t, conn)
	assert.Equal(t, ev.Kind, EventPairingCode)
	assert.Equal(t, ev.PairingCode, "2@abc,def")

	ev = nextEvent(t, conn)
	assert.Equal(t, ev.Kind, EventOpen)
	assert.Equal(t, ev.Self.Phone(), "5491100000000")

	ev = nextEvent(t, conn)
	assert.Equal(t, ev.Kind, EventCredentials)
	assert.Equal(t, string(ev.Credentials.Creds), `{"registered":true}`)

	ev = nextEvent(t, conn)
	assert.Equal(t, ev.Kind, EventMessages)
	assert.Equal(t, ev.Messages.Type, BatchNotify)
	assert.Equal(t, len(ev.Messages.Messages), 1)

	ev = nextEvent(t, conn)
	assert.Equal(t, ev.Kind, EventClosed)
	assert.Equal(t, errors.Is(ev.Err, ErrRestartRequired), true)
	assert.Equal(t, ev.Err.IsLoggedOut(), false)

	select {
	case _, ok := <-conn.Events():
		assert.Equal(t, ok, false)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the event channel to be closed after the closed event")
	}
}

func TestGatewaySendTextWaitsForAck(t *testing.T) {
	_, dialer := startFakeGateway(t, func(ws *websocket.Conn) {
		for {
			var frame Frame
			if err := ws.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Type != FrameSend {
				continue
			}
			if strings.HasPrefix(frame.Send.To, "000") {
				ws.WriteJSON(Frame{Type: FrameAck, ID: frame.ID, Ack: &AckPayload{Error: "not on the network"}})
				continue
			}
			ws.WriteJSON(Frame{Type: FrameAck, ID: frame.ID, Ack: &AckPayload{MessageID: "3EB0" + frame.Send.Text}})
		}
	})

	conn, err := dialer.Dial(context.Background(), DialRequest{TenantID: "T1", TenantName: "Tenant One"})
	assert.Equal(t, err, nil)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messageID, err := conn.SendText(ctx, domain.NewUserJID("5491122334455"), "hola")
	assert.Equal(t, err, nil)
	assert.Equal(t, messageID, "3EB0hola")

	_, err = conn.SendText(ctx, domain.NewUserJID("0001"), "hola")
	assert.Equal(t, errors.Is(err, ErrSendRejected), true)
}

func TestGatewayLogoutEndsWithLoggedOutClosure(t *testing.T) {
	_, dialer := startFakeGateway(t, func(ws *websocket.Conn) {
		for {
			var frame Frame
			if err := ws.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Type == FrameLogout {
				ws.WriteJSON(Frame{Type: FrameClose, Close: &ClosePayload{StatusCode: CodeLoggedOut, Reason: "logged out"}})
				return
			}
		}
	})

	conn, err := dialer.Dial(context.Background(), DialRequest{TenantID: "T1", TenantName: "Tenant One"})
	assert.Equal(t, err, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan Event, 1)
	go func() {
		for ev := range conn.Events() {
			if ev.Kind == EventClosed {
				done <- ev
			}
		}
	}()

	assert.Equal(t, conn.Logout(ctx), nil)

	select {
	case ev := <-done:
		assert.Equal(t, ev.Err.IsLoggedOut(), true)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a closed event")
	}

	_, err = conn.SendText(ctx, domain.NewUserJID("5491122334455"), "hola")
	assert.Equal(t, errors.Is(err, ErrGatewayClosed), true)
}

func TestGatewayRejectedHandshakeIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	dialer, err := NewGatewayDialer(srv.URL)
	assert.Equal(t, err, nil)

	_, err = dialer.Dial(context.Background(), DialRequest{TenantID: "T1"})

	var de *DisconnectError
	assert.Equal(t, errors.As(err, &de), true)
	assert.Equal(t, de.IsLoggedOut(), false)
	assert.Equal(t, errors.Is(err, ErrGatewayHandshake), true)
}

func TestNewGatewayDialerRejectsUnknownScheme(t *testing.T) {
	_, err := NewGatewayDialer("ftp://gateway")
	assert.NotEqual(t, err, nil)
}

func TestGatewaySendTextWithoutAckTimesOut(t *testing.T) {
	_, dialer := startFakeGateway(t, func(ws *websocket.Conn) {
		for {
			var frame Frame
			if err := ws.ReadJSON(&frame); err != nil {
				return
			}
		}
	})

	conn, err := dialer.Dial(context.Background(), DialRequest{TenantID: "T1", TenantName: "Tenant One"})
	assert.Equal(t, err, nil)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = conn.SendText(ctx, domain.NewUserJID("5491122334455"), "hola")
	assert.Equal(t, errors.Is(err, ErrSendTimeout), true)
}

func TestGatewayListGroupsIsCorrelatedById(t *testing.T) {
	_, dialer := startFakeGateway(t, func(ws *websocket.Conn) {
		for {
			var frame Frame
			if err := ws.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Type != FrameGroups {
				continue
			}
			// an unrelated reply first, which must not satisfy the request
			ws.WriteJSON(Frame{Type: FrameGroupsResult, ID: "other", Groups: &GroupsPayload{}})
			ws.WriteJSON(Frame{Type: FrameGroupsResult, ID: frame.ID, Groups: &GroupsPayload{Groups: []Group{
				{ID: "120363000000000001@g.us", Name: "Ventas", Participants: 12, IsAdmin: true},
				{ID: "120363000000000002@g.us", Name: "Soporte", Participants: 3},
			}}})
		}
	})

	conn, err := dialer.Dial(context.Background(), DialRequest{TenantID: "T1", TenantName: "Tenant One"})
	assert.Equal(t, err, nil)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	groups, err := conn.ListGroups(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(groups), 2)
	assert.Equal(t, groups[0].Name, "Ventas")
	assert.Equal(t, groups[0].Participants, 12)
	assert.Equal(t, groups[0].IsAdmin, true)
	assert.Equal(t, groups[1].IsAdmin, false)
}

func TestGatewayListGroupsReportsGatewayError(t *testing.T) {
	_, dialer := startFakeGateway(t, func(ws *websocket.Conn) {
		for {
			var frame Frame
			if err := ws.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Type == FrameGroups {
				ws.WriteJSON(Frame{Type: FrameGroupsResult, ID: frame.ID, Groups: &GroupsPayload{Error: "not connected"}})
			}
		}
	})

	conn, err := dialer.Dial(context.Background(), DialRequest{TenantID: "T1", TenantName: "Tenant One"})
	assert.Equal(t, err, nil)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = conn.ListGroups(ctx)
	assert.Equal(t, errors.Is(err, ErrGroupsFailed), true)
}
