package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const sessionPathFmt = "/v1/sessions/%s"

var (
	ErrGatewayClosed = errors.New("gateway connection is closed")
	ErrSendRejected  = errors.New("gateway rejected the message")
	ErrSendTimeout   = errors.New("gateway did not acknowledge the message")
	ErrGroupsFailed  = errors.New("gateway could not list groups")
)

// GatewayDialer opens one websocket per tenant session against a messaging
// gateway that speaks the json frame protocol in protocol.go
type GatewayDialer struct {
	baseURL *url.URL
	opts    *DialOptions
}

func NewGatewayDialer(gatewayURL string, optFuncs ...DialOptionsFunc) (*GatewayDialer, error) {
	u, err := url.Parse(gatewayURL)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported gateway url scheme %q", u.Scheme)
	}

	opts, err := NewDialOptions(optFuncs...)
	if err != nil {
		return nil, err
	}

	return &GatewayDialer{baseURL: u, opts: opts}, nil
}

func (d *GatewayDialer) sessionURL(tenantID domain.TenantID) string {
	u := *d.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + fmt.Sprintf(sessionPathFmt, url.PathEscape(string(tenantID)))
	return u.String()
}

func (d *GatewayDialer) Dial(ctx context.Context, req DialRequest) (Connection, error) {
	logger := logger.Log.WithFields(logrus.Fields{"tenant_id": req.TenantID})

	headers := http.Header{}
	for _, headerFunc := range d.opts.HeaderFuncs {
		if err := headerFunc(ctx, req.TenantID, headers); err != nil {
			return nil, ClassifyDialError(err, nil)
		}
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: d.opts.HandshakeTimeout,
		TLSClientConfig:  d.opts.TLSConfig,
	}

	ws, resp, err := dialer.DialContext(ctx, d.sessionURL(req.TenantID), headers)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		dialErr := ClassifyDialError(err, resp)
		metrics.gatewayDialFailureCounter.With(prometheus.Labels{"kind": dialErr.Kind.Error()}).Inc()
		logger.WithFields(logrus.Fields{"error": dialErr}).Info("Unable to open gateway session")
		return nil, dialErr
	}

	if d.opts.ReadLimit > 0 {
		ws.SetReadLimit(d.opts.ReadLimit)
	}

	conn := newGatewayConnection(req.TenantID, ws, d.opts, logger)

	auth := &AuthPayload{Browser: []string{req.TenantName, d.opts.BrowserName, "10.0"}}
	if req.Bundle != nil {
		auth.Creds = req.Bundle.Creds
		auth.Keys = req.Bundle.Keys
	}

	if err := conn.writeFrame(&Frame{Type: FrameAuth, Auth: auth}); err != nil {
		ws.Close()
		return nil, ClassifyReadError(err)
	}

	conn.start()

	logger.Debug("Gateway session opened")

	return conn, nil
}

type gatewayConnection struct {
	tenantID domain.TenantID
	ws       *websocket.Conn
	opts     *DialOptions
	logger   *logrus.Entry

	events chan Event

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan Frame

	// closed is signalled by Close, done when the read loop exits
	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

func newGatewayConnection(tenantID domain.TenantID, ws *websocket.Conn, opts *DialOptions, logger *logrus.Entry) *gatewayConnection {
	return &gatewayConnection{
		tenantID: tenantID,
		ws:       ws,
		opts:     opts,
		logger:   logger,
		events:   make(chan Event, opts.EventBufferDepth),
		pending:  make(map[string]chan Frame),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *gatewayConnection) start() {
	if c.opts.KeepAlive > 0 {
		c.ws.SetReadDeadline(time.Now().Add(2 * c.opts.KeepAlive))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(2 * c.opts.KeepAlive))
		})
		go c.keepAlive()
	}

	go c.readLoop()
}

func (c *gatewayConnection) Events() <-chan Event {
	return c.events
}

func (c *gatewayConnection) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}

func (c *gatewayConnection) readLoop() {
	var closeErr *DisconnectError

	defer func() {
		c.ws.Close()
		close(c.done)
		c.failPending()

		if closeErr == nil {
			closeErr = ClassifyReadError(nil)
		}
		metrics.gatewayDisconnectCounter.With(prometheus.Labels{"category": closeErr.Category}).Inc()

		c.emit(Event{Kind: EventClosed, Err: closeErr})
		close(c.events)
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			closeErr = ClassifyReadError(err)
			return
		}

		if c.opts.KeepAlive > 0 {
			c.ws.SetReadDeadline(time.Now().Add(2 * c.opts.KeepAlive))
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.WithFields(logrus.Fields{"error": err}).Warn("Ignoring malformed gateway frame")
			continue
		}

		metrics.gatewayFrameReceivedCounter.With(prometheus.Labels{"type": frame.Type}).Inc()

		switch frame.Type {
		case FrameQR:
			c.emit(Event{Kind: EventPairingCode, PairingCode: frame.QR})
		case FrameOpen:
			self, _ := domain.ParseJID(frame.Me)
			c.emit(Event{Kind: EventOpen, Self: self})
		case FrameCredsUpdate:
			if frame.Creds != nil {
				c.emit(Event{Kind: EventCredentials, Credentials: frame.Creds})
			}
		case FrameMessagesUpsert:
			if frame.Upsert != nil {
				c.emit(Event{Kind: EventMessages, Messages: frame.Upsert})
			}
		case FrameAck, FrameGroupsResult:
			c.resolvePending(&frame)
		case FrameClose:
			if frame.Close != nil {
				closeErr = ClassifyReasonCode(frame.Close.StatusCode, frame.Close.Reason)
			}
			return
		default:
			c.logger.Debug("Ignoring unknown gateway frame type: ", frame.Type)
		}
	}
}

func (c *gatewayConnection) keepAlive() {
	ticker := time.NewTicker(c.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.WithFields(logrus.Fields{"error": err}).Debug("Gateway ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *gatewayConnection) writeFrame(frame *Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.opts.WriteTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}

	if err := c.ws.WriteJSON(frame); err != nil {
		return err
	}

	metrics.gatewayFrameSentCounter.With(prometheus.Labels{"type": frame.Type}).Inc()

	return nil
}

func (c *gatewayConnection) resolvePending(frame *Frame) {
	c.pendingMu.Lock()
	ch, exists := c.pending[frame.ID]
	delete(c.pending, frame.ID)
	c.pendingMu.Unlock()

	if !exists {
		c.logger.Debug("Ignoring reply for unknown request: ", frame.ID)
		return
	}

	ch <- *frame
}

func (c *gatewayConnection) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// request writes a frame correlated by a fresh id and waits for the gateway
// reply carrying the same id
func (c *gatewayConnection) request(ctx context.Context, frame *Frame) (*Frame, error) {
	frame.ID = uuid.NewString()
	replyChan := make(chan Frame, 1)

	c.pendingMu.Lock()
	select {
	case <-c.done:
		c.pendingMu.Unlock()
		return nil, ErrGatewayClosed
	default:
	}
	c.pending[frame.ID] = replyChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, frame.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.writeFrame(frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayClosed, err)
	}

	select {
	case reply, ok := <-replyChan:
		if !ok {
			return nil, ErrGatewayClosed
		}
		return &reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *gatewayConnection) SendText(ctx context.Context, to domain.JID, text string) (string, error) {
	frame := &Frame{Type: FrameSend, Send: &SendPayload{To: to.String(), Text: text}}

	reply, err := c.request(ctx, frame)
	if err != nil {
		if errors.Is(err, ErrGatewayClosed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrSendTimeout, err)
	}

	if reply.Ack == nil {
		return frame.ID, nil
	}
	if reply.Ack.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrSendRejected, reply.Ack.Error)
	}
	if reply.Ack.MessageID == "" {
		return frame.ID, nil
	}
	return reply.Ack.MessageID, nil
}

func (c *gatewayConnection) ListGroups(ctx context.Context) ([]Group, error) {
	reply, err := c.request(ctx, &Frame{Type: FrameGroups})
	if err != nil {
		return nil, err
	}

	if reply.Groups == nil {
		return []Group{}, nil
	}
	if reply.Groups.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrGroupsFailed, reply.Groups.Error)
	}
	if reply.Groups.Groups == nil {
		return []Group{}, nil
	}
	return reply.Groups.Groups, nil
}

// Logout asks the gateway to unlink the device and waits for the gateway to
// close the session
func (c *gatewayConnection) Logout(ctx context.Context) error {
	if err := c.writeFrame(&Frame{Type: FrameLogout}); err != nil {
		c.Close()
		return err
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	}
}

func (c *gatewayConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		deadline := time.Now().Add(time.Second)
		c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.ws.Close()
	})
	return err
}
