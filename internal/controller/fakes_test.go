package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/credentials"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/provider"

	"github.com/spf13/afero"
)

func init() {
	logger.InitLogger()
}

type sentText struct {
	To   domain.JID
	Text string
}

type fakeConnection struct {
	events chan provider.Event

	mu        sync.Mutex
	sent      []sentText
	sendErr   error
	groups    []provider.Group
	groupsErr error
	loggedOut bool
	closed    bool
	closeOnce sync.Once

	// logoutGate, when set, holds Logout until it is closed
	logoutGate chan struct{}
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{events: make(chan provider.Event, 16)}
}

func (c *fakeConnection) Events() <-chan provider.Event {
	return c.events
}

func (c *fakeConnection) SendText(ctx context.Context, to domain.JID, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return "", c.sendErr
	}
	c.sent = append(c.sent, sentText{To: to, Text: text})
	return "msg-" + text, nil
}

func (c *fakeConnection) ListGroups(ctx context.Context) ([]provider.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.groupsErr != nil {
		return nil, c.groupsErr
	}
	return append([]provider.Group(nil), c.groups...), nil
}

func (c *fakeConnection) Logout(ctx context.Context) error {
	c.mu.Lock()
	gate := c.logoutGate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	c.loggedOut = true
	c.mu.Unlock()
	c.closeWith(provider.ClassifyReasonCode(provider.CodeLoggedOut, "logged out"))
	return nil
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.closeWith(provider.ClassifyReasonCode(provider.CodeConnectionClosed, "closed"))
	return nil
}

func (c *fakeConnection) emit(ev provider.Event) {
	c.events <- ev
}

func (c *fakeConnection) closeWith(err *provider.DisconnectError) {
	c.closeOnce.Do(func() {
		c.events <- provider.Event{Kind: provider.EventClosed, Err: err}
		close(c.events)
	})
}

func (c *fakeConnection) sentMessages() []sentText {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentText(nil), c.sent...)
}

func (c *fakeConnection) wasLoggedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

func (c *fakeConnection) holdLogout() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logoutGate = make(chan struct{})
	return c.logoutGate
}

func (c *fakeConnection) wasClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer hands out a new fakeConnection per dial unless an error is
// queued for the next attempt
type fakeDialer struct {
	mu       sync.Mutex
	conns    []*fakeConnection
	requests []provider.DialRequest
	errs     []error
}

func (d *fakeDialer) Dial(ctx context.Context, req provider.DialRequest) (provider.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests = append(d.requests, req)

	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		if err != nil {
			d.conns = append(d.conns, nil)
			return nil, err
		}
	}

	conn := newFakeConnection()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) failNext(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, err)
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func (d *fakeDialer) connection(i int) *fakeConnection {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func (d *fakeDialer) lastRequest() provider.DialRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests[len(d.requests)-1]
}

type fakeTimer struct {
	clock   *fakeClock
	f       func()
	delay   time.Duration
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.stopped
	t.stopped = true
	return wasPending
}

// fakeClock collects scheduled reconnects so tests decide when they fire
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) timerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, f: f, delay: d}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (c *fakeClock) lastDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[len(c.timers)-1].delay
}

// fire runs every timer that was not stopped
func (c *fakeClock) fire() int {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

// fireStale runs every timer, stopped or not
func (c *fakeClock) fireStale() {
	c.mu.Lock()
	all := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()

	for _, t := range all {
		t.f()
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []domain.SessionStatus
}

func (p *recordingPublisher) PublishSessionStatus(ctx context.Context, status domain.SessionStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
	return nil
}

func (p *recordingPublisher) states(tenantID domain.TenantID) []domain.ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	var states []domain.ConnectionState
	for _, s := range p.statuses {
		if s.TenantID == tenantID {
			states = append(states, s.State)
		}
	}
	return states
}

var errRecordFailed = errors.New("backend unavailable")

type recordingRecorder struct {
	mu      sync.Mutex
	records []MessageRecord
	failFor map[string]bool
}

func (r *recordingRecorder) RecordMessage(ctx context.Context, tenantID domain.TenantID, record MessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[record.Message] {
		return errRecordFailed
	}
	r.records = append(r.records, record)
	return nil
}

func (r *recordingRecorder) recorded() []MessageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MessageRecord(nil), r.records...)
}

func newMemStore(t *testing.T) *credentials.Store {
	store, err := credentials.NewStore(afero.NewMemMapFs(), "auth_sessions")
	if err != nil {
		t.Fatal("unable to create credential store ", err)
	}
	return store
}

func eventually(t *testing.T, description string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", description)
}
