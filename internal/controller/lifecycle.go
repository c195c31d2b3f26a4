package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/provider"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type LifecycleConfig struct {
	ReconnectDelay   time.Duration
	ReconnectCap     int
	ReconnectWindow  time.Duration
	DialTimeout      time.Duration
	LogoutTimeout    time.Duration
	IngestQueueDepth int
}

type timerHandle interface {
	Stop() bool
}

type reconnectTimer struct {
	handle timerHandle
}

// LifecycleController owns every tenant session: it is the only writer of
// the registry and runs each connection's event loop.
type LifecycleController struct {
	registry  *SessionRegistry
	store     CredentialStore
	dialer    provider.Dialer
	publisher StatusPublisher
	ingestion *IngestionPipeline
	cfg       LifecycleConfig

	afterFunc func(time.Duration, func()) timerHandle
	now       func() time.Time

	mu           sync.Mutex
	timers       map[domain.TenantID]*reconnectTimer
	shuttingDown bool
	loops        sync.WaitGroup

	restored atomic.Bool
}

func NewLifecycleController(registry *SessionRegistry, store CredentialStore, dialer provider.Dialer, publisher StatusPublisher, ingestion *IngestionPipeline, cfg LifecycleConfig) *LifecycleController {
	if publisher == nil {
		publisher = &NoopStatusPublisher{}
	}

	return &LifecycleController{
		registry:  registry,
		store:     store,
		dialer:    dialer,
		publisher: publisher,
		ingestion: ingestion,
		cfg:       cfg,
		afterFunc: func(d time.Duration, f func()) timerHandle {
			return time.AfterFunc(d, f)
		},
		now:    time.Now,
		timers: make(map[domain.TenantID]*reconnectTimer),
	}
}

// GetOrCreate returns the tenant's session, creating it and starting its
// connection if needed.  It never waits on the network.
func (c *LifecycleController) GetOrCreate(tenantID domain.TenantID, tenantName string) (*TenantSession, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	shuttingDown := c.shuttingDown
	c.mu.Unlock()
	if shuttingDown {
		return nil, ErrShuttingDown
	}

	s, created := c.registry.getOrInsert(tenantID, func() *TenantSession {
		return newTenantSession(tenantID, tenantName)
	})

	if created {
		logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID, "tenant_name": s.TenantName()}).Info("Created tenant session")
	}

	if s.activate() {
		c.startConnect(s)
	}

	return s, nil
}

// Connect is GetOrCreate for callers that only need a view of the session
func (c *LifecycleController) Connect(tenantID domain.TenantID, tenantName string) (SessionSnapshot, error) {
	s, err := c.GetOrCreate(tenantID, tenantName)
	if err != nil {
		return SessionSnapshot{}, err
	}
	return s.Snapshot(), nil
}

// Status reports the tenant's session.  The bool is false when the tenant
// has no registered session.
func (c *LifecycleController) Status(tenantID domain.TenantID) (SessionSnapshot, bool) {
	s := c.registry.Get(tenantID)
	if s == nil {
		return SessionSnapshot{TenantID: tenantID, State: domain.Closed}, false
	}
	return s.Snapshot(), true
}

func (c *LifecycleController) ListActive() []ActiveSession {
	return c.registry.ListActive()
}

// Logout unlinks the tenant, forgets its credentials and removes it from the
// registry.  Logging out a tenant without a session succeeds.
func (c *LifecycleController) Logout(ctx context.Context, tenantID domain.TenantID) error {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return err
	}

	logger := logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID})

	c.cancelReconnect(tenantID)

	tenantName := string(tenantID)

	if s := c.registry.Get(tenantID); s != nil {
		tenantName = s.TenantName()

		conn := s.terminate()
		c.registry.removeIf(tenantID, s)

		// the gateway unlink finishes in the background
		if conn != nil && !c.track(func() { c.logoutConnection(logger, conn) }) {
			conn.Close()
		}
	}

	if err := c.store.Clear(tenantID); err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Error("Unable to clear stored credentials")
		return err
	}

	metrics.sessionLogoutCounter.With(prometheus.Labels{"initiator": "api"}).Inc()
	c.publishStatus(domain.SessionStatus{TenantID: tenantID, TenantName: tenantName, State: domain.LoggedOut})

	logger.Info("Logged out tenant session")

	return nil
}

func (c *LifecycleController) logoutConnection(logger *logrus.Entry, conn provider.Connection) {
	ctx := context.Background()
	if c.cfg.LogoutTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.LogoutTimeout)
		defer cancel()
	}

	if err := conn.Logout(ctx); err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Warn("Gateway logout did not complete")
	}

	conn.Close()
}

// Restore starts a session for every tenant with saved credentials
func (c *LifecycleController) Restore(ctx context.Context) error {
	defer c.restored.Store(true)

	saved, err := c.store.List()
	if err != nil {
		logger.LogError("Unable to list saved sessions", err)
		return err
	}

	for _, t := range saved {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if _, err := c.GetOrCreate(t.TenantID, t.TenantName); err != nil {
			logger.Log.WithFields(logrus.Fields{"tenant_id": t.TenantID, "error": err}).Warn("Unable to restore saved session")
			continue
		}
	}

	logger.Log.WithFields(logrus.Fields{"count": len(saved)}).Info("Restored saved sessions")

	return nil
}

func (c *LifecycleController) Restored() bool {
	return c.restored.Load()
}

// Shutdown stops every reconnect and closes every connection.  Credentials
// are kept so the sessions come back on the next start.
func (c *LifecycleController) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.shuttingDown = true
	for tenantID, t := range c.timers {
		t.handle.Stop()
		delete(c.timers, tenantID)
	}
	c.mu.Unlock()

	for _, s := range c.registry.all() {
		if conn := s.terminate(); conn != nil {
			conn.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		c.loops.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("All tenant sessions stopped")
		return nil
	case <-ctx.Done():
		logger.Log.Warn("Timed out waiting for tenant sessions to stop")
		return ctx.Err()
	}
}

// track runs f in a goroutine that Shutdown waits for.  It returns false
// without running f once shutdown has started.
func (c *LifecycleController) track(f func()) bool {
	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return false
	}
	c.loops.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.loops.Done()
		f()
	}()

	return true
}

func (c *LifecycleController) startConnect(s *TenantSession) {
	if !c.track(func() { c.connect(s) }) {
		s.giveUp()
	}
}

// discardIfLoggedOut reports whether the session was terminated while
// connecting.  When it was logged out, credentials recreated by the attempt
// are removed again unless a newer session already owns the tenant.
func (c *LifecycleController) discardIfLoggedOut(s *TenantSession) bool {
	if !s.isTerminated() {
		return false
	}

	c.registry.whileAbsent(s.tenantID, func() {
		if err := c.store.Clear(s.tenantID); err != nil {
			logger.Log.WithFields(logrus.Fields{"tenant_id": s.tenantID, "error": err}).Error("Unable to clear stored credentials")
		}
	})

	return true
}

// connect opens a provider connection for the session and runs its event
// loop until the connection closes
func (c *LifecycleController) connect(s *TenantSession) {
	logger := logger.Log.WithFields(logrus.Fields{"tenant_id": s.tenantID})

	// a reconnect that outlived a logout must not bring the session back
	if !c.registry.contains(s.tenantID, s) || !s.beginConnecting() {
		logger.Debug("Session is gone, skipping connect")
		return
	}

	c.publishSession(s)

	bundle, err := c.store.Load(s.tenantID, s.tenantName)
	if err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Error("Unable to load stored credentials")
		c.handleClosure(s, provider.NewCredentialLoadError(err))
		return
	}

	if c.discardIfLoggedOut(s) {
		logger.Debug("Session ended while loading credentials")
		return
	}

	dialCtx := context.Background()
	if c.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(dialCtx, c.cfg.DialTimeout)
		defer cancel()
	}

	conn, err := c.dialer.Dial(dialCtx, provider.DialRequest{
		TenantID:   s.tenantID,
		TenantName: s.tenantName,
		Bundle:     bundle,
	})
	if err != nil {
		c.handleClosure(s, provider.ClassifyReadError(err))
		return
	}

	if !s.attach(conn) {
		conn.Close()
		for range conn.Events() {
		}
		c.discardIfLoggedOut(s)
		return
	}

	logger.WithFields(logrus.Fields{"fresh": bundle.IsEmpty()}).Info("Opened provider connection")

	c.runEventLoop(s, conn)
}

func (c *LifecycleController) runEventLoop(s *TenantSession, conn provider.Connection) {
	logger := logger.Log.WithFields(logrus.Fields{"tenant_id": s.tenantID})

	worker := c.ingestion.startWorker(s.tenantID, c.cfg.IngestQueueDepth)
	defer worker.stop()

	var closeErr *provider.DisconnectError

	for ev := range conn.Events() {
		switch ev.Kind {
		case provider.EventPairingCode:
			if s.awaitPairing(ev.PairingCode) {
				logger.Info("Waiting for the pairing code to be scanned")
				c.publishSession(s)
			}

		case provider.EventOpen:
			if s.open(ev.Self) {
				logger.WithFields(logrus.Fields{"phone": ev.Self.Phone()}).Info("Session is open")
				c.publishSession(s)
			}

		case provider.EventCredentials:
			if err := c.store.Save(s.tenantID, ev.Credentials); err != nil {
				logger.WithFields(logrus.Fields{"error": err}).Error("Unable to save rotated credentials")
				metrics.credentialSaveFailedCounter.Inc()
			}

		case provider.EventMessages:
			if ev.Messages != nil && !s.isTerminated() {
				worker.enqueue(ev.Messages)
			}

		case provider.EventClosed:
			closeErr = ev.Err
		}
	}

	if closeErr == nil {
		closeErr = provider.ClassifyReadError(nil)
	}

	c.handleClosure(s, closeErr)
}

// handleClosure decides what happens after a connection went away: a
// logout ends the session, anything else schedules one reconnect
func (c *LifecycleController) handleClosure(s *TenantSession, closeErr *provider.DisconnectError) {
	logger := logger.Log.WithFields(logrus.Fields{"tenant_id": s.tenantID, "code": closeErr.Code, "category": closeErr.Category})

	if s.isTerminated() {
		logger.Debug("Connection closed on a terminated session")
		return
	}

	s.detach()
	c.publishSession(s)

	if closeErr.IsLoggedOut() {
		logger.WithFields(logrus.Fields{"error": closeErr}).Info("Session was logged out by the network")
		c.endLoggedOutSession(s)
		return
	}

	failures := s.recordFailure(c.now(), c.cfg.ReconnectWindow)

	if c.cfg.ReconnectCap > 0 && failures > c.cfg.ReconnectCap {
		logger.WithFields(logrus.Fields{"failures": failures, "window": c.cfg.ReconnectWindow}).Error("Too many transient closures, giving up on the session")
		metrics.reconnectAbandonedCounter.Inc()
		s.giveUp()
		return
	}

	logger.WithFields(logrus.Fields{"error": closeErr, "delay": c.cfg.ReconnectDelay}).Info("Connection closed, scheduling a reconnect")

	c.scheduleReconnect(s)
}

func (c *LifecycleController) endLoggedOutSession(s *TenantSession) {
	c.cancelReconnect(s.tenantID)

	s.terminate()
	c.registry.removeIf(s.tenantID, s)

	if err := c.store.Clear(s.tenantID); err != nil {
		logger.Log.WithFields(logrus.Fields{"tenant_id": s.tenantID, "error": err}).Error("Unable to clear stored credentials")
	}

	metrics.sessionLogoutCounter.With(prometheus.Labels{"initiator": "network"}).Inc()
	c.publishStatus(domain.SessionStatus{TenantID: s.tenantID, TenantName: s.tenantName, State: domain.LoggedOut})
}

func (c *LifecycleController) scheduleReconnect(s *TenantSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shuttingDown {
		s.giveUp()
		return
	}

	if existing, found := c.timers[s.tenantID]; found {
		existing.handle.Stop()
	}

	t := &reconnectTimer{}
	t.handle = c.afterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		if c.timers[s.tenantID] != t {
			c.mu.Unlock()
			return
		}
		delete(c.timers, s.tenantID)
		c.mu.Unlock()

		c.startConnect(s)
	})
	c.timers[s.tenantID] = t

	metrics.reconnectScheduledCounter.Inc()
}

func (c *LifecycleController) cancelReconnect(tenantID domain.TenantID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, found := c.timers[tenantID]; found {
		t.handle.Stop()
		delete(c.timers, tenantID)
	}
}

func (c *LifecycleController) publishSession(s *TenantSession) {
	c.publishStatus(s.status())
}

func (c *LifecycleController) publishStatus(status domain.SessionStatus) {
	metrics.sessionStateCounter.With(prometheus.Labels{"state": string(status.State)}).Inc()

	err := c.publisher.PublishSessionStatus(context.Background(), status)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"tenant_id": status.TenantID, "state": status.State, "error": err}).Warn("Unable to publish session status")
	}
}
