package controller

import (
	"sync"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/provider"
)

// TenantSession is the registry entry for one tenant.  The connection
// handle is only usable while the state is AwaitingPairing or Open, and a
// pairing code is only held while AwaitingPairing.
type TenantSession struct {
	tenantID   domain.TenantID
	tenantName string

	mu          sync.RWMutex
	state       domain.ConnectionState
	conn        provider.Connection
	pairingCode string
	self        domain.JID

	// active is set while a connect attempt is running or a reconnect is
	// scheduled.  terminated is set once the session has been logged out or
	// shut down and is never cleared.
	active     bool
	terminated bool
	failures   []time.Time
}

func newTenantSession(tenantID domain.TenantID, tenantName string) *TenantSession {
	if tenantName == "" {
		tenantName = string(tenantID)
	}
	return &TenantSession{
		tenantID:   tenantID,
		tenantName: tenantName,
		state:      domain.Connecting,
	}
}

func (s *TenantSession) TenantID() domain.TenantID {
	return s.tenantID
}

func (s *TenantSession) TenantName() string {
	return s.tenantName
}

func (s *TenantSession) State() domain.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *TenantSession) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := SessionSnapshot{
		TenantID:   s.tenantID,
		TenantName: s.tenantName,
		State:      s.state,
	}

	switch s.state {
	case domain.AwaitingPairing:
		snapshot.PairingCode = s.pairingCode
	case domain.Open:
		snapshot.Phone = s.self.Phone()
	}

	return snapshot
}

func (s *TenantSession) status() domain.SessionStatus {
	snapshot := s.Snapshot()
	return domain.SessionStatus{
		TenantID:   snapshot.TenantID,
		TenantName: snapshot.TenantName,
		State:      snapshot.State,
		Phone:      snapshot.Phone,
	}
}

// openConnection returns the connection only when messages can be sent
func (s *TenantSession) openConnection() provider.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != domain.Open || s.terminated {
		return nil
	}
	return s.conn
}

// activate claims the right to run a connect attempt.  It fails when one is
// already running or scheduled, or when the session was terminated.
func (s *TenantSession) activate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active || s.terminated {
		return false
	}
	s.active = true
	return true
}

func (s *TenantSession) beginConnecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return false
	}
	s.state = domain.Connecting
	s.pairingCode = ""
	s.conn = nil
	return true
}

func (s *TenantSession) attach(conn provider.Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return false
	}
	s.conn = conn
	return true
}

func (s *TenantSession) awaitPairing(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return false
	}
	s.state = domain.AwaitingPairing
	s.pairingCode = code
	return true
}

func (s *TenantSession) open(self domain.JID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return false
	}
	s.state = domain.Open
	s.pairingCode = ""
	s.self = self
	s.failures = nil
	return true
}

// detach marks the session closed after its connection went away.  The
// session stays active so that a reconnect can be scheduled.
func (s *TenantSession) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.Closed
	s.pairingCode = ""
	s.conn = nil
}

// giveUp leaves the session closed with nothing scheduled.  A later
// getOrCreate restarts it.
func (s *TenantSession) giveUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.Closed
	s.pairingCode = ""
	s.conn = nil
	s.active = false
	s.failures = nil
}

// terminate ends the session for good and hands back the connection, if
// any, so the caller can shut it down
func (s *TenantSession) terminate() provider.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn := s.conn
	s.terminated = true
	s.active = false
	s.state = domain.Closed
	s.pairingCode = ""
	s.conn = nil
	return conn
}

func (s *TenantSession) isTerminated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terminated
}

// recordFailure notes a transient closure and returns how many happened
// inside the window
func (s *TenantSession) recordFailure(now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.failures[:0]
	for _, f := range s.failures {
		if window <= 0 || now.Sub(f) < window {
			kept = append(kept, f)
		}
	}
	s.failures = append(kept, now)

	return len(s.failures)
}
