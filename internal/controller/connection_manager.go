package controller

import (
	"sort"
	"sync"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

type SessionLocator interface {
	Get(tenantID domain.TenantID) *TenantSession
	ListActive() []ActiveSession
}

// SessionRegistry holds at most one session per tenant.  Only the lifecycle
// controller adds or removes entries.
type SessionRegistry struct {
	sessions map[domain.TenantID]*TenantSession
	sync.RWMutex
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[domain.TenantID]*TenantSession),
	}
}

func (r *SessionRegistry) Get(tenantID domain.TenantID) *TenantSession {
	r.RLock()
	defer r.RUnlock()
	return r.sessions[tenantID]
}

// ListActive returns every registered session sorted by tenant id
func (r *SessionRegistry) ListActive() []ActiveSession {
	r.RLock()
	defer r.RUnlock()

	active := make([]ActiveSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		state := s.State()
		active = append(active, ActiveSession{
			TenantID:   s.tenantID,
			TenantName: s.tenantName,
			Connected:  state == domain.Open,
			State:      state,
		})
	}

	sort.Slice(active, func(i, j int) bool { return active[i].TenantID < active[j].TenantID })

	return active
}

func (r *SessionRegistry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.sessions)
}

// getOrInsert returns the existing session for the tenant, or inserts the
// one built by newSession.  No I/O happens under the lock.
func (r *SessionRegistry) getOrInsert(tenantID domain.TenantID, newSession func() *TenantSession) (*TenantSession, bool) {
	r.Lock()
	defer r.Unlock()

	if s, exists := r.sessions[tenantID]; exists {
		return s, false
	}

	s := newSession()
	r.sessions[tenantID] = s

	logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID}).Info("Registered a session")
	metrics.registeredSessionsGauge.Set(float64(len(r.sessions)))

	return s, true
}

// removeIf deletes the tenant's entry only if it is still the given session
func (r *SessionRegistry) removeIf(tenantID domain.TenantID, s *TenantSession) bool {
	r.Lock()
	defer r.Unlock()

	current, exists := r.sessions[tenantID]
	if !exists || current != s {
		return false
	}

	delete(r.sessions, tenantID)

	logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID}).Info("Unregistered a session")
	metrics.registeredSessionsGauge.Set(float64(len(r.sessions)))

	return true
}

func (r *SessionRegistry) contains(tenantID domain.TenantID, s *TenantSession) bool {
	r.RLock()
	defer r.RUnlock()
	return r.sessions[tenantID] == s
}

// whileAbsent runs f when the tenant has no registered session.  No session
// can be registered for any tenant until f returns.
func (r *SessionRegistry) whileAbsent(tenantID domain.TenantID, f func()) bool {
	r.Lock()
	defer r.Unlock()

	if _, exists := r.sessions[tenantID]; exists {
		return false
	}

	f()
	return true
}

func (r *SessionRegistry) all() []*TenantSession {
	r.RLock()
	defer r.RUnlock()

	sessions := make([]*TenantSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}
