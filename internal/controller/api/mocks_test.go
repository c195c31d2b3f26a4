package api

import (
	"context"
	"errors"
	"sync"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/controller"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/provider"
)

type MockSessionManager struct {
	mu         sync.Mutex
	sessions   map[domain.TenantID]controller.SessionSnapshot
	connected  []string
	loggedOut  []domain.TenantID
	connectErr error
	logoutErr  error
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{sessions: make(map[domain.TenantID]controller.SessionSnapshot)}
}

func (m *MockSessionManager) put(snapshot controller.SessionSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[snapshot.TenantID] = snapshot
}

func (m *MockSessionManager) Connect(tenantID domain.TenantID, tenantName string) (controller.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectErr != nil {
		return controller.SessionSnapshot{}, m.connectErr
	}

	m.connected = append(m.connected, string(tenantID)+"/"+tenantName)

	snapshot, found := m.sessions[tenantID]
	if !found {
		snapshot = controller.SessionSnapshot{TenantID: tenantID, TenantName: tenantName, State: domain.Connecting}
		m.sessions[tenantID] = snapshot
	}
	return snapshot, nil
}

func (m *MockSessionManager) Status(tenantID domain.TenantID) (controller.SessionSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, found := m.sessions[tenantID]
	if !found {
		return controller.SessionSnapshot{TenantID: tenantID, State: domain.Closed}, false
	}
	return snapshot, true
}

func (m *MockSessionManager) ListActive() []controller.ActiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []controller.ActiveSession
	for _, s := range m.sessions {
		active = append(active, controller.ActiveSession{
			TenantID:   s.TenantID,
			TenantName: s.TenantName,
			Connected:  s.State == domain.Open,
			State:      s.State,
		})
	}
	return active
}

func (m *MockSessionManager) Logout(ctx context.Context, tenantID domain.TenantID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.logoutErr != nil {
		return m.logoutErr
	}

	m.loggedOut = append(m.loggedOut, tenantID)
	delete(m.sessions, tenantID)
	return nil
}

type sentMessage struct {
	TenantID    domain.TenantID
	Destination string
	Text        string
}

var errMockSendFailed = errors.New("send failed")

type MockMessageSender struct {
	mu        sync.Mutex
	sent      []sentMessage
	sendErr   error
	groups    []provider.Group
	groupsErr error
}

func (m *MockMessageSender) Send(ctx context.Context, tenantID domain.TenantID, destination string, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return "", m.sendErr
	}

	if _, err := domain.NormalizeDestination(destination); err != nil {
		return "", err
	}

	m.sent = append(m.sent, sentMessage{TenantID: tenantID, Destination: destination, Text: text})
	return "msg-1", nil
}

func (m *MockMessageSender) ListGroups(ctx context.Context, tenantID domain.TenantID) ([]provider.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.groupsErr != nil {
		return nil, m.groupsErr
	}
	return m.groups, nil
}
