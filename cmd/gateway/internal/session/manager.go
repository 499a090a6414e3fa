// Package session owns the connect -> authenticate -> active -> disconnect
// lifecycle and binds each session to its subscriptions.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/instrument"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/subscription"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrSendBufferFull = errors.New("send buffer full")
	ErrClientClosed   = errors.New("client closed")
)

// Client is the transport side of a session. SendJSON must not block.
type Client interface {
	ID() string
	SendJSON(v interface{}) error
	Close()
}

// SnapshotSource provides the current state of every supported instrument.
type SnapshotSource interface {
	Snapshot() []models.Quote
}

type State int32

const (
	StateConnected State = iota
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type Session struct {
	id     string
	client Client

	mu       sync.Mutex
	state    State
	identity string
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Client() Client { return s.client }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

type Manager struct {
	catalog   *instrument.Catalog
	registry  *subscription.Registry
	snapshots SnapshotSource
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(catalog *instrument.Catalog, registry *subscription.Registry, snapshots SnapshotSource, logger *zap.Logger) *Manager {
	return &Manager{
		catalog:   catalog,
		registry:  registry,
		snapshots: snapshots,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Connect allocates an unauthenticated session for client.
func (m *Manager) Connect(client Client) *Session {
	s := &Session{
		id:     uuid.NewString(),
		client: client,
		state:  StateConnected,
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Info("Client connected", zap.String("session", s.id), zap.String("client", client.ID()))
	return s
}

// Authenticate activates the session with the full default subscription set
// and sends it an authResult followed by one unfiltered initialSnapshot.
// The first identity bound to a session is kept on re-authentication.
func (m *Manager) Authenticate(sessionID, identity string) (protocol.AuthResult, error) {
	s, ok := m.get(sessionID)
	if !ok {
		return protocol.AuthResult{}, ErrUnknownSession
	}

	symbols := m.catalog.Symbols()

	// Held through both sends; a tick sees the session active only after the snapshot.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return protocol.AuthResult{}, ErrUnknownSession
	}
	if s.identity == "" {
		s.identity = identity
	}
	s.state = StateActive
	m.registry.Set(sessionID, symbols)
	res := protocol.AuthResult{Identity: s.identity, SupportedInstruments: symbols}

	m.logger.Info("User logged in", zap.String("session", sessionID), zap.String("identity", res.Identity))

	if err := s.client.SendJSON(protocol.NewAuthResult(res)); err != nil {
		m.logger.Warn("Failed to send auth result", zap.String("session", sessionID), zap.Error(err))
	}
	if err := s.client.SendJSON(protocol.NewInitialSnapshot(m.snapshots.Snapshot())); err != nil {
		m.logger.Warn("Failed to send initial snapshot", zap.String("session", sessionID), zap.Error(err))
	}

	return res, nil
}

// UpdateSubscriptions replaces the session's subscriptions. It is a no-op
// returning false unless the session is active.
func (m *Manager) UpdateSubscriptions(sessionID string, symbols []string) (subscription.Set, bool) {
	s, ok := m.get(sessionID)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		m.logger.Debug("Ignoring subscription update before authentication", zap.String("session", sessionID))
		return nil, false
	}

	set := m.registry.Set(sessionID, symbols)
	m.logger.Info("Subscriptions updated", zap.String("session", sessionID), zap.Strings("symbols", set.Symbols()))
	return set, true
}

// Disconnect terminates the session, drops its subscriptions and closes the client.
// Calling it again, or for an unknown id, does nothing.
func (m *Manager) Disconnect(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.state = StateTerminated
	m.registry.Remove(sessionID)
	s.mu.Unlock()

	s.client.Close()
	m.logger.Info("Client disconnected", zap.String("session", sessionID))
}

// Active returns the sessions that were active at the time of the call.
func (m *Manager) Active() []*Session {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	active := all[:0]
	for _, s := range all {
		if s.State() == StateActive {
			active = append(active, s)
		}
	}
	return active
}

// Get looks up a live session; terminated sessions are gone.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	return m.get(sessionID)
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}
