package editor

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/layout"
	"github.com/fleveque/promo-composer/internal/render"
)

var (
	ErrSessionNotFound = errors.New("editor session not found")
	ErrTooManySessions = errors.New("too many editor sessions")
)

// Manager keeps the editor surfaces behind the HTTP session endpoints.
type Manager struct {
	registry      *layout.Registry
	renderer      *render.Renderer
	frameInterval time.Duration
	maxSessions   int
	logger        *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	surface  *Surface
	lastUsed time.Time
}

// NewManager creates a session manager. maxSessions <= 0 means unlimited.
func NewManager(registry *layout.Registry, renderer *render.Renderer, frameInterval time.Duration, maxSessions int, logger *zap.Logger) *Manager {
	return &Manager{
		registry:      registry,
		renderer:      renderer,
		frameInterval: frameInterval,
		maxSessions:   maxSessions,
		logger:        logger,
		sessions:      make(map[string]*session),
	}
}

// Create opens a new session and returns its ID.
func (m *Manager) Create() (string, *Surface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return "", nil, ErrTooManySessions
	}

	id, err := newSessionID()
	if err != nil {
		return "", nil, err
	}

	surface := NewSurface(m.registry, m.renderer, m.frameInterval, m.logger.With(zap.String("session", id)))
	m.sessions[id] = &session{surface: surface, lastUsed: time.Now()}
	m.logger.Info("editor session created", zap.String("session", id))
	return id, surface, nil
}

// Get returns the session's surface and marks it used.
func (m *Manager) Get(id string) (*Surface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.lastUsed = time.Now()
	return s.surface, nil
}

// Delete closes and removes a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.surface.Close()
	return nil
}

// Expire closes sessions idle for longer than maxIdle and returns how many it removed.
func (m *Manager) Expire(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var stale []*Surface
	for id, s := range m.sessions {
		if s.lastUsed.Before(cutoff) {
			stale = append(stale, s.surface)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		m.logger.Info("expired idle editor sessions", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.surface.Close()
	}
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
