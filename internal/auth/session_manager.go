// Package auth ties the agent's session to the Smart Supply API token: login
// verifies the token and starts periodic customer sync, logout stops it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/smartsupply/agent/internal/monitoring"
	"github.com/smartsupply/agent/internal/remote"
	"github.com/smartsupply/agent/pkg/logger"
)

// DefaultSyncRole is the role whose sessions keep the customer cache fresh.
const DefaultSyncRole = "ADMIN"

// ErrNotLoggedIn is returned by Logout when no session is active.
var ErrNotLoggedIn = errors.New("auth: not logged in")

// Verifier sends the bearer token to the API.
type Verifier interface {
	SetToken(token string)
	VerifyToken(ctx context.Context) (remote.User, error)
}

// SyncController starts and stops periodic customer sync.
type SyncController interface {
	StartPeriodicSync(ctx context.Context) error
	StopPeriodicSync()
}

// CacheClearer empties the customer directory.
type CacheClearer interface {
	ClearAll(ctx context.Context) error
}

// ManagerConfig tunes the SessionManager.
type ManagerConfig struct {
	SyncRoles     []string
	ClearOnLogout bool
	Clock         clockwork.Clock
	Logger        *zap.Logger
}

// Session describes the logged-in user.
type Session struct {
	User        remote.User `json:"user"`
	LoggedInAt  time.Time   `json:"loggedInAt"`
	ExpiresAt   *time.Time  `json:"expiresAt,omitempty"`
	SyncEnabled bool        `json:"syncEnabled"`
}

// SessionManager owns the single session of the agent.
type SessionManager struct {
	verifier Verifier
	syncer   SyncController
	cache    CacheClearer

	syncRoles     []string
	clearOnLogout bool
	clock         clockwork.Clock
	log           *zap.Logger

	// opMu serialises Login and Logout and guards token; mu guards current.
	opMu    sync.Mutex
	token   string
	mu      sync.RWMutex
	current *Session
}

// NewSessionManager builds a SessionManager. cache may be nil when the
// directory is never cleared on logout.
func NewSessionManager(verifier Verifier, syncer SyncController, cache CacheClearer, cfg ManagerConfig) *SessionManager {
	roles := make([]string, 0, len(cfg.SyncRoles))
	for _, role := range cfg.SyncRoles {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		roles = []string{DefaultSyncRole}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.WithModule("auth")
	}

	return &SessionManager{
		verifier:      verifier,
		syncer:        syncer,
		cache:         cache,
		syncRoles:     roles,
		clearOnLogout: cfg.ClearOnLogout,
		clock:         clock,
		log:           log,
	}
}

// Login verifies token with the API and makes it the agent's session.
// Periodic sync starts when the user's role is one of the sync roles. A
// previous session is replaced only once the new token is accepted.
func (m *SessionManager) Login(ctx context.Context, token string) (Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	info, err := InspectToken(token, m.clock.Now())
	if err != nil {
		monitoring.RecordLogin("invalid")
		return Session{}, err
	}

	m.verifier.SetToken(token)
	user, err := m.verifier.VerifyToken(ctx)
	if err != nil {
		m.verifier.SetToken(m.token)
		if remote.IsStatus(err, http.StatusUnauthorized) || remote.IsStatus(err, http.StatusForbidden) ||
			errors.Is(err, remote.ErrUnsuccessful) {
			monitoring.RecordLogin("rejected")
			return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		monitoring.RecordLogin("failure")
		return Session{}, fmt.Errorf("auth: verify token: %w", err)
	}

	m.syncer.StopPeriodicSync()
	m.token = token

	session := Session{User: user, LoggedInAt: m.clock.Now()}
	if !info.ExpiresAt.IsZero() {
		expires := info.ExpiresAt
		session.ExpiresAt = &expires
	}

	if m.syncAllowed(user.Role) {
		if err := m.syncer.StartPeriodicSync(ctx); err != nil {
			m.log.Warn("periodic customer sync not started", zap.String("user", user.ID), zap.Error(err))
		} else {
			session.SyncEnabled = true
		}
	} else {
		m.log.Debug("role does not sync customers", zap.String("user", user.ID), zap.String("role", user.Role))
	}

	m.mu.Lock()
	m.current = &session
	m.mu.Unlock()

	monitoring.RecordLogin("success")
	m.log.Info("session started",
		zap.String("user", user.ID),
		zap.String("role", user.Role),
		zap.Bool("sync", session.SyncEnabled),
	)
	return session, nil
}

// Logout ends the session: periodic sync stops, the token is dropped and,
// when configured, the customer directory is cleared.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	active := m.current != nil
	m.mu.RUnlock()
	if !active {
		return ErrNotLoggedIn
	}

	m.endLocked()

	if m.clearOnLogout && m.cache != nil {
		if err := m.cache.ClearAll(ctx); err != nil {
			return fmt.Errorf("auth: clear customer cache: %w", err)
		}
	}
	m.log.Info("session ended")
	return nil
}

// Current returns the active session.
func (m *SessionManager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// ExpireIfDue ends the session once its token has expired and reports
// whether it did. The cache is left as it is.
func (m *SessionManager) ExpireIfDue() bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()
	if current == nil || current.ExpiresAt == nil || m.clock.Now().Before(*current.ExpiresAt) {
		return false
	}

	m.endLocked()
	m.log.Info("session expired", zap.String("user", current.User.ID))
	return true
}

// Close stops sync and forgets the session without touching the cache.
func (m *SessionManager) Close() {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.endLocked()
}

// endLocked must be called with opMu held.
func (m *SessionManager) endLocked() {
	m.syncer.StopPeriodicSync()
	m.verifier.SetToken("")
	m.token = ""
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

func (m *SessionManager) syncAllowed(role string) bool {
	role = strings.TrimSpace(role)
	for _, allowed := range m.syncRoles {
		if strings.EqualFold(allowed, role) {
			return true
		}
	}
	return false
}
