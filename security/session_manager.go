package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/locker"
	"github.com/infigaming-com/go-authredis/session"
)

const (
	DefaultGlobalSessionTimeout = 30 * time.Minute
	DefaultCookieName           = "SESSIONID"

	validationLockKey = "session-validation"
)

// SessionManager drives session lifecycles on top of a session.Store.
type SessionManager interface {
	Start(ctx context.Context, host string) (*session.Session, error)
	// Get returns a live session and records the access. Sessions found
	// invalid are removed and reported as ErrExpiredSession.
	Get(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
	Stop(ctx context.Context, id string) error
	// ValidateSessions removes every invalid session and returns how many
	// were removed.
	ValidateSessions(ctx context.Context) (int, error)
	CookieName() string
}

type SessionManagerOption func(*DefaultSessionManager)

func WithGlobalSessionTimeout(d time.Duration) SessionManagerOption {
	return func(m *DefaultSessionManager) {
		m.timeout = d
	}
}

func WithCookieName(name string) SessionManagerOption {
	return func(m *DefaultSessionManager) {
		if name != "" {
			m.cookieName = name
		}
	}
}

// WithLocker guards ValidateSessions so only one process sweeps at a time.
func WithLocker(l locker.Locker) SessionManagerOption {
	return func(m *DefaultSessionManager) {
		m.locker = l
	}
}

func WithSessionLogger(lg *zap.Logger) SessionManagerOption {
	return func(m *DefaultSessionManager) {
		if lg != nil {
			m.lg = lg
		}
	}
}

func WithNowFunc(now func() time.Time) SessionManagerOption {
	return func(m *DefaultSessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

type DefaultSessionManager struct {
	store      session.Store
	locker     locker.Locker
	lg         *zap.Logger
	timeout    time.Duration
	cookieName string
	now        func() time.Time
}

var _ SessionManager = (*DefaultSessionManager)(nil)

func NewSessionManager(store session.Store, opts ...SessionManagerOption) *DefaultSessionManager {
	m := &DefaultSessionManager{
		store:      store,
		lg:         zap.L(),
		timeout:    DefaultGlobalSessionTimeout,
		cookieName: DefaultCookieName,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *DefaultSessionManager) Store() session.Store {
	return m.store
}

func (m *DefaultSessionManager) GlobalSessionTimeout() time.Duration {
	return m.timeout
}

func (m *DefaultSessionManager) CookieName() string {
	return m.cookieName
}

func (m *DefaultSessionManager) Start(ctx context.Context, host string) (*session.Session, error) {
	s := session.New(host, m.timeout, m.now())
	if _, err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	m.lg.Debug("session started", zap.String("session_id", s.ID), zap.String("host", host))
	return s, nil
}

func (m *DefaultSessionManager) Get(ctx context.Context, id string) (*session.Session, error) {
	s, err := m.store.Read(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.now()
	if !s.IsValid(now) {
		if err := m.store.Delete(ctx, id); err != nil {
			m.lg.Warn("failed to delete invalid session", zap.String("session_id", id), zap.Error(err))
		}
		return nil, ErrExpiredSession
	}

	s.Touch(now)
	if err := m.store.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to touch session %s: %w", id, err)
	}
	return s, nil
}

func (m *DefaultSessionManager) Save(ctx context.Context, s *session.Session) error {
	return m.store.Update(ctx, s)
}

// Stop ends the session. Stopping an unknown session is a no-op.
func (m *DefaultSessionManager) Stop(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return fmt.Errorf("failed to stop session %s: %w", id, err)
	}
	m.lg.Debug("session stopped", zap.String("session_id", id))
	return nil
}

func (m *DefaultSessionManager) ValidateSessions(ctx context.Context) (int, error) {
	if m.locker != nil {
		unlock, err := m.locker.TryLock(ctx, validationLockKey)
		if err != nil {
			if errors.Is(err, locker.ErrLockNotAcquired) {
				m.lg.Debug("session validation already running elsewhere")
				return 0, nil
			}
			return 0, err
		}
		defer func() { _ = unlock(ctx) }()
	}

	sessions, err := m.store.ActiveSessions(ctx)
	if err != nil {
		return 0, err
	}

	now := m.now()
	removed := 0
	for _, s := range sessions {
		if s.IsValid(now) {
			continue
		}
		if err := m.store.Delete(ctx, s.ID); err != nil {
			m.lg.Warn("failed to delete invalid session", zap.String("session_id", s.ID), zap.Error(err))
			continue
		}
		removed++
	}

	m.lg.Info("validated sessions", zap.Int("active", len(sessions)), zap.Int("removed", removed))
	return removed, nil
}
