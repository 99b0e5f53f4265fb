package security

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/cache"
	"github.com/infigaming-com/go-authredis/session"
)

const (
	AuthorizationCacheName = "authorizationCache"

	// PrincipalAttribute is the session attribute holding the logged in
	// principal.
	PrincipalAttribute = "principal"
)

// Subject is an authenticated principal bound to its session.
type Subject struct {
	Principal string
	Session   *session.Session
}

type SecurityManager interface {
	Login(ctx context.Context, token Token) (*Subject, error)
	Logout(ctx context.Context, sessionID string) error
	// Subject resolves the principal logged in on a session.
	Subject(ctx context.Context, sessionID string) (*Subject, error)
	IsPermitted(ctx context.Context, principal, permission string) (bool, error)
	HasRole(ctx context.Context, principal, role string) (bool, error)
	SessionManager() SessionManager
}

// AuthenticationListener observes logins and logouts. Callbacks run
// synchronously on the calling goroutine.
type AuthenticationListener interface {
	OnLoginSuccess(ctx context.Context, token Token, subject *Subject)
	OnLoginFailure(ctx context.Context, token Token, err error)
	OnLogout(ctx context.Context, principal, sessionID string)
}

type SecurityManagerOption func(*DefaultSecurityManager)

func WithAuthenticationListener(l AuthenticationListener) SecurityManagerOption {
	return func(m *DefaultSecurityManager) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

func WithSecurityLogger(lg *zap.Logger) SecurityManagerOption {
	return func(m *DefaultSecurityManager) {
		if lg != nil {
			m.lg = lg
		}
	}
}

type DefaultSecurityManager struct {
	realms    []Realm
	sessions  SessionManager
	caches    cache.Manager
	listeners []AuthenticationListener
	lg        *zap.Logger
}

var _ SecurityManager = (*DefaultSecurityManager)(nil)

// NewSecurityManager consults realms in order. A nil cacheManager disables
// authorization caching.
func NewSecurityManager(realms []Realm, sessions SessionManager, cacheManager cache.Manager, opts ...SecurityManagerOption) *DefaultSecurityManager {
	m := &DefaultSecurityManager{
		realms:   append([]Realm(nil), realms...),
		sessions: sessions,
		caches:   cacheManager,
		lg:       zap.L(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *DefaultSecurityManager) SessionManager() SessionManager {
	return m.sessions
}

func (m *DefaultSecurityManager) Realms() []Realm {
	return append([]Realm(nil), m.realms...)
}

func (m *DefaultSecurityManager) CacheManager() cache.Manager {
	return m.caches
}

// Login authenticates against the first realm that accepts the token and
// starts a session for the principal.
func (m *DefaultSecurityManager) Login(ctx context.Context, token Token) (*Subject, error) {
	info, err := m.authenticate(ctx, token)
	if err != nil {
		for _, l := range m.listeners {
			l.OnLoginFailure(ctx, token, err)
		}
		return nil, err
	}

	s, err := m.sessions.Start(ctx, token.Host)
	if err != nil {
		return nil, err
	}
	s.SetAttribute(PrincipalAttribute, info.Principal)
	if err := m.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to bind principal to session: %w", err)
	}

	m.lg.Info("login succeeded", zap.String("principal", info.Principal), zap.String("realm", info.Realm))
	subject := &Subject{Principal: info.Principal, Session: s}
	for _, l := range m.listeners {
		l.OnLoginSuccess(ctx, token, subject)
	}
	return subject, nil
}

func (m *DefaultSecurityManager) authenticate(ctx context.Context, token Token) (AuthenticationInfo, error) {
	lastErr := ErrUnsupportedToken
	for _, realm := range m.realms {
		info, err := realm.Authenticate(ctx, token)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, ErrUnsupportedToken) {
			lastErr = err
		}
		m.lg.Debug("realm rejected token", zap.String("realm", realm.Name()), zap.Error(err))
	}
	return AuthenticationInfo{}, fmt.Errorf("%w: %w", ErrAuthentication, lastErr)
}

// Logout drops the cached authorization of the session's principal and
// stops the session.
func (m *DefaultSecurityManager) Logout(ctx context.Context, sessionID string) error {
	subject, err := m.Subject(ctx, sessionID)
	if err == nil {
		m.clearAuthorization(ctx, subject.Principal)
	}
	if err := m.sessions.Stop(ctx, sessionID); err != nil {
		return err
	}
	if subject != nil {
		for _, l := range m.listeners {
			l.OnLogout(ctx, subject.Principal, sessionID)
		}
	}
	return nil
}

func (m *DefaultSecurityManager) Subject(ctx context.Context, sessionID string) (*Subject, error) {
	s, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	principal, ok := s.Attribute(PrincipalAttribute)
	if !ok || principal == "" {
		return nil, ErrNotAuthenticated
	}
	return &Subject{Principal: principal, Session: s}, nil
}

func (m *DefaultSecurityManager) IsPermitted(ctx context.Context, principal, permission string) (bool, error) {
	info, err := m.authorizationInfo(ctx, principal)
	if err != nil {
		return false, err
	}
	return impliesAny(info.Permissions, permission), nil
}

func (m *DefaultSecurityManager) HasRole(ctx context.Context, principal, role string) (bool, error) {
	info, err := m.authorizationInfo(ctx, principal)
	if err != nil {
		return false, err
	}
	return lo.Contains(info.Roles, role), nil
}

func (m *DefaultSecurityManager) authorizationCache() cache.Cache {
	if m.caches == nil {
		return nil
	}
	c, err := m.caches.GetCache(AuthorizationCacheName)
	if err != nil {
		m.lg.Warn("authorization cache unavailable", zap.Error(err))
		return nil
	}
	return c
}

// authorizationInfo merges what every realm grants the principal, served
// from the authorization cache when present.
func (m *DefaultSecurityManager) authorizationInfo(ctx context.Context, principal string) (AuthorizationInfo, error) {
	if principal == "" {
		return AuthorizationInfo{}, ErrNotAuthenticated
	}

	c := m.authorizationCache()
	if c != nil {
		info, err := cache.GetTyped[AuthorizationInfo](ctx, c, principal)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, cache.ErrKeyNotFound) {
			m.lg.Warn("failed to read authorization cache", zap.String("principal", principal), zap.Error(err))
		}
	}

	var merged AuthorizationInfo
	for _, realm := range m.realms {
		info, err := realm.Authorize(ctx, principal)
		if err != nil {
			return AuthorizationInfo{}, fmt.Errorf("realm %s: %w", realm.Name(), err)
		}
		merged.Roles = append(merged.Roles, info.Roles...)
		merged.Permissions = append(merged.Permissions, info.Permissions...)
	}
	merged.Roles = lo.Uniq(merged.Roles)
	merged.Permissions = lo.Uniq(merged.Permissions)

	if c != nil {
		if err := cache.PutTyped(ctx, c, principal, merged); err != nil {
			m.lg.Warn("failed to write authorization cache", zap.String("principal", principal), zap.Error(err))
		}
	}
	return merged, nil
}

func (m *DefaultSecurityManager) clearAuthorization(ctx context.Context, principal string) {
	c := m.authorizationCache()
	if c == nil {
		return
	}
	if err := c.Remove(ctx, principal); err != nil {
		m.lg.Warn("failed to clear authorization cache", zap.String("principal", principal), zap.Error(err))
	}
}
