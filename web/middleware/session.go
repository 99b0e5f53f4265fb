package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/security"
	"github.com/infigaming-com/go-authredis/session"
	"github.com/infigaming-com/go-authredis/util"
)

const (
	sessionContextKey = "authredis.session"
	subjectContextKey = "authredis.subject"
)

type sessionOptions struct {
	lg         *zap.Logger
	autoCreate bool
	cookiePath string
	secure     bool
}

type SessionOption func(*sessionOptions)

func WithSessionLogger(lg *zap.Logger) SessionOption {
	return func(o *sessionOptions) {
		if lg != nil {
			o.lg = lg
		}
	}
}

// WithAutoCreate starts a session for requests that arrive without a
// usable one.
func WithAutoCreate(autoCreate bool) SessionOption {
	return func(o *sessionOptions) {
		o.autoCreate = autoCreate
	}
}

func WithCookiePath(path string) SessionOption {
	return func(o *sessionOptions) {
		o.cookiePath = path
	}
}

func WithSecureCookie(secure bool) SessionOption {
	return func(o *sessionOptions) {
		o.secure = secure
	}
}

func newSessionOptions(opts []SessionOption) *sessionOptions {
	o := &sessionOptions{lg: zap.L(), cookiePath: "/"}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SessionMiddleware resolves the session named by the session cookie. A
// missing or expired session leaves the request anonymous unless
// auto-create is on. Store failures abort with 500.
func SessionMiddleware(sm security.SessionManager, opts ...SessionOption) gin.HandlerFunc {
	o := newSessionOptions(opts)
	name := sm.CookieName()

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var s *session.Session
		if id, err := c.Cookie(name); err == nil && id != "" {
			s, err = sm.Get(ctx, id)
			switch {
			case err == nil:
			case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, security.ErrExpiredSession):
				o.lg.Debug("dropping stale session cookie", zap.String("session_id", id), zap.Error(err))
				ClearSessionCookie(c, name, o.cookiePath, o.secure)
				s = nil
			default:
				o.lg.Error("failed to load session", zap.String("session_id", id), zap.Error(err))
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
		}

		if s == nil && o.autoCreate {
			var err error
			s, err = sm.Start(ctx, c.ClientIP())
			if err != nil {
				o.lg.Error("failed to start session", zap.Error(err))
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			SetSessionCookie(c, name, s.ID, o.cookiePath, o.secure)
		}

		if s != nil {
			c.Set(sessionContextKey, s)
			c.Request = c.Request.WithContext(util.SessionIdToCtx(ctx, s.ID))
		}
		c.Next()
	}
}

// SessionFromContext returns the session resolved by SessionMiddleware.
func SessionFromContext(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok
}

func SetSessionCookie(c *gin.Context, name, id, path string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, id, 0, path, "", secure, true)
}

func ClearSessionCookie(c *gin.Context, name, path string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, path, "", secure, true)
}

// RequireAuthentication rejects requests whose session carries no
// principal. It must run after SessionMiddleware.
func RequireAuthentication() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := SessionFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": security.ErrNotAuthenticated.Error()})
			return
		}
		principal, ok := s.Attribute(security.PrincipalAttribute)
		if !ok || principal == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": security.ErrNotAuthenticated.Error()})
			return
		}
		c.Set(subjectContextKey, &security.Subject{Principal: principal, Session: s})
		c.Request = c.Request.WithContext(util.PrincipalToCtx(c.Request.Context(), principal))
		c.Next()
	}
}

// RequirePermission rejects authenticated requests whose principal is not
// granted permission. It must run after RequireAuthentication.
func RequirePermission(secm security.SecurityManager, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := SubjectFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": security.ErrNotAuthenticated.Error()})
			return
		}
		permitted, err := secm.IsPermitted(c.Request.Context(), subject.Principal, permission)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if !permitted {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}

func SubjectFromContext(c *gin.Context) (*security.Subject, bool) {
	v, ok := c.Get(subjectContextKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*security.Subject)
	return s, ok
}
