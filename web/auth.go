package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/security"
	"github.com/infigaming-com/go-authredis/web/middleware"
)

const ValidateSessionsPermission = "sessions:validate"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type subjectResponse struct {
	Principal      string    `json:"principal"`
	SessionID      string    `json:"session_id"`
	StartTimestamp time.Time `json:"start_timestamp"`
	LastAccessTime time.Time `json:"last_access_time"`
}

type authHandler struct {
	lg     *zap.Logger
	secm   security.SecurityManager
	secure bool
}

// AuthRoutes mounts login, logout, me and session validation under /auth.
// The router must already run middleware.SessionMiddleware. authenticated
// handlers run on every route that requires a principal, right after the
// authentication check.
func AuthRoutes(lg *zap.Logger, secm security.SecurityManager, secureCookie bool, authenticated ...gin.HandlerFunc) func(r gin.IRouter) {
	if lg == nil {
		lg = zap.L()
	}
	h := &authHandler{lg: lg, secm: secm, secure: secureCookie}
	return func(r gin.IRouter) {
		g := r.Group("/auth")
		g.POST("/login", h.login)
		g.POST("/logout", h.logout)

		authed := g.Group("", append([]gin.HandlerFunc{middleware.RequireAuthentication()}, authenticated...)...)
		authed.GET("/me", h.me)
		authed.POST("/sessions/validate", middleware.RequirePermission(secm, ValidateSessionsPermission), h.validateSessions)
	}
}

func (h *authHandler) cookieName() string {
	return h.secm.SessionManager().CookieName()
}

func (h *authHandler) login(c *gin.Context) {
	token := security.Token{Host: c.ClientIP()}
	if bearer, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		token.Bearer = strings.TrimSpace(bearer)
	} else {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login request"})
			return
		}
		token.Username, token.Password = req.Username, req.Password
	}

	ctx := c.Request.Context()
	subject, err := h.secm.Login(ctx, token)
	if err != nil {
		if errors.Is(err, security.ErrAuthentication) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": security.ErrAuthentication.Error()})
			return
		}
		h.lg.Error("login failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}

	// A fresh session replaces whatever the client came in with.
	if previous, ok := middleware.SessionFromContext(c); ok {
		if err := h.secm.Logout(ctx, previous.ID); err != nil {
			h.lg.Warn("failed to stop previous session", zap.String("session_id", previous.ID), zap.Error(err))
		}
	}

	middleware.SetSessionCookie(c, h.cookieName(), subject.Session.ID, "/", h.secure)
	c.JSON(http.StatusOK, toSubjectResponse(subject))
}

func (h *authHandler) logout(c *gin.Context) {
	if s, ok := middleware.SessionFromContext(c); ok {
		if err := h.secm.Logout(c.Request.Context(), s.ID); err != nil {
			h.lg.Error("logout failed", zap.String("session_id", s.ID), zap.Error(err))
			c.Status(http.StatusInternalServerError)
			return
		}
	}
	middleware.ClearSessionCookie(c, h.cookieName(), "/", h.secure)
	c.Status(http.StatusNoContent)
}

func (h *authHandler) me(c *gin.Context) {
	subject, _ := middleware.SubjectFromContext(c)
	c.JSON(http.StatusOK, toSubjectResponse(subject))
}

func (h *authHandler) validateSessions(c *gin.Context) {
	removed, err := h.secm.SessionManager().ValidateSessions(c.Request.Context())
	if err != nil {
		h.lg.Error("session validation failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func toSubjectResponse(s *security.Subject) subjectResponse {
	return subjectResponse{
		Principal:      s.Principal,
		SessionID:      s.Session.ID,
		StartTimestamp: s.Session.StartTimestamp,
		LastAccessTime: s.Session.LastAccessTime,
	}
}
