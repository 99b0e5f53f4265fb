package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/infigaming-com/go-authredis/autoconfig"
	"github.com/infigaming-com/go-authredis/config"
	"github.com/infigaming-com/go-authredis/security"
	"github.com/infigaming-com/go-authredis/sessiontracker"
	"github.com/infigaming-com/go-authredis/web/middleware"
)

type testServer struct {
	mr      *miniredis.Miniredis
	handler http.Handler
	secm    security.SecurityManager
}

func newTestServer(t *testing.T, authenticated ...gin.HandlerFunc) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)

	accounts := map[string]security.Account{}
	for name, perms := range map[string][]string{
		"alice": {ValidateSessionsPermission},
		"bob":   nil,
	} {
		hash, err := security.HashPassword(name+"-pw", bcrypt.MinCost)
		require.NoError(t, err)
		accounts[name] = security.Account{PasswordHash: hash, Permissions: perms}
	}

	cfg := &config.Config{RedisManager: config.RedisManagerConfig{Host: config.Some(mr.Addr())}}
	comps, err := autoconfig.Compose(context.Background(), cfg,
		autoconfig.Provided{Realms: []security.Realm{security.NewStaticRealm("static", accounts)}},
		autoconfig.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close() })

	lg := zap.NewNop()
	s := NewServer(lg,
		WithMode(gin.TestMode),
		WithMiddleware(
			middleware.CorrelationIdMiddleware(),
			middleware.SessionMiddleware(comps.SessionManager, middleware.WithSessionLogger(lg)),
		),
		WithRoutes(AuthRoutes(lg, comps.SecurityManager, false, authenticated...)),
	)
	return &testServer{mr: mr, handler: s.Handler(), secm: comps.SecurityManager}
}

func (s *testServer) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, user string) *http.Cookie {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login", `{"username":"`+user+`","password":"`+user+`-pw"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == security.DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", security.DefaultCookieName)
	return nil
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/", "/healthcheck", "/api/healthcheck"} {
		rec := s.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestLoginMeLogout(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, "alice")
	assert.True(t, cookie.HttpOnly)

	rec := s.do(t, http.MethodGet, "/auth/me", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var me subjectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Principal)
	assert.Equal(t, cookie.Value, me.SessionID)
	assert.NotEmpty(t, rec.Header().Get(middleware.CorrelationIdKey))

	rec = s.do(t, http.MethodPost, "/auth/logout", "", cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)

	rec = s.do(t, http.MethodGet, "/auth/me", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejected(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/login", `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", `{"username":"mallory","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	s := newTestServer(t)
	first := s.login(t, "alice")

	rec := s.do(t, http.MethodPost, "/auth/login", `{"username":"alice","password":"alice-pw"}`, first)
	require.Equal(t, http.StatusOK, rec.Code)
	second := sessionCookie(t, rec)
	assert.NotEqual(t, first.Value, second.Value)

	_, err := s.secm.Subject(context.Background(), first.Value)
	assert.Error(t, err)
}

func TestMeWithoutSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stale := &http.Cookie{Name: security.DefaultCookieName, Value: "does-not-exist"}
	rec = s.do(t, http.MethodGet, "/auth/me", "", stale)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
}

func TestValidateSessionsRequiresPermission(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/sessions/validate", "", s.login(t, "bob"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/sessions/validate", "", s.login(t, "alice"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":0}`, rec.Body.String())
}

func TestSessionStoreFailure(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, "alice")
	s.mr.Close()

	rec := s.do(t, http.MethodGet, "/auth/me", "", cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fakeTracker struct {
	requests []*sessiontracker.TrackRequest
}

func (f *fakeTracker) Track(_ context.Context, req *sessiontracker.TrackRequest) error {
	f.requests = append(f.requests, req)
	return nil
}

func TestActivityTrackedOnAuthenticatedRoutes(t *testing.T) {
	tracker := &fakeTracker{}
	s := newTestServer(t, middleware.TrackActivity(tracker, zap.NewNop()))

	cookie := s.login(t, "alice")
	assert.Empty(t, tracker.requests)

	rec := s.do(t, http.MethodGet, "/auth/me", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, tracker.requests, 1)
	assert.Equal(t, "alice", tracker.requests[0].Principal)
	assert.Equal(t, cookie.Value, tracker.requests[0].SessionID)

	s.do(t, http.MethodGet, "/auth/me", "")
	assert.Len(t, tracker.requests, 1)
}
