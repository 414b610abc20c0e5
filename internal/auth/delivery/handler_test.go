package delivery_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-analyzer-backend/internal/auth/delivery"
	authdomain "email-analyzer-backend/internal/auth/domain"
	authdto "email-analyzer-backend/internal/auth/dto"
	"email-analyzer-backend/pkg/config"
)

type stubAuth struct {
	callbackCode string
}

func (s *stubAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (s *stubAuth) HandleGoogleCallback(_ context.Context, code string) (*authdto.TokenResponse, error) {
	s.callbackCode = code
	return &authdto.TokenResponse{AccessToken: "session-jwt", ExpiresIn: 3600, User: &authdomain.User{ID: "u1"}}, nil
}

func (s *stubAuth) ValidateToken(token string) (*authdomain.User, error) {
	if token != "good" {
		return nil, errors.New("invalid token")
	}
	return &authdomain.User{ID: "u1", Email: "ada@example.com"}, nil
}

func (s *stubAuth) RegisterFCMToken(string, string, string) error { return nil }
func (s *stubAuth) UnregisterFCMToken(string, string) error      { return nil }

func newRouter(auth *stubAuth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{FrontendURL: "http://app.example.com", AdminToken: "admin-secret"}
	h := delivery.NewAuthHandler(auth, cfg)

	r := gin.New()
	r.GET("/auth/google", h.GoogleLogin)
	r.GET("/auth/google/callback", h.GoogleCallback)
	r.GET("/api/auth/me", delivery.AuthMiddleware(auth), h.Me)
	r.POST("/api/admin/ping", delivery.AdminMiddleware(cfg.AdminToken), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(&stubAuth{})

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer", func(req *http.Request) { req.Header.Set("Authorization", "Bearer good") }, http.StatusOK},
		{"bad bearer", func(req *http.Request) { req.Header.Set("Authorization", "Bearer bad") }, http.StatusUnauthorized},
		{"malformed header", func(req *http.Request) { req.Header.Set("Authorization", "good") }, http.StatusUnauthorized},
		{"cookie", func(req *http.Request) { req.AddCookie(&http.Cookie{Name: delivery.TokenCookie, Value: "good"}) }, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestGoogleLoginAndCallback(t *testing.T) {
	auth := &stubAuth{}
	r := newRouter(auth)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "oauth_state" {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie)

	// mismatched state is rejected
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc&state=other", nil)
	req.AddCookie(stateCookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, auth.callbackCode)

	req = httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc&state="+state, nil)
	req.AddCookie(stateCookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "http://app.example.com/dashboard", w.Header().Get("Location"))
	assert.Equal(t, "abc", auth.callbackCode)

	var session string
	for _, c := range w.Result().Cookies() {
		if c.Name == delivery.TokenCookie {
			session = c.Value
		}
	}
	assert.Equal(t, "session-jwt", session)
}

func TestAdminMiddleware(t *testing.T) {
	r := newRouter(&stubAuth{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/ping", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/ping", nil)
	req.Header.Set("X-Admin-Token", "admin-secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
