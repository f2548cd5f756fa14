package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/agentdesk/internal/auth"
	"github.com/charlesng35/agentdesk/internal/models"
)

type fakeSessions map[string]*models.AgentSession

func (f fakeSessions) Validate(_ context.Context, sessionID string) (*models.AgentSession, error) {
	if s, ok := f[sessionID]; ok {
		return s, nil
	}
	return nil, iauth.ErrSessionNotFound
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)

	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		AgentID:   "agent-123",
		AccountID: "account-1",
		TenantID:  "tenant-1",
		SessionID: "session-abc",
	})
	require.NoError(t, err)

	sessions := fakeSessions{"session-abc": {ID: "session-abc", AgentID: "agent-123"}}

	r := gin.New()
	r.GET("/secure", Auth(jwtSvc, sessions), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"agent_id":   c.GetString(CtxAgentIDKey),
			"account_id": c.GetString(CtxAccountIDKey),
			"tenant_id":  c.GetString(CtxTenantIDKey),
			"session_id": c.GetString(CtxSessionIDKey),
		})
	})

	// Missing Authorization header -> 401
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	// Garbage token -> 401
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, `Bearer error="invalid_token", error_description="token invalid"`, w.Header().Get("WWW-Authenticate"))

	// Valid token -> downstream handler executes
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "agent-123", payload["agent_id"])
	require.Equal(t, "account-1", payload["account_id"])
	require.Equal(t, "tenant-1", payload["tenant_id"])
	require.Equal(t, "session-abc", payload["session_id"])

	// Revoked session -> 401 even though the JWT is still valid
	delete(sessions, "session-abc")
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("WWW-Authenticate"), "session revoked")
}

func TestAuthMiddlewareReportsExpiredToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	current := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "secret",
		AccessTokenTTL: time.Minute,
		Clock:          func() time.Time { return current },
	})
	require.NoError(t, err)
	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{AgentID: "agent-1", SessionID: "s-1"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/secure", Auth(jwtSvc, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	current = current.Add(time.Hour)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, `Bearer error="invalid_token", error_description="token expired"`, w.Header().Get("WWW-Authenticate"))
}

func TestAuthMiddlewareRejectsSessionOfAnotherAgent(t *testing.T) {
	gin.SetMode(gin.TestMode)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "secret"})
	require.NoError(t, err)
	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{AgentID: "agent-1", SessionID: "s-1"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/secure", Auth(jwtSvc, fakeSessions{"s-1": {ID: "s-1", AgentID: "agent-2"}}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
