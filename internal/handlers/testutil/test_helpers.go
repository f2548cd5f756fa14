package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/agentdesk/internal/api"
	iauth "github.com/charlesng35/agentdesk/internal/auth"
	sharedtestutil "github.com/charlesng35/agentdesk/internal/database/testutil"
	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/security"
	"github.com/charlesng35/agentdesk/internal/services"
	"github.com/charlesng35/agentdesk/internal/store/gormstore"
	"github.com/charlesng35/agentdesk/pkg/crypto"
	"github.com/charlesng35/agentdesk/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T           *testing.T
	DB          *gorm.DB
	Store       *gormstore.Store
	Router      *gin.Engine
	JWT         *iauth.JWTService
	Sessions    *iauth.SessionService
	Agents      *services.AgentService
	Invitations *services.InvitationService
	Roles       *services.CustomRoleService
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	st, err := gormstore.New(db)
	require.NoError(t, err)

	// Cheap scrypt cost keeps the suite fast.
	hasher, err := crypto.NewCredentialHasher(crypto.WithScryptParams(crypto.ScryptParameters{N: 1024, R: 8, P: 1, KeyLength: 32}))
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(st, jwtSvc, iauth.SessionConfig{})
	require.NoError(t, err)

	agents, err := services.NewAgentService(st, hasher, sessions)
	require.NoError(t, err)
	invitations, err := services.NewInvitationService(st, hasher)
	require.NoError(t, err)
	roles, err := services.NewCustomRoleService(st)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		Store:       st,
		JWT:         jwtSvc,
		Sessions:    sessions,
		Agents:      agents,
		Invitations: invitations,
		Roles:       roles,
		Audit:       security.NewAuditService(st.Agents(), jwtSvc, nil),
		Login:       api.RateLimit{Requests: 1000, Window: time.Minute},
		Global:      api.RateLimit{Requests: 1000, Window: time.Minute},
	})
	require.NoError(t, err)

	return &Env{
		T:           t,
		DB:          db,
		Store:       st,
		Router:      router,
		JWT:         jwtSvc,
		Sessions:    sessions,
		Agents:      agents,
		Invitations: invitations,
		Roles:       roles,
	}
}

// CreateAccount inserts a workspace account under tenantID, generating one when empty.
func (e *Env) CreateAccount(tenantID string) *models.Account {
	e.T.Helper()

	if tenantID == "" {
		tenantID = uuid.NewString()
	}
	account := &models.Account{TenantID: tenantID, Name: "Account " + uuid.NewString()[:8]}
	require.NoError(e.T, e.Store.Accounts().Create(context.Background(), account))
	return account
}

// CreateAgent provisions an active agent with a random email in the account.
func (e *Env) CreateAgent(accountID string, role models.AgentRole, password string) *models.Agent {
	e.T.Helper()

	agent, err := e.Agents.CreateDirect(context.Background(), accountID, services.CreateAgentInput{
		Email:       "agent-" + uuid.NewString()[:8] + "@example.com",
		Secret:      password,
		DisplayName: "Agent " + string(role),
		Role:        role,
	})
	require.NoError(e.T, err)
	return agent
}

// TokenPair mirrors the issued token payload.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AgentPayload captures the subset of agent fields returned from the API.
type AgentPayload struct {
	ID           string  `json:"id"`
	AccountID    string  `json:"account_id"`
	Email        string  `json:"email"`
	DisplayName  string  `json:"display_name"`
	Role         string  `json:"role"`
	CustomRoleID *string `json:"custom_role_id"`
	Availability string  `json:"availability"`
	Status       string  `json:"status"`
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	Tokens      TokenPair    `json:"tokens"`
	Agent       AgentPayload `json:"agent"`
	Permissions []string     `json:"permissions"`
}

// Login authenticates an agent and returns the issued session.
func (e *Env) Login(accountID, email, password string) LoginResult {
	e.T.Helper()

	payload := map[string]string{
		"account_id": accountID,
		"email":      email,
		"password":   password,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Tokens.AccessToken)
	require.NotEmpty(e.T, result.Tokens.RefreshToken)
	require.Equal(e.T, email, result.Agent.Email)

	return result
}

// LoginAs provisions an agent with the role and logs it in, returning the agent and its access token.
func (e *Env) LoginAs(account *models.Account, role models.AgentRole) (*models.Agent, string) {
	e.T.Helper()

	const password = "Passw0rd!Passw0rd"
	agent := e.CreateAgent(account.ID, role, password)
	return agent, e.Login(account.ID, agent.Email, password).Tokens.AccessToken
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
