package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/agentdesk/internal/app"
	iauth "github.com/charlesng35/agentdesk/internal/auth"
	testutil "github.com/charlesng35/agentdesk/internal/database/testutil"
	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/store"
	"github.com/charlesng35/agentdesk/internal/store/gormstore"
)

const strongSecret = "0123456789abcdef0123456789abcdef0123456789abcdef"

func newAgents(t *testing.T) store.Agents {
	t.Helper()
	st, err := gormstore.New(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.NoError(t, err)
	return st.Agents()
}

func addAgent(t *testing.T, agents store.Agents, email string, role models.AgentRole, status models.AgentStatus) {
	t.Helper()
	require.NoError(t, agents.Create(context.Background(), &models.Agent{
		AccountID:      "acc-1",
		Email:          email,
		CredentialHash: "hash",
		DisplayName:    email,
		Role:           role,
		Availability:   models.AvailabilityOffline,
		Status:         status,
	}))
}

func newJWT(t *testing.T, secret string) *iauth.JWTService {
	t.Helper()
	svc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: secret, Issuer: "test-suite", AccessTokenTTL: time.Hour})
	require.NoError(t, err)
	return svc
}

func hardenedConfig() *app.Config {
	return &app.Config{
		Auth: app.AuthConfig{
			JWT:     app.JWTSettings{Secret: strongSecret, Issuer: "test-suite", TTL: time.Hour},
			Session: app.SessionSettings{TTL: 24 * time.Hour, RefreshLength: 48},
			Lockout: app.LockoutSettings{Threshold: 5, Duration: 15 * time.Minute},
		},
	}
}

func findCheck(t *testing.T, result Result, id string) Check {
	t.Helper()
	for _, check := range result.Checks {
		if check.ID == id {
			return check
		}
	}
	t.Fatalf("check %s not found", id)
	return Check{}
}

func TestAuditServiceRun(t *testing.T) {
	agents := newAgents(t)
	addAgent(t, agents, "owner@example.com", models.AgentRoleOwner, models.AgentStatusActive)

	svc := NewAuditService(agents, newJWT(t, strongSecret), hardenedConfig())
	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	result := svc.Run(context.Background())
	require.Equal(t, fixed, result.CheckedAt)
	require.Len(t, result.Checks, 5)
	require.Equal(t, 5, result.Summary[string(StatusPass)])
}

func TestAuditServiceDetectsMissingOwner(t *testing.T) {
	agents := newAgents(t)

	svc := NewAuditService(agents, nil, nil)
	require.Equal(t, StatusWarn, findCheck(t, svc.Run(context.Background()), "owner_present").Status)

	addAgent(t, agents, "owner@example.com", models.AgentRoleOwner, models.AgentStatusInactive)
	addAgent(t, agents, "agent@example.com", models.AgentRoleAgent, models.AgentStatusActive)

	require.Equal(t, StatusFail, findCheck(t, svc.Run(context.Background()), "owner_present").Status)
}

func TestAuditServiceWeakConfiguration(t *testing.T) {
	cfg := hardenedConfig()
	cfg.Auth.Session.TTL = 90 * 24 * time.Hour
	cfg.Auth.Lockout.Threshold = 50
	cfg.Auth.Credentials.Scrypt.N = 1024

	svc := NewAuditService(nil, newJWT(t, "short-secret"), cfg)
	result := svc.Run(context.Background())

	require.Equal(t, StatusFail, findCheck(t, result, "jwt_secret_strength").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "session_ttl").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "lockout_policy").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "credential_hash_cost").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "owner_present").Status)

	cfg.Auth.Credentials.Algorithm = "argon2id"
	require.Equal(t, StatusPass, findCheck(t, svc.Run(context.Background()), "credential_hash_cost").Status)
}

type failingAgents struct{ store.Agents }

func (failingAgents) Count(context.Context, store.AgentFilter) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestAuditServiceReportLogsFindings(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	svc := NewAuditService(failingAgents{}, newJWT(t, strongSecret), nil)
	result := svc.Report(context.Background(), zap.New(core))

	require.Equal(t, 1, result.Summary[string(StatusPass)])
	require.Equal(t, 4, result.Summary[string(StatusWarn)])
	require.Equal(t, 4, logs.FilterMessage("security event").Len())
	require.Equal(t, 1, logs.FilterField(zap.String("event", "audit.owner_present")).Len())
}
