package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/agentdesk/internal/database/testutil"
	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/store"
	"github.com/charlesng35/agentdesk/internal/store/gormstore"
	"github.com/charlesng35/agentdesk/pkg/crypto"
)

type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestStore(t *testing.T) *gormstore.Store {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	st, err := gormstore.New(db)
	require.NoError(t, err)
	return st
}

func newTestHasher(t *testing.T) *crypto.CredentialHasher {
	t.Helper()
	hasher, err := crypto.NewCredentialHasher(crypto.WithScryptParams(crypto.ScryptParameters{N: 1024, R: 8, P: 1, KeyLength: 32}))
	require.NoError(t, err)
	return hasher
}

func seedAccount(t *testing.T, st store.Store, tenantID string) *models.Account {
	t.Helper()
	account := &models.Account{TenantID: tenantID, Name: "Support " + tenantID}
	require.NoError(t, st.Accounts().Create(context.Background(), account))
	return account
}

func seedCustomRole(t *testing.T, st store.Store, accountID, name string, perms ...string) *models.CustomRole {
	t.Helper()
	role := &models.CustomRole{AccountID: accountID, Name: name, Permissions: perms}
	require.NoError(t, st.CustomRoles().Create(context.Background(), role))
	return role
}

func seedSessions(t *testing.T, st store.Store, agent *models.Agent, n int, now time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, st.Sessions().Create(context.Background(), &models.AgentSession{
			AgentID:        agent.ID,
			AccountID:      agent.AccountID,
			TokenHash:      crypto.FingerprintToken(fmt.Sprintf("%s-%d", agent.ID, i)),
			ExpiresAt:      now.Add(time.Hour),
			CreatedAt:      now,
			LastActivityAt: now,
		}))
	}
}

func countSessions(t *testing.T, st store.Store, agentID string) int64 {
	t.Helper()
	n, err := st.Sessions().Count(context.Background(), store.SessionFilter{AgentID: agentID})
	require.NoError(t, err)
	return n
}

// storeRevoker deletes sessions straight from the store.
type storeRevoker struct {
	st    store.Store
	calls int
	err   error
}

func (r *storeRevoker) RevokeAll(ctx context.Context, agentID, exceptSessionID string) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	_, err := r.st.Sessions().DeleteByAgent(ctx, agentID, exceptSessionID)
	return err
}

// faultStore fails agent reads by id while leaving every other path intact.
type faultStore struct {
	store.Store
	agentReadErr error
}

func (f *faultStore) Agents() store.Agents {
	return &faultAgents{Agents: f.Store.Agents(), readErr: f.agentReadErr}
}

type faultAgents struct {
	store.Agents
	readErr error
}

func (a *faultAgents) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	if a.readErr != nil {
		return nil, a.readErr
	}
	return a.Agents.GetByID(ctx, id)
}

var errStorageDown = errors.New("storage unavailable")
