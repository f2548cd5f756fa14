package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/permissions"
	"github.com/charlesng35/agentdesk/internal/store"
	"github.com/charlesng35/agentdesk/internal/store/gormstore"
	appErrors "github.com/charlesng35/agentdesk/pkg/errors"
)

const testSecret = "correct horse battery"

type agentFixture struct {
	svc     *AgentService
	st      *gormstore.Store
	revoker *storeRevoker
	clock   *testClock
	account *models.Account
}

func setupAgentService(t *testing.T, opts ...AgentOption) *agentFixture {
	t.Helper()
	st := newTestStore(t)
	clock := newTestClock()
	revoker := &storeRevoker{st: st}

	opts = append([]AgentOption{WithAgentClock(clock.Now)}, opts...)
	svc, err := NewAgentService(st, newTestHasher(t), revoker, opts...)
	require.NoError(t, err)

	return &agentFixture{
		svc:     svc,
		st:      st,
		revoker: revoker,
		clock:   clock,
		account: seedAccount(t, st, "tenant-1"),
	}
}

func (f *agentFixture) createAgent(t *testing.T, email string) *models.Agent {
	t.Helper()
	agent, err := f.svc.CreateDirect(context.Background(), f.account.ID, CreateAgentInput{
		Email:       email,
		Secret:      testSecret,
		DisplayName: "Agent " + email,
	})
	require.NoError(t, err)
	return agent
}

func TestNewAgentServiceRequiresDependencies(t *testing.T) {
	st := newTestStore(t)
	hasher := newTestHasher(t)
	revoker := &storeRevoker{st: st}

	_, err := NewAgentService(nil, hasher, revoker)
	require.Error(t, err)
	_, err = NewAgentService(st, nil, revoker)
	require.Error(t, err)
	_, err = NewAgentService(st, hasher, nil)
	require.Error(t, err)
}

func TestAgentServiceCreateDirect(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()

	agent := f.createAgent(t, "  Ana@Example.com ")
	require.Equal(t, "ana@example.com", agent.Email)
	require.Equal(t, models.AgentRoleAgent, agent.Role)
	require.Equal(t, models.AgentStatusActive, agent.Status)
	require.Equal(t, models.AvailabilityOffline, agent.Availability)
	require.NotEqual(t, testSecret, agent.CredentialHash)
	require.Zero(t, agent.FailedLoginCount)
	require.Nil(t, agent.LockedUntil)

	_, err := f.svc.CreateDirect(ctx, "missing-account", CreateAgentInput{Email: "x@example.com", Secret: testSecret, DisplayName: "X"})
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, err = f.svc.CreateDirect(ctx, f.account.ID, CreateAgentInput{Email: "not-an-email", Secret: testSecret, DisplayName: "X"})
	require.ErrorIs(t, err, appErrors.ErrBadRequest)

	_, err = f.svc.CreateDirect(ctx, f.account.ID, CreateAgentInput{Email: "short@example.com", Secret: "short", DisplayName: "X"})
	require.ErrorIs(t, err, appErrors.ErrBadRequest)
}

func TestAgentServiceEmailUniquePerAccount(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()

	f.createAgent(t, "ana@example.com")

	_, err := f.svc.CreateDirect(ctx, f.account.ID, CreateAgentInput{Email: "ANA@example.com", Secret: testSecret, DisplayName: "Dup"})
	require.ErrorIs(t, err, ErrEmailAlreadyExists)

	other := seedAccount(t, f.st, "tenant-1")
	agent, err := f.svc.CreateDirect(ctx, other.ID, CreateAgentInput{Email: "ana@example.com", Secret: testSecret, DisplayName: "Ana"})
	require.NoError(t, err)
	require.Equal(t, other.ID, agent.AccountID)
}

func TestAgentServiceCreateDirectCustomRoleScopedToAccount(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()

	other := seedAccount(t, f.st, "tenant-1")
	foreign := seedCustomRole(t, f.st, other.ID, "foreign")
	local := seedCustomRole(t, f.st, f.account.ID, "local", permissions.ReportsView)

	_, err := f.svc.CreateDirect(ctx, f.account.ID, CreateAgentInput{
		Email: "a@example.com", Secret: testSecret, DisplayName: "A", CustomRoleID: &foreign.ID,
	})
	require.ErrorIs(t, err, ErrCustomRoleNotFound)

	agent, err := f.svc.CreateDirect(ctx, f.account.ID, CreateAgentInput{
		Email: "a@example.com", Secret: testSecret, DisplayName: "A", Role: models.AgentRoleViewer, CustomRoleID: &local.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, agent.CustomRoleID)

	perms, err := f.svc.PermissionsFor(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, []string{permissions.ReportsView}, perms)
}

func TestAgentServiceGetAndList(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()

	ana := f.createAgent(t, "ana@example.com")
	f.createAgent(t, "ben@example.com")
	f.createAgent(t, "cleo@example.com")
	require.NoError(t, f.svc.Deactivate(ctx, ana.ID))

	got, err := f.svc.Get(ctx, ana.ID)
	require.NoError(t, err)
	require.Equal(t, models.AgentStatusInactive, got.Status)

	_, err = f.svc.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrAgentNotFound)

	page, err := f.svc.List(ctx, f.account.ID, ListAgentsQuery{PageSize: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
	require.Len(t, page.Agents, 2)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 2, page.PageSize)

	page, err = f.svc.List(ctx, f.account.ID, ListAgentsQuery{Status: models.AgentStatusActive})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)

	page, err = f.svc.List(ctx, f.account.ID, ListAgentsQuery{Query: "CLEO"})
	require.NoError(t, err)
	require.Len(t, page.Agents, 1)
	require.Equal(t, "cleo@example.com", page.Agents[0].Email)

	page, err = f.svc.List(ctx, "other-account", ListAgentsQuery{})
	require.NoError(t, err)
	require.NotNil(t, page.Agents)
	require.Empty(t, page.Agents)
}

func TestAgentServiceUpdateProfile(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()
	agent := f.createAgent(t, "ana@example.com")

	f.clock.Advance(time.Minute)
	name := "  Ana Lopez "
	avatar := "avatars/ana.png"
	online := models.AvailabilityOnline
	updated, err := f.svc.UpdateProfile(ctx, agent.ID, ProfileUpdate{DisplayName: &name, AvatarRef: &avatar, Availability: &online})
	require.NoError(t, err)
	require.Equal(t, "Ana Lopez", updated.DisplayName)
	require.NotNil(t, updated.AvatarRef)
	require.Equal(t, avatar, *updated.AvatarRef)
	require.Equal(t, models.AvailabilityOnline, updated.Availability)
	require.NotNil(t, updated.LastActivityAt)
	require.True(t, updated.LastActivityAt.Equal(f.clock.Now()))

	empty := ""
	cleared, err := f.svc.UpdateProfile(ctx, agent.ID, ProfileUpdate{AvatarRef: &empty})
	require.NoError(t, err)
	require.Nil(t, cleared.AvatarRef)

	blank := "   "
	_, err = f.svc.UpdateProfile(ctx, agent.ID, ProfileUpdate{DisplayName: &blank})
	require.ErrorIs(t, err, appErrors.ErrBadRequest)

	bogus := models.Availability("away")
	_, err = f.svc.UpdateProfile(ctx, agent.ID, ProfileUpdate{Availability: &bogus})
	require.ErrorIs(t, err, appErrors.ErrBadRequest)

	require.NoError(t, f.svc.Deactivate(ctx, agent.ID))
	_, err = f.svc.UpdateProfile(ctx, agent.ID, ProfileUpdate{Availability: &online})
	require.ErrorIs(t, err, appErrors.ErrBadRequest)
}

func TestAgentServiceUpdateRole(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()
	agent := f.createAgent(t, "ana@example.com")
	role := seedCustomRole(t, f.st, f.account.ID, "triage", permissions.ConversationsAssign)

	updated, err := f.svc.UpdateRole(ctx, agent.ID, models.AgentRoleAdministrator, &role.ID)
	require.NoError(t, err)
	require.Equal(t, models.AgentRoleAdministrator, updated.Role)
	require.NotNil(t, updated.CustomRoleID)
	require.Equal(t, role.ID, *updated.CustomRoleID)

	updated, err = f.svc.UpdateRole(ctx, agent.ID, models.AgentRoleViewer, nil)
	require.NoError(t, err)
	require.Nil(t, updated.CustomRoleID)

	perms, err := f.svc.PermissionsFor(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, permissions.DefaultsFor(models.AgentRoleViewer), perms)

	_, err = f.svc.UpdateRole(ctx, agent.ID, models.AgentRole("root"), nil)
	require.ErrorIs(t, err, appErrors.ErrBadRequest)

	_, err = f.svc.UpdateRole(ctx, "missing", models.AgentRoleAgent, nil)
	require.ErrorIs(t, err, ErrAgentNotFound)
}

func TestAgentServiceDeactivateRevokesSessions(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()
	agent := f.createAgent(t, "ana@example.com")
	bystander := f.createAgent(t, "ben@example.com")

	seedSessions(t, f.st, agent, 3, f.clock.Now())
	seedSessions(t, f.st, bystander, 1, f.clock.Now())
	require.EqualValues(t, 3, countSessions(t, f.st, agent.ID))

	require.NoError(t, f.svc.Deactivate(ctx, agent.ID))

	require.Zero(t, countSessions(t, f.st, agent.ID))
	require.EqualValues(t, 1, countSessions(t, f.st, bystander.ID))

	got, err := f.svc.Get(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, models.AgentStatusInactive, got.Status)
	require.Equal(t, models.AvailabilityOffline, got.Availability)

	_, err = f.svc.Authenticate(ctx, f.account.ID, "ana@example.com", testSecret)
	require.ErrorIs(t, err, ErrAgentInactive)

	reactivated, err := f.svc.Reactivate(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, models.AgentStatusActive, reactivated.Status)

	_, err = f.svc.Authenticate(ctx, f.account.ID, "ana@example.com", testSecret)
	require.NoError(t, err)
}

func TestAgentServiceDeactivateSurfacesRevocationFailure(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()
	agent := f.createAgent(t, "ana@example.com")

	f.revoker.err = errStorageDown
	err := f.svc.Deactivate(ctx, agent.ID)
	require.ErrorIs(t, err, errStorageDown)

	got, err := f.svc.Get(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, models.AgentStatusInactive, got.Status)
}

func TestAgentServiceDelete(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()
	agent := f.createAgent(t, "ana@example.com")
	bystander := f.createAgent(t, "ben@example.com")
	seedSessions(t, f.st, agent, 2, f.clock.Now())
	seedSessions(t, f.st, bystander, 1, f.clock.Now())

	require.NoError(t, f.svc.Delete(ctx, agent.ID))
	require.Zero(t, countSessions(t, f.st, agent.ID))
	require.EqualValues(t, 1, countSessions(t, f.st, bystander.ID))
	require.ErrorIs(t, f.svc.Delete(ctx, agent.ID), ErrAgentNotFound)

	perms, err := f.svc.PermissionsFor(ctx, agent.ID)
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestAgentServiceDeleteKeepsAgentWhenRevocationFails(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()
	agent := f.createAgent(t, "ana@example.com")

	f.revoker.err = errStorageDown
	require.ErrorIs(t, f.svc.Delete(ctx, agent.ID), errStorageDown)

	_, err := f.svc.Get(ctx, agent.ID)
	require.NoError(t, err)
}

func TestAgentServiceCredentialRoundTrip(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()
	agent := f.createAgent(t, "ana@example.com")

	authed, err := f.svc.Authenticate(ctx, f.account.ID, "ANA@example.com", testSecret)
	require.NoError(t, err)
	require.Equal(t, agent.ID, authed.ID)
	require.NotNil(t, authed.LastActivityAt)

	_, err = f.svc.Authenticate(ctx, f.account.ID, "ana@example.com", "wrong secret")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, f.account.ID, "nobody@example.com", testSecret)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	seedSessions(t, f.st, agent, 2, f.clock.Now())
	const next = "a brand new secret"
	require.NoError(t, f.svc.ChangeCredential(ctx, agent.ID, next, true))
	require.Zero(t, countSessions(t, f.st, agent.ID))

	_, err = f.svc.Authenticate(ctx, f.account.ID, "ana@example.com", testSecret)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, f.account.ID, "ana@example.com", next)
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.ChangeCredential(ctx, agent.ID, "short", false), appErrors.ErrBadRequest)
	require.ErrorIs(t, f.svc.ChangeCredential(ctx, "missing", next, false), ErrAgentNotFound)
}

func TestAgentServiceChangeCredentialKeepsSessionsWhenAsked(t *testing.T) {
	f := setupAgentService(t)
	agent := f.createAgent(t, "ana@example.com")
	seedSessions(t, f.st, agent, 2, f.clock.Now())

	require.NoError(t, f.svc.ChangeCredential(context.Background(), agent.ID, "another secret", false))
	require.EqualValues(t, 2, countSessions(t, f.st, agent.ID))
	require.Zero(t, f.revoker.calls)
}

func TestAgentServiceLockoutAfterThreshold(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()
	agent := f.createAgent(t, "ana@example.com")

	for i := 0; i < 4; i++ {
		_, err := f.svc.Authenticate(ctx, f.account.ID, "ana@example.com", "wrong secret")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	locked, err := f.svc.CheckLocked(ctx, agent.ID)
	require.NoError(t, err)
	require.False(t, locked)

	got, err := f.svc.Get(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, 4, got.FailedLoginCount)

	_, err = f.svc.Authenticate(ctx, f.account.ID, "ana@example.com", "wrong secret")
	require.ErrorIs(t, err, ErrAccountLocked)

	got, err = f.svc.Get(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, 5, got.FailedLoginCount)
	require.NotNil(t, got.LockedUntil)
	require.True(t, got.LockedUntil.Equal(f.clock.Now().Add(15*time.Minute)))

	// The correct secret is refused while the lock holds.
	_, err = f.svc.Authenticate(ctx, f.account.ID, "ana@example.com", testSecret)
	require.ErrorIs(t, err, ErrAccountLocked)

	f.clock.Advance(15 * time.Minute)

	authed, err := f.svc.Authenticate(ctx, f.account.ID, "ana@example.com", testSecret)
	require.NoError(t, err)
	require.Zero(t, authed.FailedLoginCount)
	require.Nil(t, authed.LockedUntil)
}

func TestAgentServiceLockIsNotExtendedByFurtherFailures(t *testing.T) {
	f := setupAgentService(t, WithLockoutPolicy(LockoutPolicy{Threshold: 2, Duration: 10 * time.Minute}))
	ctx := context.Background()
	agent := f.createAgent(t, "ana@example.com")

	_, err := f.svc.RecordFailedLogin(ctx, agent.ID)
	require.NoError(t, err)
	state, err := f.svc.RecordFailedLogin(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, 2, state.Attempts)
	require.NotNil(t, state.LockedUntil)
	first := *state.LockedUntil

	f.clock.Advance(5 * time.Minute)
	state, err = f.svc.RecordFailedLogin(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, 3, state.Attempts)
	require.True(t, state.LockedUntil.Equal(first))
}

func TestAgentServiceExpiredLockClearedLazily(t *testing.T) {
	f := setupAgentService(t, WithLockoutPolicy(LockoutPolicy{Threshold: 1, Duration: time.Minute}))
	ctx := context.Background()
	agent := f.createAgent(t, "ana@example.com")

	state, err := f.svc.RecordFailedLogin(ctx, agent.ID)
	require.NoError(t, err)
	require.NotNil(t, state.LockedUntil)

	f.clock.Advance(2 * time.Minute)

	// Stored state is untouched until the next read.
	stored, err := f.st.Agents().GetByID(ctx, agent.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LockedUntil)

	locked, err := f.svc.CheckLocked(ctx, agent.ID)
	require.NoError(t, err)
	require.False(t, locked)

	stored, err = f.st.Agents().GetByID(ctx, agent.ID)
	require.NoError(t, err)
	require.Nil(t, stored.LockedUntil)
	require.Zero(t, stored.FailedLoginCount)
}

func TestAgentServiceRecordFailedLoginAfterExpiryRestartsCount(t *testing.T) {
	f := setupAgentService(t, WithLockoutPolicy(LockoutPolicy{Threshold: 2, Duration: time.Minute}))
	ctx := context.Background()
	agent := f.createAgent(t, "ana@example.com")

	_, err := f.svc.RecordFailedLogin(ctx, agent.ID)
	require.NoError(t, err)
	_, err = f.svc.RecordFailedLogin(ctx, agent.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)

	state, err := f.svc.RecordFailedLogin(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, 1, state.Attempts)
	require.Nil(t, state.LockedUntil)
}

func TestAgentServiceResetFailedLogins(t *testing.T) {
	f := setupAgentService(t, WithLockoutPolicy(LockoutPolicy{Threshold: 1, Duration: time.Hour}))
	ctx := context.Background()
	agent := f.createAgent(t, "ana@example.com")

	_, err := f.svc.RecordFailedLogin(ctx, agent.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetFailedLogins(ctx, agent.ID))
	locked, err := f.svc.CheckLocked(ctx, agent.ID)
	require.NoError(t, err)
	require.False(t, locked)

	require.ErrorIs(t, f.svc.ResetFailedLogins(ctx, "missing"), ErrAgentNotFound)
	_, err = f.svc.CheckLocked(ctx, "missing")
	require.ErrorIs(t, err, ErrAgentNotFound)
	_, err = f.svc.RecordFailedLogin(ctx, "missing")
	require.ErrorIs(t, err, ErrAgentNotFound)
}

func TestAgentServiceLockCheckFailsOpen(t *testing.T) {
	st := newTestStore(t)
	clock := newTestClock()
	account := seedAccount(t, st, "tenant-1")

	core, logs := observer.New(zapcore.WarnLevel)
	faulty := &faultStore{Store: st}
	svc, err := NewAgentService(faulty, newTestHasher(t), &storeRevoker{st: st}, WithAgentClock(clock.Now), WithAgentLogger(zap.New(core)))
	require.NoError(t, err)

	ctx := context.Background()
	agent, err := svc.CreateDirect(ctx, account.ID, CreateAgentInput{Email: "ana@example.com", Secret: testSecret, DisplayName: "Ana"})
	require.NoError(t, err)

	faulty.agentReadErr = errStorageDown

	locked, err := svc.CheckLocked(ctx, agent.ID)
	require.False(t, locked)
	require.ErrorIs(t, err, errStorageDown)

	authed, err := svc.Authenticate(ctx, account.ID, "ana@example.com", testSecret)
	require.NoError(t, err)
	require.Equal(t, agent.ID, authed.ID)

	require.GreaterOrEqual(t, logs.FilterField(zap.String("event", "lockout.check_failed")).Len(), 1)
}

func TestAgentServiceLockCheckFailsClosed(t *testing.T) {
	st := newTestStore(t)
	account := seedAccount(t, st, "tenant-1")

	faulty := &faultStore{Store: st}
	svc, err := NewAgentService(faulty, newTestHasher(t), &storeRevoker{st: st}, WithLockFailClosed(true))
	require.NoError(t, err)

	ctx := context.Background()
	agent, err := svc.CreateDirect(ctx, account.ID, CreateAgentInput{Email: "ana@example.com", Secret: testSecret, DisplayName: "Ana"})
	require.NoError(t, err)

	faulty.agentReadErr = errStorageDown

	locked, err := svc.CheckLocked(ctx, agent.ID)
	require.True(t, locked)
	require.ErrorIs(t, err, errStorageDown)

	_, err = svc.Authenticate(ctx, account.ID, "ana@example.com", testSecret)
	require.ErrorIs(t, err, ErrAccountLocked)
	require.ErrorIs(t, err, errStorageDown)
}

func TestAgentServicePropagatesStorageErrors(t *testing.T) {
	st := newTestStore(t)
	faulty := &faultStore{Store: st, agentReadErr: errStorageDown}
	svc, err := NewAgentService(faulty, newTestHasher(t), &storeRevoker{st: st})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "any")
	require.ErrorIs(t, err, errStorageDown)
	require.False(t, errors.Is(err, ErrAgentNotFound))

	_, err = svc.PermissionsFor(context.Background(), "any")
	require.ErrorIs(t, err, errStorageDown)
}

func TestAgentServiceAuthenticateIgnoresOtherAccounts(t *testing.T) {
	f := setupAgentService(t)
	ctx := context.Background()
	f.createAgent(t, "ana@example.com")

	other := seedAccount(t, f.st, "tenant-1")
	_, err := f.svc.Authenticate(ctx, other.ID, "ana@example.com", testSecret)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	n, err := f.st.Agents().Count(ctx, store.AgentFilter{AccountID: other.ID})
	require.NoError(t, err)
	require.Zero(t, n)
}
