package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)

	base.ID = "fixed"
	require.NoError(t, base.BeforeCreate(nil))
	require.Equal(t, "fixed", base.ID)
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"agent", func() *BaseModel {
			a := &Agent{}
			return &a.BaseModel
		}},
		{"account", func() *BaseModel {
			a := &Account{}
			return &a.BaseModel
		}},
		{"custom_role", func() *BaseModel {
			r := &CustomRole{}
			return &r.BaseModel
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := tc.model()
			require.NoError(t, model.BeforeCreate(nil))
			require.NotEmpty(t, model.ID)
		})
	}
}

func TestAgentEnumsValid(t *testing.T) {
	require.True(t, AgentRoleAdministrator.Valid())
	require.False(t, AgentRole("root").Valid())
	require.True(t, AvailabilityBusy.Valid())
	require.False(t, Availability("away").Valid())
}

func TestAgentRoleRank(t *testing.T) {
	require.Greater(t, AgentRoleOwner.Rank(), AgentRoleAdministrator.Rank())
	require.Greater(t, AgentRoleAdministrator.Rank(), AgentRoleAgent.Rank())
	require.Greater(t, AgentRoleAgent.Rank(), AgentRoleViewer.Rank())
	require.Greater(t, AgentRoleViewer.Rank(), AgentRole("root").Rank())
}

func TestAgentIsActive(t *testing.T) {
	var nilAgent *Agent
	require.False(t, nilAgent.IsActive())
	require.True(t, (&Agent{Status: AgentStatusActive}).IsActive())
	require.False(t, (&Agent{Status: AgentStatusPending}).IsActive())
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "ana@example.com", NormalizeEmail("  Ana@Example.COM "))
}

func TestInvitationExpiryBoundary(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	inv := &AgentInvitation{ExpiresAt: now}

	require.True(t, inv.IsExpired(now))
	require.False(t, inv.IsExpired(now.Add(-time.Second)))
	require.False(t, inv.IsUsed())

	inv.UsedAt = &now
	require.True(t, inv.IsUsed())
}

func TestSessionExpiry(t *testing.T) {
	now := time.Now()
	s := &AgentSession{ExpiresAt: now.Add(time.Minute)}
	require.False(t, s.IsExpired(now))
	require.True(t, s.IsExpired(now.Add(time.Minute)))
}
