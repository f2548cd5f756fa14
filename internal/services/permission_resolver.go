package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/permissions"
	"github.com/charlesng35/agentdesk/internal/store"
)

// PermissionResolver maps an agent's role or custom role to its capabilities.
type PermissionResolver struct {
	roles store.CustomRoles
}

// NewPermissionResolver constructs a resolver reading custom roles from the repository.
func NewPermissionResolver(roles store.CustomRoles) (*PermissionResolver, error) {
	if roles == nil {
		return nil, errors.New("permission resolver: custom role repository is required")
	}
	return &PermissionResolver{roles: roles}, nil
}

// Resolve returns the ordered capabilities for agent. A custom role wins when
// it exists within the agent's account; otherwise the built-in role defaults
// apply. Unknown roles resolve to an empty list.
func (r *PermissionResolver) Resolve(ctx context.Context, agent *models.Agent) ([]string, error) {
	if agent == nil {
		return []string{}, nil
	}

	if agent.CustomRoleID != nil && *agent.CustomRoleID != "" {
		role, err := r.roles.GetByID(ctx, *agent.CustomRoleID)
		switch {
		case err == nil && role.AccountID == agent.AccountID:
			perms := make([]string, len(role.Permissions))
			copy(perms, role.Permissions)
			return perms, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("permission resolver: load custom role: %w", err)
		}
	}

	return permissions.DefaultsFor(agent.Role), nil
}
