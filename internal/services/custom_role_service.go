package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/permissions"
	"github.com/charlesng35/agentdesk/internal/store"
	appErrors "github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/logger"
)

var ErrRoleNameTaken = appErrors.New("ROLE_NAME_TAKEN", "A role with this name already exists", http.StatusConflict)

// CustomRoleInput describes a named permission set.
type CustomRoleInput struct {
	Name        string   `json:"name" validate:"required,max=64"`
	Description string   `json:"description" validate:"max=255"`
	Permissions []string `json:"permissions" validate:"dive,required"`
}

// CustomRoleService manages account defined roles. Agents that reference a
// role pick up edits on their next capability check.
type CustomRoleService struct {
	store store.Store
	log   *zap.Logger
}

// NewCustomRoleService constructs a CustomRoleService.
func NewCustomRoleService(st store.Store) (*CustomRoleService, error) {
	if st == nil {
		return nil, errors.New("custom role service: store is required")
	}
	return &CustomRoleService{store: st, log: logger.WithModule("roles")}, nil
}

// Create adds a role to accountID.
func (s *CustomRoleService) Create(ctx context.Context, accountID string, input CustomRoleInput) (*models.CustomRole, error) {
	ctx = ensureContext(ctx)
	if err := validate(input); err != nil {
		return nil, err
	}
	perms, err := normalisePermissions(input.Permissions)
	if err != nil {
		return nil, err
	}

	accountID = strings.TrimSpace(accountID)
	if _, err := s.store.Accounts().GetByID(ctx, accountID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("custom role service: load account: %w", err)
	}

	role := &models.CustomRole{
		AccountID:   accountID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Permissions: perms,
	}
	if err := s.store.CustomRoles().Create(ctx, role); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrRoleNameTaken
		}
		return nil, fmt.Errorf("custom role service: create role: %w", err)
	}

	s.log.Info("custom role created", zap.String("role_id", role.ID), zap.String("account_id", accountID))
	return role, nil
}

// Get returns a role by id.
func (s *CustomRoleService) Get(ctx context.Context, roleID string) (*models.CustomRole, error) {
	role, err := s.store.CustomRoles().GetByID(ensureContext(ctx), strings.TrimSpace(roleID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCustomRoleNotFound
		}
		return nil, fmt.Errorf("custom role service: load role: %w", err)
	}
	return role, nil
}

// List returns every role of accountID ordered by name.
func (s *CustomRoleService) List(ctx context.Context, accountID string) ([]models.CustomRole, error) {
	roles, err := s.store.CustomRoles().List(ensureContext(ctx), store.CustomRoleFilter{AccountID: strings.TrimSpace(accountID)}, store.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("custom role service: list roles: %w", err)
	}
	if roles == nil {
		roles = []models.CustomRole{}
	}
	return roles, nil
}

// Update replaces the name, description and permission set of a role.
func (s *CustomRoleService) Update(ctx context.Context, roleID string, input CustomRoleInput) (*models.CustomRole, error) {
	ctx = ensureContext(ctx)
	if err := validate(input); err != nil {
		return nil, err
	}
	perms, err := normalisePermissions(input.Permissions)
	if err != nil {
		return nil, err
	}

	role, err := s.Get(ctx, roleID)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.CustomRoles().Update(ctx, role.ID, map[string]any{
		"name":        strings.TrimSpace(input.Name),
		"description": strings.TrimSpace(input.Description),
		"permissions": datatypes.JSONSlice[string](perms),
	})
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return nil, ErrRoleNameTaken
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrCustomRoleNotFound
	case err != nil:
		return nil, fmt.Errorf("custom role service: update role: %w", err)
	}
	return updated, nil
}

// Delete removes a role. Agents still referencing it fall back to their
// built-in role defaults.
func (s *CustomRoleService) Delete(ctx context.Context, roleID string) error {
	if err := s.store.CustomRoles().Delete(ensureContext(ctx), strings.TrimSpace(roleID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCustomRoleNotFound
		}
		return fmt.Errorf("custom role service: delete role: %w", err)
	}
	return nil
}

// normalisePermissions dedupes and sorts ids, rejecting unregistered ones and
// the owner wildcard.
func normalisePermissions(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == permissions.All {
			return nil, appErrors.NewBadRequest("custom roles cannot grant the owner wildcard")
		}
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if unknown := permissions.Unknown(out); len(unknown) > 0 {
		return nil, appErrors.NewBadRequest(fmt.Sprintf("unknown permissions: %s", strings.Join(unknown, ", ")))
	}
	sort.Strings(out)
	return out, nil
}
