package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/agentdesk/internal/store"
	appErrors "github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/validator"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// SecretHasher derives and verifies salted credential hashes.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, record string) (bool, error)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// validate runs struct validation and reports failures as a bad request that
// still unwraps to the field level details.
func validate(input any) error {
	if err := validator.ValidateStruct(input); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			return appErrors.NewBadRequest(fields.Error()).WithInternal(fields)
		}
		return appErrors.NewBadRequest(err.Error())
	}
	return nil
}

// normalisedID trims an optional identifier, returning nil when blank.
func normalisedID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// checkCustomRole confirms that the optional custom role exists within accountID.
func checkCustomRole(ctx context.Context, roles store.CustomRoles, accountID string, id *string) (*string, error) {
	id = normalisedID(id)
	if id == nil {
		return nil, nil
	}

	role, err := roles.GetByID(ctx, *id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCustomRoleNotFound
		}
		return nil, fmt.Errorf("load custom role: %w", err)
	}
	if role.AccountID != accountID {
		return nil, ErrCustomRoleNotFound
	}
	return id, nil
}

func pageOptions(page, pageSize int) (store.ListOptions, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return store.ListOptions{Limit: pageSize, Offset: (page - 1) * pageSize}, page, pageSize
}
