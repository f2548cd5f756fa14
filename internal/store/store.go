// Package store defines the persistence contract used by the agent identity
// services. Concrete drivers live in sub-packages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/agentdesk/internal/models"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrConflict reports a conditional write whose precondition no longer held.
	ErrConflict = errors.New("store: conflict")
)

// Store is the root data access interface. It exposes one sub-repository per
// collection so callers depend on the narrowest surface they need.
type Store interface {
	Agents() Agents
	Invitations() Invitations
	Sessions() Sessions
	CustomRoles() CustomRoles
	Accounts() Accounts

	// WithTx runs fn inside a transaction. The Store handed to fn is scoped
	// to the transaction; returning an error rolls it back.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// ListOptions bounds a List call. A zero Limit means no limit.
type ListOptions struct {
	Limit  int
	Offset int
}

type AgentFilter struct {
	AccountID string
	Status    models.AgentStatus
	Role      models.AgentRole
	// Query matches a case-insensitive substring of email or display name.
	Query string
}

// InvitationState narrows invitation listings.
type InvitationState string

const (
	InvitationPending InvitationState = "pending"
	InvitationUsed    InvitationState = "used"
	InvitationExpired InvitationState = "expired"
)

type InvitationFilter struct {
	AccountID string
	State     InvitationState
	// Now is the reference time for pending/expired filtering.
	Now time.Time
}

type SessionFilter struct {
	AgentID   string
	AccountID string
}

type CustomRoleFilter struct {
	AccountID string
}

type AccountFilter struct {
	TenantID string
}

type Agents interface {
	GetByID(ctx context.Context, id string) (*models.Agent, error)
	// GetByEmail looks up an agent by its normalised email within an account.
	GetByEmail(ctx context.Context, accountID, email string) (*models.Agent, error)
	List(ctx context.Context, filter AgentFilter, opts ListOptions) ([]models.Agent, error)
	Count(ctx context.Context, filter AgentFilter) (int64, error)
	// Create returns ErrAlreadyExists on an (account, email) collision.
	Create(ctx context.Context, agent *models.Agent) error
	Update(ctx context.Context, id string, fields map[string]any) (*models.Agent, error)
	Delete(ctx context.Context, id string) error
	// IncrementFailedLogins atomically adds one to the failure counter and
	// returns the new value.
	IncrementFailedLogins(ctx context.Context, id string) (int, error)
}

type Invitations interface {
	GetByID(ctx context.Context, id string) (*models.AgentInvitation, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.AgentInvitation, error)
	List(ctx context.Context, filter InvitationFilter, opts ListOptions) ([]models.AgentInvitation, error)
	Count(ctx context.Context, filter InvitationFilter) (int64, error)
	Create(ctx context.Context, invitation *models.AgentInvitation) error
	Delete(ctx context.Context, id string) error
	// MarkUsed sets used_at only while it is still null. A lost race returns
	// ErrConflict; a missing row returns ErrNotFound.
	MarkUsed(ctx context.Context, id string, at time.Time) error
}

type Sessions interface {
	GetByID(ctx context.Context, id string) (*models.AgentSession, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.AgentSession, error)
	List(ctx context.Context, filter SessionFilter, opts ListOptions) ([]models.AgentSession, error)
	Count(ctx context.Context, filter SessionFilter) (int64, error)
	Create(ctx context.Context, session *models.AgentSession) error
	Update(ctx context.Context, id string, fields map[string]any) (*models.AgentSession, error)
	Delete(ctx context.Context, id string) error
	// DeleteByAgent removes every session of the agent except exceptID, when
	// set, and returns the number removed.
	DeleteByAgent(ctx context.Context, agentID, exceptID string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type CustomRoles interface {
	GetByID(ctx context.Context, id string) (*models.CustomRole, error)
	List(ctx context.Context, filter CustomRoleFilter, opts ListOptions) ([]models.CustomRole, error)
	Count(ctx context.Context, filter CustomRoleFilter) (int64, error)
	Create(ctx context.Context, role *models.CustomRole) error
	Update(ctx context.Context, id string, fields map[string]any) (*models.CustomRole, error)
	Delete(ctx context.Context, id string) error
}

// Accounts is read-mostly; Create exists for workspace bootstrap only.
type Accounts interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	List(ctx context.Context, filter AccountFilter, opts ListOptions) ([]models.Account, error)
	Count(ctx context.Context, filter AccountFilter) (int64, error)
	Create(ctx context.Context, account *models.Account) error
}
