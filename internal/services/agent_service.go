package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/store"
	"github.com/charlesng35/agentdesk/pkg/crypto"
	appErrors "github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/logger"
	"github.com/charlesng35/agentdesk/pkg/metrics"
)

// SessionRevoker removes live sessions for an agent.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, agentID, exceptSessionID string) error
}

// AgentOption customises AgentService behaviour.
type AgentOption func(*AgentService)

// WithAgentClock injects a custom clock primarily for testing.
func WithAgentClock(clock func() time.Time) AgentOption {
	return func(s *AgentService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLockoutPolicy overrides the failed login threshold and lock duration.
func WithLockoutPolicy(policy LockoutPolicy) AgentOption {
	return func(s *AgentService) {
		s.lockout = policy.withDefaults()
	}
}

// WithLockFailClosed treats agents as locked when their lock status cannot be read.
func WithLockFailClosed(failClosed bool) AgentOption {
	return func(s *AgentService) {
		s.failClosed = failClosed
	}
}

// WithAgentLogger sets the logger used for security events.
func WithAgentLogger(log *zap.Logger) AgentOption {
	return func(s *AgentService) {
		if log != nil {
			s.log = log
		}
	}
}

// AgentService is the directory of agents within accounts. It composes the
// credential hasher, lockout policy, session registry and permission resolver.
type AgentService struct {
	store      store.Store
	hasher     SecretHasher
	sessions   SessionRevoker
	resolver   *PermissionResolver
	lockout    LockoutPolicy
	failClosed bool
	now        func() time.Time
	log        *zap.Logger
}

// NewAgentService constructs an AgentService with the provided dependencies.
func NewAgentService(st store.Store, hasher SecretHasher, sessions SessionRevoker, opts ...AgentOption) (*AgentService, error) {
	if st == nil {
		return nil, errors.New("agent service: store is required")
	}
	if hasher == nil {
		return nil, errors.New("agent service: hasher is required")
	}
	if sessions == nil {
		return nil, errors.New("agent service: session revoker is required")
	}

	resolver, err := NewPermissionResolver(st.CustomRoles())
	if err != nil {
		return nil, err
	}

	svc := &AgentService{
		store:    st,
		hasher:   hasher,
		sessions: sessions,
		resolver: resolver,
		lockout:  DefaultLockoutPolicy(),
		now:      time.Now,
		log:      logger.WithModule("agents"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateAgentInput carries the fields for direct provisioning.
type CreateAgentInput struct {
	Email        string           `json:"email" validate:"required,email,max=254"`
	Secret       string           `json:"password" validate:"required,min=8,max=128"`
	DisplayName  string           `json:"display_name" validate:"required,max=120"`
	Role         models.AgentRole `json:"role" validate:"omitempty,agent_role"`
	CustomRoleID *string          `json:"custom_role_id" validate:"omitempty,uuid"`
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched; an
// empty AvatarRef clears the avatar.
type ProfileUpdate struct {
	DisplayName  *string              `json:"display_name" validate:"omitempty,max=120"`
	AvatarRef    *string              `json:"avatar_ref" validate:"omitempty,max=512"`
	Availability *models.Availability `json:"availability" validate:"omitempty,availability"`
}

// ListAgentsQuery filters and paginates agent listings.
type ListAgentsQuery struct {
	Status   models.AgentStatus
	Role     models.AgentRole
	Query    string
	Page     int
	PageSize int
}

// AgentPage is one page of agents with the total matching count.
type AgentPage struct {
	Agents   []models.Agent `json:"agents"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// LockoutState reports the counter and lock after a failed attempt.
type LockoutState struct {
	Attempts    int        `json:"attempts"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// CreateDirect provisions an active, offline agent in accountID.
func (s *AgentService) CreateDirect(ctx context.Context, accountID string, input CreateAgentInput) (*models.Agent, error) {
	ctx = ensureContext(ctx)
	if err := validate(input); err != nil {
		return nil, err
	}

	accountID = strings.TrimSpace(accountID)
	if _, err := s.store.Accounts().GetByID(ctx, accountID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("agent service: load account: %w", err)
	}

	role := input.Role
	if role == "" {
		role = models.AgentRoleAgent
	}
	customRoleID, err := checkCustomRole(ctx, s.store.CustomRoles(), accountID, input.CustomRoleID)
	if err != nil {
		return nil, err
	}

	email := models.NormalizeEmail(input.Email)
	if _, err := s.store.Agents().GetByEmail(ctx, accountID, email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("agent service: lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(input.Secret)
	if err != nil {
		return nil, fmt.Errorf("agent service: hash credential: %w", err)
	}

	agent := &models.Agent{
		AccountID:      accountID,
		Email:          email,
		CredentialHash: hash,
		DisplayName:    strings.TrimSpace(input.DisplayName),
		Role:           role,
		CustomRoleID:   customRoleID,
		Availability:   models.AvailabilityOffline,
		Status:         models.AgentStatusActive,
	}
	if err := s.store.Agents().Create(ctx, agent); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("agent service: create agent: %w", err)
	}

	s.log.Info("agent created", zap.String("agent_id", agent.ID), zap.String("account_id", accountID))
	return agent, nil
}

// Get returns the agent by id.
func (s *AgentService) Get(ctx context.Context, agentID string) (*models.Agent, error) {
	agent, err := s.store.Agents().GetByID(ensureContext(ctx), strings.TrimSpace(agentID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("agent service: load agent: %w", err)
	}
	return agent, nil
}

// List returns a page of agents in accountID.
func (s *AgentService) List(ctx context.Context, accountID string, query ListAgentsQuery) (*AgentPage, error) {
	ctx = ensureContext(ctx)
	filter := store.AgentFilter{
		AccountID: strings.TrimSpace(accountID),
		Status:    query.Status,
		Role:      query.Role,
		Query:     query.Query,
	}
	opts, page, pageSize := pageOptions(query.Page, query.PageSize)

	total, err := s.store.Agents().Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("agent service: count agents: %w", err)
	}
	agents, err := s.store.Agents().List(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("agent service: list agents: %w", err)
	}
	if agents == nil {
		agents = []models.Agent{}
	}
	return &AgentPage{Agents: agents, Total: total, Page: page, PageSize: pageSize}, nil
}

// UpdateProfile applies a partial profile change. Changing availability also
// bumps the last activity timestamp.
func (s *AgentService) UpdateProfile(ctx context.Context, agentID string, update ProfileUpdate) (*models.Agent, error) {
	ctx = ensureContext(ctx)
	if err := validate(update); err != nil {
		return nil, err
	}

	agent, err := s.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fields := map[string]any{}

	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" {
			return nil, appErrors.NewBadRequest("display name cannot be empty")
		}
		if name != agent.DisplayName {
			fields["display_name"] = name
		}
	}

	if update.AvatarRef != nil {
		ref := strings.TrimSpace(*update.AvatarRef)
		switch {
		case ref == "" && agent.AvatarRef != nil:
			fields["avatar_ref"] = nil
		case ref != "" && (agent.AvatarRef == nil || *agent.AvatarRef != ref):
			fields["avatar_ref"] = ref
		}
	}

	if update.Availability != nil && *update.Availability != agent.Availability {
		if !agent.IsActive() && *update.Availability != models.AvailabilityOffline {
			return nil, appErrors.NewBadRequest("inactive agents must remain offline")
		}
		fields["availability"] = *update.Availability
		fields["last_activity_at"] = now
	}

	if len(fields) == 0 {
		return agent, nil
	}
	fields["updated_at"] = now

	return s.update(ctx, agent.ID, fields)
}

// UpdateRole changes the built-in role and optional custom role. A nil
// customRoleID clears any custom role.
func (s *AgentService) UpdateRole(ctx context.Context, agentID string, role models.AgentRole, customRoleID *string) (*models.Agent, error) {
	ctx = ensureContext(ctx)
	if !role.Valid() {
		return nil, appErrors.NewBadRequest(fmt.Sprintf("unknown role %q", role))
	}

	agent, err := s.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}

	customRoleID, err = checkCustomRole(ctx, s.store.CustomRoles(), agent.AccountID, customRoleID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"role":       role,
		"updated_at": s.now(),
	}
	if customRoleID != nil {
		fields["custom_role_id"] = *customRoleID
	} else {
		fields["custom_role_id"] = nil
	}

	updated, err := s.update(ctx, agent.ID, fields)
	if err != nil {
		return nil, err
	}
	s.log.Info("agent role changed",
		zap.String("agent_id", agent.ID),
		zap.String("from", string(agent.Role)),
		zap.String("to", string(role)),
	)
	return updated, nil
}

// Deactivate marks the agent inactive and offline, then revokes every session.
// The status flip is committed first; a revocation failure is returned so the
// caller can retry it.
func (s *AgentService) Deactivate(ctx context.Context, agentID string) error {
	ctx = ensureContext(ctx)
	agent, err := s.Get(ctx, agentID)
	if err != nil {
		return err
	}

	if _, err := s.update(ctx, agent.ID, map[string]any{
		"status":       models.AgentStatusInactive,
		"availability": models.AvailabilityOffline,
		"updated_at":   s.now(),
	}); err != nil {
		return err
	}

	if err := s.sessions.RevokeAll(ctx, agent.ID, ""); err != nil {
		s.log.Error("revoke sessions after deactivation failed", zap.String("agent_id", agent.ID), zap.Error(err))
		return fmt.Errorf("agent service: revoke sessions: %w", err)
	}

	logger.SecurityEvent(s.log, "agent.deactivated", zap.String("agent_id", agent.ID))
	return nil
}

// Reactivate restores an inactive agent and clears any lockout.
func (s *AgentService) Reactivate(ctx context.Context, agentID string) (*models.Agent, error) {
	ctx = ensureContext(ctx)
	agent, err := s.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}

	count, lock := s.lockout.OnSuccessOrReset()
	return s.update(ctx, agent.ID, map[string]any{
		"status":             models.AgentStatusActive,
		"failed_login_count": count,
		"locked_until":       lockValue(lock),
		"updated_at":         s.now(),
	})
}

// Delete revokes every session of the agent and then hard deletes it.
func (s *AgentService) Delete(ctx context.Context, agentID string) error {
	ctx = ensureContext(ctx)
	agentID = strings.TrimSpace(agentID)
	if _, err := s.Get(ctx, agentID); err != nil {
		return err
	}

	// Sessions go first so a failed revocation leaves the agent in place.
	if err := s.sessions.RevokeAll(ctx, agentID, ""); err != nil {
		s.log.Error("revoke sessions before deletion failed", zap.String("agent_id", agentID), zap.Error(err))
		return fmt.Errorf("agent service: revoke sessions: %w", err)
	}

	if err := s.store.Agents().Delete(ctx, agentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAgentNotFound
		}
		return fmt.Errorf("agent service: delete agent: %w", err)
	}
	s.log.Info("agent deleted", zap.String("agent_id", agentID))
	return nil
}

// ChangeCredential rehashes and stores a new secret. With revokeSessions set,
// every session of the agent is revoked, including the caller's own.
func (s *AgentService) ChangeCredential(ctx context.Context, agentID, newSecret string, revokeSessions bool) error {
	ctx = ensureContext(ctx)
	if l := len(newSecret); l < 8 || l > 128 {
		return appErrors.NewBadRequest("password must be between 8 and 128 characters")
	}

	agent, err := s.Get(ctx, agentID)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newSecret)
	if err != nil {
		return fmt.Errorf("agent service: hash credential: %w", err)
	}
	if _, err := s.update(ctx, agent.ID, map[string]any{
		"credential_hash": hash,
		"updated_at":      s.now(),
	}); err != nil {
		return err
	}

	logger.SecurityEvent(s.log, "agent.credential_changed", zap.String("agent_id", agent.ID), zap.Bool("sessions_revoked", revokeSessions))

	if revokeSessions {
		if err := s.sessions.RevokeAll(ctx, agent.ID, ""); err != nil {
			return fmt.Errorf("agent service: revoke sessions: %w", err)
		}
	}
	return nil
}

// CheckLocked reports whether the agent is currently locked. An elapsed lock
// is cleared as a side effect. When the lock status cannot be read the agent
// is reported unlocked (or locked under WithLockFailClosed) and the read error
// is still returned.
func (s *AgentService) CheckLocked(ctx context.Context, agentID string) (bool, error) {
	ctx = ensureContext(ctx)
	agent, err := s.store.Agents().GetByID(ctx, strings.TrimSpace(agentID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrAgentNotFound
		}
		policy := "open"
		if s.failClosed {
			policy = "closed"
		}
		metrics.LockCheckFailures.WithLabelValues(policy).Inc()
		logger.SecurityEvent(s.log, "lockout.check_failed",
			zap.String("agent_id", agentID),
			zap.String("policy", policy),
			zap.Error(err),
		)
		return s.failClosed, fmt.Errorf("agent service: lock check: %w", err)
	}

	now := s.now()
	if s.lockout.IsLocked(agent.LockedUntil, now) {
		return true, nil
	}
	if s.lockout.Expired(agent.LockedUntil, now) {
		if err := s.resetLockout(ctx, agent.ID); err != nil {
			return false, err
		}
	}
	return false, nil
}

// RecordFailedLogin increments the failure counter and locks the agent once
// the threshold is reached. An elapsed lock is cleared before counting.
func (s *AgentService) RecordFailedLogin(ctx context.Context, agentID string) (LockoutState, error) {
	ctx = ensureContext(ctx)
	agent, err := s.Get(ctx, agentID)
	if err != nil {
		return LockoutState{}, err
	}

	now := s.now()
	lockedUntil := agent.LockedUntil
	if s.lockout.Expired(lockedUntil, now) {
		if err := s.resetLockout(ctx, agent.ID); err != nil {
			return LockoutState{}, err
		}
		lockedUntil = nil
	}

	attempts, err := s.store.Agents().IncrementFailedLogins(ctx, agent.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LockoutState{}, ErrAgentNotFound
		}
		return LockoutState{}, fmt.Errorf("agent service: record failed login: %w", err)
	}

	// An active lock is not extended by further failures.
	if !s.lockout.IsLocked(lockedUntil, now) {
		if lock := s.lockout.LockFor(attempts, now); lock != nil {
			if _, err := s.update(ctx, agent.ID, map[string]any{"locked_until": *lock}); err != nil {
				return LockoutState{}, err
			}
			lockedUntil = lock
			metrics.Lockouts.Inc()
			logger.SecurityEvent(s.log, "agent.locked",
				zap.String("agent_id", agent.ID),
				zap.Int("attempts", attempts),
				zap.Time("locked_until", *lock),
			)
		}
	}

	return LockoutState{Attempts: attempts, LockedUntil: lockedUntil}, nil
}

// ResetFailedLogins clears the failure counter and any lock.
func (s *AgentService) ResetFailedLogins(ctx context.Context, agentID string) error {
	ctx = ensureContext(ctx)
	if err := s.resetLockout(ctx, strings.TrimSpace(agentID)); err != nil {
		return err
	}
	return nil
}

// PermissionsFor resolves the agent's capabilities. A missing agent has none.
func (s *AgentService) PermissionsFor(ctx context.Context, agentID string) ([]string, error) {
	ctx = ensureContext(ctx)
	agent, err := s.store.Agents().GetByID(ctx, strings.TrimSpace(agentID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("agent service: load agent: %w", err)
	}
	return s.resolver.Resolve(ctx, agent)
}

// Authenticate verifies an agent's credential within accountID. Lock status is
// checked before the secret is verified. A failure that reaches the threshold
// reports ErrAccountLocked; success clears the counter and records activity.
func (s *AgentService) Authenticate(ctx context.Context, accountID, email, secret string) (*models.Agent, error) {
	ctx = ensureContext(ctx)

	agent, err := s.store.Agents().GetByEmail(ctx, strings.TrimSpace(accountID), email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("agent service: lookup agent: %w", err)
	}

	if !agent.IsActive() {
		metrics.AuthAttempts.WithLabelValues("inactive").Inc()
		return nil, ErrAgentInactive
	}

	locked, lockErr := s.CheckLocked(ctx, agent.ID)
	if locked {
		metrics.AuthAttempts.WithLabelValues("locked").Inc()
		if lockErr != nil {
			return nil, ErrAccountLocked.WithInternal(lockErr)
		}
		return nil, ErrAccountLocked
	}

	ok, err := s.hasher.Verify(secret, agent.CredentialHash)
	if err != nil && !errors.Is(err, crypto.ErrMissingHash) {
		return nil, fmt.Errorf("agent service: verify credential: %w", err)
	}
	if !ok {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		state, err := s.RecordFailedLogin(ctx, agent.ID)
		if err != nil {
			return nil, err
		}
		if state.LockedUntil != nil {
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	count, lock := s.lockout.OnSuccessOrReset()
	updated, err := s.update(ctx, agent.ID, map[string]any{
		"failed_login_count": count,
		"locked_until":       lockValue(lock),
		"last_activity_at":   s.now(),
	})
	if err != nil {
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return updated, nil
}

func (s *AgentService) resetLockout(ctx context.Context, agentID string) error {
	count, lock := s.lockout.OnSuccessOrReset()
	_, err := s.update(ctx, agentID, map[string]any{
		"failed_login_count": count,
		"locked_until":       lockValue(lock),
	})
	return err
}

func (s *AgentService) update(ctx context.Context, agentID string, fields map[string]any) (*models.Agent, error) {
	agent, err := s.store.Agents().Update(ctx, agentID, fields)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("agent service: update agent: %w", err)
	}
	return agent, nil
}

// lockValue turns an optional lock expiry into a column value, nil meaning NULL.
func lockValue(lock *time.Time) any {
	if lock == nil {
		return nil
	}
	return *lock
}
