package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/store"
	"github.com/charlesng35/agentdesk/pkg/crypto"
	appErrors "github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/logger"
	"github.com/charlesng35/agentdesk/pkg/metrics"
)

const defaultInvitationTTL = 48 * time.Hour

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationTTL overrides the invitation lifetime.
func WithInvitationTTL(d time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInvitationTokenSource replaces the token generator.
func WithInvitationTokenSource(source func() string) InvitationOption {
	return func(s *InvitationService) {
		if source != nil {
			s.newToken = source
		}
	}
}

// WithInvitationLogger sets the logger used for security events.
func WithInvitationLogger(log *zap.Logger) InvitationOption {
	return func(s *InvitationService) {
		if log != nil {
			s.log = log
		}
	}
}

// InvitationService creates, validates and consumes single-use invitations.
// Raw tokens are returned once at creation; only their fingerprint is stored.
type InvitationService struct {
	store    store.Store
	hasher   SecretHasher
	ttl      time.Duration
	now      func() time.Time
	newToken func() string
	log      *zap.Logger
}

// NewInvitationService constructs an InvitationService with the provided dependencies.
func NewInvitationService(st store.Store, hasher SecretHasher, opts ...InvitationOption) (*InvitationService, error) {
	if st == nil {
		return nil, errors.New("invitation service: store is required")
	}
	if hasher == nil {
		return nil, errors.New("invitation service: hasher is required")
	}

	svc := &InvitationService{
		store:    st,
		hasher:   hasher,
		ttl:      defaultInvitationTTL,
		now:      time.Now,
		newToken: uuid.NewString,
		log:      logger.WithModule("invitations"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateInvitationInput describes who may register and with which role. A nil
// Email leaves the invitation open to any invitee.
type CreateInvitationInput struct {
	Email        *string          `json:"email" validate:"omitempty,email,max=254"`
	Role         models.AgentRole `json:"role" validate:"required,agent_role"`
	CustomRoleID *string          `json:"custom_role_id" validate:"omitempty,uuid"`
}

// RegistrationInput is the invitee supplied part of registration. Role and
// account always come from the invitation.
type RegistrationInput struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Secret      string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"display_name" validate:"required,max=120"`
}

// IssuedInvitation is a freshly created invitation with its raw token.
type IssuedInvitation struct {
	models.AgentInvitation
	Token string `json:"token"`
}

// ValidationResult is the outcome of checking a token. Err is set when Valid
// is false.
type ValidationResult struct {
	Valid      bool                    `json:"valid"`
	Invitation *models.AgentInvitation `json:"invitation,omitempty"`
	Err        *appErrors.AppError     `json:"error,omitempty"`
}

// InvitationPage is one page of invitations with the total matching count.
type InvitationPage struct {
	Invitations []models.AgentInvitation `json:"invitations"`
	Total       int64                    `json:"total"`
	Page        int                      `json:"page"`
	PageSize    int                      `json:"page_size"`
}

// Create issues an invitation for accountID. When sessionTenantID is set the
// account must belong to that tenant; a mismatch is rejected before anything
// is written.
func (s *InvitationService) Create(ctx context.Context, accountID string, input CreateInvitationInput, createdBy, sessionTenantID string) (*IssuedInvitation, error) {
	ctx = ensureContext(ctx)
	if err := validate(input); err != nil {
		return nil, err
	}
	accountID = strings.TrimSpace(accountID)
	createdBy = strings.TrimSpace(createdBy)
	if createdBy == "" {
		return nil, appErrors.NewBadRequest("invitation creator is required")
	}

	account, err := s.store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("invitation service: load account: %w", err)
	}
	if sessionTenantID = strings.TrimSpace(sessionTenantID); sessionTenantID != "" && account.TenantID != sessionTenantID {
		metrics.CrossTenantViolations.Inc()
		logger.SecurityEvent(s.log, "invitation.cross_tenant",
			zap.String("account_id", accountID),
			zap.String("account_tenant_id", account.TenantID),
			zap.String("session_tenant_id", sessionTenantID),
			zap.String("created_by", createdBy),
		)
		return nil, ErrCrossTenantViolation
	}

	customRoleID, err := checkCustomRole(ctx, s.store.CustomRoles(), accountID, input.CustomRoleID)
	if err != nil {
		return nil, err
	}

	var email *string
	if input.Email != nil {
		if normalised := models.NormalizeEmail(*input.Email); normalised != "" {
			email = &normalised
		}
	}

	token := s.newToken()
	now := s.now()
	invitation := models.AgentInvitation{
		ID:           models.NewID(),
		AccountID:    accountID,
		Email:        email,
		TokenHash:    crypto.FingerprintToken(token),
		Role:         input.Role,
		CustomRoleID: customRoleID,
		ExpiresAt:    now.Add(s.ttl),
		CreatedBy:    createdBy,
		CreatedAt:    now,
	}
	if err := s.store.Invitations().Create(ctx, &invitation); err != nil {
		return nil, fmt.Errorf("invitation service: create invitation: %w", err)
	}

	metrics.Invitations.WithLabelValues("created").Inc()
	s.log.Info("invitation created",
		zap.String("invitation_id", invitation.ID),
		zap.String("account_id", accountID),
		zap.String("role", string(invitation.Role)),
	)
	return &IssuedInvitation{AgentInvitation: invitation, Token: token}, nil
}

// Get returns an invitation by id.
func (s *InvitationService) Get(ctx context.Context, invitationID string) (*models.AgentInvitation, error) {
	inv, err := s.store.Invitations().GetByID(ensureContext(ctx), strings.TrimSpace(invitationID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}
	return inv, nil
}

// GetByToken looks up an invitation by its raw token.
func (s *InvitationService) GetByToken(ctx context.Context, token string) (*models.AgentInvitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvitationNotFound
	}
	inv, err := s.store.Invitations().GetByTokenHash(ensureContext(ctx), crypto.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("invitation service: lookup token: %w", err)
	}
	return inv, nil
}

// Validate checks a token. Failures are reported in the result in the order
// not found, already used, expired. Only storage failures return an error.
func (s *InvitationService) Validate(ctx context.Context, token string) (ValidationResult, error) {
	inv, err := s.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			return ValidationResult{Err: ErrInvitationNotFound}, nil
		}
		return ValidationResult{}, err
	}
	if inv.IsUsed() {
		return ValidationResult{Invitation: inv, Err: ErrInvitationAlreadyUsed}, nil
	}
	if inv.IsExpired(s.now()) {
		return ValidationResult{Invitation: inv, Err: ErrInvitationExpired}, nil
	}
	return ValidationResult{Valid: true, Invitation: inv}, nil
}

// MarkUsed stamps the invitation as consumed. It succeeds at most once.
func (s *InvitationService) MarkUsed(ctx context.Context, invitationID string) error {
	return s.markUsed(ensureContext(ctx), s.store, strings.TrimSpace(invitationID))
}

func (s *InvitationService) markUsed(ctx context.Context, st store.Store, invitationID string) error {
	if err := st.Invitations().MarkUsed(ctx, invitationID, s.now()); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return ErrInvitationAlreadyUsed
		case errors.Is(err, store.ErrNotFound):
			return ErrInvitationNotFound
		default:
			return fmt.Errorf("invitation service: mark used: %w", err)
		}
	}
	return nil
}

// CompleteRegistration consumes the invitation and creates the agent it
// admits. The agent's account, role and custom role come from the invitation.
// Agent creation and consumption commit together, and consumption is
// conditional, so a token admits at most one agent. The token is judged
// before the payload, so a dead token reports why it is dead.
func (s *InvitationService) CompleteRegistration(ctx context.Context, token string, input RegistrationInput) (*models.Agent, error) {
	ctx = ensureContext(ctx)
	result, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, result.Err
	}
	inv := result.Invitation

	if err := validate(input); err != nil {
		return nil, err
	}

	email := models.NormalizeEmail(input.Email)
	if inv.Email != nil && *inv.Email != email {
		return nil, appErrors.NewBadRequest("email does not match the invitation")
	}

	if _, err := s.store.Agents().GetByEmail(ctx, inv.AccountID, email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("invitation service: lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(input.Secret)
	if err != nil {
		return nil, fmt.Errorf("invitation service: hash credential: %w", err)
	}

	agent := &models.Agent{
		AccountID:      inv.AccountID,
		Email:          email,
		CredentialHash: hash,
		DisplayName:    strings.TrimSpace(input.DisplayName),
		Role:           inv.Role,
		CustomRoleID:   inv.CustomRoleID,
		Availability:   models.AvailabilityOffline,
		Status:         models.AgentStatusActive,
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Agents().Create(ctx, agent); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailAlreadyExists
			}
			return fmt.Errorf("invitation service: create agent: %w", err)
		}
		return s.markUsed(ctx, tx, inv.ID)
	})
	if err != nil {
		if errors.Is(err, ErrInvitationAlreadyUsed) {
			logger.SecurityEvent(s.log, "invitation.reuse", zap.String("invitation_id", inv.ID))
		}
		return nil, err
	}

	metrics.Invitations.WithLabelValues("consumed").Inc()
	s.log.Info("invitation consumed",
		zap.String("invitation_id", inv.ID),
		zap.String("agent_id", agent.ID),
		zap.String("account_id", agent.AccountID),
	)
	return agent, nil
}

// List returns a page of invitations for accountID, optionally narrowed by state.
func (s *InvitationService) List(ctx context.Context, accountID string, state store.InvitationState, page, pageSize int) (*InvitationPage, error) {
	ctx = ensureContext(ctx)
	switch state {
	case "", store.InvitationPending, store.InvitationUsed, store.InvitationExpired:
	default:
		return nil, appErrors.NewBadRequest(fmt.Sprintf("unknown invitation status %q", state))
	}

	filter := store.InvitationFilter{AccountID: strings.TrimSpace(accountID), State: state, Now: s.now()}
	opts, page, pageSize := pageOptions(page, pageSize)

	total, err := s.store.Invitations().Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("invitation service: count invitations: %w", err)
	}
	invitations, err := s.store.Invitations().List(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("invitation service: list invitations: %w", err)
	}
	if invitations == nil {
		invitations = []models.AgentInvitation{}
	}
	return &InvitationPage{Invitations: invitations, Total: total, Page: page, PageSize: pageSize}, nil
}

// Revoke deletes an unused invitation. Consumed invitations are kept.
func (s *InvitationService) Revoke(ctx context.Context, invitationID string) error {
	ctx = ensureContext(ctx)
	inv, err := s.Get(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.IsUsed() {
		return ErrInvitationAlreadyUsed
	}
	if err := s.store.Invitations().Delete(ctx, inv.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvitationNotFound
		}
		return fmt.Errorf("invitation service: delete invitation: %w", err)
	}
	metrics.Invitations.WithLabelValues("revoked").Inc()
	return nil
}
