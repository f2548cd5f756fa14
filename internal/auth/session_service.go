package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
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

const (
	// DefaultSessionTTL is the fallback lifetime of a session and its refresh token.
	DefaultSessionTTL = 24 * time.Hour
	// activityInterval throttles last_activity_at writes on validation.
	activityInterval = time.Minute
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	SessionTTL    time.Duration
	RefreshLength int
	Clock         func() time.Time
	Logger        *zap.Logger
}

// SessionMetadata captures contextual information about the client.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

// TokenPair represents an access token and refresh token pair.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

var (
	ErrSessionNotFound     = appErrors.New("SESSION_NOT_FOUND", "Session not found", http.StatusNotFound)
	ErrSessionExpired      = appErrors.New("SESSION_EXPIRED", "Session has expired", http.StatusUnauthorized)
	ErrSessionInvalidToken = appErrors.New("SESSION_INVALID_TOKEN", "Invalid session token", http.StatusUnauthorized)
)

// SessionService manages creation, rotation, and revocation of agent sessions.
// A session row exists exactly as long as the session is live; revoking deletes it.
type SessionService struct {
	store    store.Store
	jwt      *JWTService
	ttl      time.Duration
	tokenLen int
	now      func() time.Time
	log      *zap.Logger
}

// NewSessionService constructs a session manager backed by the provided store and JWT service.
func NewSessionService(st store.Store, jwtService *JWTService, cfg SessionConfig) (*SessionService, error) {
	if st == nil {
		return nil, errors.New("session service: store is required")
	}
	if jwtService == nil {
		return nil, errors.New("session service: jwt service is required")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	length := cfg.RefreshLength
	if length <= 0 {
		length = 48
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	log := cfg.Logger
	if log == nil {
		log = zap.L()
	}

	return &SessionService{
		store:    st,
		jwt:      jwtService,
		ttl:      ttl,
		tokenLen: length,
		now:      clock,
		log:      log.Named("sessions"),
	}, nil
}

// Create opens a session for an authenticated agent and issues a fresh token pair.
// tenantID is carried in the access token for tenant-scoped checks.
func (s *SessionService) Create(ctx context.Context, agent *models.Agent, tenantID string, meta SessionMetadata) (TokenPair, *models.AgentSession, error) {
	if agent == nil || strings.TrimSpace(agent.ID) == "" {
		return TokenPair{}, nil, errors.New("session service: agent is required")
	}

	refreshToken, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: generate refresh token: %w", err)
	}

	now := s.now()
	session := &models.AgentSession{
		AgentID:        agent.ID,
		AccountID:      agent.AccountID,
		TokenHash:      crypto.FingerprintToken(refreshToken),
		IPAddress:      strings.TrimSpace(meta.IPAddress),
		UserAgent:      strings.TrimSpace(meta.UserAgent),
		ExpiresAt:      now.Add(s.ttl),
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := s.store.Sessions().Create(ctx, session); err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	accessToken, err := s.jwt.GenerateAccessToken(AccessTokenInput{
		AgentID:   agent.ID,
		AccountID: agent.AccountID,
		TenantID:  tenantID,
		SessionID: session.ID,
	})
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: generate access token: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    session.ExpiresAt,
	}, session, nil
}

// Refresh rotates the refresh token and issues a new access token. The
// previous refresh token stops working immediately. Sessions of deleted or
// inactive agents are dropped and reported as ErrSessionNotFound.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (TokenPair, *models.AgentSession, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, nil, ErrSessionInvalidToken
	}

	session, err := s.store.Sessions().GetByTokenHash(ctx, crypto.FingerprintToken(refreshToken))
	if errors.Is(err, store.ErrNotFound) {
		return TokenPair{}, nil, ErrSessionNotFound
	}
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: find session: %w", err)
	}

	now := s.now()
	if session.IsExpired(now) {
		return TokenPair{}, nil, ErrSessionExpired
	}

	// Sessions must not outlive their agent's ability to sign in.
	agent, err := s.store.Agents().GetByID(ctx, session.AgentID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.dropOrphan(ctx, session)
		return TokenPair{}, nil, ErrSessionNotFound
	case err != nil:
		return TokenPair{}, nil, fmt.Errorf("session service: load agent: %w", err)
	case agent.Status != models.AgentStatusActive:
		s.dropOrphan(ctx, session)
		return TokenPair{}, nil, ErrSessionNotFound
	}

	tenantID, err := s.tenantOf(ctx, session.AccountID)
	if err != nil {
		return TokenPair{}, nil, err
	}

	newRefresh, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: generate refresh token: %w", err)
	}

	updated, err := s.store.Sessions().Update(ctx, session.ID, map[string]any{
		"token_hash":       crypto.FingerprintToken(newRefresh),
		"expires_at":       now.Add(s.ttl),
		"last_activity_at": now,
	})
	if errors.Is(err, store.ErrNotFound) {
		return TokenPair{}, nil, ErrSessionNotFound
	}
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: update session: %w", err)
	}

	accessToken, err := s.jwt.GenerateAccessToken(AccessTokenInput{
		AgentID:   updated.AgentID,
		AccountID: updated.AccountID,
		TenantID:  tenantID,
		SessionID: updated.ID,
	})
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: generate access token: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    updated.ExpiresAt,
	}, updated, nil
}

func (s *SessionService) dropOrphan(ctx context.Context, session *models.AgentSession) {
	if err := s.store.Sessions().Delete(ctx, session.ID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("drop orphaned session failed", zap.String("session_id", session.ID), zap.Error(err))
		}
		return
	}
	metrics.ActiveSessions.Dec()
	metrics.SessionsRevoked.WithLabelValues("orphaned").Inc()
}

// Validate confirms the session is still live and records activity on it.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (*models.AgentSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionInvalidToken
	}

	session, err := s.store.Sessions().GetByID(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: find session: %w", err)
	}

	now := s.now()
	if session.IsExpired(now) {
		return nil, ErrSessionExpired
	}

	if now.Sub(session.LastActivityAt) >= activityInterval {
		if touched, err := s.store.Sessions().Update(ctx, session.ID, map[string]any{"last_activity_at": now}); err == nil {
			session = touched
		} else {
			s.log.Debug("record session activity", zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	return session, nil
}

// Revoke deletes a single session.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionInvalidToken
	}

	err := s.store.Sessions().Delete(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("session service: revoke session: %w", err)
	}

	metrics.ActiveSessions.Dec()
	metrics.SessionsRevoked.WithLabelValues("logout").Inc()
	return nil
}

// RevokeAll deletes every session of the agent except exceptSessionID, when set.
func (s *SessionService) RevokeAll(ctx context.Context, agentID, exceptSessionID string) error {
	if strings.TrimSpace(agentID) == "" {
		return errors.New("session service: agent id is required")
	}

	removed, err := s.store.Sessions().DeleteByAgent(ctx, agentID, exceptSessionID)
	if err != nil {
		return fmt.Errorf("session service: revoke agent sessions: %w", err)
	}

	if removed > 0 {
		metrics.ActiveSessions.Sub(float64(removed))
		metrics.SessionsRevoked.WithLabelValues("bulk").Add(float64(removed))
		logger.SecurityEvent(s.log, "sessions.revoked",
			zap.String("agent_id", agentID),
			zap.Int64("count", removed),
		)
	}
	return nil
}

// ListForAgent returns the live sessions of an agent, newest first.
func (s *SessionService) ListForAgent(ctx context.Context, agentID string) ([]models.AgentSession, error) {
	sessions, err := s.store.Sessions().List(ctx, store.SessionFilter{AgentID: agentID}, store.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("session service: list sessions: %w", err)
	}

	now := s.now()
	live := sessions[:0]
	for _, session := range sessions {
		if !session.IsExpired(now) {
			live = append(live, session)
		}
	}
	return live, nil
}

// PurgeExpired removes sessions whose expiry has passed.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := s.store.Sessions().DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("session service: purge expired sessions: %w", err)
	}
	if removed > 0 {
		metrics.ActiveSessions.Sub(float64(removed))
		metrics.SessionsRevoked.WithLabelValues("expired").Add(float64(removed))
	}
	return removed, nil
}

func (s *SessionService) tenantOf(ctx context.Context, accountID string) (string, error) {
	account, err := s.store.Accounts().GetByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session service: load account: %w", err)
	}
	return account.TenantID, nil
}
