package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/agentdesk/internal/app"
	iauth "github.com/charlesng35/agentdesk/internal/auth"
	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/store"
	"github.com/charlesng35/agentdesk/pkg/crypto"
	"github.com/charlesng35/agentdesk/pkg/logger"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

const (
	minSecretLength         = 32
	recommendedSecretLength = 48
	maxRecommendedSession   = 30 * 24 * time.Hour
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// AuditService evaluates the identity configuration and stored state.
type AuditService struct {
	agents store.Agents
	jwt    *iauth.JWTService
	cfg    *app.Config
	now    func() time.Time
}

// NewAuditService constructs the audit service. All dependencies are optional;
// missing inputs degrade the affected checks to warnings.
func NewAuditService(agents store.Agents, jwt *iauth.JWTService, cfg *app.Config) *AuditService {
	return &AuditService{
		agents: agents,
		jwt:    jwt,
		cfg:    cfg,
		now:    time.Now,
	}
}

// WithClock overrides the clock used in results.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkOwnerPresent(ctx),
		s.checkJWTSecret(),
		s.checkLockoutPolicy(),
		s.checkSessionTTL(),
		s.checkCredentialCost(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

// Report runs the audit and logs every check that did not pass.
func (s *AuditService) Report(ctx context.Context, log *zap.Logger) Result {
	result := s.Run(ctx)
	for _, check := range result.Checks {
		if check.Status == StatusPass {
			continue
		}
		logger.SecurityEvent(log, "audit."+check.ID,
			zap.String("status", string(check.Status)),
			zap.String("message", check.Message),
			zap.String("remediation", check.Remediation),
		)
	}
	return result
}

// owner_present only fails once an account exists; a fresh install has none yet.
func (s *AuditService) checkOwnerPresent(ctx context.Context) Check {
	const id = "owner_present"
	if s.agents == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Store unavailable; unable to confirm an active owner.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	total, err := s.agents.Count(ctx, store.AgentFilter{})
	if err != nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not count agents: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}
	if total == 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "No agents exist yet.",
			Remediation: "Initialise the workspace through /api/setup/initialize.",
		}
	}

	owners, err := s.agents.Count(ctx, store.AgentFilter{
		Role:   models.AgentRoleOwner,
		Status: models.AgentStatusActive,
	})
	if err != nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not count owners: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}
	if owners == 0 {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "No active owner found.",
			Remediation: "Promote or reactivate an owner to keep administrative access.",
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: "Active owner present.",
		Details: map[string]any{"count": owners},
	}
}

func (s *AuditService) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if s.jwt == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "JWT service not initialised; unable to assess signing secret strength.",
			Remediation: "Initialise the JWT service with a strong secret.",
		}
	}

	length := s.jwt.SecretLength()
	details := map[string]any{"length": length}

	switch {
	case length < minSecretLength:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
			Details:     details,
		}
	case length < recommendedSecretLength:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider 48+ bytes.", length),
			Remediation: "Increase the length of AGENTDESK_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     details,
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: details,
		}
	}
}

func (s *AuditService) checkLockoutPolicy() Check {
	const id = "lockout_policy"
	if s.cfg == nil {
		return configMissing(id)
	}

	lockout := s.cfg.Auth.Lockout
	details := map[string]any{
		"threshold":   lockout.Threshold,
		"duration":    lockout.Duration.String(),
		"fail_closed": lockout.FailClosed,
	}
	if lockout.Threshold <= 0 || lockout.Duration <= 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Lockout threshold or duration is not configured; defaults apply.",
			Remediation: "Set auth.lockout.threshold and auth.lockout.duration explicitly.",
			Details:     details,
		}
	}
	if lockout.Threshold > 10 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Lockout threshold of %d allows extended password guessing.", lockout.Threshold),
			Remediation: "Lower auth.lockout.threshold to 10 or fewer attempts.",
			Details:     details,
		}
	}
	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Agents lock after %d failures for %s.", lockout.Threshold, lockout.Duration),
		Details: details,
	}
}

func (s *AuditService) checkSessionTTL() Check {
	const id = "session_ttl"
	if s.cfg == nil {
		return configMissing(id)
	}

	ttl := s.cfg.Auth.Session.TTL
	if ttl <= 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Session TTL is not configured; using default duration.",
			Remediation: "Set AGENTDESK_AUTH_SESSION_TTL to control session lifetime.",
		}
	}
	if ttl > maxRecommendedSession {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Session TTL (%s) exceeds recommended maximum (%s).", ttl, maxRecommendedSession),
			Remediation: "Reduce the session TTL to 30 days or lower.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}
	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Session TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

func (s *AuditService) checkCredentialCost() Check {
	const id = "credential_hash_cost"
	if s.cfg == nil {
		return configMissing(id)
	}

	creds := s.cfg.Auth.Credentials
	if strings.EqualFold(strings.TrimSpace(creds.Algorithm), crypto.AlgorithmArgon2id) {
		return Check{ID: id, Status: StatusPass, Message: "Credentials are hashed with argon2id."}
	}

	n := creds.Scrypt.N
	if n <= 0 {
		n = crypto.DefaultScryptParams().N
	}
	details := map[string]any{"algorithm": crypto.AlgorithmScrypt, "n": n}
	if n < crypto.DefaultScryptParams().N {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("scrypt cost N=%d is below the recommended %d.", n, crypto.DefaultScryptParams().N),
			Remediation: "Raise auth.credentials.scrypt.n or switch to argon2id.",
			Details:     details,
		}
	}
	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Credentials are hashed with scrypt N=%d.", n),
		Details: details,
	}
}

func configMissing(id string) Check {
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     "Configuration not loaded; unable to evaluate.",
		Remediation: "Load configuration before running the security audit.",
	}
}
