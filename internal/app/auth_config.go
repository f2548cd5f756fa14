package app

import (
	"time"

	"github.com/charlesng35/agentdesk/internal/auth"
	"github.com/charlesng35/agentdesk/internal/services"
	"github.com/charlesng35/agentdesk/pkg/crypto"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
	defaultInvitationTTL    = 48 * time.Hour
	defaultRefreshLength    = 48
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
		Leeway:         c.JWT.Leeway,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	ttl := c.Session.TTL
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}

	length := c.Session.RefreshLength
	if length <= 0 {
		length = defaultRefreshLength
	}

	return auth.SessionConfig{
		SessionTTL:    ttl,
		RefreshLength: length,
	}
}

// LockoutConfig converts AuthConfig into the failed-login policy.
func (c AuthConfig) LockoutConfig() services.LockoutPolicy {
	threshold := c.Lockout.Threshold
	if threshold <= 0 {
		threshold = defaultLockoutThreshold
	}

	duration := c.Lockout.Duration
	if duration <= 0 {
		duration = defaultLockoutDuration
	}

	return services.LockoutPolicy{Threshold: threshold, Duration: duration}
}

// InvitationConfig returns the invitation lifetime.
func (c AuthConfig) InvitationConfig() time.Duration {
	if c.Invitation.TTL <= 0 {
		return defaultInvitationTTL
	}
	return c.Invitation.TTL
}

// HasherConfig converts AuthConfig into credential hasher options.
func (c AuthConfig) HasherConfig() []crypto.HasherOption {
	opts := []crypto.HasherOption{crypto.WithAlgorithm(c.Credentials.Algorithm)}

	params := crypto.DefaultScryptParams()
	overridden := false
	if n := c.Credentials.Scrypt.N; n > 0 {
		params.N = n
		overridden = true
	}
	if r := c.Credentials.Scrypt.R; r > 0 {
		params.R = r
		overridden = true
	}
	if p := c.Credentials.Scrypt.P; p > 0 {
		params.P = p
		overridden = true
	}
	if overridden {
		opts = append(opts, crypto.WithScryptParams(params))
	}
	return opts
}
