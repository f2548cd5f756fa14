package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL defines the fallback validity period for access tokens.
const DefaultAccessTokenTTL = 15 * time.Minute

var (
	// ErrMissingSecret is returned when the signing secret is empty.
	ErrMissingSecret = errors.New("jwt: secret must be provided")
	// ErrTokenExpired marks tokens rejected only because their lifetime elapsed.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenInvalid marks every other rejected token.
	ErrTokenInvalid = errors.New("jwt: token invalid")
)

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	// Leeway tolerates clock skew on exp, nbf and iat.
	Leeway time.Duration
	Clock  func() time.Time
}

// Claims is the payload carried by agent access tokens. The session id doubles
// as the token id so a revoked session invalidates every token minted for it.
type Claims struct {
	AgentID   string `json:"uid"`
	AccountID string `json:"aid"`
	TenantID  string `json:"tid,omitempty"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// AccessTokenInput holds the parameters used when generating a new access token.
type AccessTokenInput struct {
	AgentID   string
	AccountID string
	TenantID  string
	SessionID string
	Audience  []string
}

// JWTService signs and verifies HS256 agent access tokens.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewJWTService constructs a JWTService from cfg.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}

	svc := &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.AccessTokenTTL,
		leeway: cfg.Leeway,
		now:    cfg.Clock,
	}
	if svc.ttl <= 0 {
		svc.ttl = DefaultAccessTokenTTL
	}
	if svc.leeway < 0 {
		svc.leeway = 0
	}
	if svc.now == nil {
		svc.now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(svc.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(svc.leeway),
	}
	if svc.issuer != "" {
		opts = append(opts, jwt.WithIssuer(svc.issuer))
	}
	svc.parser = jwt.NewParser(opts...)

	return svc, nil
}

// SecretLength reports the signing secret size in bytes.
func (s *JWTService) SecretLength() int {
	return len(s.secret)
}

// TTL reports the access token lifetime.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// GenerateAccessToken issues a signed token for an agent session.
func (s *JWTService) GenerateAccessToken(input AccessTokenInput) (string, error) {
	switch {
	case input.AgentID == "":
		return "", errors.New("jwt: agent id is required")
	case input.SessionID == "":
		return "", errors.New("jwt: session id is required")
	}

	issued := s.now()
	claims := &Claims{
		AgentID:   input.AgentID,
		AccountID: input.AccountID,
		TenantID:  input.TenantID,
		SessionID: input.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        input.SessionID,
			Subject:   input.AgentID,
			Issuer:    s.issuer,
			Audience:  input.Audience,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken verifies signature, lifetime and issuer and returns the
// claims. Errors wrap ErrTokenExpired or ErrTokenInvalid together with the
// underlying jwt error.
func (s *JWTService) ValidateAccessToken(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	claims := new(Claims)
	if _, err := s.parser.ParseWithClaims(raw, claims, s.keyFunc); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Join(ErrTokenExpired, err)
		}
		return nil, errors.Join(ErrTokenInvalid, err)
	}

	switch {
	case claims.AgentID == "" || claims.SessionID == "":
		return nil, fmt.Errorf("%w: missing agent or session claim", ErrTokenInvalid)
	case claims.Subject != "" && claims.Subject != claims.AgentID:
		return nil, fmt.Errorf("%w: subject does not match agent", ErrTokenInvalid)
	case claims.ID != "" && claims.ID != claims.SessionID:
		return nil, fmt.Errorf("%w: token id does not match session", ErrTokenInvalid)
	}
	return claims, nil
}

func (s *JWTService) keyFunc(*jwt.Token) (any, error) {
	return s.secret, nil
}
