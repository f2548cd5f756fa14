package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charlesng35/agentdesk/pkg/crypto"
)

// generatedSecretBytes yields a 64 character URL-safe secret.
const generatedSecretBytes = 48

// ErrNilConfig is returned when runtime defaults are applied to a nil config.
var ErrNilConfig = errors.New("config: config is nil")

// ApplyRuntimeDefaults fills values that cannot be given a static default,
// such as the token signing secret, and normalises free-form settings. It
// returns the keys whose values were generated so callers can warn about them
// without logging the values. A generated secret lives only as long as the
// process, so tokens stop verifying after a restart.
func ApplyRuntimeDefaults(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	var generated []string

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		secret, err := crypto.GenerateToken(generatedSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("config: generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated = append(generated, "auth.jwt.secret")
	}

	if cfg.Auth.JWT.Issuer = strings.TrimSpace(cfg.Auth.JWT.Issuer); cfg.Auth.JWT.Issuer == "" {
		cfg.Auth.JWT.Issuer = ServiceName
	}

	algorithm := strings.ToLower(strings.TrimSpace(cfg.Auth.Credentials.Algorithm))
	if algorithm == "" {
		algorithm = crypto.AlgorithmScrypt
	}
	cfg.Auth.Credentials.Algorithm = algorithm

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	sort.Strings(generated)
	return generated, nil
}
