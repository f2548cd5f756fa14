package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPermission reports a capability that was never registered.
var ErrUnknownPermission = errors.New("permission: unknown permission")

// Source resolves the effective capabilities of an agent.
type Source interface {
	PermissionsFor(ctx context.Context, agentID string) ([]string, error)
}

// Checker evaluates agent capabilities against the registry.
type Checker struct {
	source Source
}

// NewChecker constructs a capability checker backed by the provided source.
func NewChecker(source Source) (*Checker, error) {
	if source == nil {
		return nil, errors.New("permission checker: source is required")
	}
	return &Checker{source: source}, nil
}

// Check determines whether the agent holds the capability.
func (c *Checker) Check(ctx context.Context, agentID, capability string) (bool, error) {
	ctx = ensureContext(ctx)

	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return false, errors.New("permission checker: agent id is required")
	}
	capability = strings.TrimSpace(capability)
	if _, ok := Get(capability); !ok {
		return false, fmt.Errorf("%w %q", ErrUnknownPermission, capability)
	}

	perms, err := c.source.PermissionsFor(ctx, agentID)
	if err != nil {
		return false, fmt.Errorf("permission checker: resolve permissions: %w", err)
	}
	return Allows(perms, capability), nil
}

// Allows reports whether perms grants capability, either directly or via the
// owner wildcard.
func Allows(perms []string, capability string) bool {
	for _, p := range perms {
		if p == All || p == capability {
			return true
		}
	}
	return false
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
