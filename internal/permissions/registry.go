package permissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Permission describes a capability known to the workspace.
type Permission struct {
	ID          string
	Module      string
	DependsOn   []string
	Description string
}

var (
	errEmptyID        = errors.New("permission: id is required")
	errDuplicateID    = errors.New("permission: already registered")
	errSelfDependency = errors.New("permission: cannot depend on itself")
	errReservedID     = errors.New("permission: id is reserved")
	errUnknownDep     = errors.New("permission: unknown dependency")
)

// Catalogue is an immutable, validated set of permissions.
type Catalogue struct {
	byID    map[string]Permission
	ordered []Permission
}

// NewCatalogue validates perms and indexes them by ID. Every dependency must
// name another permission in the same catalogue.
func NewCatalogue(perms ...Permission) (*Catalogue, error) {
	c := &Catalogue{byID: make(map[string]Permission, len(perms))}

	for _, perm := range perms {
		id := strings.TrimSpace(perm.ID)
		switch {
		case id == "":
			return nil, errEmptyID
		case id == All:
			return nil, fmt.Errorf("%w: %s", errReservedID, id)
		}
		if _, exists := c.byID[id]; exists {
			return nil, fmt.Errorf("%w: %s", errDuplicateID, id)
		}

		deps, err := normaliseIDs(perm.DependsOn, id)
		if err != nil {
			return nil, err
		}
		c.byID[id] = Permission{
			ID:          id,
			Module:      strings.TrimSpace(perm.Module),
			DependsOn:   deps,
			Description: perm.Description,
		}
	}

	for _, perm := range c.byID {
		for _, dep := range perm.DependsOn {
			if _, ok := c.byID[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", errUnknownDep, perm.ID, dep)
			}
		}
		c.ordered = append(c.ordered, perm)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].ID < c.ordered[j].ID })
	return c, nil
}

func mustCatalogue(perms ...Permission) *Catalogue {
	c, err := NewCatalogue(perms...)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns a copy of the permission definition when registered.
func (c *Catalogue) Get(id string) (Permission, bool) {
	perm, ok := c.byID[strings.TrimSpace(id)]
	return clonePermission(perm), ok
}

// All returns every permission ordered by ID.
func (c *Catalogue) All() []Permission {
	out := make([]Permission, len(c.ordered))
	for i, perm := range c.ordered {
		out[i] = clonePermission(perm)
	}
	return out
}

// ByModule groups permissions by module, each group ordered by ID.
func (c *Catalogue) ByModule() map[string][]Permission {
	out := make(map[string][]Permission)
	for _, perm := range c.ordered {
		out[perm.Module] = append(out[perm.Module], clonePermission(perm))
	}
	return out
}

// Unknown returns the entries of ids that are neither registered nor the wildcard.
func (c *Catalogue) Unknown(ids []string) []string {
	var unknown []string
	for _, id := range ids {
		if id == All {
			continue
		}
		if _, ok := c.byID[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// Get looks id up in the built-in catalogue.
func Get(id string) (Permission, bool) { return core.Get(id) }

// GetAll lists the built-in catalogue ordered by ID.
func GetAll() []Permission { return core.All() }

// GetByModule lists the built-in permissions of one module.
func GetByModule(module string) []Permission { return core.ByModule()[strings.TrimSpace(module)] }

// Unknown reports ids missing from the built-in catalogue.
func Unknown(ids []string) []string { return core.Unknown(ids) }

func clonePermission(perm Permission) Permission {
	if perm.DependsOn != nil {
		perm.DependsOn = append([]string(nil), perm.DependsOn...)
	}
	return perm
}

func normaliseIDs(values []string, self string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(values))
	var result []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if value == self {
			return nil, fmt.Errorf("%w: %s", errSelfDependency, self)
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result, nil
}
