package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoreCatalogueIsConsistent(t *testing.T) {
	def, ok := Get(AgentsInvite)
	require.True(t, ok)
	require.Equal(t, "agents", def.Module)
	require.Equal(t, []string{AgentsView}, def.DependsOn)

	_, ok = Get(All)
	require.False(t, ok)

	require.Len(t, GetByModule("conversations"), 3)
	require.Len(t, GetAll(), 16)

	all := GetAll()
	for i := 1; i < len(all); i++ {
		require.Less(t, all[i-1].ID, all[i].ID)
	}
}

func TestCatalogueReturnsCopies(t *testing.T) {
	def, _ := Get(AgentsInvite)
	def.DependsOn[0] = "tampered"

	again, _ := Get(AgentsInvite)
	require.Equal(t, []string{AgentsView}, again.DependsOn)
}

func TestNewCatalogueRejectsInvalidDefinitions(t *testing.T) {
	cases := map[string]struct {
		perms []Permission
		err   error
	}{
		"empty id":       {perms: []Permission{{ID: "  "}}, err: errEmptyID},
		"wildcard":       {perms: []Permission{{ID: All}}, err: errReservedID},
		"self":           {perms: []Permission{{ID: "x.y", DependsOn: []string{"x.y"}}}, err: errSelfDependency},
		"duplicate":      {perms: []Permission{{ID: "x.y"}, {ID: " x.y "}}, err: errDuplicateID},
		"unknown parent": {perms: []Permission{{ID: "x.y", DependsOn: []string{"x.z"}}}, err: errUnknownDep},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCatalogue(tc.perms...)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestNewCatalogueNormalisesDefinitions(t *testing.T) {
	c, err := NewCatalogue(
		Permission{ID: " a.view ", Module: " a "},
		Permission{ID: "a.edit", Module: "a", DependsOn: []string{"a.view", " a.view", ""}},
	)
	require.NoError(t, err)

	edit, ok := c.Get("a.edit")
	require.True(t, ok)
	require.Equal(t, []string{"a.view"}, edit.DependsOn)
	require.Len(t, c.ByModule()["a"], 2)
	require.Equal(t, []string{"b.view"}, c.Unknown([]string{"a.view", All, "b.view"}))
}

func TestUnknownIgnoresWildcard(t *testing.T) {
	require.Empty(t, Unknown([]string{All, ContactsView}))
	require.Equal(t, []string{"made.up"}, Unknown([]string{ContactsView, "made.up"}))
}
