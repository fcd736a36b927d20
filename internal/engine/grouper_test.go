package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opflow/internal/ir"
)

func entities(paths ...string) []ir.EntityContext {
	out := make([]ir.EntityContext, len(paths))
	for i, p := range paths {
		out[i] = ir.EntityContext{Path: p, EntityType: "Orders"}
	}
	return out
}

func TestGroupTargets(t *testing.T) {
	targets := entities("/Orders(1)", "/Orders(2)", "/Orders(3)")

	t.Run("isolated", func(t *testing.T) {
		plan := GroupTargets(targets, ir.GroupingIsolated, NewSequenceGenerator("g"))
		assert.Equal(t, ir.GroupingIsolated, plan.Mode)
		require.Len(t, plan.Groups, 3)
		for i, g := range plan.Groups {
			require.Len(t, g.Targets, 1)
			assert.Equal(t, targets[i].Path, g.Targets[0].Path)
		}
		assert.Equal(t, []string{"g-1", "g-2", "g-3"},
			[]string{plan.Groups[0].ID, plan.Groups[1].ID, plan.Groups[2].ID})
	})

	t.Run("changeset", func(t *testing.T) {
		plan := GroupTargets(targets, ir.GroupingChangeset, NewSequenceGenerator("g"))
		require.Len(t, plan.Groups, 1)
		assert.Equal(t, "g-1", plan.Groups[0].ID)
		assert.Equal(t, targets, plan.Groups[0].Targets)
	})

	for _, mode := range []ir.GroupingMode{ir.GroupingIsolated, ir.GroupingChangeset} {
		t.Run("unbound "+string(mode), func(t *testing.T) {
			plan := GroupTargets(nil, mode, NewSequenceGenerator("g"))
			require.Len(t, plan.Groups, 1)
			assert.Empty(t, plan.Groups[0].Targets)
		})
	}
}
