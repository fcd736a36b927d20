package engine

import "github.com/roach88/opflow/internal/ir"

// Group is one network submission unit.
// Targets is empty for unbound and static operations.
type Group struct {
	ID      string
	Targets []ir.EntityContext
}

// ExecutionPlan is the ordered list of groups for one invocation.
type ExecutionPlan struct {
	Mode   ir.GroupingMode
	Groups []Group
}

// GroupTargets splits targets into submission groups.
//
// In isolated mode every target gets its own group and groups are drained in
// order. In changeset mode all targets share one group. Without targets a
// single ungrouped submission is planned regardless of mode.
func GroupTargets(targets []ir.EntityContext, mode ir.GroupingMode, ids IDGenerator) ExecutionPlan {
	plan := ExecutionPlan{Mode: mode}
	if len(targets) == 0 {
		plan.Groups = []Group{{ID: ids.Generate()}}
		return plan
	}
	if mode == ir.GroupingChangeset {
		all := make([]ir.EntityContext, len(targets))
		copy(all, targets)
		plan.Groups = []Group{{ID: ids.Generate(), Targets: all}}
		return plan
	}
	plan.Groups = make([]Group, len(targets))
	for i, t := range targets {
		plan.Groups[i] = Group{ID: ids.Generate(), Targets: []ir.EntityContext{t}}
	}
	return plan
}
