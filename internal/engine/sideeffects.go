package engine

import (
	"context"
	"sort"

	"github.com/roach88/opflow/internal/ir"
)

// afterSettlement requests the side effects of a fulfilled entity: trigger
// actions first, then dependent paths. In changeset mode both join the
// triggering group. Failures are logged and swallowed; they never change the
// entity's outcome or stop later groups.
func (inv *Invoker) afterSettlement(ctx context.Context, req *InvocationRequest, entity ir.EntityContext, groupID string) {
	if inv.sideEffects == nil || req.SideEffects.IsEmpty() {
		return
	}
	if req.Mode != ir.GroupingChangeset {
		groupID = ""
	}

	for _, action := range req.SideEffects.TriggerActions {
		if err := inv.sideEffects.ExecuteTriggerAction(ctx, action, entity, groupID); err != nil {
			inv.logger.Warn("trigger action failed",
				"invocation", req.ID,
				"operation", req.Operation.Name,
				"entity", entity.Path,
				"action", action,
				"error", err,
			)
			inv.metrics.SideEffectFailed(req.Operation.Name, "trigger_action")
		}
	}

	if len(req.SideEffects.TargetPaths) == 0 {
		return
	}
	if err := inv.sideEffects.RequestPaths(ctx, req.SideEffects.TargetPaths, entity, groupID); err != nil {
		inv.logger.Warn("side effect request failed",
			"invocation", req.ID,
			"operation", req.Operation.Name,
			"entity", entity.Path,
			"error", err,
		)
		inv.metrics.SideEffectFailed(req.Operation.Name, "request_paths")
	}
}

// recomputeEnablement evaluates each enablement path for the current
// selection. An operation is enabled when any selected entity evaluates true.
// Operations whose path could not be read for any entity are left out.
func (inv *Invoker) recomputeEnablement(ctx context.Context, req *InvocationRequest) map[string]bool {
	if len(req.Enablement) == 0 {
		return nil
	}

	names := make([]string, 0, len(req.Enablement))
	for name := range req.Enablement {
		names = append(names, name)
	}
	sort.Strings(names)

	selection := req.Targets
	if len(selection) == 0 {
		selection = []ir.EntityContext{{}}
	}

	out := make(map[string]bool, len(names))
	for _, name := range names {
		path := req.Enablement[name]
		known := false
		for _, entity := range selection {
			v, err := inv.transport.ReadPath(ctx, path, entity)
			if err != nil {
				inv.logger.Warn("enablement read failed",
					"invocation", req.ID,
					"operation", name,
					"entity", entity.Path,
					"error", err,
				)
				continue
			}
			known = true
			if ir.Truthy(v) {
				out[name] = true
				break
			}
		}
		if known && !out[name] {
			out[name] = false
		}
	}
	return out
}
