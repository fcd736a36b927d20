package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/opflow/internal/ir"
)

// StillUnconfirmedText is the message added when the server asks for
// confirmation again after the retry without saying why.
const StillUnconfirmedText = "The server still requires confirmation; the operation was not completed."

// StillUnconfirmedCode identifies StillUnconfirmedText.
const StillUnconfirmedCode = "CONFIRMATION_REQUIRED"

// errNoOutcome settles entities the transport never reported on.
var errNoOutcome = errors.New("transport reported no outcome for entity")

// runGroup drives the strict-handling state machine for one group:
//
//	Idle -> Submitted -> Settled
//	Idle -> Submitted -> RequiresConfirmation -> AwaitingConfirmation -> Resubmitted -> Settled
//
// Every entity settles after at most two submissions. Only the entities that
// came back confirmation-required are resubmitted, and only after the user
// accepted. Transport failures are terminal for their entity.
func (inv *Invoker) runGroup(ctx context.Context, req *InvocationRequest, group Group) map[string]*Result {
	settled := make(map[string]*Result, len(group.Targets))

	first := inv.submit(ctx, req, group.ID, group.Targets, 1, true)
	for _, entity := range groupEntities(group) {
		res := first[entity.Path]
		switch res.Status {
		case ir.StatusSuccess:
			settled[entity.Path] = inv.fulfilled(req, res)
		case ir.StatusConfirmationRequired:
			req.State.RecordFailure(FailureRecord{Entity: entity, Messages: res.Messages})
		default:
			settled[entity.Path] = inv.rejected(req, res)
		}
	}

	pending := req.State.TakePending()
	if len(pending) == 0 {
		return settled
	}

	if !inv.confirmStrictHandling(ctx, req, pending) {
		for _, rec := range pending {
			settled[rec.Entity.Path] = &Result{Entity: rec.Entity.Path, Status: StatusSkipped}
			req.State.DropDeferred(rec.Entity.Path)
		}
		return settled
	}

	retry := make([]ir.EntityContext, 0, len(pending))
	for _, rec := range pending {
		if rec.Entity.Path != "" {
			retry = append(retry, rec.Entity)
		}
	}
	second := inv.submit(ctx, req, group.ID, retry, 2, false)
	for _, rec := range pending {
		path := rec.Entity.Path
		req.State.DropDeferred(path)
		res := second[path]
		switch res.Status {
		case ir.StatusSuccess:
			settled[path] = inv.fulfilled(req, res)
		case ir.StatusConfirmationRequired:
			// Asked again after the user already confirmed: settle instead of
			// looping.
			settled[path] = inv.unconfirmed(req, path, res.Messages)
		default:
			settled[path] = inv.rejected(req, res)
		}
	}
	return settled
}

// unconfirmed rejects an entity the server still wanted confirmed after the
// retry. Its messages were marked processed when the user confirmed them, so
// they are released again; the rejection must reach the message decision.
func (inv *Invoker) unconfirmed(req *InvocationRequest, path string, msgs []ir.Message) *Result {
	for _, m := range msgs {
		delete(req.State.ProcessedMessageIDs, m.Key())
	}
	if len(msgs) == 0 {
		msgs = []ir.Message{{
			Code:     StillUnconfirmedCode,
			Text:     StillUnconfirmedText,
			Severity: ir.SeverityError,
			Target:   path,
		}}
	}
	req.State.CollectedWarnings = append(req.State.CollectedWarnings, msgs...)
	return &Result{
		Entity:   path,
		Status:   StatusRejected,
		Messages: msgs,
		Err:      ir.NewConfirmationRequiredError(req.Operation.Name, path),
	}
}

// groupEntities returns the entities a group settles. An unbound group
// settles a single entity with an empty path.
func groupEntities(group Group) []ir.EntityContext {
	if len(group.Targets) == 0 {
		return []ir.EntityContext{{}}
	}
	return group.Targets
}

// submit sends one round of one group and collects its per-entity results.
// Results arrive independently; a failing entity never blocks the others.
func (inv *Invoker) submit(ctx context.Context, req *InvocationRequest, groupID string, targets []ir.EntityContext, round int, strict bool) map[string]ir.EntityResult {
	sub := Submission{
		InvocationID:   req.ID,
		GroupID:        groupID,
		Operation:      req.Operation.Name,
		Targets:        targets,
		Parameters:     req.Values.Clone(),
		BindingExtras:  req.BindingExtras,
		Round:          round,
		StrictHandling: strict,
	}
	entities := groupEntities(Group{Targets: targets})

	inv.logger.Debug("submitting group",
		"invocation", req.ID,
		"operation", req.Operation.Name,
		"group", groupID,
		"round", round,
		"entities", len(targets),
	)
	inv.metrics.SubmissionSent(req.Operation.Name, round, len(entities))
	inv.recordSubmission(ctx, ir.SubmissionRecord{
		InvocationID:   req.ID,
		GroupID:        groupID,
		Round:          round,
		Entities:       entityPaths(targets),
		StrictHandling: strict,
	})

	out := make(map[string]ir.EntityResult, len(entities))
	fail := func(err error) {
		for _, e := range entities {
			if _, ok := out[e.Path]; !ok {
				out[e.Path] = ir.EntityResult{Entity: e.Path, Status: ir.StatusFailed, Err: err}
			}
		}
	}

	stream, err := inv.transport.Submit(ctx, sub)
	if err != nil {
		fail(err)
		return out
	}

	for {
		select {
		case <-ctx.Done():
			fail(fmt.Errorf("waiting for outcomes: %w", ctx.Err()))
			return out
		case res, ok := <-stream:
			if !ok {
				fail(errNoOutcome)
				return out
			}
			if _, dup := out[res.Entity]; !dup {
				out[res.Entity] = res
			}
		}
	}
}

// confirmStrictHandling asks once for all entities of the round. The shown
// messages count as surfaced so a successful resubmission does not repeat them.
func (inv *Invoker) confirmStrictHandling(ctx context.Context, req *InvocationRequest, pending []FailureRecord) bool {
	var msgs []ir.Message
	for _, m := range req.State.DeferredSuccessMessages {
		key := m.Key()
		if req.State.ProcessedMessageIDs[key] {
			continue
		}
		req.State.ProcessedMessageIDs[key] = true
		msgs = append(msgs, m)
	}

	accepted, err := inv.dialogs.PresentConfirmation(ctx, ir.ConfirmationRequest{
		Kind:      ir.ConfirmStrictHandling,
		Operation: req.Operation.Name,
		Entities:  failureEntities(pending),
		Messages:  msgs,
	})
	if err != nil {
		inv.logger.Warn("strict handling confirmation failed, treating as declined",
			"invocation", req.ID,
			"operation", req.Operation.Name,
			"error", err,
		)
		accepted = false
	}
	inv.metrics.ConfirmationAnswered(req.Operation.Name, ir.ConfirmStrictHandling, accepted)
	return accepted
}

func (inv *Invoker) fulfilled(req *InvocationRequest, res ir.EntityResult) *Result {
	req.State.CollectedWarnings = append(req.State.CollectedWarnings, res.Messages...)
	return &Result{
		Entity:   res.Entity,
		Status:   StatusFulfilled,
		Value:    res.Value,
		Messages: res.Messages,
	}
}

func (inv *Invoker) rejected(req *InvocationRequest, res ir.EntityResult) *Result {
	cause := res.Err
	if cause == nil {
		cause = errors.New("operation failed")
		for _, m := range res.Messages {
			if m.Severity == ir.SeverityError {
				cause = errors.New(m.Text)
				break
			}
		}
	}
	inv.logger.Warn("operation failed for entity",
		"invocation", req.ID,
		"operation", req.Operation.Name,
		"entity", res.Entity,
		"error", cause,
	)
	req.State.CollectedWarnings = append(req.State.CollectedWarnings, res.Messages...)
	return &Result{
		Entity:   res.Entity,
		Status:   StatusRejected,
		Messages: res.Messages,
		Err:      ir.NewTransportError(req.Operation.Name, res.Entity, cause),
	}
}

func entityPaths(targets []ir.EntityContext) []string {
	if len(targets) == 0 {
		return nil
	}
	paths := make([]string, len(targets))
	for i, t := range targets {
		paths[i] = t.Path
	}
	return paths
}

func failureEntities(recs []FailureRecord) []string {
	var paths []string
	for _, rec := range recs {
		if rec.Entity.Path != "" {
			paths = append(paths, rec.Entity.Path)
		}
	}
	return paths
}
