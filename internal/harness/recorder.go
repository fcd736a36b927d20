package harness

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/opflow/internal/ir"
	"github.com/roach88/opflow/internal/store"
	"github.com/roach88/opflow/internal/testutil"
)

// recorder collects trace events from every wrapped collaborator.
type recorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (r *recorder) add(typ, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, TraceEvent{
		Seq:    int64(len(r.events) + 1),
		Type:   typ,
		Detail: fmt.Sprintf(format, args...),
	})
}

func (r *recorder) trace() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceEvent(nil), r.events...)
}

// recordingDialogs records dialog host calls before answering from the script.
type recordingDialogs struct {
	*testutil.ScriptedDialogs
	rec *recorder
}

func (d *recordingDialogs) PresentParameterDialog(ctx context.Context, req ir.ParameterDialogRequest) (ir.DialogResult, error) {
	res, err := d.ScriptedDialogs.PresentParameterDialog(ctx, req)
	answer := "dismissed"
	if res.Confirmed {
		answer = "confirmed " + canonical(res.Values)
	}
	d.rec.add(EventDialog, "%s prefill=%s fields=%d -> %s",
		req.Operation.Name, canonical(req.Prefill), len(req.FieldMessages), answer)
	return res, err
}

func (d *recordingDialogs) PresentConfirmation(ctx context.Context, req ir.ConfirmationRequest) (bool, error) {
	ok, err := d.ScriptedDialogs.PresentConfirmation(ctx, req)
	answer := "declined"
	if ok {
		answer = "accepted"
	}
	d.rec.add(EventConfirm, "%s %s entities=%s messages=%d -> %s",
		req.Kind, req.Operation, joinOrDash(req.Entities), len(req.Messages), answer)
	return ok, err
}

func (d *recordingDialogs) PresentMessageList(ctx context.Context, msgs []ir.Message, opts ir.MessageListOptions) {
	kind := "list"
	if opts.Inline {
		kind = "inline"
	}
	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Text
	}
	d.rec.add(EventMessages, "%s title=%s: %s", kind, opts.Title, strings.Join(texts, " | "))
	d.ScriptedDialogs.PresentMessageList(ctx, msgs, opts)
}

// recordingJournal records journal writes and forwards them to the store.
type recordingJournal struct {
	store *store.Store
	rec   *recorder
}

func (j *recordingJournal) BeginInvocation(ctx context.Context, r ir.InvocationRecord) error {
	j.rec.add(EventInvocation, "%s mode=%s targets=%s parameters=%s",
		r.Operation, r.Mode, joinOrDash(r.Targets), canonical(r.Parameters))
	return j.store.BeginInvocation(ctx, r)
}

func (j *recordingJournal) RecordSubmission(ctx context.Context, r ir.SubmissionRecord) error {
	j.rec.add(EventSubmit, "group=%s round=%d strict=%t entities=%s",
		r.GroupID, r.Round, r.StrictHandling, joinOrDash(r.Entities))
	return j.store.RecordSubmission(ctx, r)
}

func (j *recordingJournal) RecordOutcome(ctx context.Context, r ir.OutcomeRecord) error {
	j.rec.add(EventOutcome, "entity=%s status=%s messages=%d",
		dashIfEmpty(r.Entity), r.Status, len(r.Messages))
	return j.store.RecordOutcome(ctx, r)
}

func (j *recordingJournal) FinishInvocation(ctx context.Context, id, status string, seq int64) error {
	j.rec.add(EventFinish, "status=%s", status)
	return j.store.FinishInvocation(ctx, id, status, seq)
}

// recordingSideEffects records side-effect requests and their failures.
type recordingSideEffects struct {
	*testutil.RecordingSideEffects
	rec *recorder
}

func (s *recordingSideEffects) ExecuteTriggerAction(ctx context.Context, name string, entity ir.EntityContext, groupID string) error {
	err := s.RecordingSideEffects.ExecuteTriggerAction(ctx, name, entity, groupID)
	s.rec.add(EventSideEffect, "trigger %s entity=%s group=%s%s", name, entity.Path, dashIfEmpty(groupID), failedSuffix(err))
	return err
}

func (s *recordingSideEffects) RequestPaths(ctx context.Context, paths []string, entity ir.EntityContext, groupID string) error {
	err := s.RecordingSideEffects.RequestPaths(ctx, paths, entity, groupID)
	s.rec.add(EventSideEffect, "paths %s entity=%s group=%s%s", strings.Join(paths, ","), entity.Path, dashIfEmpty(groupID), failedSuffix(err))
	return err
}

func failedSuffix(err error) string {
	if err == nil {
		return ""
	}
	return " -> failed"
}

func canonical(obj ir.Object) string {
	if obj == nil {
		obj = ir.Object{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(data)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
