package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/roach88/opflow/internal/ir"
)

// JournalSeq hands out the seq stamped on journal records. The zero value
// starts at 1; it is safe for concurrent use.
type JournalSeq struct {
	last atomic.Int64
}

// ResumeJournalSeq continues after last, the highest seq already journaled.
func ResumeJournalSeq(last int64) *JournalSeq {
	s := &JournalSeq{}
	s.last.Store(last)
	return s
}

// Stamp reserves the seq for the next record.
func (s *JournalSeq) Stamp() int64 {
	return s.last.Add(1)
}

// Last is the most recently stamped seq.
func (s *JournalSeq) Last() int64 {
	return s.last.Load()
}

// Journal writes are best effort: a failing journal is logged and never
// changes the outcome of an invocation.

func (inv *Invoker) beginInvocation(ctx context.Context, req *InvocationRequest) {
	if inv.journal == nil {
		return
	}
	rec := ir.InvocationRecord{
		ID:         req.ID,
		Operation:  req.Operation.Name,
		Mode:       req.Mode,
		Targets:    entityPaths(req.Targets),
		Parameters: req.Values,
		Seq:        inv.seq.Stamp(),
	}
	if err := inv.journal.BeginInvocation(ctx, rec); err != nil {
		inv.logJournalError("begin invocation", req.ID, err)
	}
}

func (inv *Invoker) recordSubmission(ctx context.Context, rec ir.SubmissionRecord) {
	if inv.journal == nil {
		return
	}
	rec.Seq = inv.seq.Stamp()
	if err := inv.journal.RecordSubmission(ctx, rec); err != nil {
		inv.logJournalError("record submission", rec.InvocationID, err)
	}
}

func (inv *Invoker) recordOutcome(ctx context.Context, req *InvocationRequest, res *Result) {
	if inv.journal == nil {
		return
	}
	rec := ir.OutcomeRecord{
		InvocationID: req.ID,
		Entity:       res.Entity,
		Status:       string(res.Status),
		Messages:     res.Messages,
		Seq:          inv.seq.Stamp(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := inv.journal.RecordOutcome(ctx, rec); err != nil {
		inv.logJournalError("record outcome", req.ID, err)
	}
}

func (inv *Invoker) finishInvocation(ctx context.Context, req *InvocationRequest, resp *Response, status string, started time.Time) {
	inv.metrics.InvocationFinished(req.Operation.Name, status, time.Since(started))
	inv.logger.Info("invocation settled",
		"invocation", req.ID,
		"operation", req.Operation.Name,
		"status", status,
		"results", len(resp.Results),
	)
	if inv.journal == nil {
		return
	}
	// Journal the end even when the caller's context is already cancelled.
	if err := inv.journal.FinishInvocation(context.WithoutCancel(ctx), req.ID, status, inv.seq.Stamp()); err != nil {
		inv.logJournalError("finish invocation", req.ID, err)
	}
}

func (inv *Invoker) logJournalError(op, invocationID string, err error) {
	inv.logger.Warn("journal write failed",
		"op", op,
		"invocation", invocationID,
		"error", err,
	)
}
