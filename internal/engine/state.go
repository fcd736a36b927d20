package engine

import "github.com/roach88/opflow/internal/ir"

// FailureRecord is one entity whose submission came back
// confirmation-required, with the server messages explaining why.
type FailureRecord struct {
	Entity   ir.EntityContext
	Messages []ir.Message
}

// StrictHandlingState is the strict-handling bookkeeping of one invocation.
//
// It is created fresh per InvocationRequest, threaded through every retry
// round of that invocation, and reset on settlement. It is never shared
// between invocations and is not safe for concurrent use.
type StrictHandlingState struct {
	// FailedRounds holds every confirmation-required record seen so far.
	FailedRounds []FailureRecord
	// PendingConfirmations are the records of the current round awaiting the
	// user's decision. TakePending consumes them exactly once.
	PendingConfirmations []FailureRecord
	// CollectedWarnings are messages to surface after settlement.
	CollectedWarnings []ir.Message
	// DeferredSuccessMessages are interim messages of confirmation-required
	// entities. They are dropped when the resubmission succeeds.
	DeferredSuccessMessages []ir.Message
	// ProcessedMessageIDs are the keys of messages already surfaced.
	ProcessedMessageIDs map[string]bool
}

// NewStrictHandlingState returns an empty state.
func NewStrictHandlingState() *StrictHandlingState {
	return &StrictHandlingState{ProcessedMessageIDs: make(map[string]bool)}
}

// RecordFailure parks a confirmation-required entity and its messages.
func (s *StrictHandlingState) RecordFailure(rec FailureRecord) {
	s.FailedRounds = append(s.FailedRounds, rec)
	s.PendingConfirmations = append(s.PendingConfirmations, rec)
	s.DeferredSuccessMessages = append(s.DeferredSuccessMessages, rec.Messages...)
}

// TakePending returns and clears the records awaiting confirmation.
func (s *StrictHandlingState) TakePending() []FailureRecord {
	pending := s.PendingConfirmations
	s.PendingConfirmations = nil
	return pending
}

// DropDeferred discards the deferred messages parked for entity.
func (s *StrictHandlingState) DropDeferred(entity string) {
	parked := make(map[string]bool)
	for _, rec := range s.FailedRounds {
		if rec.Entity.Path != entity {
			continue
		}
		for _, m := range rec.Messages {
			parked[m.Key()] = true
		}
	}
	kept := s.DeferredSuccessMessages[:0]
	for _, m := range s.DeferredSuccessMessages {
		if !parked[m.Key()] {
			kept = append(kept, m)
		}
	}
	s.DeferredSuccessMessages = kept
}

// Reset returns the state to its empty form.
func (s *StrictHandlingState) Reset() {
	s.FailedRounds = nil
	s.PendingConfirmations = nil
	s.CollectedWarnings = nil
	s.DeferredSuccessMessages = nil
	s.ProcessedMessageIDs = make(map[string]bool)
}

// IsEmpty reports whether the state holds nothing.
func (s *StrictHandlingState) IsEmpty() bool {
	return len(s.FailedRounds) == 0 &&
		len(s.PendingConfirmations) == 0 &&
		len(s.CollectedWarnings) == 0 &&
		len(s.DeferredSuccessMessages) == 0 &&
		len(s.ProcessedMessageIDs) == 0
}
