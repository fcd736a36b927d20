package store

import (
	"context"
	"fmt"

	"github.com/roach88/opflow/internal/ir"
)

// BeginInvocation inserts the invocation row with status "running".
// A duplicate id is ignored so a retried write is harmless.
func (s *Store) BeginInvocation(ctx context.Context, rec ir.InvocationRecord) error {
	targets, err := marshalJSON(nonNilStrings(rec.Targets))
	if err != nil {
		return fmt.Errorf("begin invocation: %w", err)
	}
	params, err := marshalObject(rec.Parameters)
	if err != nil {
		return fmt.Errorf("begin invocation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invocations (id, operation, mode, targets, parameters, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.Operation, string(rec.Mode), targets, params, rec.Seq)
	if err != nil {
		return fmt.Errorf("begin invocation: %w", err)
	}
	return nil
}

// RecordSubmission appends one submission of a group.
// The invocation must exist (foreign key).
func (s *Store) RecordSubmission(ctx context.Context, rec ir.SubmissionRecord) error {
	entities, err := marshalJSON(nonNilStrings(rec.Entities))
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (invocation_id, group_id, round, entities, strict_handling, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.InvocationID, rec.GroupID, rec.Round, entities, rec.StrictHandling, rec.Seq)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// RecordOutcome appends the settlement of one entity.
func (s *Store) RecordOutcome(ctx context.Context, rec ir.OutcomeRecord) error {
	msgs := rec.Messages
	if msgs == nil {
		msgs = []ir.Message{}
	}
	encoded, err := marshalJSON(msgs)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outcomes (invocation_id, entity, status, error, messages, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.InvocationID, rec.Entity, rec.Status, rec.Error, encoded, rec.Seq)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// FinishInvocation sets the final status of an invocation.
func (s *Store) FinishInvocation(ctx context.Context, invocationID, status string, seq int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invocations SET status = ?, finished_seq = ? WHERE id = ?
	`, status, seq, invocationID)
	if err != nil {
		return fmt.Errorf("finish invocation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish invocation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish invocation %s: %w", invocationID, ErrNotFound)
	}
	return nil
}

// SaveUserDefaults replaces the cached dialog values of an operation.
func (s *Store) SaveUserDefaults(ctx context.Context, operation string, values ir.Object) error {
	encoded, err := marshalObject(values)
	if err != nil {
		return fmt.Errorf("save user defaults: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_defaults (operation, vals) VALUES (?, ?)
		ON CONFLICT(operation) DO UPDATE SET vals = excluded.vals
	`, operation, encoded)
	if err != nil {
		return fmt.Errorf("save user defaults: %w", err)
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
