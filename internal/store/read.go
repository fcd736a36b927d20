package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/opflow/internal/ir"
)

// Invocation returns one invocation with its status.
// Returns ErrNotFound for an unknown id.
func (s *Store) Invocation(ctx context.Context, id string) (ir.InvocationSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, operation, mode, targets, parameters, seq, status, finished_seq
		FROM invocations
		WHERE id = ?
	`, id)
	sum, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.InvocationSummary{}, fmt.Errorf("invocation %s: %w", id, ErrNotFound)
	}
	return sum, err
}

// ListInvocations returns the most recent invocations, newest first.
func (s *Store) ListInvocations(ctx context.Context, limit int) ([]ir.InvocationSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, mode, targets, parameters, seq, status, finished_seq
		FROM invocations
		ORDER BY seq DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	out := []ir.InvocationSummary{}
	for rows.Next() {
		sum, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return out, nil
}

// Submissions returns the submissions of an invocation in seq order.
func (s *Store) Submissions(ctx context.Context, invocationID string) ([]ir.SubmissionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invocation_id, group_id, round, entities, strict_handling, seq
		FROM submissions
		WHERE invocation_id = ?
		ORDER BY seq ASC, id ASC
	`, invocationID)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	out := []ir.SubmissionRecord{}
	for rows.Next() {
		var rec ir.SubmissionRecord
		var entities string
		if err := rows.Scan(&rec.ID, &rec.InvocationID, &rec.GroupID, &rec.Round, &entities, &rec.StrictHandling, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if rec.Entities, err = unmarshalStrings(entities); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

// Outcomes returns the settled outcomes of an invocation in seq order.
func (s *Store) Outcomes(ctx context.Context, invocationID string) ([]ir.OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invocation_id, entity, status, error, messages, seq
		FROM outcomes
		WHERE invocation_id = ?
		ORDER BY seq ASC, id ASC
	`, invocationID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	out := []ir.OutcomeRecord{}
	for rows.Next() {
		var rec ir.OutcomeRecord
		var msgs string
		if err := rows.Scan(&rec.ID, &rec.InvocationID, &rec.Entity, &rec.Status, &rec.Error, &msgs, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if rec.Messages, err = unmarshalMessages(msgs); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

// MaxSeq returns the highest seq in the journal, 0 when empty. The engine
// numbers its next record after it.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(m) FROM (
			SELECT COALESCE(MAX(seq), 0) AS m FROM invocations
			UNION ALL SELECT COALESCE(MAX(finished_seq), 0) FROM invocations
			UNION ALL SELECT COALESCE(MAX(seq), 0) FROM submissions
			UNION ALL SELECT COALESCE(MAX(seq), 0) FROM outcomes
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}

// LoadUserDefaults returns the cached dialog values of an operation, or an
// empty object when none are cached.
func (s *Store) LoadUserDefaults(ctx context.Context, operation string) (ir.Object, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx, `SELECT vals FROM user_defaults WHERE operation = ?`, operation).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Object{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user defaults: %w", err)
	}
	return unmarshalObject(encoded)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row rowScanner) (ir.InvocationSummary, error) {
	var sum ir.InvocationSummary
	var mode, targets, params string
	var finished sql.NullInt64
	if err := row.Scan(&sum.ID, &sum.Operation, &mode, &targets, &params, &sum.Seq, &sum.Status, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sum, err
		}
		return sum, fmt.Errorf("scan invocation: %w", err)
	}
	sum.Mode = ir.GroupingMode(mode)
	sum.FinishedSeq = finished.Int64

	var err error
	if sum.Targets, err = unmarshalStrings(targets); err != nil {
		return sum, err
	}
	if sum.Parameters, err = unmarshalObject(params); err != nil {
		return sum, err
	}
	return sum, nil
}
