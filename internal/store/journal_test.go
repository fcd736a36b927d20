package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opflow/internal/ir"
)

func seedInvocation(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.BeginInvocation(ctx, ir.InvocationRecord{
		ID:         "inv-1",
		Operation:  "OrderService.approve",
		Mode:       ir.GroupingChangeset,
		Targets:    []string{"/Orders(1)", "/Orders(2)"},
		Parameters: ir.Object{"Priority": ir.Int(2), "Comment": ir.String("ok")},
		Seq:        1,
	}))
	require.NoError(t, s.RecordSubmission(ctx, ir.SubmissionRecord{
		InvocationID: "inv-1", GroupID: "grp-1", Round: 1,
		Entities: []string{"/Orders(1)", "/Orders(2)"}, StrictHandling: true, Seq: 2,
	}))
	require.NoError(t, s.RecordSubmission(ctx, ir.SubmissionRecord{
		InvocationID: "inv-1", GroupID: "grp-1", Round: 2,
		Entities: []string{"/Orders(2)"}, Seq: 4,
	}))
	require.NoError(t, s.RecordOutcome(ctx, ir.OutcomeRecord{
		InvocationID: "inv-1", Entity: "/Orders(1)", Status: "fulfilled", Seq: 3,
	}))
	require.NoError(t, s.RecordOutcome(ctx, ir.OutcomeRecord{
		InvocationID: "inv-1", Entity: "/Orders(2)", Status: "rejected",
		Error: "credit limit exceeded",
		Messages: []ir.Message{{
			Code: "LIMIT", Text: "Credit limit exceeded", Severity: ir.SeverityError, Target: "/Orders(2)/Amount",
		}},
		Seq: 5,
	}))
	require.NoError(t, s.FinishInvocation(ctx, "inv-1", "partial", 6))
}

func TestInvocation_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	seedInvocation(t, s)

	got, err := s.Invocation(context.Background(), "inv-1")
	require.NoError(t, err)

	assert.Equal(t, "OrderService.approve", got.Operation)
	assert.Equal(t, ir.GroupingChangeset, got.Mode)
	assert.Equal(t, []string{"/Orders(1)", "/Orders(2)"}, got.Targets)
	assert.Equal(t, ir.Object{"Priority": ir.Int(2), "Comment": ir.String("ok")}, got.Parameters)
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, "partial", got.Status)
	assert.Equal(t, int64(6), got.FinishedSeq)
}

func TestInvocation_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Invocation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBeginInvocation_Running(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginInvocation(ctx, ir.InvocationRecord{
		ID: "inv-2", Operation: "OrderService.createOrder", Mode: ir.GroupingIsolated, Seq: 7,
	}))
	// duplicate begin is ignored
	require.NoError(t, s.BeginInvocation(ctx, ir.InvocationRecord{
		ID: "inv-2", Operation: "OrderService.other", Mode: ir.GroupingIsolated, Seq: 8,
	}))

	got, err := s.Invocation(ctx, "inv-2")
	require.NoError(t, err)
	assert.Equal(t, "running", got.Status)
	assert.Equal(t, "OrderService.createOrder", got.Operation)
	assert.Empty(t, got.Targets)
	assert.Equal(t, ir.Object{}, got.Parameters)
	assert.Zero(t, got.FinishedSeq)
}

func TestFinishInvocation_Unknown(t *testing.T) {
	s := openTestStore(t)

	err := s.FinishInvocation(context.Background(), "missing", "succeeded", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordSubmission_RequiresInvocation(t *testing.T) {
	s := openTestStore(t)

	err := s.RecordSubmission(context.Background(), ir.SubmissionRecord{
		InvocationID: "missing", GroupID: "g", Round: 1, Seq: 1,
	})
	assert.Error(t, err)
}

func TestSubmissions_Ordered(t *testing.T) {
	s := openTestStore(t)
	seedInvocation(t, s)

	subs, err := s.Submissions(context.Background(), "inv-1")
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.Equal(t, 1, subs[0].Round)
	assert.True(t, subs[0].StrictHandling)
	assert.Equal(t, []string{"/Orders(1)", "/Orders(2)"}, subs[0].Entities)
	assert.Equal(t, 2, subs[1].Round)
	assert.False(t, subs[1].StrictHandling)
	assert.Equal(t, []string{"/Orders(2)"}, subs[1].Entities)
	assert.Equal(t, "grp-1", subs[1].GroupID)
}

func TestOutcomes_Ordered(t *testing.T) {
	s := openTestStore(t)
	seedInvocation(t, s)

	outs, err := s.Outcomes(context.Background(), "inv-1")
	require.NoError(t, err)
	require.Len(t, outs, 2)

	assert.Equal(t, "fulfilled", outs[0].Status)
	assert.Empty(t, outs[0].Messages)
	assert.Equal(t, "rejected", outs[1].Status)
	assert.Equal(t, "credit limit exceeded", outs[1].Error)
	require.Len(t, outs[1].Messages, 1)
	assert.Equal(t, "/Orders(2)/Amount", outs[1].Messages[0].Target)
	assert.Equal(t, ir.SeverityError, outs[1].Messages[0].Severity)
}

func TestListInvocations_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.BeginInvocation(ctx, ir.InvocationRecord{
			ID: id, Operation: "OrderService.release", Mode: ir.GroupingIsolated, Seq: int64(i + 1),
		}))
	}

	list, err := s.ListInvocations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestMaxSeq(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	seedInvocation(t, s)
	seq, err = s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), seq)
}

func TestUserDefaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	got, err := s.LoadUserDefaults(ctx, "OrderService.approve")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.SaveUserDefaults(ctx, "OrderService.approve", ir.Object{"Priority": ir.Int(3)}))
	require.NoError(t, s.SaveUserDefaults(ctx, "OrderService.approve", ir.Object{"Priority": ir.Int(5), "Comment": ir.Null{}}))

	got, err = s.LoadUserDefaults(ctx, "OrderService.approve")
	require.NoError(t, err)
	assert.Equal(t, ir.Object{"Priority": ir.Int(5), "Comment": ir.Null{}}, got)
}

func TestTimeline(t *testing.T) {
	s := openTestStore(t)
	seedInvocation(t, s)

	entries, err := s.Timeline(context.Background(), "inv-1")
	require.NoError(t, err)

	var kinds []string
	var seqs []int64
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
		seqs = append(seqs, e.Seq)
	}
	assert.Equal(t, []string{"invocation", "submission", "outcome", "submission", "outcome", "finish"}, kinds)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, seqs)
	assert.Equal(t, "OrderService.approve mode=changeset targets=/Orders(1),/Orders(2)", entries[0].Detail)
	assert.Equal(t, "group=grp-1 round=1 strict=true entities=/Orders(1),/Orders(2)", entries[1].Detail)
	assert.Equal(t, "entity=/Orders(2) status=rejected messages=1 error=credit limit exceeded", entries[4].Detail)
	assert.Equal(t, "status=partial", entries[5].Detail)
}

func TestTimeline_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Timeline(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
