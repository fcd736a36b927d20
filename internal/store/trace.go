package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// TimelineEntry is one line of an invocation trace.
type TimelineEntry struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"` // invocation, submission, outcome, finish
	Detail string `json:"detail"`
}

// Timeline merges the journal rows of an invocation into seq order.
func (s *Store) Timeline(ctx context.Context, invocationID string) ([]TimelineEntry, error) {
	inv, err := s.Invocation(ctx, invocationID)
	if err != nil {
		return nil, err
	}
	subs, err := s.Submissions(ctx, invocationID)
	if err != nil {
		return nil, err
	}
	outcomes, err := s.Outcomes(ctx, invocationID)
	if err != nil {
		return nil, err
	}

	entries := []TimelineEntry{{
		Seq:    inv.Seq,
		Kind:   "invocation",
		Detail: fmt.Sprintf("%s mode=%s targets=%s", inv.Operation, inv.Mode, joinOrDash(inv.Targets)),
	}}
	for _, sub := range subs {
		entries = append(entries, TimelineEntry{
			Seq:  sub.Seq,
			Kind: "submission",
			Detail: fmt.Sprintf("group=%s round=%d strict=%t entities=%s",
				sub.GroupID, sub.Round, sub.StrictHandling, joinOrDash(sub.Entities)),
		})
	}
	for _, out := range outcomes {
		detail := fmt.Sprintf("entity=%s status=%s messages=%d", dashIfEmpty(out.Entity), out.Status, len(out.Messages))
		if out.Error != "" {
			detail += " error=" + out.Error
		}
		entries = append(entries, TimelineEntry{Seq: out.Seq, Kind: "outcome", Detail: detail})
	}
	if inv.FinishedSeq > 0 {
		entries = append(entries, TimelineEntry{Seq: inv.FinishedSeq, Kind: "finish", Detail: "status=" + inv.Status})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, nil
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
