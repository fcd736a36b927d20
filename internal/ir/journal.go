package ir

// Journal records are written by the engine and read back by the trace
// command. Seq values come from the engine's logical clock; ids are generated
// strings (UUIDv7 in production).

// InvocationRecord is the start of one invocation.
type InvocationRecord struct {
	ID         string       `json:"id"`
	Operation  string       `json:"operation"`
	Mode       GroupingMode `json:"mode"`
	Targets    []string     `json:"targets,omitempty"`
	Parameters Object       `json:"parameters,omitempty"`
	Seq        int64        `json:"seq"`
}

// SubmissionRecord is one network submission of one group in one round.
type SubmissionRecord struct {
	ID             int64    `json:"id"` // Auto-increment (store)
	InvocationID   string   `json:"invocation_id"`
	GroupID        string   `json:"group_id"`
	Round          int      `json:"round"`
	Entities       []string `json:"entities,omitempty"`
	StrictHandling bool     `json:"strict_handling"`
	Seq            int64    `json:"seq"`
}

// OutcomeRecord is the final settlement of one entity.
// Entity is empty for unbound operations.
type OutcomeRecord struct {
	ID           int64     `json:"id"` // Auto-increment (store)
	InvocationID string    `json:"invocation_id"`
	Entity       string    `json:"entity"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	Messages     []Message `json:"messages,omitempty"`
	Seq          int64     `json:"seq"`
}

// InvocationSummary is the stored state of an invocation.
type InvocationSummary struct {
	InvocationRecord
	Status      string `json:"status"`
	FinishedSeq int64  `json:"finished_seq,omitempty"`
}
