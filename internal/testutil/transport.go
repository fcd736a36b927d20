package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/opflow/internal/engine"
	"github.com/roach88/opflow/internal/ir"
)

// ErrPathNotFound is returned by ReadPath for unscripted paths.
var ErrPathNotFound = errors.New("path not scripted")

// Reply is the scripted answer for one submission of one entity.
type Reply struct {
	Status   ir.EntityStatus `yaml:"status"`
	Value    ir.Object       `yaml:"-"`
	Messages []ir.Message    `yaml:"messages,omitempty"`
	Error    string          `yaml:"error,omitempty"`
	// Omit leaves the entity out of the outcome stream.
	Omit bool `yaml:"omit,omitempty"`
}

// ScriptedTransport answers each submitted entity with the next reply of its
// script. Entities without remaining replies succeed with no messages.
// The unbound outcome is scripted under the empty path.
//
// Thread-safety: safe for concurrent use.
type ScriptedTransport struct {
	mu          sync.Mutex
	replies     map[string][]Reply
	paths       map[string]ir.Value
	submitErr   map[int]error
	submissions []engine.Submission
	reads       []string
}

// NewScriptedTransport creates an empty transport.
func NewScriptedTransport() *ScriptedTransport {
	return &ScriptedTransport{
		replies:   make(map[string][]Reply),
		paths:     make(map[string]ir.Value),
		submitErr: make(map[int]error),
	}
}

// Script appends replies for entity.
func (t *ScriptedTransport) Script(entity string, replies ...Reply) *ScriptedTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[entity] = append(t.replies[entity], replies...)
	return t
}

// SetPath scripts ReadPath(path) for entity ("" matches any entity without
// its own value).
func (t *ScriptedTransport) SetPath(entity, path string, v ir.Value) *ScriptedTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths[entity+"|"+path] = v
	return t
}

// FailSubmission makes the n-th submission (1-based) fail as a whole.
func (t *ScriptedTransport) FailSubmission(n int, err error) *ScriptedTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.submitErr[n] = err
	return t
}

// Submit implements engine.Transport.
func (t *ScriptedTransport) Submit(_ context.Context, sub engine.Submission) (<-chan ir.EntityResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recorded := sub
	recorded.Targets = append([]ir.EntityContext(nil), sub.Targets...)
	t.submissions = append(t.submissions, recorded)
	if err, ok := t.submitErr[len(t.submissions)]; ok {
		return nil, err
	}

	entities := []string{""}
	if len(sub.Targets) > 0 {
		entities = entities[:0]
		for _, e := range sub.Targets {
			entities = append(entities, e.Path)
		}
	}

	out := make(chan ir.EntityResult, len(entities))
	for _, entity := range entities {
		reply := Reply{Status: ir.StatusSuccess}
		if queue := t.replies[entity]; len(queue) > 0 {
			reply = queue[0]
			t.replies[entity] = queue[1:]
		}
		if reply.Omit {
			continue
		}
		res := ir.EntityResult{
			Entity:   entity,
			Status:   reply.Status,
			Value:    reply.Value,
			Messages: reply.Messages,
		}
		if res.Status == "" {
			res.Status = ir.StatusSuccess
		}
		if reply.Error != "" {
			res.Err = errors.New(reply.Error)
		}
		out <- res
	}
	close(out)
	return out, nil
}

// ReadPath implements engine.Transport.
func (t *ScriptedTransport) ReadPath(_ context.Context, path string, entity ir.EntityContext) (ir.Value, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reads = append(t.reads, entity.Path+"|"+path)
	if v, ok := t.paths[entity.Path+"|"+path]; ok {
		return v, nil
	}
	if v, ok := t.paths["|"+path]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("read %s at %q: %w", path, entity.Path, ErrPathNotFound)
}

// Submissions returns a copy of every submission in order.
func (t *ScriptedTransport) Submissions() []engine.Submission {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]engine.Submission(nil), t.submissions...)
}

// SubmissionCount returns how many submissions included entity.
func (t *ScriptedTransport) SubmissionCount(entity string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, sub := range t.submissions {
		if entity == "" && len(sub.Targets) == 0 {
			n++
			continue
		}
		for _, e := range sub.Targets {
			if e.Path == entity {
				n++
			}
		}
	}
	return n
}

// Reads returns every ReadPath call as "entity|path".
func (t *ScriptedTransport) Reads() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.reads...)
}
