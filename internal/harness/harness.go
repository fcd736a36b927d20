package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/opflow/internal/engine"
	"github.com/roach88/opflow/internal/ir"
	"github.com/roach88/opflow/internal/metadata"
	"github.com/roach88/opflow/internal/store"
	"github.com/roach88/opflow/internal/testutil"
)

// Harness wires the real engine to scripted collaborators for one scenario.
type Harness struct {
	scenario  *Scenario
	store     *store.Store
	rec       *recorder
	transport *testutil.ScriptedTransport
	dialogs   *recordingDialogs
	effects   *recordingSideEffects
	invoker   *engine.Invoker
	logger    *slog.Logger
}

// Run executes a scenario and returns the result. Expectation and assertion
// failures are reported in the result; the error is reserved for scenarios
// that cannot run at all (bad service definition, bad values).
//
// Unless WithStore is given, each scenario journals to a fresh in-memory
// database with sequential ids.
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunOption configures a scenario run.
type RunOption func(*runConfig)

type runConfig struct {
	store    *store.Store
	logger   *slog.Logger
	metrics  engine.Metrics
	grouping ir.GroupingMode
}

// WithStore journals to st instead of a private in-memory database.
// Invocations then get UUIDv7 ids and journal numbering resumes after the highest
// journaled seq, so repeated runs accumulate in the same journal.
func WithStore(st *store.Store) RunOption {
	return func(c *runConfig) { c.store = st }
}

// WithLogger sets the engine logger. Runs are silent by default.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) { c.logger = l }
}

// WithMetrics records the run's engine metrics.
func WithMetrics(m engine.Metrics) RunOption {
	return func(c *runConfig) { c.metrics = m }
}

// WithDefaultGrouping sets the grouping used when a scenario names none.
func WithDefaultGrouping(mode ir.GroupingMode) RunOption {
	return func(c *runConfig) { c.grouping = mode }
}

// RunContext is Run with a caller context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	st := cfg.store
	if st == nil {
		var err error
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	h, err := newHarness(ctx, scenario, st, cfg)
	if err != nil {
		return nil, err
	}

	targets, err := h.targets()
	if err != nil {
		return nil, err
	}
	invokeOpts, err := h.options()
	if err != nil {
		return nil, err
	}

	var resp *engine.Response
	var invokeErr error
	if len(targets) == 0 {
		resp, invokeErr = h.invoker.InvokeUnbound(ctx, scenario.Operation, invokeOpts)
	} else {
		resp, invokeErr = h.invoker.InvokeBound(ctx, scenario.Operation, targets, invokeOpts)
	}

	result := NewResult()
	result.Trace = h.rec.trace()
	if invokeErr != nil {
		result.ErrorCode = string(ir.CodeOf(invokeErr))
		if result.ErrorCode == "" {
			result.ErrorCode = invokeErr.Error()
		}
	}
	if resp != nil {
		h.collectResponse(ctx, resp, result)
	}

	h.checkExpectations(result)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"events", len(result.Trace),
	)
	return result, nil
}

func newHarness(ctx context.Context, s *Scenario, st *store.Store, cfg runConfig) (*Harness, error) {
	provider, err := metadata.LoadCUEFile(s.Service)
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}

	h := &Harness{
		scenario:  s,
		store:     st,
		rec:       &recorder{},
		transport: testutil.NewScriptedTransport(),
		logger:    cfg.logger,
	}

	for entity, replies := range s.Replies {
		h.transport.Script(entity, replies...)
	}
	for n, msg := range s.FailSubmissions {
		h.transport.FailSubmission(n, errors.New(msg))
	}
	for i, p := range s.Paths {
		v, err := ir.FromAny(p.Value)
		if err != nil {
			return nil, fmt.Errorf("paths[%d]: %w", i, err)
		}
		h.transport.SetPath(p.Entity, p.Path, v)
	}

	dialogs := testutil.NewScriptedDialogs()
	for i, a := range s.Dialogs.Parameters {
		values, err := ir.ObjectFromMap(a.Values)
		if err != nil {
			return nil, fmt.Errorf("dialogs.parameters[%d]: %w", i, err)
		}
		dialogs.AnswerParameters(ir.DialogResult{Values: values, Confirmed: a.Confirmed})
	}
	dialogs.AnswerConfirmations(s.Dialogs.Confirmations...)
	h.dialogs = &recordingDialogs{ScriptedDialogs: dialogs, rec: h.rec}

	effects := testutil.NewRecordingSideEffects()
	for entity, msg := range s.SideEffectFailures {
		effects.FailFor(entity, errors.New(msg))
	}
	h.effects = &recordingSideEffects{RecordingSideEffects: effects, rec: h.rec}

	for op, vals := range s.UserDefaults {
		obj, err := ir.ObjectFromMap(vals)
		if err != nil {
			return nil, fmt.Errorf("user_defaults[%q]: %w", op, err)
		}
		if err := st.SaveUserDefaults(ctx, op, obj); err != nil {
			return nil, fmt.Errorf("user_defaults[%q]: %w", op, err)
		}
	}

	resolver := metadata.NewResolver(provider,
		metadata.WithPathReader(h.transport),
		metadata.WithLogger(h.logger),
	)
	engineOpts := []engine.Option{
		engine.WithSideEffects(h.effects),
		engine.WithJournal(&recordingJournal{store: st, rec: h.rec}),
		engine.WithUserDefaults(st),
		engine.WithLogger(h.logger),
	}
	if cfg.store == nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(engine.NewSequenceGenerator("id")))
	} else {
		seq, err := st.MaxSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read journal position: %w", err)
		}
		engineOpts = append(engineOpts,
			engine.WithIDGenerator(engine.UUIDv7Generator{}),
			engine.WithJournalSeq(engine.ResumeJournalSeq(seq)),
		)
	}
	if cfg.metrics != nil {
		engineOpts = append(engineOpts, engine.WithMetrics(cfg.metrics))
	}
	if cfg.grouping != "" {
		engineOpts = append(engineOpts, engine.WithDefaultGrouping(cfg.grouping))
	}
	h.invoker = engine.New(resolver, h.transport, h.dialogs, engineOpts...)
	return h, nil
}

func (h *Harness) targets() ([]ir.EntityContext, error) {
	out := make([]ir.EntityContext, 0, len(h.scenario.Targets))
	for i, t := range h.scenario.Targets {
		data, err := ir.ObjectFromMap(t.Data)
		if err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		if len(t.Data) == 0 {
			data = nil
		}
		out = append(out, ir.EntityContext{Path: t.Path, EntityType: t.Type, Data: data})
	}
	return out, nil
}

func (h *Harness) options() (engine.Options, error) {
	o := h.scenario.Options
	var params, startup ir.Object
	var err error
	if o.Parameters != nil {
		if params, err = ir.ObjectFromMap(o.Parameters); err != nil {
			return engine.Options{}, fmt.Errorf("options.parameters: %w", err)
		}
	}
	if o.StartupParameters != nil {
		if startup, err = ir.ObjectFromMap(o.StartupParameters); err != nil {
			return engine.Options{}, fmt.Errorf("options.startup_parameters: %w", err)
		}
	}
	return engine.Options{
		Parameters:        params,
		StartupParameters: startup,
		CreationFlow:      o.CreationFlow,
		Grouping:          ir.GroupingMode(o.Grouping),
		Editable:          o.Editable,
		SideEffects: ir.SideEffects{
			TriggerActions: o.TriggerActions,
			TargetPaths:    o.TargetPaths,
		},
		Enablement:    o.Enablement,
		BindingExtras: o.BindingExtras,
	}, nil
}

func (h *Harness) collectResponse(ctx context.Context, resp *engine.Response, result *Result) {
	result.InvocationID = resp.InvocationID
	for _, res := range resp.Results {
		result.Outcomes = append(result.Outcomes, EntityOutcome{
			Entity: dashIfEmpty(res.Entity),
			Status: string(res.Status),
			Code:   string(ir.CodeOf(res.Err)),
		})
	}
	result.Decision = string(resp.Decision.Kind)
	for _, m := range resp.Decision.Messages {
		result.Messages = append(result.Messages, m.Text)
	}
	result.Enablement = resp.Enablement

	if sum, err := h.store.Invocation(ctx, resp.InvocationID); err == nil {
		result.Status = sum.Status
	}
}

func (h *Harness) checkExpectations(result *Result) {
	exp := h.scenario.Expect

	if result.ErrorCode != exp.Error {
		result.AddError(fmt.Sprintf("error: expected %q, got %q", exp.Error, result.ErrorCode))
	}

	if len(exp.Results) > 0 {
		got := make(map[string]string, len(result.Outcomes))
		for _, o := range result.Outcomes {
			got[o.Entity] = o.Status
		}
		entities := make([]string, 0, len(exp.Results))
		for e := range exp.Results {
			entities = append(entities, e)
		}
		sort.Strings(entities)
		for _, e := range entities {
			if got[e] != exp.Results[e] {
				result.AddError(fmt.Sprintf("result %s: expected %q, got %q", e, exp.Results[e], got[e]))
			}
		}
		if len(got) != len(exp.Results) {
			result.AddError(fmt.Sprintf("results: expected %d entities, got %d", len(exp.Results), len(got)))
		}
	}

	if exp.Decision != "" && exp.Decision != result.Decision {
		result.AddError(fmt.Sprintf("decision: expected %q, got %q", exp.Decision, result.Decision))
	}

	if exp.Messages != nil && !reflect.DeepEqual(exp.Messages, nonNil(result.Messages)) {
		result.AddError(fmt.Sprintf("messages: expected [%s], got [%s]",
			strings.Join(exp.Messages, " | "), strings.Join(result.Messages, " | ")))
	}

	for name, want := range exp.Enablement {
		got, ok := result.Enablement[name]
		if !ok || got != want {
			result.AddError(fmt.Sprintf("enablement %s: expected %t, got %v", name, want, describeEnablement(got, ok)))
		}
	}

	if exp.Status != "" && exp.Status != result.Status {
		result.AddError(fmt.Sprintf("status: expected %q, got %q", exp.Status, result.Status))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func describeEnablement(v, ok bool) string {
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%t", v)
}
