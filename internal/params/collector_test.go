package params

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opflow/internal/ir"
)

type dialogStub struct {
	mu            sync.Mutex
	answers       []ir.DialogResult
	confirm       bool
	dialogs       []ir.ParameterDialogRequest
	confirmations []ir.ConfirmationRequest
}

func (d *dialogStub) PresentParameterDialog(_ context.Context, req ir.ParameterDialogRequest) (ir.DialogResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialogs = append(d.dialogs, req)
	if len(d.answers) == 0 {
		return ir.DialogResult{}, nil
	}
	ans := d.answers[0]
	d.answers = d.answers[1:]
	return ans, nil
}

func (d *dialogStub) PresentConfirmation(_ context.Context, req ir.ConfirmationRequest) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.confirmations = append(d.confirmations, req)
	return d.confirm, nil
}

type readerStub struct {
	mu     sync.Mutex
	values map[string]ir.Value // key: entity path + "|" + path
	calls  []string
}

func (r *readerStub) ReadPath(_ context.Context, path string, entity ir.EntityContext) (ir.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := entity.Path + "|" + path
	r.calls = append(r.calls, key)
	v, ok := r.values[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return v, nil
}

type memoryDefaults struct {
	mu     sync.Mutex
	stored map[string]ir.Object
}

func (m *memoryDefaults) LoadUserDefaults(_ context.Context, op string) (ir.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stored[op], nil
}

func (m *memoryDefaults) SaveUserDefaults(_ context.Context, op string, values ir.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stored == nil {
		m.stored = make(map[string]ir.Object)
	}
	m.stored[op] = values
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func approveOp() *ir.OperationDescriptor {
	return &ir.OperationDescriptor{
		Name:    "OrderService.approve",
		Kind:    ir.KindAction,
		IsBound: true,
		Parameters: []ir.ParameterSpec{
			{Name: "Comment", Type: "string", Nullable: true},
			{Name: "Priority", Type: "int"},
		},
	}
}

func orders(paths ...string) []ir.EntityContext {
	out := make([]ir.EntityContext, len(paths))
	for i, p := range paths {
		out[i] = ir.EntityContext{Path: p, EntityType: "Orders"}
	}
	return out
}

func TestNeedsDialog(t *testing.T) {
	activate := &ir.OperationDescriptor{
		Name:       "activate",
		Parameters: []ir.ParameterSpec{{Name: ir.ResultIsActiveEntityParameter, Type: "bool"}},
	}
	critical := &ir.OperationDescriptor{Name: "delete", IsCritical: true}

	tests := []struct {
		name string
		op   *ir.OperationDescriptor
		req  Request
		want bool
	}{
		{"no parameters", &ir.OperationDescriptor{Name: "refresh"}, Request{}, false},
		{"only synthetic flag", activate, Request{}, false},
		{"critical without parameters", critical, Request{}, true},
		{"missing values", approveOp(), Request{Values: ir.Object{"Comment": ir.String("x")}}, true},
		{"all values supplied", approveOp(), Request{Values: ir.Object{"Comment": ir.String("x"), "Priority": ir.Int(1)}}, false},
		{
			"startup parameters outside creation flow",
			approveOp(),
			Request{StartupParameters: ir.Object{"Comment": ir.String("x"), "Priority": ir.Int(1)}},
			true,
		},
		{
			"startup parameters in creation flow",
			approveOp(),
			Request{CreationFlow: true, StartupParameters: ir.Object{"Comment": ir.String("x"), "Priority": ir.Int(1)}},
			false,
		},
	}

	c := NewCollector(&dialogStub{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.NeedsDialog(tt.op, tt.req))
		})
	}
}

func TestCollect_CallerValuesSkipDialog(t *testing.T) {
	d := &dialogStub{}
	c := NewCollector(d, WithLogger(quietLogger()))

	values := ir.Object{"Comment": ir.String("ok"), "Priority": ir.Int(2)}
	col, err := c.Collect(context.Background(), approveOp(), orders("/Orders(1)"), Request{Values: values})
	require.NoError(t, err)

	assert.Empty(t, d.dialogs)
	assert.Empty(t, d.confirmations)
	assert.False(t, col.DialogShown)
	assert.Equal(t, values, col.Values)
}

func TestCollect_CriticalConfirmation(t *testing.T) {
	op := &ir.OperationDescriptor{
		Name:       "OrderService.delete",
		IsBound:    true,
		IsCritical: true,
		Parameters: []ir.ParameterSpec{{Name: ir.ResultIsActiveEntityParameter, Type: "bool"}},
	}

	t.Run("accepted", func(t *testing.T) {
		d := &dialogStub{confirm: true}
		c := NewCollector(d)

		col, err := c.Collect(context.Background(), op, orders("/Orders(1)"), Request{})
		require.NoError(t, err)
		require.Len(t, d.confirmations, 1)
		assert.Equal(t, ir.ConfirmCritical, d.confirmations[0].Kind)
		assert.Equal(t, []string{"/Orders(1)"}, d.confirmations[0].Entities)
		assert.Empty(t, d.dialogs)
		assert.Equal(t, ir.Bool(false), col.Values[ir.ResultIsActiveEntityParameter])
	})

	t.Run("declined", func(t *testing.T) {
		d := &dialogStub{confirm: false}
		c := NewCollector(d)

		_, err := c.Collect(context.Background(), op, orders("/Orders(1)"), Request{})
		require.Error(t, err)
		assert.True(t, ir.IsCancelled(err))
	})
}

func TestCollect_DialogDismissed(t *testing.T) {
	d := &dialogStub{answers: []ir.DialogResult{{Confirmed: false}}}
	c := NewCollector(d, WithLogger(quietLogger()))

	col, err := c.Collect(context.Background(), approveOp(), orders("/Orders(1)"), Request{})
	require.Error(t, err)
	assert.Nil(t, col)
	assert.True(t, ir.IsCancelled(err))
	assert.True(t, errors.Is(err, ir.ErrUserCancelled))
}

func TestCollect_ValidationKeepsDialogOpen(t *testing.T) {
	d := &dialogStub{answers: []ir.DialogResult{
		{Confirmed: true, Values: ir.Object{"Comment": ir.String("x")}},
		{Confirmed: true, Values: ir.Object{"Comment": ir.String("x"), "Priority": ir.String("high")}},
		{Confirmed: true, Values: ir.Object{"Comment": ir.String("x"), "Priority": ir.Int(3)}},
	}}
	c := NewCollector(d, WithLogger(quietLogger()))

	col, err := c.Collect(context.Background(), approveOp(), orders("/Orders(1)"), Request{})
	require.NoError(t, err)
	require.Len(t, d.dialogs, 3)

	second := d.dialogs[1]
	require.Len(t, second.FieldMessages, 1)
	assert.Equal(t, "OrderService.approve/Priority", second.FieldMessages[0].Target)
	assert.Equal(t, "Priority: value is required", second.FieldMessages[0].Text)
	assert.Equal(t, ir.String("x"), second.Prefill["Comment"])

	third := d.dialogs[2]
	require.Len(t, third.FieldMessages, 1)
	assert.Equal(t, "Priority: expected an integer", third.FieldMessages[0].Text)

	assert.True(t, col.DialogShown)
	assert.Equal(t, ir.Int(3), col.Values["Priority"])
}

func TestCollect_DefaultPriority(t *testing.T) {
	op := &ir.OperationDescriptor{
		Name:                  "OrderService.approve",
		IsBound:               true,
		DefaultValuesFunction: "OrderService.approveDefaults",
		Parameters: []ir.ParameterSpec{
			{Name: "A", Type: "string", Default: ir.DefaultSource{Literal: ir.String("declared")}},
			{Name: "B", Type: "string", Default: ir.DefaultSource{Literal: ir.String("declared")}},
			{Name: "C", Type: "string"},
			{Name: "D", Type: "string"},
			{Name: "E", Type: "string"},
		},
	}
	reader := &readerStub{values: map[string]ir.Value{
		"/Orders(1)|OrderService.approveDefaults()": ir.Object{
			"B": ir.String("function"),
			"C": ir.String("function"),
		},
	}}
	defaults := &memoryDefaults{stored: map[string]ir.Object{
		"OrderService.approve": {"C": ir.String("user"), "D": ir.String("user")},
	}}
	ext := func(context.Context, *ir.OperationDescriptor, []ir.EntityContext) (ir.Object, error) {
		return ir.Object{"A": ir.String("extension")}, nil
	}

	d := &dialogStub{answers: []ir.DialogResult{{Confirmed: true, Values: ir.Object{
		"A": ir.String("a"), "B": ir.String("b"), "C": ir.String("c"), "D": ir.String("d"), "E": ir.String("e"),
	}}}}
	c := NewCollector(d,
		WithPathReader(reader),
		WithUserDefaults(defaults),
		WithExtension("OrderService.approve", ext),
		WithLogger(quietLogger()),
	)

	_, err := c.Collect(context.Background(), op, orders("/Orders(1)"), Request{
		Values: ir.Object{"E": ir.String("caller")},
	})
	require.NoError(t, err)
	require.Len(t, d.dialogs, 1)

	assert.Equal(t, ir.Object{
		"A": ir.String("extension"),
		"B": ir.String("declared"),
		"C": ir.String("function"),
		"D": ir.String("user"),
		"E": ir.String("caller"),
	}, d.dialogs[0].Prefill)
	assert.Empty(t, d.dialogs[0].Warnings)

	// Confirmed values become the next user defaults.
	assert.Equal(t, ir.String("e"), defaults.stored["OrderService.approve"]["E"])
}

func TestCollect_PathDefaultAcrossTargets(t *testing.T) {
	op := &ir.OperationDescriptor{
		Name:    "OrderService.approve",
		IsBound: true,
		Parameters: []ir.ParameterSpec{
			{Name: "Currency", Type: "string", Default: ir.DefaultSource{Path: "Currency"}},
		},
	}
	confirm := []ir.DialogResult{{Confirmed: true, Values: ir.Object{"Currency": ir.String("EUR")}}}

	t.Run("agreeing targets", func(t *testing.T) {
		targets := orders("/Orders(1)", "/Orders(2)")
		targets[0].Data = ir.Object{"Currency": ir.String("EUR")}
		reader := &readerStub{values: map[string]ir.Value{"/Orders(2)|Currency": ir.String("EUR")}}
		d := &dialogStub{answers: confirm}
		c := NewCollector(d, WithPathReader(reader), WithLogger(quietLogger()))

		_, err := c.Collect(context.Background(), op, targets, Request{})
		require.NoError(t, err)
		assert.Equal(t, ir.String("EUR"), d.dialogs[0].Prefill["Currency"])
		assert.Equal(t, []string{"/Orders(2)|Currency"}, reader.calls)
	})

	t.Run("divergent targets suppress the default", func(t *testing.T) {
		targets := orders("/Orders(1)", "/Orders(2)")
		targets[0].Data = ir.Object{"Currency": ir.String("EUR")}
		targets[1].Data = ir.Object{"Currency": ir.String("USD")}
		d := &dialogStub{answers: confirm}
		c := NewCollector(d, WithPathReader(&readerStub{}), WithLogger(quietLogger()))

		_, err := c.Collect(context.Background(), op, targets, Request{})
		require.NoError(t, err)
		_, ok := d.dialogs[0].Prefill["Currency"]
		assert.False(t, ok)
		assert.Empty(t, d.dialogs[0].Warnings)
	})

	t.Run("failed read is one aggregate warning", func(t *testing.T) {
		d := &dialogStub{answers: confirm}
		c := NewCollector(d, WithPathReader(&readerStub{}), WithLogger(quietLogger()))

		col, err := c.Collect(context.Background(), op, orders("/Orders(1)"), Request{})
		require.NoError(t, err)
		require.Len(t, d.dialogs[0].Warnings, 1)
		assert.Equal(t, ir.SeverityWarning, d.dialogs[0].Warnings[0].Severity)
		assert.Contains(t, d.dialogs[0].Warnings[0].Text, "Currency")
		assert.Len(t, col.Warnings, 1)
	})
}

func TestCollect_DefaultsFunctionOncePerEntity(t *testing.T) {
	op := &ir.OperationDescriptor{
		Name:                  "OrderService.approve",
		IsBound:               true,
		DefaultValuesFunction: "defaults",
		Parameters:            []ir.ParameterSpec{{Name: "Comment", Type: "string"}},
	}
	reader := &readerStub{values: map[string]ir.Value{
		"/Orders(1)|defaults()": ir.Object{"Comment": ir.String("same")},
		"/Orders(2)|defaults()": ir.Object{"Comment": ir.String("same")},
	}}
	d := &dialogStub{answers: []ir.DialogResult{{Confirmed: true, Values: ir.Object{"Comment": ir.String("same")}}}}
	c := NewCollector(d, WithPathReader(reader), WithLogger(quietLogger()))

	_, err := c.Collect(context.Background(), op, orders("/Orders(1)", "/Orders(2)", "/Orders(1)"), Request{})
	require.NoError(t, err)
	assert.Len(t, reader.calls, 2)
	assert.Equal(t, ir.String("same"), d.dialogs[0].Prefill["Comment"])
}

func TestReopen(t *testing.T) {
	d := &dialogStub{answers: []ir.DialogResult{{Confirmed: true, Values: ir.Object{"Comment": ir.String("fixed"), "Priority": ir.Int(1)}}}}
	c := NewCollector(d)

	field := []ir.Message{{Text: "too short", Severity: ir.SeverityError, Target: "/Orders(1)/OrderService.approve/Comment"}}
	col, err := c.Reopen(context.Background(), approveOp(), orders("/Orders(1)"), ir.Object{"Comment": ir.String("x"), "Priority": ir.Int(1)}, field)
	require.NoError(t, err)
	require.Len(t, d.dialogs, 1)
	assert.Equal(t, field, d.dialogs[0].FieldMessages)
	assert.Equal(t, ir.String("fixed"), col.Values["Comment"])
}
