package params

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/opflow/internal/ir"
)

// defaultSet holds the outcome of every default-value source for one
// collection. Sources write concurrently; merge applies them in priority order.
type defaultSet struct {
	mu sync.Mutex

	caller    ir.Object
	extension ir.Object
	declared  ir.Object
	function  ir.Object
	user      ir.Object

	// failed maps a parameter (or "*" for whole-source failures) to the
	// source that could not produce its value.
	failed map[string]string

	values ir.Object
}

func (d *defaultSet) fail(param, source string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed[param] = source
}

func (d *defaultSet) set(dst ir.Object, param string, v ir.Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dst[param] = v
}

// warnings returns at most one aggregate warning covering every failed lookup.
func (d *defaultSet) warnings() []ir.Message {
	if len(d.failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(d.failed))
	for name, source := range d.failed {
		if name == "*" {
			names = append(names, source)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return []ir.Message{{
		Code:     "DEFAULT_VALUES_UNAVAILABLE",
		Text:     fmt.Sprintf("Some default values could not be determined: %s", strings.Join(names, ", ")),
		Severity: ir.SeverityWarning,
	}}
}

// resolveDefaults runs every applicable default source concurrently and
// merges the results in priority order: caller, extension, declared default,
// default-values function, user default.
func (c *Collector) resolveDefaults(ctx context.Context, op *ir.OperationDescriptor, targets []ir.EntityContext, caller ir.Object) *defaultSet {
	d := &defaultSet{
		caller:    caller,
		extension: ir.Object{},
		declared:  ir.Object{},
		function:  ir.Object{},
		user:      ir.Object{},
		failed:    make(map[string]string),
	}

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if ext, ok := c.extensions[op.Name]; ok {
		run(func() { c.extensionDefaults(ctx, ext, op, targets, d) })
	}
	for _, p := range op.UserFacingParameters() {
		if _, given := caller[p.Name]; given {
			continue
		}
		switch {
		case p.Default.Literal != nil:
			d.set(d.declared, p.Name, p.Default.Literal)
		case p.Default.Path != "" && c.reader != nil:
			run(func() { c.pathDefault(ctx, p, targets, d) })
		}
	}
	if op.DefaultValuesFunction != "" && c.reader != nil {
		run(func() { c.functionDefaults(ctx, op, targets, d) })
	}
	if c.userDefaults != nil {
		run(func() { c.cachedDefaults(ctx, op, d) })
	}
	wg.Wait()

	d.values = d.merge(op)
	if len(d.failed) > 0 {
		c.logger.Warn("default value lookups failed",
			"operation", op.Name,
			"count", len(d.failed),
		)
	}
	return d
}

func (d *defaultSet) merge(op *ir.OperationDescriptor) ir.Object {
	out := d.caller.Clone()
	for _, p := range op.UserFacingParameters() {
		if _, ok := out[p.Name]; ok {
			continue
		}
		for _, src := range []ir.Object{d.extension, d.declared, d.function, d.user} {
			if v, ok := src[p.Name]; ok {
				out[p.Name] = v
				break
			}
		}
	}
	return out
}

func (c *Collector) extensionDefaults(ctx context.Context, ext Extension, op *ir.OperationDescriptor, targets []ir.EntityContext, d *defaultSet) {
	values, err := ext(ctx, op, targets)
	if err != nil {
		c.logger.Debug("default extension failed", "operation", op.Name, "error", err)
		d.fail("*", "extension")
		return
	}
	for k, v := range values {
		d.set(d.extension, k, v)
	}
}

// pathDefault reads a declared default path for every target. The default
// is kept only when all targets agree on it.
func (c *Collector) pathDefault(ctx context.Context, p ir.ParameterSpec, targets []ir.EntityContext, d *defaultSet) {
	entities := targets
	if len(entities) == 0 {
		entities = []ir.EntityContext{{}}
	}

	var agreed ir.Value
	for i, entity := range entities {
		v, ok := entity.Data.Lookup(p.Default.Path)
		if !ok {
			read, err := c.reader.ReadPath(ctx, p.Default.Path, entity)
			if err != nil {
				c.logger.Debug("default path read failed",
					"parameter", p.Name,
					"entity", entity.Path,
					"error", err,
				)
				d.fail(p.Name, "path")
				return
			}
			v = read
		}
		if i == 0 {
			agreed = v
			continue
		}
		if !ir.Equal(agreed, v) {
			return
		}
	}
	if agreed != nil {
		d.set(d.declared, p.Name, agreed)
	}
}

// functionDefaults calls the bound default-values function once per distinct
// entity. A parameter is pre-filled only when every entity returns the same value.
func (c *Collector) functionDefaults(ctx context.Context, op *ir.OperationDescriptor, targets []ir.EntityContext, d *defaultSet) {
	call := op.DefaultValuesFunction + "()"
	seen := make(map[string]bool)
	var results []ir.Object
	entities := targets
	if len(entities) == 0 {
		entities = []ir.EntityContext{{}}
	}
	for _, entity := range entities {
		if seen[entity.Path] {
			continue
		}
		seen[entity.Path] = true
		v, err := c.reader.ReadPath(ctx, call, entity)
		if err != nil {
			c.logger.Debug("default values function failed",
				"function", op.DefaultValuesFunction,
				"entity", entity.Path,
				"error", err,
			)
			d.fail("*", op.DefaultValuesFunction)
			return
		}
		obj, ok := v.(ir.Object)
		if !ok {
			d.fail("*", op.DefaultValuesFunction)
			return
		}
		results = append(results, obj)
	}

	for _, p := range op.UserFacingParameters() {
		var agreed ir.Value
		for i, obj := range results {
			v, ok := obj[p.Name]
			if !ok || (i > 0 && !ir.Equal(agreed, v)) {
				agreed = nil
				break
			}
			agreed = v
		}
		if agreed != nil {
			d.set(d.function, p.Name, agreed)
		}
	}
}

func (c *Collector) cachedDefaults(ctx context.Context, op *ir.OperationDescriptor, d *defaultSet) {
	values, err := c.userDefaults.LoadUserDefaults(ctx, op.Name)
	if err != nil {
		c.logger.Debug("loading user defaults failed", "operation", op.Name, "error", err)
		d.fail("*", "user defaults")
		return
	}
	for k, v := range values {
		d.set(d.user, k, v)
	}
}
