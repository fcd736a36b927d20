package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/opflow/internal/ir"
	"github.com/roach88/opflow/internal/metadata"
)

// DescribeOptions holds flags for the describe command.
type DescribeOptions struct {
	*RootOptions
	Binding string // entity type of the target
	Entity  string // target path, defaults to /<Binding>
	Data    string // target data as a JSON object
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DescribeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "describe <service.cue> <operation>",
		Short: "Print the resolved descriptor of an operation",
		Long: `Resolve an operation of a CUE service definition and print its descriptor:
kind, binding, criticality, parameters with their declared defaults, and
side effects.

Bound operations need --binding with the entity type of the target. A
criticality path is evaluated against --data.

Examples:
  opflow describe ./orders.cue OrderService.createOrder
  opflow describe ./orders.cue OrderService.approve --binding Orders
  opflow describe ./orders.cue OrderService.cancel --binding Orders --data '{"IsLocked": true}'
  opflow describe ./orders.cue OrderService.approve --binding Orders --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Binding, "binding", "", "entity type of the target (bound operations)")
	cmd.Flags().StringVar(&opts.Entity, "entity", "", "target entity path (default /<binding>)")
	cmd.Flags().StringVar(&opts.Data, "data", "", "target entity data as a JSON object")

	return cmd
}

func runDescribe(opts *DescribeOptions, servicePath, operation string, cmd *cobra.Command) error {
	provider, err := metadata.LoadCUEFile(servicePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load service", err)
	}

	targets, err := describeTargets(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid target", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	resolver := metadata.NewResolver(provider, metadata.WithLogger(opts.logger()))
	desc, err := resolver.Resolve(ctx, operation, targets)
	if err != nil {
		if opts.Format == "json" {
			_ = writeError(cmd.OutOrStdout(), "E_DESCRIBE", err, nil)
		}
		return WrapExitError(ExitCommandError, "failed to resolve operation", err)
	}

	if opts.Format == "json" {
		return writeOK(cmd.OutOrStdout(), desc)
	}
	return writeDescriptor(cmd.OutOrStdout(), desc)
}

func describeTargets(opts *DescribeOptions) ([]ir.EntityContext, error) {
	if opts.Binding == "" {
		if opts.Entity != "" || opts.Data != "" {
			return nil, fmt.Errorf("--entity and --data need --binding")
		}
		return nil, nil
	}

	target := ir.EntityContext{Path: opts.Entity, EntityType: opts.Binding}
	if target.Path == "" {
		target.Path = "/" + opts.Binding
	}
	if opts.Data != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(opts.Data), &raw); err != nil {
			return nil, fmt.Errorf("--data: %w", err)
		}
		data, err := ir.ObjectFromMap(raw)
		if err != nil {
			return nil, fmt.Errorf("--data: %w", err)
		}
		target.Data = data
	}
	return []ir.EntityContext{target}, nil
}

func writeDescriptor(w io.Writer, d *ir.OperationDescriptor) error {
	var b strings.Builder

	fmt.Fprintf(&b, "operation: %s\n", d.Name)
	fmt.Fprintf(&b, "kind: %s\n", d.Kind)
	if d.IsBound {
		fmt.Fprintf(&b, "bound: %s: %s\n", d.BindingParameter, d.BindingType)
	} else {
		fmt.Fprintln(&b, "bound: no")
	}
	fmt.Fprintf(&b, "static: %t\n", d.IsStatic)
	fmt.Fprintf(&b, "critical: %t\n", d.IsCritical)
	fmt.Fprintf(&b, "returns: collection=%t same_type=%t\n", d.ReturnsCollection, d.ReturnsSameType)
	if d.DefaultValuesFunction != "" {
		fmt.Fprintf(&b, "default values function: %s\n", d.DefaultValuesFunction)
	}

	fmt.Fprintln(&b, "parameters:")
	if len(d.Parameters) == 0 {
		fmt.Fprintln(&b, "  (none)")
	}
	for _, p := range d.Parameters {
		line := "  " + p.Name + " " + p.Type
		if p.Nullable {
			line += " nullable"
		}
		switch {
		case p.Default.Path != "":
			line += " default=path:" + p.Default.Path
		case p.Default.Literal != nil:
			lit, err := ir.MarshalCanonical(p.Default.Literal)
			if err != nil {
				return fmt.Errorf("parameter %s: %w", p.Name, err)
			}
			line += " default=" + string(lit)
		}
		fmt.Fprintln(&b, line)
	}

	if !d.SideEffects.IsEmpty() {
		fmt.Fprintln(&b, "side effects:")
		if len(d.SideEffects.TriggerActions) > 0 {
			fmt.Fprintf(&b, "  trigger actions: %s\n", strings.Join(d.SideEffects.TriggerActions, ", "))
		}
		if len(d.SideEffects.TargetPaths) > 0 {
			fmt.Fprintf(&b, "  target paths: %s\n", strings.Join(d.SideEffects.TargetPaths, ", "))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
