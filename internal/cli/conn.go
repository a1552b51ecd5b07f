package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/thinkgraph/internal/graph"
)

// ConnOptions holds flags for the conn commands.
type ConnOptions struct {
	*RootOptions
	Source      string
	Target      string
	Type        string
	Description string
	Strength    float64
	All         bool
}

// NewConnCommand creates the conn command group.
func NewConnCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conn",
		Aliases: []string{"connection"},
		Short:   "Create, inspect, update and delete connections",
	}
	cmd.AddCommand(newConnListCommand(rootOpts))
	cmd.AddCommand(newConnCreateCommand(rootOpts))
	cmd.AddCommand(newConnUpdateCommand(rootOpts))
	cmd.AddCommand(newConnDeleteCommand(rootOpts))
	return cmd
}

func newConnListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConnOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List connections in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(a *app, out *OutputFormatter) error {
				conns, err := a.graph.ListConnections(cmd.Context(), opts.All)
				if err != nil {
					return out.Fail("failed to list connections", err)
				}
				states := make([]graph.State, 0, len(conns))
				for _, c := range conns {
					states = append(states, c.ToState())
				}
				return out.Success(states, func(w io.Writer) {
					for _, c := range conns {
						writeConnLine(w, c)
					}
				})
			})
		},
	}
	cmd.Flags().BoolVar(&opts.All, "all", false, "include soft-deleted connections")
	return cmd
}

func newConnCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConnOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Connect two live nodes",
		Long: `Create a directed connection between two distinct live nodes.

Connection types: supports, opposes, relates (default), leads_to, derives_from.

Exit codes:
  0 - Connection created
  1 - Storage failure
  2 - Invalid input, self-loop, or an endpoint that is missing or deleted

Examples:
  thinkgraph conn create --source n1 --target n2 --type supports --strength 0.7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnCreate(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Source, "source", "", "source node id")
	cmd.Flags().StringVar(&opts.Target, "target", "", "target node id")
	cmd.Flags().StringVar(&opts.Type, "type", string(graph.DefaultConnType), "connection type")
	cmd.Flags().StringVar(&opts.Description, "description", "", "free-text description")
	cmd.Flags().Float64Var(&opts.Strength, "strength", graph.DefaultStrength, "strength (min 0.1)")
	return cmd
}

func runConnCreate(opts *ConnOptions, cmd *cobra.Command) error {
	return withApp(cmd, opts.RootOptions, func(a *app, out *OutputFormatter) error {
		p := graph.ConnectionCreate{
			SourceID:    opts.Source,
			TargetID:    opts.Target,
			ConnType:    graph.ConnType(opts.Type),
			Description: opts.Description,
		}
		if cmd.Flags().Changed("strength") {
			p.Strength = graph.Some(opts.Strength)
		}
		c, err := a.graph.CreateConnection(cmd.Context(), p, a.meta)
		if err != nil {
			return out.Fail("failed to create connection", err)
		}
		return out.Success(c.ToState(), func(w io.Writer) {
			fmt.Fprintf(w, "created connection %s (%s -[%s]-> %s)\n", c.ID, c.SourceID, c.ConnType, c.TargetID)
		})
	})
}

func newConnUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConnOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update type, description or strength of a live connection",
		Long: `Update a live connection. Endpoints cannot be changed; delete and
recreate the connection instead.

Exit codes:
  0 - Connection updated
  1 - Storage failure
  2 - Invalid input, or no live connection with that id`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnUpdate(opts, cmd, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.Type, "type", "", "connection type")
	cmd.Flags().StringVar(&opts.Description, "description", "", "free-text description")
	cmd.Flags().Float64Var(&opts.Strength, "strength", graph.DefaultStrength, "strength (min 0.1)")
	return cmd
}

func runConnUpdate(opts *ConnOptions, cmd *cobra.Command, id string) error {
	return withApp(cmd, opts.RootOptions, func(a *app, out *OutputFormatter) error {
		flags := cmd.Flags()
		var p graph.ConnectionUpdate
		if flags.Changed("type") {
			p.ConnType = graph.Some(graph.ConnType(opts.Type))
		}
		if flags.Changed("description") {
			p.Description = graph.Some(opts.Description)
		}
		if flags.Changed("strength") {
			p.Strength = graph.Some(opts.Strength)
		}
		c, err := a.graph.UpdateConnection(cmd.Context(), id, p, a.meta)
		if err != nil {
			return out.Fail("failed to update connection", err)
		}
		if c == nil {
			return out.Fail("failed to update connection", graph.NewNotFoundError("connection", id))
		}
		return out.Success(c.ToState(), func(w io.Writer) {
			fmt.Fprintf(w, "updated connection %s (version %d)\n", c.ID, c.Version)
		})
	})
}

func newConnDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, out *OutputFormatter) error {
				ok, err := a.graph.DeleteConnection(cmd.Context(), args[0], a.meta)
				if err != nil {
					return out.Fail("failed to delete connection", err)
				}
				if !ok {
					return out.Fail("failed to delete connection", graph.NewNotFoundError("connection", args[0]))
				}
				return out.Success(map[string]any{"id": args[0], "deleted": true}, func(w io.Writer) {
					fmt.Fprintf(w, "deleted connection %s\n", args[0])
				})
			})
		},
	}
}

func writeConnLine(w io.Writer, c graph.Connection) {
	deleted := ""
	if c.IsDeleted {
		deleted = " [deleted]"
	}
	fmt.Fprintf(w, "%s\tv%d\t%s -[%s %.2f]-> %s%s\n",
		c.ID, c.Version, c.SourceID, c.ConnType, c.Strength, c.TargetID, deleted)
}
