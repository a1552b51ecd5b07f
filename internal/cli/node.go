package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/thinkgraph/internal/graph"
)

// NodeOptions holds flags shared by node create and node update.
type NodeOptions struct {
	*RootOptions
	Content    string
	Summary    string
	X          float64
	Y          float64
	Color      string
	Size       float64
	Tags       []string
	Confidence float64
	Evidence   []string
	All        bool
}

// NewNodeCommand creates the node command group.
func NewNodeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Create, inspect, update and delete nodes",
	}
	cmd.AddCommand(newNodeListCommand(rootOpts))
	cmd.AddCommand(newNodeGetCommand(rootOpts))
	cmd.AddCommand(newNodeCreateCommand(rootOpts))
	cmd.AddCommand(newNodeUpdateCommand(rootOpts))
	cmd.AddCommand(newNodeDeleteCommand(rootOpts))
	return cmd
}

func newNodeListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NodeOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List nodes in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(a *app, out *OutputFormatter) error {
				nodes, err := a.graph.ListNodes(cmd.Context(), opts.All)
				if err != nil {
					return out.Fail("failed to list nodes", err)
				}
				return out.Success(nodeStates(nodes), func(w io.Writer) {
					for _, n := range nodes {
						writeNodeLine(w, n)
					}
				})
			})
		},
	}
	cmd.Flags().BoolVar(&opts.All, "all", false, "include soft-deleted nodes")
	return cmd
}

func newNodeGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one live node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, out *OutputFormatter) error {
				n, err := a.graph.GetNode(cmd.Context(), args[0])
				if err != nil {
					return out.Fail("failed to get node", err)
				}
				if n == nil {
					return out.Fail("failed to get node", graph.NewNotFoundError("node", args[0]))
				}
				return out.Success(n.ToState(), func(w io.Writer) { writeNodeDetail(w, *n) })
			})
		},
	}
}

func newNodeCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NodeOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a node",
		Long: `Create a node. Only --content is required; size, confidence and color
fall back to their defaults and out-of-range numbers are coerced.

Exit codes:
  0 - Node created
  1 - Storage failure
  2 - Invalid input

Examples:
  thinkgraph node create --content "Caching cuts p99 latency" --tags perf,cache
  thinkgraph node create --content "Claim" --confidence 0.8 --x 120 --y 40`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeCreate(opts, cmd)
		},
	}
	bindNodeFlags(cmd.Flags(), opts)
	return cmd
}

func runNodeCreate(opts *NodeOptions, cmd *cobra.Command) error {
	return withApp(cmd, opts.RootOptions, func(a *app, out *OutputFormatter) error {
		flags := cmd.Flags()
		p := graph.NodeCreate{
			Content:  opts.Content,
			Summary:  opts.Summary,
			Position: graph.Position{X: opts.X, Y: opts.Y},
			Tags:     opts.Tags,
			Evidence: opts.Evidence,
		}
		if flags.Changed("color") {
			p.Color = graph.Some(opts.Color)
		}
		if flags.Changed("size") {
			p.Size = graph.Some(opts.Size)
		}
		if flags.Changed("confidence") {
			p.Confidence = graph.Some(opts.Confidence)
		}

		n, err := a.graph.CreateNode(cmd.Context(), p, a.meta)
		if err != nil {
			return out.Fail("failed to create node", err)
		}
		return out.Success(n.ToState(), func(w io.Writer) {
			fmt.Fprintf(w, "created node %s\n", n.ID)
		})
	})
}

func newNodeUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NodeOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a live node",
		Long: `Update a live node. Only the flags given are applied; every update bumps
the node's version and writes one audit entry. --x and --y must be given
together.

Exit codes:
  0 - Node updated
  1 - Storage failure
  2 - Invalid input, or no live node with that id`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeUpdate(opts, cmd, args[0])
		},
	}
	bindNodeFlags(cmd.Flags(), opts)
	return cmd
}

func runNodeUpdate(opts *NodeOptions, cmd *cobra.Command, id string) error {
	return withApp(cmd, opts.RootOptions, func(a *app, out *OutputFormatter) error {
		p, err := nodeUpdateFromFlags(cmd.Flags(), opts)
		if err != nil {
			return out.Fail("failed to update node", err)
		}
		n, err := a.graph.UpdateNode(cmd.Context(), id, p, a.meta)
		if err != nil {
			return out.Fail("failed to update node", err)
		}
		if n == nil {
			return out.Fail("failed to update node", graph.NewNotFoundError("node", id))
		}
		return out.Success(n.ToState(), func(w io.Writer) {
			fmt.Fprintf(w, "updated node %s (version %d)\n", n.ID, n.Version)
		})
	})
}

// nodeUpdateFromFlags turns the flags that were set into a partial update.
func nodeUpdateFromFlags(flags *pflag.FlagSet, opts *NodeOptions) (graph.NodeUpdate, error) {
	var p graph.NodeUpdate
	if flags.Changed("content") {
		p.Content = graph.Some(opts.Content)
	}
	if flags.Changed("summary") {
		p.Summary = graph.Some(opts.Summary)
	}
	switch xSet, ySet := flags.Changed("x"), flags.Changed("y"); {
	case xSet && ySet:
		p.Position = graph.Some(graph.Position{X: opts.X, Y: opts.Y})
	case xSet || ySet:
		return p, graph.NewValidationError("position", "`x` and `y` must be given together")
	}
	if flags.Changed("color") {
		p.Color = graph.Some(opts.Color)
	}
	if flags.Changed("size") {
		p.Size = graph.Some(opts.Size)
	}
	if flags.Changed("tags") {
		p.Tags = graph.Some(opts.Tags)
	}
	if flags.Changed("confidence") {
		p.Confidence = graph.Some(opts.Confidence)
	}
	if flags.Changed("evidence") {
		p.Evidence = graph.Some(opts.Evidence)
	}
	return p, nil
}

func newNodeDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a node and its connections",
		Long: `Soft-delete a live node. Every live connection touching it is deleted in
the same transaction, each with its own audit entry.

Exit codes:
  0 - Node deleted
  1 - Storage failure
  2 - No live node with that id`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, out *OutputFormatter) error {
				ok, err := a.graph.DeleteNode(cmd.Context(), args[0], a.meta)
				if err != nil {
					return out.Fail("failed to delete node", err)
				}
				if !ok {
					return out.Fail("failed to delete node", graph.NewNotFoundError("node", args[0]))
				}
				return out.Success(map[string]any{"id": args[0], "deleted": true}, func(w io.Writer) {
					fmt.Fprintf(w, "deleted node %s\n", args[0])
				})
			})
		},
	}
}

func bindNodeFlags(flags *pflag.FlagSet, opts *NodeOptions) {
	flags.StringVar(&opts.Content, "content", "", "claim text")
	flags.StringVar(&opts.Summary, "summary", "", "short label")
	flags.Float64Var(&opts.X, "x", 0, "x position")
	flags.Float64Var(&opts.Y, "y", 0, "y position")
	flags.StringVar(&opts.Color, "color", graph.DefaultColor, "display color")
	flags.Float64Var(&opts.Size, "size", graph.DefaultSize, "display size (min 0.2)")
	flags.StringSliceVar(&opts.Tags, "tags", nil, "comma-separated tags")
	flags.Float64Var(&opts.Confidence, "confidence", graph.DefaultConfidence, "confidence in [0, 1]")
	flags.StringArrayVar(&opts.Evidence, "evidence", nil, "supporting evidence (repeatable)")
}

func nodeStates(nodes []graph.Node) []graph.State {
	out := make([]graph.State, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ToState())
	}
	return out
}

func writeNodeLine(w io.Writer, n graph.Node) {
	label := n.Summary
	if label == "" {
		label = n.Content
	}
	deleted := ""
	if n.IsDeleted {
		deleted = " [deleted]"
	}
	fmt.Fprintf(w, "%s\tv%d\t%s%s\n", n.ID, n.Version, label, deleted)
}

func writeNodeDetail(w io.Writer, n graph.Node) {
	fmt.Fprintf(w, "id:         %s\n", n.ID)
	fmt.Fprintf(w, "content:    %s\n", n.Content)
	if n.Summary != "" {
		fmt.Fprintf(w, "summary:    %s\n", n.Summary)
	}
	fmt.Fprintf(w, "position:   (%g, %g)\n", n.Position.X, n.Position.Y)
	fmt.Fprintf(w, "color:      %s\n", n.Color)
	fmt.Fprintf(w, "size:       %g\n", n.Size)
	fmt.Fprintf(w, "confidence: %g\n", n.Confidence)
	if len(n.Tags) > 0 {
		fmt.Fprintf(w, "tags:       %v\n", n.Tags)
	}
	for _, e := range n.Evidence {
		fmt.Fprintf(w, "evidence:   %s\n", e)
	}
	fmt.Fprintf(w, "version:    %d\n", n.Version)
	fmt.Fprintf(w, "updated_at: %s\n", graph.FormatTime(n.UpdatedAt))
}
