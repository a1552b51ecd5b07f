package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/thinkgraph/internal/snapshot"
)

// GraphOptions holds flags for the graph commands.
type GraphOptions struct {
	*RootOptions
	Output string
}

// NewGraphCommand creates the graph command group.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Whole-graph operations: show, export, import, snapshots, clear",
	}
	cmd.AddCommand(newGraphShowCommand(rootOpts))
	cmd.AddCommand(newGraphExportCommand(rootOpts))
	cmd.AddCommand(newGraphImportCommand(rootOpts))
	cmd.AddCommand(newGraphSaveCommand(rootOpts))
	cmd.AddCommand(newGraphLoadCommand(rootOpts))
	cmd.AddCommand(newGraphSavedCommand(rootOpts))
	cmd.AddCommand(newGraphDeleteCommand(rootOpts))
	cmd.AddCommand(newGraphClearCommand(rootOpts))
	return cmd
}

func newGraphShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the live graph and its visualization projection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, out *OutputFormatter) error {
				snap, err := a.snapshots.GraphSnapshot(cmd.Context())
				if err != nil {
					return out.Fail("failed to read graph", err)
				}
				return out.Success(snap, func(w io.Writer) { writeSnapshot(w, snap) })
			})
		},
	}
}

func newGraphExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the live graph as an import document",
		Long: `Export the live graph. The document is written to stdout, or to the
file named by --output, and can be fed back to "graph import".

Examples:
  thinkgraph graph export --output backup.json
  thinkgraph graph export > backup.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(a *app, out *OutputFormatter) error {
				exp, err := a.snapshots.ExportGraph(cmd.Context())
				if err != nil {
					return out.Fail("failed to export graph", err)
				}
				return writeDocument(out, opts.Output, exp, exp.NodeCount+exp.ConnectionCount)
			})
		},
	}
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the document to this file")
	return cmd
}

func newGraphImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the live graph with an import document",
		Long: `Replace the live graph with the nodes and connections of an import
document ("-" reads stdin). The current graph is cleared and every entity is
restored under a fresh id in one transaction. Connections whose endpoints do
not resolve are skipped.

Exit codes:
  0 - Graph imported
  1 - Storage failure
  2 - Unreadable or invalid document`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, out *OutputFormatter) error {
				data, err := readInput(cmd, args[0])
				if err != nil {
					_ = out.Error(ErrCodeIO, err.Error(), nil)
					return WrapExitError(ExitCommandError, "failed to read import document", err)
				}
				p, err := snapshot.DecodeImport(data)
				if err != nil {
					return out.Fail("invalid import document", err)
				}
				res, err := a.snapshots.ImportGraph(cmd.Context(), p, a.meta)
				if err != nil {
					return out.Fail("failed to import graph", err)
				}
				return out.Success(res, func(w io.Writer) {
					fmt.Fprintf(w, "%s: %d nodes, %d connections\n", res.Message, res.NodeCount, res.ConnectionCount)
				})
			})
		},
	}
}

func newGraphSaveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save <name>",
		Short: "Save the live graph as a named snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, out *OutputFormatter) error {
				res, err := a.snapshots.SaveGraph(cmd.Context(), args[0], a.meta)
				if err != nil {
					return out.Fail("failed to save graph", err)
				}
				return out.Success(res, func(w io.Writer) {
					fmt.Fprintf(w, "saved %q: %d nodes, %d connections\n", res.Name, res.NodeCount, res.ConnectionCount)
				})
			})
		},
	}
}

func newGraphLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <name>",
		Short: "Replace the live graph with a saved snapshot",
		Long: `Replace the live graph with the snapshot saved under <name>. Like import,
restored entities get fresh ids and the whole replacement is audited.

Exit codes:
  0 - Snapshot loaded
  1 - Storage failure or unreadable snapshot
  2 - Invalid or unknown name`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, out *OutputFormatter) error {
				res, err := a.snapshots.LoadGraph(cmd.Context(), args[0], a.meta)
				if err != nil {
					return out.Fail("failed to load graph", err)
				}
				return out.Success(res, func(w io.Writer) {
					fmt.Fprintf(w, "loaded %q: %d nodes, %d connections\n",
						res.Name, len(res.Snapshot.Nodes), len(res.Snapshot.Connections))
				})
			})
		},
	}
}

func newGraphSavedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "saved",
		Short: "List saved snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, out *OutputFormatter) error {
				saved, err := a.snapshots.ListSavedGraphs(cmd.Context())
				if err != nil {
					return out.Fail("failed to list saved graphs", err)
				}
				return out.Success(saved, func(w io.Writer) {
					for _, s := range saved {
						fmt.Fprintf(w, "%s\t%s\t%d nodes\t%d connections\t%s\n",
							s.Name, s.SavedAt, s.NodeCount, s.ConnectionCount, s.Actor)
					}
				})
			})
		},
	}
}

func newGraphDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, out *OutputFormatter) error {
				res, err := a.snapshots.DeleteSavedGraph(cmd.Context(), args[0], a.meta)
				if err != nil {
					return out.Fail("failed to delete saved graph", err)
				}
				return out.Success(res, func(w io.Writer) {
					fmt.Fprintf(w, "deleted saved graph %q\n", res.Name)
				})
			})
		},
	}
}

func newGraphClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Soft-delete every live node and connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, out *OutputFormatter) error {
				res, err := a.snapshots.ClearGraph(cmd.Context(), a.meta)
				if err != nil {
					return out.Fail("failed to clear graph", err)
				}
				return out.Success(res, func(w io.Writer) {
					fmt.Fprintf(w, "cleared %d nodes, %d connections\n", res.ClearedNodes, res.ClearedConnections)
				})
			})
		},
	}
}

// readInput reads the named file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

// writeDocument writes doc to path, or to the command output when path is
// empty. A file write is reported with a short success message.
func writeDocument(out *OutputFormatter, path string, doc any, records int) error {
	if path == "" {
		return out.Document(doc)
	}
	f, err := os.Create(path)
	if err != nil {
		_ = out.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to create output file", err)
	}
	if err := (&OutputFormatter{Writer: f}).Document(doc); err != nil {
		f.Close()
		_ = out.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to write output file", err)
	}
	if err := f.Close(); err != nil {
		_ = out.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to write output file", err)
	}
	return out.Success(map[string]any{"path": path, "records": records}, func(w io.Writer) {
		fmt.Fprintf(w, "wrote %d records to %s\n", records, path)
	})
}

func writeSnapshot(w io.Writer, snap *snapshot.Snapshot) {
	fmt.Fprintf(w, "%d nodes, %d connections\n", len(snap.Nodes), len(snap.Connections))
	for _, n := range snap.Nodes {
		writeNodeLine(w, n)
	}
	for _, c := range snap.Connections {
		writeConnLine(w, c)
	}
}
