package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/thinkgraph/internal/audit"
	"github.com/roach88/thinkgraph/internal/graph"
)

// AuditOptions holds flags for the audit commands.
type AuditOptions struct {
	*RootOptions
	EntityType string
	EntityID   string
	Limit      int
	Output     string
}

// NewAuditCommand creates the audit command group.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read, export and verify the audit log",
	}
	cmd.AddCommand(newAuditListCommand(rootOpts))
	cmd.AddCommand(newAuditExportCommand(rootOpts))
	cmd.AddCommand(newAuditVerifyCommand(rootOpts))
	return cmd
}

func newAuditListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Long: fmt.Sprintf(`List audit entries, newest first. --limit defaults to %d and is capped
at %d.

Examples:
  thinkgraph audit list --entity-type node --entity-id n1
  thinkgraph audit list --limit 20 --format json`, audit.DefaultListLimit, audit.MaxListLimit),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(a *app, out *OutputFormatter) error {
				f, err := opts.filter()
				if err != nil {
					return out.Fail("failed to list audit entries", err)
				}
				records, err := a.audit.List(cmd.Context(), f)
				if err != nil {
					return out.Fail("failed to list audit entries", err)
				}
				return out.Success(records, func(w io.Writer) {
					for _, r := range records {
						writeAuditLine(w, r)
					}
				})
			})
		},
	}
	bindAuditFilterFlags(cmd, opts)
	return cmd
}

func newAuditExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an audit report with aggregate counts",
		Long: fmt.Sprintf(`Export audit entries with counts by entity type, action and actor.
--limit defaults to %d and is capped at %d.`, audit.DefaultExportLimit, audit.MaxExportLimit),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(a *app, out *OutputFormatter) error {
				f, err := opts.filter()
				if err != nil {
					return out.Fail("failed to export audit log", err)
				}
				exp, err := a.audit.Export(cmd.Context(), f)
				if err != nil {
					return out.Fail("failed to export audit log", err)
				}
				return writeDocument(out, opts.Output, exp, exp.RecordCount)
			})
		},
	}
	bindAuditFilterFlags(cmd, opts)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the report to this file")
	return cmd
}

func newAuditVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the audit log accounts for every entity",
		Long: `Check every node and connection against the audit log: each must have a
create entry with a snapshot, updates and deletes must carry their states,
and deleted entities must have a delete entry.

Exit codes:
  0 - No issues
  1 - Issues found, or storage failure`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app, out *OutputFormatter) error {
				report, err := a.audit.Verify(cmd.Context())
				if err != nil {
					return out.Fail("failed to verify audit log", err)
				}
				if report.OK {
					return out.Success(report, func(w io.Writer) {
						fmt.Fprintln(w, "audit log OK")
					})
				}

				msg := fmt.Sprintf("audit integrity check found %d issues", len(report.Issues))
				if out.Format != "json" {
					fmt.Fprintf(out.Writer, "%d issues:\n", len(report.Issues))
					for _, issue := range report.Issues {
						fmt.Fprintf(out.Writer, "  %s\n", issue)
					}
				}
				if err := out.Error(ErrCodeIntegrity, msg, report); err != nil {
					return err
				}
				return NewExitError(ExitFailure, msg)
			})
		},
	}
}

func bindAuditFilterFlags(cmd *cobra.Command, opts *AuditOptions) {
	cmd.Flags().StringVar(&opts.EntityType, "entity-type", "", "only entries for this entity type (node|connection)")
	cmd.Flags().StringVar(&opts.EntityID, "entity-id", "", "only entries for this entity id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries")
}

func (o *AuditOptions) filter() (audit.Filter, error) {
	et := graph.EntityType(o.EntityType)
	switch et {
	case "", graph.EntityNode, graph.EntityConnection:
	default:
		return audit.Filter{}, graph.NewValidationError("entity_type", "invalid `entity_type`")
	}
	return audit.Filter{EntityType: et, EntityID: o.EntityID, Limit: o.Limit}, nil
}

func writeAuditLine(w io.Writer, r audit.Record) {
	reason := ""
	if r.Reason != nil {
		reason = " (" + *r.Reason + ")"
	}
	fmt.Fprintf(w, "%d\t%s\t%s %s:%s\t%s%s\n",
		r.ID, r.CreatedAt, r.Action, r.EntityType, r.EntityID, r.Actor, reason)
}
