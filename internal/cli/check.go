package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// InitResult is the payload of init.
type InitResult struct {
	DataDir   string   `json:"dataDir"`
	Databases []string `json:"databases"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade every database",
		Long: `Open every database once, creating missing files and running pending
schema upgrades. Other commands do this lazily for the databases they use.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.manager.Initialize(ctx); err != nil {
					return err
				}
				res := InitResult{DataDir: a.manager.Dir(), Databases: a.manager.Names()}
				return a.out.Done(res, "Databases ready in %s", res.DataDir)
			})
		},
	}
}

// NewTreeCommand creates the tree command.
func NewTreeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "tree",
		Short:         "Print every room with its storage spaces, floors and compartments",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				views, err := a.hierarchy.Snapshot(ctx)
				if err != nil {
					return err
				}
				return a.out.Result(views, func(w io.Writer) {
					for _, v := range views {
						fmt.Fprintln(w, highlight(v.Name))
						for i := range v.Spaces {
							writeSpace(w, "  ", &v.Spaces[i])
						}
					}
				})
			})
		},
	}
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that room summaries match storage space rows",
		Long: `Compare every room's storage space summaries with the storage space
rows in both directions. Exits with status 1 when any disagree.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, runCheck)
		},
	}
}

func runCheck(ctx context.Context, a *app) error {
	report, err := a.hierarchy.Check(ctx)
	if err != nil {
		return err
	}

	if report.OK() {
		return a.out.Done(report, "Hierarchy consistent")
	}

	if a.out.Format == "json" {
		if err := a.out.Error(ErrCodeInconsistent, "hierarchy inconsistent", report); err != nil {
			return err
		}
	} else {
		w := a.out.Writer
		fmt.Fprintf(w, "%s Hierarchy inconsistent\n", failMark())
		for _, k := range report.Dangling {
			fmt.Fprintf(w, "  %s summary without row: %s\n", warnMark(), k)
		}
		for _, k := range report.Orphans {
			fmt.Fprintf(w, "  %s row without summary: %s\n", warnMark(), k)
		}
		for _, k := range report.Mismatched {
			fmt.Fprintf(w, "  %s summary differs from row: %s\n", warnMark(), k)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%s: hierarchy inconsistent", ErrCodeInconsistent))
}
