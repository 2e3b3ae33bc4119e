package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/pantry/internal/activity"
)

// ActivityOptions holds flags for activity commands.
type ActivityOptions struct {
	Limit int
	Days  int
}

// PruneResult is the payload of activity prune.
type PruneResult struct {
	Removed int64 `json:"removed"`
	Days    int   `json:"days"`
}

// NewActivityCommand creates the activity command group.
func NewActivityCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActivityOptions{}

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Inspect the log of catalog changes",
	}

	recent := &cobra.Command{
		Use:           "recent",
		Short:         "Show the most recent changes, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				limit := opts.Limit
				if !cmd.Flags().Changed("limit") {
					limit = a.cfg.Activity.RecentLimit
				}
				entries, err := a.activity.Recent(ctx, limit)
				if err != nil {
					return err
				}
				return a.out.Result(entries, func(w io.Writer) {
					for _, e := range entries {
						fmt.Fprintf(w, "%s %s %s\n",
							dim(e.Time().Local().Format("2006-01-02 15:04")), activityMark(e.Type), e.Description)
					}
				})
			})
		},
	}
	recent.Flags().IntVarP(&opts.Limit, "limit", "n", activity.DefaultRecentLimit, "number of entries (default from activity.recent_limit)")
	cmd.AddCommand(recent)

	prune := &cobra.Command{
		Use:           "prune",
		Short:         "Delete entries older than the retention period",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				days := opts.Days
				if !cmd.Flags().Changed("days") {
					days = a.cfg.Activity.RetentionDays
				}
				if days < 0 {
					return invalidArgs("--days must be >= 0, got %d", days)
				}
				removed, err := a.activity.Prune(ctx, days)
				if err != nil {
					return err
				}
				return a.out.Done(PruneResult{Removed: removed, Days: days},
					"Removed %d entries older than %d days", removed, days)
			})
		},
	}
	prune.Flags().IntVar(&opts.Days, "days", activity.DefaultRetentionDays, "days to keep (default from activity.retention_days)")
	cmd.AddCommand(prune)

	return cmd
}

func activityMark(t activity.Type) string {
	switch t {
	case activity.TypeAdd:
		return color.GreenString("+")
	case activity.TypeRemove:
		return color.RedString("-")
	default:
		return color.CyanString("~")
	}
}
