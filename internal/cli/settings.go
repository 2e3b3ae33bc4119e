package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pantry/internal/settings"
)

// SettingsOptions holds flags for settings set.
type SettingsOptions struct {
	FreshDays    int
	FreshEnabled bool
	OtherDays    int
	OtherEnabled bool
}

// NewSettingsCommand creates the settings command group.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the expiry warning settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Show the expiry warning settings",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				e, err := a.settings.Get(ctx)
				if err != nil {
					return err
				}
				return a.out.Result(e, func(w io.Writer) { writeExpiry(w, e) })
			})
		},
	})

	opts := &SettingsOptions{}
	set := &cobra.Command{
		Use:           "set",
		Short:         "Change the expiry warning settings",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				e, err := a.settings.Get(ctx)
				if err != nil {
					return err
				}
				changed := cmd.Flags().Changed
				if changed("fresh-days") {
					e.FreshProducts.WarningDays = opts.FreshDays
				}
				if changed("fresh-enabled") {
					e.FreshProducts.Enabled = opts.FreshEnabled
				}
				if changed("other-days") {
					e.OtherProducts.WarningDays = opts.OtherDays
				}
				if changed("other-enabled") {
					e.OtherProducts.Enabled = opts.OtherEnabled
				}
				if err := a.settings.Update(ctx, e); err != nil {
					return err
				}
				return a.out.Result(e, func(w io.Writer) {
					fmt.Fprintf(w, "%s Settings updated\n", okMark())
					writeExpiry(w, e)
				})
			})
		},
	}
	set.Flags().IntVar(&opts.FreshDays, "fresh-days", 0, "warning days for fresh products")
	set.Flags().BoolVar(&opts.FreshEnabled, "fresh-enabled", true, "warn about fresh products")
	set.Flags().IntVar(&opts.OtherDays, "other-days", 0, "warning days for other products")
	set.Flags().BoolVar(&opts.OtherEnabled, "other-enabled", true, "warn about other products")
	cmd.AddCommand(set)

	return cmd
}

func writeExpiry(w io.Writer, e settings.Expiry) {
	line := func(label string, wn settings.Warning) {
		state := "on"
		if !wn.Enabled {
			state = dim("off")
		}
		fmt.Fprintf(w, "%-15s %d days (%s)\n", label+":", wn.WarningDays, state)
	}
	line("Fresh products", e.FreshProducts)
	line("Other products", e.OtherProducts)
}
