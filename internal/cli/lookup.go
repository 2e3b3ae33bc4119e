package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <barcode>",
		Short: "Fetch product details for a barcode",
		Long: `Fetch product details for a barcode from the product database
configured under lookup.base_url. Nothing is stored.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				p, err := a.lookup.Fetch(ctx, args[0])
				if err != nil {
					return err
				}
				return a.out.Result(p, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s\n", highlight(p.Name), dim(p.Code))
					fmt.Fprintf(w, "  Brands:      %s\n", p.Brands)
					fmt.Fprintf(w, "  Quantity:    %s\n", p.Quantity)
					if p.Nutriscore != nil {
						fmt.Fprintf(w, "  Nutri-Score: %s\n", *p.Nutriscore)
					}
					fmt.Fprintf(w, "  Categories:  %s\n", p.Categories)
					fmt.Fprintf(w, "  Ingredients: %s\n", p.Ingredients)
				})
			})
		},
	}
}
