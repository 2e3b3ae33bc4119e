package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/pantry/internal/catalog"
	"github.com/roach88/pantry/internal/location"
	"github.com/roach88/pantry/internal/lookup"
)

// ItemOptions holds the item field flags shared by item add and item update.
type ItemOptions struct {
	Name         string
	Brand        string
	Category     string
	Barcode      string
	Quantity     int
	Expires      string
	Room         string
	Space        string
	Location     string
	ImageURL     string
	Consumed     bool
	ConsumedDate string

	// Lookup fills unset fields from the product database (add only).
	Lookup bool
}

// ItemDeleteResult is the payload of item delete.
type ItemDeleteResult struct {
	ID int64 `json:"id"`
}

// ExpiringItem is an item with the whole days left before it expires.
type ExpiringItem struct {
	catalog.Item
	DaysLeft int `json:"daysLeft"`
}

// NewItemCommand creates the item command group.
func NewItemCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage catalogued food items",
	}

	cmd.AddCommand(newItemAddCommand(rootOpts))
	cmd.AddCommand(newItemUpdateCommand(rootOpts))

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List every item",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				items, err := a.catalog.List(ctx)
				if err != nil {
					return err
				}
				return a.out.Result(items, func(w io.Writer) {
					for _, it := range items {
						writeItemLine(w, it)
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "show <id>",
		Short:         "Show one item",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				id, err := parseItemID(args[0])
				if err != nil {
					return err
				}
				it, err := a.catalog.Get(ctx, id)
				if err != nil {
					return err
				}
				return a.out.Result(it, func(w io.Writer) { writeItem(w, it) })
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "barcode <code>",
		Short:         "Show the first item stored with a barcode",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				it, err := a.catalog.GetByBarcode(ctx, args[0])
				if err != nil {
					return err
				}
				return a.out.Result(it, func(w io.Writer) { writeItem(w, it) })
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "consume <id>",
		Short:         "Mark an item consumed today",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				id, err := parseItemID(args[0])
				if err != nil {
					return err
				}
				consumed := true
				today := a.now().Format(catalog.DateLayout)
				it, err := a.catalog.Update(ctx, id, catalog.Patch{Consumed: &consumed, ConsumedDate: &today})
				if err != nil {
					return err
				}
				return a.out.Done(it, "Item consumed: %s", it.Name)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete an item",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				id, err := parseItemID(args[0])
				if err != nil {
					return err
				}
				if err := a.catalog.Delete(ctx, id); err != nil {
					return err
				}
				return a.out.Done(ItemDeleteResult{ID: id}, "Item deleted: #%d", id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "expiring",
		Short: "List items expiring within their warning window",
		Long: `List unconsumed items that expire within the warning window of their
category, soonest first. Items in a fridge use the fresh-product window.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, runItemExpiring)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "stats",
		Short:         "Sum item quantities by expiry state",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				cfg, err := a.settings.Get(ctx)
				if err != nil {
					return err
				}
				st, err := a.catalog.Stats(ctx, a.now(), cfg)
				if err != nil {
					return err
				}
				return a.out.Result(st, func(w io.Writer) {
					fmt.Fprintf(w, "Total:    %d\n", st.TotalItems)
					fmt.Fprintf(w, "Fresh:    %s\n", color.GreenString("%d", st.FreshItems))
					fmt.Fprintf(w, "Expiring: %s\n", color.YellowString("%d", st.ExpiringItems))
					fmt.Fprintf(w, "Expired:  %s\n", color.RedString("%d", st.ExpiredItems))
				})
			})
		},
	})

	return cmd
}

func newItemAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ItemOptions{}

	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Add an item to the catalog",
		Long: `Add an item to the catalog.

With --room and --space the location must exist in the hierarchy and is
stored as "Room - Space". With --lookup, fields left unset are filled from
the product database using --barcode.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Name = args[0]
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				return runItemAdd(ctx, a, opts)
			})
		},
	}

	addItemFlags(cmd, opts)
	cmd.Flags().IntVar(&opts.Quantity, "quantity", 1, "quantity")
	cmd.Flags().BoolVar(&opts.Lookup, "lookup", false, "fill unset fields from the product database")

	return cmd
}

func runItemAdd(ctx context.Context, a *app, opts *ItemOptions) error {
	loc, err := resolveLocation(ctx, a, opts)
	if err != nil {
		return err
	}

	it := catalog.Item{
		Name:            opts.Name,
		Brand:           opts.Brand,
		Category:        catalog.Category(opts.Category),
		Barcode:         opts.Barcode,
		Quantity:        opts.Quantity,
		ExpirationDate:  opts.Expires,
		StorageLocation: loc,
		ImageURL:        opts.ImageURL,
	}

	if opts.Lookup {
		if opts.Barcode == "" {
			return invalidArgs("--lookup requires --barcode")
		}
		p, err := a.lookup.Fetch(ctx, opts.Barcode)
		if err != nil {
			return err
		}
		fillFromProduct(&it, p)
	}

	it, err = a.catalog.Add(ctx, it)
	if err != nil {
		return err
	}
	return a.out.Done(it, "Item added: #%d %s", it.ID, it.Name)
}

func newItemUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ItemOptions{}

	cmd := &cobra.Command{
		Use:           "update <id>",
		Short:         "Change the fields of an item",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				id, err := parseItemID(args[0])
				if err != nil {
					return err
				}
				patch, err := itemPatch(ctx, a, cmd, opts)
				if err != nil {
					return err
				}
				it, err := a.catalog.Update(ctx, id, patch)
				if err != nil {
					return err
				}
				return a.out.Done(it, "Item updated: #%d %s", it.ID, it.Name)
			})
		},
	}

	addItemFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.Name, "name", "", "item name")
	cmd.Flags().IntVar(&opts.Quantity, "quantity", 0, "quantity")
	cmd.Flags().BoolVar(&opts.Consumed, "consumed", false, "mark consumed (today unless --consumed-date is set)")
	cmd.Flags().StringVar(&opts.ConsumedDate, "consumed-date", "", "consumption date (YYYY-MM-DD)")

	return cmd
}

func addItemFlags(cmd *cobra.Command, opts *ItemOptions) {
	cmd.Flags().StringVar(&opts.Brand, "brand", "", "brand")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category (fresh|other)")
	cmd.Flags().StringVar(&opts.Barcode, "barcode", "", "barcode")
	cmd.Flags().StringVar(&opts.Expires, "expires", "", "expiration date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Room, "room", "", "room of the storage space")
	cmd.Flags().StringVar(&opts.Space, "space", "", "storage space")
	cmd.Flags().StringVar(&opts.Location, "location", "", "free-text location (instead of --room/--space)")
	cmd.Flags().StringVar(&opts.ImageURL, "image-url", "", "image URL")
}

// itemPatch builds a patch from the flags the user set.
func itemPatch(ctx context.Context, a *app, cmd *cobra.Command, opts *ItemOptions) (catalog.Patch, error) {
	var p catalog.Patch
	changed := cmd.Flags().Changed

	if changed("name") {
		p.Name = &opts.Name
	}
	if changed("brand") {
		p.Brand = &opts.Brand
	}
	if changed("category") {
		c := catalog.Category(opts.Category)
		p.Category = &c
	}
	if changed("barcode") {
		p.Barcode = &opts.Barcode
	}
	if changed("quantity") {
		p.Quantity = &opts.Quantity
	}
	if changed("expires") {
		p.ExpirationDate = &opts.Expires
	}
	if changed("image-url") {
		p.ImageURL = &opts.ImageURL
	}
	if changed("room") || changed("space") || changed("location") {
		loc, err := resolveLocation(ctx, a, opts)
		if err != nil {
			return catalog.Patch{}, err
		}
		p.StorageLocation = &loc
	}
	if changed("consumed") {
		p.Consumed = &opts.Consumed
		date := ""
		if opts.Consumed {
			date = a.now().Format(catalog.DateLayout)
		}
		p.ConsumedDate = &date
	}
	if changed("consumed-date") {
		p.ConsumedDate = &opts.ConsumedDate
	}
	return p, nil
}

// resolveLocation returns the location label for the flags. A room and
// space must exist in the hierarchy.
func resolveLocation(ctx context.Context, a *app, opts *ItemOptions) (string, error) {
	if opts.Room == "" && opts.Space == "" {
		return opts.Location, nil
	}
	if opts.Location != "" {
		return "", invalidArgs("--location cannot be combined with --room/--space")
	}
	if opts.Room == "" || opts.Space == "" {
		return "", invalidArgs("--room and --space must be set together")
	}
	sp, err := a.hierarchy.GetStorageSpace(ctx, opts.Room, opts.Space)
	if err != nil {
		return "", err
	}
	key, err := location.ParseSpaceKey(sp.ID)
	if err != nil {
		return "", err
	}
	return location.Label(key.Room(), key.Space()), nil
}

// fillFromProduct copies product details into the fields of it still unset.
func fillFromProduct(it *catalog.Item, p *lookup.Product) {
	if it.Name == "" && p.Name != lookup.Unavailable {
		it.Name = p.Name
	}
	if it.Brand == "" && p.Brands != lookup.Unavailable {
		it.Brand = p.Brands
	}
	if it.ImageURL == "" {
		it.ImageURL = p.ImageURL
	}
	n := p.Nutriments
	if it.NutritionalInfo == nil && (n.EnergyKcal != nil || n.Proteins != nil || n.Carbohydrates != nil || n.Fat != nil) {
		it.NutritionalInfo = &catalog.NutritionalInfo{
			Calories: deref(n.EnergyKcal),
			Protein:  deref(n.Proteins),
			Carbs:    deref(n.Carbohydrates),
			Fat:      deref(n.Fat),
		}
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func runItemExpiring(ctx context.Context, a *app) error {
	cfg, err := a.settings.Get(ctx)
	if err != nil {
		return err
	}
	now := a.now()
	items, err := a.catalog.Expiring(ctx, now, cfg)
	if err != nil {
		return err
	}

	out := make([]ExpiringItem, 0, len(items))
	for _, it := range items {
		days, _ := it.DaysUntilExpiry(now)
		out = append(out, ExpiringItem{Item: it, DaysLeft: days})
	}

	return a.out.Result(out, func(w io.Writer) {
		if len(out) == 0 {
			fmt.Fprintf(w, "%s Nothing expiring soon\n", okMark())
			return
		}
		for _, e := range out {
			days := color.YellowString("%d days", e.DaysLeft)
			if e.DaysLeft == 1 {
				days = color.RedString("1 day")
			}
			fmt.Fprintf(w, "%s #%d %s, %s left (%s)\n", warnMark(), e.ID, highlight(e.Name), days, e.ExpirationDate)
		}
	})
}

func parseItemID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidArgs("item id %q is not a positive number", s)
	}
	return id, nil
}

func writeItemLine(w io.Writer, it catalog.Item) {
	line := fmt.Sprintf("#%d %s x%d", it.ID, highlight(it.Name), it.Quantity)
	if it.StorageLocation != "" {
		line += dim(" @ " + it.StorageLocation)
	}
	if it.ExpirationDate != "" {
		line += " exp " + it.ExpirationDate
	}
	if it.Consumed {
		line += dim(" (consumed)")
	}
	fmt.Fprintln(w, line)
}

func writeItem(w io.Writer, it catalog.Item) {
	fmt.Fprintf(w, "#%d %s\n", it.ID, highlight(it.Name))
	field := func(label, v string) {
		if v != "" {
			fmt.Fprintf(w, "  %-12s %s\n", label+":", v)
		}
	}
	field("Brand", it.Brand)
	field("Category", string(it.Category))
	field("Barcode", it.Barcode)
	field("Quantity", strconv.Itoa(it.Quantity))
	field("Expires", it.ExpirationDate)
	field("Location", it.StorageLocation)
	if it.Consumed {
		field("Consumed", it.ConsumedDate)
	}
	if n := it.NutritionalInfo; n != nil {
		field("Nutrition", fmt.Sprintf("%.0f kcal, %.1fg protein, %.1fg carbs, %.1fg fat", n.Calories, n.Protein, n.Carbs, n.Fat))
	}
	field("Ref", it.Ref)
}
