package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

// FloorResult is the payload of floor and compartment mutations.
type FloorResult struct {
	Room        string `json:"room"`
	Space       string `json:"space"`
	Floor       int    `json:"floor"`
	Compartment string `json:"compartment,omitempty"`
	From        string `json:"from,omitempty"`
}

// CompartmentOptions holds flags for compartment commands.
type CompartmentOptions struct {
	Floor int
}

// NewFloorCommand creates the floor command group.
func NewFloorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "floor",
		Short: "Manage the floors of a storage space",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <room> <space>",
		Short: "Append an empty floor",
		Long: `Append an empty floor and print its index.

Indices are never reused: the new floor is numbered one past the highest
index the space has ever had.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				idx, err := a.hierarchy.AddFloor(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return a.out.Done(FloorResult{Room: args[0], Space: args[1], Floor: idx},
					"Floor %d added to %s / %s", idx, args[0], args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <room> <space> <floor>",
		Short:         "Delete a floor and its compartments",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				idx, err := parseFloor(args[2])
				if err != nil {
					return err
				}
				if err := a.hierarchy.DeleteFloor(ctx, args[0], args[1], idx); err != nil {
					return err
				}
				return a.out.Done(FloorResult{Room: args[0], Space: args[1], Floor: idx},
					"Floor %d deleted from %s / %s", idx, args[0], args[1])
			})
		},
	})

	return cmd
}

// NewCompartmentCommand creates the compartment command group.
func NewCompartmentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompartmentOptions{}

	cmd := &cobra.Command{
		Use:   "compartment",
		Short: "Manage the compartments of a floor",
		Long: `Manage the compartments of a floor.

Without --floor, commands address floor 0, which holds the compartments
of a space that has no real floors.`,
	}
	cmd.PersistentFlags().IntVar(&opts.Floor, "floor", 0, "floor index")

	cmd.AddCommand(&cobra.Command{
		Use:           "add <room> <space> <name>",
		Short:         "Append a compartment to a floor",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.hierarchy.AddCompartment(ctx, args[0], args[1], opts.Floor, args[2]); err != nil {
					return err
				}
				return a.out.Done(FloorResult{Room: args[0], Space: args[1], Floor: opts.Floor, Compartment: args[2]},
					"Compartment added: %s (floor %d of %s / %s)", args[2], opts.Floor, args[0], args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <room> <space> <name>",
		Short:         "Delete every compartment of a floor with this name",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.hierarchy.DeleteCompartment(ctx, args[0], args[1], opts.Floor, args[2]); err != nil {
					return err
				}
				return a.out.Done(FloorResult{Room: args[0], Space: args[1], Floor: opts.Floor, Compartment: args[2]},
					"Compartment deleted: %s (floor %d of %s / %s)", args[2], opts.Floor, args[0], args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "rename <room> <space> <name> <new-name>",
		Short:         "Rename every compartment of a floor with this name",
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.hierarchy.RenameCompartment(ctx, args[0], args[1], opts.Floor, args[2], args[3]); err != nil {
					return err
				}
				return a.out.Done(FloorResult{Room: args[0], Space: args[1], Floor: opts.Floor, Compartment: args[3], From: args[2]},
					"Compartment renamed: %s → %s (floor %d of %s / %s)", args[2], args[3], opts.Floor, args[0], args[1])
			})
		},
	})

	return cmd
}

func parseFloor(s string) (int, error) {
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalidArgs("floor index %q is not a number", s)
	}
	return idx, nil
}
