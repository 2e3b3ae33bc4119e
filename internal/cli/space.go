package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pantry/internal/hierarchy"
)

// SpaceResult is the payload of storage space deletes and renames.
type SpaceResult struct {
	Room  string `json:"room"`
	Space string `json:"space"`
	From  string `json:"from,omitempty"`
}

// SpaceListResult is the payload of space list.
type SpaceListResult struct {
	Room   string               `json:"room"`
	Spaces []hierarchy.SpaceRef `json:"spaces"`
}

// SpaceAddOptions holds flags for space add.
type SpaceAddOptions struct {
	Floors       bool
	Compartments bool
}

// SpaceUpdateOptions holds flags for space update.
type SpaceUpdateOptions struct {
	Floors       bool
	Compartments bool
}

// NewSpaceCommand creates the space command group.
func NewSpaceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "space",
		Short: "Manage the storage spaces of a room",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list <room>",
		Short:         "List the storage spaces of a room",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				refs, err := a.hierarchy.ListStorageSpaces(ctx, args[0])
				if err != nil {
					return err
				}
				return a.out.Result(SpaceListResult{Room: args[0], Spaces: refs}, func(w io.Writer) {
					for _, ref := range refs {
						fmt.Fprintf(w, "%s%s\n", ref.Name, spaceFlags(ref.HasFloors, ref.HasCompartments))
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "show <room> <space>",
		Short:         "Show the floors and compartments of a storage space",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				sp, err := a.hierarchy.GetStorageSpace(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return a.out.Result(sp, func(w io.Writer) { writeSpace(w, "", sp) })
			})
		},
	})

	cmd.AddCommand(newSpaceAddCommand(rootOpts))
	cmd.AddCommand(newSpaceUpdateCommand(rootOpts))

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <room> <space>",
		Short:         "Delete a storage space",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.hierarchy.DeleteStorageSpace(ctx, args[0], args[1]); err != nil {
					return err
				}
				return a.out.Done(SpaceResult{Room: args[0], Space: args[1]},
					"Storage space deleted: %s / %s", args[0], args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "rename <room> <space> <new-name>",
		Short:         "Rename a storage space",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.hierarchy.RenameStorageSpace(ctx, args[0], args[1], args[2]); err != nil {
					return err
				}
				return a.out.Done(SpaceResult{Room: args[0], Space: args[2], From: args[1]},
					"Storage space renamed: %s / %s → %s", args[0], args[1], args[2])
			})
		},
	})

	return cmd
}

func newSpaceAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SpaceAddOptions{}

	cmd := &cobra.Command{
		Use:   "add <room> <space>",
		Short: "Add a storage space to a room",
		Long: `Add a storage space to a room.

A space with floors starts with floor 1. A space of the same name is
replaced, unless hierarchy.reject_duplicates is set.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				sp, err := a.hierarchy.AddStorageSpace(ctx, args[0], hierarchy.NewSpace{
					Name:            args[1],
					HasFloors:       opts.Floors,
					HasCompartments: opts.Compartments,
				})
				if err != nil {
					return err
				}
				return a.out.Done(sp, "Storage space added: %s / %s", args[0], sp.Name)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Floors, "floors", false, "the space has floors")
	cmd.Flags().BoolVar(&opts.Compartments, "compartments", false, "the space has compartments")

	return cmd
}

func newSpaceUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SpaceUpdateOptions{}

	cmd := &cobra.Command{
		Use:           "update <room> <space>",
		Short:         "Change the layout flags of a storage space",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch hierarchy.Patch
			if cmd.Flags().Changed("floors") {
				patch.HasFloors = &opts.Floors
			}
			if cmd.Flags().Changed("compartments") {
				patch.HasCompartments = &opts.Compartments
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				sp, err := a.hierarchy.UpdateStorageSpace(ctx, args[0], args[1], patch)
				if err != nil {
					return err
				}
				return a.out.Done(sp, "Storage space updated: %s / %s", args[0], sp.Name)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Floors, "floors", false, "the space has floors")
	cmd.Flags().BoolVar(&opts.Compartments, "compartments", false, "the space has compartments")

	return cmd
}

// writeSpace renders a space with its floors, one compartment per line.
func writeSpace(w io.Writer, indent string, sp *hierarchy.StorageSpace) {
	fmt.Fprintf(w, "%s%s%s\n", indent, highlight(sp.Name), spaceFlags(sp.HasFloors, sp.HasCompartments))
	for _, idx := range sp.Floors.Indices() {
		label := fmt.Sprintf("Étage %d", idx)
		if idx == hierarchy.VirtualFloor {
			label = "Compartiments"
		}
		fmt.Fprintf(w, "%s  %s\n", indent, label)
		for _, c := range sp.Floors[idx] {
			fmt.Fprintf(w, "%s    - %s\n", indent, c)
		}
	}
}
