package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// RoomResult is the payload of room mutations.
type RoomResult struct {
	Room string `json:"room"`
	From string `json:"from,omitempty"`
}

// NewRoomCommand creates the room command group.
func NewRoomCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Manage rooms",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List rooms in name order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, runRoomList)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "show <room>",
		Short:         "Show a room and its storage space summaries",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				r, err := a.hierarchy.GetRoom(ctx, args[0])
				if err != nil {
					return err
				}
				return a.out.Result(r, func(w io.Writer) {
					fmt.Fprintln(w, highlight(r.Name))
					if len(r.StorageSpaces) == 0 {
						fmt.Fprintln(w, dim("  (no storage spaces)"))
					}
					for _, ref := range r.StorageSpaces {
						fmt.Fprintf(w, "  %s%s\n", ref.Name, spaceFlags(ref.HasFloors, ref.HasCompartments))
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <room>",
		Short: "Add an empty room",
		Long: `Add an empty room.

An existing room of the same name is replaced by an empty one and its
storage spaces are deleted, unless hierarchy.reject_duplicates is set.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.hierarchy.AddRoom(ctx, args[0]); err != nil {
					return err
				}
				return a.out.Done(RoomResult{Room: args[0]}, "Room added: %s", args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <room>",
		Short:         "Delete a room and all its storage spaces",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.hierarchy.DeleteRoom(ctx, args[0]); err != nil {
					return err
				}
				return a.out.Done(RoomResult{Room: args[0]}, "Room deleted: %s", args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "rename <room> <new-name>",
		Short:         "Rename a room, moving its storage spaces",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.hierarchy.RenameRoom(ctx, args[0], args[1]); err != nil {
					return err
				}
				return a.out.Done(RoomResult{Room: args[1], From: args[0]}, "Room renamed: %s → %s", args[0], args[1])
			})
		},
	})

	return cmd
}

func runRoomList(ctx context.Context, a *app) error {
	names, err := a.hierarchy.ListRooms(ctx)
	if err != nil {
		return err
	}
	return a.out.Result(map[string][]string{"rooms": names}, func(w io.Writer) {
		for _, n := range names {
			fmt.Fprintln(w, n)
		}
	})
}

// spaceFlags renders the layout flags of a space for text output.
func spaceFlags(hasFloors, hasCompartments bool) string {
	switch {
	case hasFloors && hasCompartments:
		return dim(" [floors, compartments]")
	case hasFloors:
		return dim(" [floors]")
	case hasCompartments:
		return dim(" [compartments]")
	default:
		return ""
	}
}
