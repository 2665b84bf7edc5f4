// Package speakers implements enrolled-profile administration.
package speakers

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/speaker"
)

// Command creates the speakers command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speakers",
		Short: "Manage enrolled speaker profiles",
	}

	cmd.AddCommand(listCommand(settings), removeCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List enrolled speakers",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := speaker.ListProfiles(conf.ExpandPath(settings.Speaker.ProfilesDir))
			if err != nil {
				return err
			}

			if len(names) == 0 {
				fmt.Println("no speakers enrolled")
				return nil
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func removeCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an enrolled speaker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := speaker.RemoveProfile(conf.ExpandPath(settings.Speaker.ProfilesDir), args[0]); err != nil {
				return err
			}
			fmt.Printf("removed speaker %q\n", args[0])
			return nil
		},
	}
}
