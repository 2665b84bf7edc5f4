// Package keygen implements shared-key generation.
package keygen

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/udp"
)

// Command creates the keygen command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen [path]",
		Short: "Generate a new 32-byte shared key file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := settings.UDP.KeyFile
			if len(args) == 1 {
				path = args[0]
			}
			path = conf.ExpandPath(path)

			if err := udp.GenerateKeyFile(path); err != nil {
				return err
			}
			fmt.Printf("wrote key file %s\n", path)
			return nil
		},
	}
}
