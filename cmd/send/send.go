// Package send implements the encrypted audio sender.
package send

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/udp"
)

// Command creates the send command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		file    string
		keyFile string
	)

	cmd := &cobra.Command{
		Use:   "send <host:port>",
		Short: "Send audio to a remote hoover instance over encrypted UDP",
		Long:  "Read a WAV file or raw 16-bit little-endian PCM (from --file or stdin) and stream it to a listening hoover instance.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			key := keyFile
			if key == "" {
				key = settings.UDP.KeyFile
			}

			return udp.Send(ctx, args[0], file, conf.ExpandPath(key))
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Audio file to send (reads stdin if omitted)")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "Path to the shared key file (defaults to udp.keyfile)")

	return cmd
}
