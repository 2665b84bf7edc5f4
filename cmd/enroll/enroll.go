// Package enroll implements speaker voice-profile enrollment.
package enroll

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/speaker"
)

// Command creates the enroll command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "enroll <name>",
		Short: "Enroll a speaker voice profile",
		Long:  "Record a voice sample from the microphone and save an averaged embedding profile under the given name. Interrupt to stop recording.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return speaker.Enroll(ctx, &settings.Audio, &settings.Speaker, args[0])
		},
	}
}
