// Package record implements the foreground recording command.
package record

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/recording"
)

// Command creates the record command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone in the foreground",
		Long:  "Start capturing audio, transcribing it and appending segments to the daily journal until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return recording.Run(ctx, settings)
		},
	}
}
