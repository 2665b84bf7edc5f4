// Package cmd assembles the hoover command tree.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/erikh/hoover/cmd/enroll"
	"github.com/erikh/hoover/cmd/keygen"
	"github.com/erikh/hoover/cmd/record"
	"github.com/erikh/hoover/cmd/send"
	"github.com/erikh/hoover/cmd/speakers"
	"github.com/erikh/hoover/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hoover",
		Short: "Continuous speech capture and transcription",
		Long:  "hoover records from a microphone or an encrypted datagram stream, transcribes the audio and appends it to daily journal files.",
	}

	rootCmd.PersistentFlags().BoolVar(&settings.Debug, "debug", viper.GetBool("debug"), "Enable debug logging")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(
		record.Command(settings),
		enroll.Command(settings),
		speakers.Command(settings),
		send.Command(settings),
		keygen.Command(settings),
	)

	return rootCmd
}
