package main

import (
	"fmt"
	"os"

	"github.com/erikh/hoover/cmd"
	"github.com/erikh/hoover/internal/conf"
	"github.com/erikh/hoover/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(settings.Main.LogDir, settings.Debug)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		logging.Structured().Error("command failed", "error", err)
		os.Exit(1)
	}
}
