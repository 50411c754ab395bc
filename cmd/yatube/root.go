package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// RootCmd is the yatube binary; every action lives in a subcommand.
var RootCmd = &cobra.Command{
	Use:          "yatube [command] [flags]",
	Short:        "Yatube: a minimal blogging platform",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
