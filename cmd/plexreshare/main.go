// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "plexreshare",
		Short:         "Republish shared Plex libraries as a virtual directory tree",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml or its directory")

	cmd.AddCommand(
		RunWorkerCommand(&configPath),
		RunDiscoverCommand(&configPath),
		RunReconcileCommand(&configPath),
		RunSeedIgnoresCommand(&configPath),
		RunVersionCommand(),
	)

	return cmd
}
