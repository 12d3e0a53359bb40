// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/autobrr/plexreshare/internal/buildinfo"
	"github.com/autobrr/plexreshare/internal/domain"
	"github.com/autobrr/plexreshare/internal/services/reshare"
)

func RunDiscoverCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Enqueue the singleton discovery job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := reshare.Kickoff(cmd.Context(), a.queue); err != nil {
				return err
			}
			cmd.Println("Discovery job enqueued.")
			return nil
		},
	}
}

func RunReconcileCommand(configPath *string) *cobra.Command {
	var (
		node      string
		mediaType string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Enqueue a reconciliation of one node",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if node == "" {
				return errors.New("--node is required")
			}
			mt, err := domain.ParseMediaType(mediaType)
			if err != nil {
				return err
			}

			a, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := reshare.EnqueueReconcile(cmd.Context(), a.queue, mt, node, 0); err != nil {
				return err
			}
			cmd.Printf("Reconcile of %s/%s enqueued.\n", mt, node)
			return nil
		},
	}

	cmd.Flags().StringVar(&node, "node", "", "Node name of the server")
	cmd.Flags().StringVar(&mediaType, "type", string(domain.MediaMovies), "Media type: movies or shows")

	return cmd
}

func RunSeedIgnoresCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-ignores",
		Short: "Enqueue a refresh of the ignore set from the cached server list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Config.IgnorePlaylist == "" {
				return errors.New("ignorePlaylist is not configured")
			}

			n, err := reshare.EnqueueSeedIgnores(cmd.Context(), a.store, a.queue)
			if err != nil {
				return err
			}
			cmd.Printf("Ignore seeding enqueued for %d servers.\n", n)
			return nil
		},
	}
}

func RunVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				data, err := buildinfo.JSON()
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Print(buildinfo.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}
