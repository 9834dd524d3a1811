// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"fmt"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/altroute/src/httpbackend"
)

// pingSubcommand probes the primary backend directly.
func pingSubcommand(g *globalFlags, logger func() log.Interface) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check whether the primary backend looks blocked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g.config)
			if err != nil {
				return err
			}
			b, err := httpbackend.New(g.baseURL, cfg, httpbackend.WithLogger(logger()))
			if err != nil {
				return err
			}

			status := "reachable"
			if b.IsPotentiallyBlocked(cmd.Context()) {
				status = "potentially blocked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", b.BaseURL(), status)
			return nil
		},
	}
}
