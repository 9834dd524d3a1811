// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Command altroute exercises the resilient dispatcher from the command
// line: it discovers alternative routes over DNS-over-HTTPS, pings a
// backend, and performs API calls that fall back to alternative routes
// when the primary looks blocked.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/altroute/src/dispatch"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	config  string
	baseURL string
	verbose bool
}

func main() {
	if err := newRootCommand(os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds the command tree. Logs are written to logOut.
func newRootCommand(logOut io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "altroute",
		Short:        "Resilient API client with DNS-over-HTTPS alternative routing",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&g.config, "config", "c", "", "YAML client configuration file")
	flags.StringVar(&g.baseURL, "base-url", "https://mail-api.proton.me/", "Primary API base URL")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	logger := func() log.Interface {
		return newLogger(logOut, g.verbose)
	}

	root.AddCommand(
		discoverSubcommand(g, logger),
		pingSubcommand(g, logger),
		getSubcommand(g, logger),
	)
	return root
}

func newLogger(w io.Writer, verbose bool) log.Interface {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return &log.Logger{Handler: cli.New(w), Level: level}
}

// loadConfig reads the client configuration at path, or returns the
// defaults when path is empty.
func loadConfig(path string) (*dispatch.Client, error) {
	if path == "" {
		return dispatch.DefaultClient(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("altroute: open config: %w", err)
	}
	defer f.Close()
	return dispatch.LoadClient(f)
}
