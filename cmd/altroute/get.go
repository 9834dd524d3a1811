// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/altroute/src/dispatch"
	"github.com/H0llyW00dzZ/altroute/src/doh"
	"github.com/H0llyW00dzZ/altroute/src/httpbackend"
)

type getFlags struct {
	stateDir     string
	uid          string
	accessToken  string
	refreshToken string
	resolver     string
	noRetry      bool
	metrics      bool
}

// getSubcommand performs one GET through the dispatcher and prints the
// JSON response.
func getSubcommand(g *globalFlags, logger func() log.Interface) *cobra.Command {
	f := &getFlags{}
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "GET an API path through the resilient dispatcher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g.config)
			if err != nil {
				return err
			}
			var lastResort doh.Service
			if f.resolver != "" {
				lastResort = doh.NewDNSService(f.resolver)
			}
			s, err := newStack(stackConfig{
				baseURL:  g.baseURL,
				client:   cfg,
				stateDir: f.stateDir,
				session: httpbackend.Session{
					UID:          f.uid,
					AccessToken:  f.accessToken,
					RefreshToken: f.refreshToken,
				},
				lastResort: lastResort,
				logger:     logger(),
			})
			if err != nil {
				return err
			}

			res := get(cmd.Context(), s.dispatcher, args[0], f.noRetry)
			if f.metrics {
				defer printMetrics(cmd.ErrOrStderr(), s.registry)
			}
			body, err := res.Get()
			if err != nil {
				return err
			}

			var out bytes.Buffer
			if err := json.Indent(&out, body, "", "  "); err != nil {
				out.Reset()
				out.Write(body)
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(cmd.OutOrStdout())
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.stateDir, "state-dir", "", "Directory persisting the alternative routing state")
	flags.StringVar(&f.uid, "uid", "", "Session UID")
	flags.StringVar(&f.accessToken, "access-token", "", "Session access token")
	flags.StringVar(&f.refreshToken, "refresh-token", "", "Session refresh token")
	flags.StringVar(&f.resolver, "last-resort-resolver", "", "Plain DNS resolver queried when every DNS-over-HTTPS service failed")
	flags.BoolVar(&f.noRetry, "no-retry", false, "Do not retry on connection errors")
	flags.BoolVar(&f.metrics, "metrics", false, "Print dispatcher counters to stderr")
	return cmd
}

func get(ctx context.Context, d *dispatch.Dispatcher[*httpbackend.Client], path string, noRetry bool) dispatch.Result[json.RawMessage] {
	return dispatch.Invoke(ctx, d, noRetry, func(ctx context.Context, c *httpbackend.Client) (json.RawMessage, error) {
		var body json.RawMessage
		if err := c.GetJSON(ctx, path, &body); err != nil {
			return nil, err
		}
		return body, nil
	})
}

// printMetrics writes every non-zero counter of reg as name{labels} value.
func printMetrics(w io.Writer, reg prometheus.Gatherer) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(w, "metrics: %v\n", err)
		return
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue()
			if v == 0 {
				continue
			}
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += fmt.Sprintf("{%s=%q}", lp.GetName(), lp.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, v))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
