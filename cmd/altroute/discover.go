// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/altroute/src/doh"
)

type discoverFlags struct {
	services    []string
	resolvers   []string
	zone        string
	timeout     time.Duration
	concurrency int
	xlsx        string
}

// discoverSubcommand queries every discovery service and reports what each
// one answered.
func discoverSubcommand(g *globalFlags, logger func() log.Interface) *cobra.Command {
	f := &discoverFlags{}
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Query DNS-over-HTTPS services for alternative base URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l := logger()
			services := doh.NewRFC8484Services(f.services, doh.WithZone(f.zone))
			for _, r := range f.resolvers {
				services = append(services, doh.NewDNSService(r, doh.WithDNSZone(f.zone)))
			}
			l.WithFields(log.Fields{
				"base_url": g.baseURL,
				"services": len(services),
			}).Debug("altroute: discovering alternatives")

			reports, err := doh.Discover(cmd.Context(), g.baseURL, services, f.timeout, f.concurrency)
			if err != nil {
				return err
			}
			printReports(cmd.OutOrStdout(), reports)

			if f.xlsx != "" {
				if err := saveReports(f.xlsx, g.baseURL, reports); err != nil {
					return err
				}
				l.WithField("path", f.xlsx).Info("altroute: report exported")
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&f.services, "service", doh.DefaultServiceURLs, "DNS-over-HTTPS service URL (repeatable)")
	flags.StringSliceVar(&f.resolvers, "resolver", nil, "Plain DNS resolver to query as well (repeatable)")
	flags.StringVar(&f.zone, "zone", doh.DefaultZone, "Discovery zone")
	flags.DurationVar(&f.timeout, "timeout", 10*time.Second, "Per-service timeout")
	flags.IntVar(&f.concurrency, "concurrency", 0, "Maximum concurrent queries (0 selects the default)")
	flags.StringVar(&f.xlsx, "xlsx", "", "Export the report to this XLSX file")
	return cmd
}

// printReports writes reports as an aligned table.
func printReports(w io.Writer, reports []doh.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tSTATUS\tLATENCY\tALTERNATIVES")
	for _, r := range reports {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Service, status, r.Latency.Round(time.Millisecond), strings.Join(r.Alternatives, ", "))
	}
	tw.Flush()
}
