package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/prisk/internal/modules/risk"
)

func newDeltasCmd(opts *rootOptions) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "deltas",
		Short: "Rank assets by risk share change from normal to stress",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}

			deltas, err := svc.Deltas(top)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), deltas)
			}
			return renderDeltas(cmd.OutOrStdout(), deltas)
		},
	}

	cmd.Flags().IntVar(&top, "top", risk.DefaultLimits().TopDeltas, "Number of rows (0 for all)")

	return cmd
}

func renderDeltas(w io.Writer, d *risk.DeltasView) error {
	fmt.Fprintf(w, "As of %s  showing %d of %d assets\n\n", d.AsOf, len(d.Rows), d.Total)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tNORMAL\tSTRESS\tΔ SHARE\tΔ MCR\tWEIGHT\t")
	for _, row := range d.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%+.6f\t%s\t\n",
			row.Symbol, pct(row.NormalRiskShare), pct(row.StressRiskShare), signedPct(row.DRiskShare), row.DMCR, pct(row.Weight))
	}
	return tw.Flush()
}
