package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/prisk/internal/domain"
	"github.com/aristath/prisk/internal/modules/risk"
)

func newStructureCmd(opts *rootOptions) *cobra.Command {
	var (
		regime string
		top    int
		pairs  int
	)

	cmd := &cobra.Command{
		Use:   "structure",
		Short: "Show the correlation structure of the riskiest assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := domain.ParseRegime(regime)
			if err != nil {
				return err
			}

			svc, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}

			st, err := svc.Structure(r, top, pairs)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			return renderStructure(cmd.OutOrStdout(), st)
		},
	}

	limits := risk.DefaultLimits()
	cmd.Flags().StringVar(&regime, "regime", string(domain.RegimeNormal), "Regime: normal or stress")
	cmd.Flags().IntVar(&top, "top", limits.TopRiskAssets, "Number of assets in the correlation matrix")
	cmd.Flags().IntVar(&pairs, "pairs", limits.TopPairs, "Number of ranked pairs (0 for all)")

	return cmd
}

func renderStructure(w io.Writer, st *risk.StructureView) error {
	fmt.Fprintf(w, "As of %s  regime=%s  observations=%d\n", st.AsOf, st.Regime, st.NObs)
	if st.PCA != nil {
		fmt.Fprintf(w, "Effective bets: %.2f\n", st.PCA.EffectiveBets)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\t%s\t\n", strings.Join(st.Selection.Symbols, "\t"))
	for i, sym := range st.Selection.Symbols {
		cells := make([]string, len(st.Selection.Matrix[i]))
		for j, v := range st.Selection.Matrix[i] {
			cells[j] = fmt.Sprintf("%.2f", v)
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", sym, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PAIR\tCORR\t")
	for _, p := range st.Pairs {
		fmt.Fprintf(tw, "%s / %s\t%+.2f\t\n", p.A, p.B, p.Value)
	}
	return tw.Flush()
}
