package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/prisk/internal/domain"
	"github.com/aristath/prisk/internal/modules/risk"
)

func newViewCmd(opts *rootOptions) *cobra.Command {
	var (
		regime string
		sets   []string
	)

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show the risk decomposition of a regime",
		Long: `Recompute the risk decomposition of a regime under its baseline weights,
or under baseline weights with individual symbols overridden via --set.

Examples:
  prisk view --file latest.json
  prisk view --file latest.json --regime stress --set SPY=0.4 --set TLT=0.1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := domain.ParseRegime(regime)
			if err != nil {
				return err
			}
			patch, err := parseWeights(sets)
			if err != nil {
				return err
			}

			svc, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}

			view, err := viewWithPatch(svc, r, patch)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			return renderView(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().StringVar(&regime, "regime", string(domain.RegimeNormal), "Regime: normal or stress")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Override a weight as SYMBOL=WEIGHT (repeatable)")

	return cmd
}

func viewWithPatch(svc *risk.Service, r domain.Regime, patch map[string]float64) (*risk.View, error) {
	if len(patch) == 0 {
		return svc.View(r, nil)
	}

	snap, err := svc.CurrentSnapshot()
	if err != nil {
		return nil, err
	}
	data, err := snap.Regime(r)
	if err != nil {
		return nil, err
	}
	override, err := risk.ApplyPatch(data, nil, patch)
	if err != nil {
		return nil, err
	}
	return svc.ViewOf(snap, r, override)
}

// parseWeights parses SYMBOL=WEIGHT pairs.
func parseWeights(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		sym, raw, ok := strings.Cut(pair, "=")
		sym = strings.TrimSpace(sym)
		if !ok || sym == "" {
			return nil, fmt.Errorf("invalid weight %q, want SYMBOL=WEIGHT", pair)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", pair, err)
		}
		out[sym] = w
	}
	return out, nil
}

func renderView(w io.Writer, v *risk.View) error {
	mode := "baseline"
	if v.OverrideActive {
		mode = "override"
	}

	fmt.Fprintf(w, "As of %s  regime=%s  weights=%s\n", v.AsOf, v.Regime, mode)
	fmt.Fprintf(w, "Annualized vol: %s (baseline %s)\n", pct(v.VolAnn), pct(v.BaselineVolAnn))
	if v.VarianceClamped {
		fmt.Fprintln(w, "Warning: portfolio variance was negative and clamped to zero")
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tWEIGHT\tMCR\tCONTRIB\tSHARE\tΔ SHARE\t")
	for _, row := range v.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%.6f\t%.6f\t%s\t%s\t\n",
			row.Symbol, pct(row.Weight), row.MCR, row.RiskContrib, pct(row.RiskShare), signedPct(row.DRiskShare))
	}
	return tw.Flush()
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func signedPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v*100)
}
