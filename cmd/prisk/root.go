package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/prisk/internal/modules/payload"
	"github.com/aristath/prisk/internal/modules/risk"
	"github.com/aristath/prisk/pkg/formulas"
	"github.com/aristath/prisk/pkg/logger"
)

// rootOptions are the flags shared by every inspection command.
type rootOptions struct {
	file       string
	manifest   string
	timeout    time.Duration
	factor     int
	jsonOutput bool
	verbose    bool
	log        zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "prisk",
		Short: "Regime risk decomposition for published payloads",
		Long: `prisk recomputes portfolio risk decompositions from a published risk
payload under the normal and stress regimes.

Payloads are read from a local file (--file) or resolved through a published
manifest (--manifest).

Examples:
  prisk view --file data/latest.json --regime stress
  prisk view --manifest https://cdn.example.com/risk/manifest.json --set SPY=0.4
  prisk deltas --file data/latest.json --top 10 --json
  prisk publish data/latest.json --url http://localhost:8080/api/publish`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			opts.log = logger.New(logger.Config{
				Level:  level,
				Pretty: true,
				Output: cmd.ErrOrStderr(),
			})
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.file, "file", "", "Path to a payload JSON file")
	flags.StringVar(&opts.manifest, "manifest", os.Getenv("PAYLOAD_MANIFEST_URL"), "URL of a published payload manifest")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Fetch timeout")
	flags.IntVar(&opts.factor, "annualization", formulas.DefaultAnnualizationFactor, "Periods per year used to annualize volatility")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Write JSON instead of tables")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(
		newViewCmd(opts),
		newDeltasCmd(opts),
		newStructureCmd(opts),
		newPublishCmd(opts),
	)

	return cmd
}

// source picks the payload source from the flags. --file wins over --manifest.
func (o *rootOptions) source() (payload.Source, error) {
	switch {
	case o.file != "":
		return payload.NewFileSource(o.file), nil
	case o.manifest != "":
		return payload.NewHTTPSource(o.manifest, o.timeout, o.log), nil
	default:
		return nil, fmt.Errorf("either --file or --manifest is required")
	}
}

// service loads the payload once and returns a risk service over it.
func (o *rootOptions) service(ctx context.Context) (*risk.Service, error) {
	if o.factor <= 0 {
		return nil, fmt.Errorf("--annualization must be positive, got %d", o.factor)
	}

	src, err := o.source()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	store := payload.NewStore(src, nil, nil, o.log)
	if _, err := store.Refresh(ctx); err != nil {
		return nil, err
	}

	return risk.NewService(store, o.factor, risk.DefaultLimits(), nil, o.log), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
