// Command vitalsctl scores and classifies Core Web Vitals values offline.
//
//	vitalsctl score --lcp 2.1 --fid 80 --cls 0.12
//	vitalsctl classify lcp 3.2
//	vitalsctl suggestions --metric cls
//	vitalsctl thresholds
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	json    bool
	noColor bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "vitalsctl",
		Short:        "Score and classify Core Web Vitals without a running server",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON instead of text")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable ANSI colours")

	root.AddCommand(
		newScoreCmd(opts),
		newClassifyCmd(opts),
		newSuggestionsCmd(opts),
		newThresholdsCmd(opts),
	)
	return root
}

func newScoreCmd(opts *options) *cobra.Command {
	var lcp, fid, cls float64
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the aggregate score of one sample",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := vitals.Sample{LCP: lcp, FID: fid, CLS: cls}
			for _, m := range vitals.Metrics {
				if err := checkValue(s.Value(m)); err != nil {
					return fmt.Errorf("--%s: %w", m, err)
				}
			}
			out := cmd.OutOrStdout()
			rep := buildScoreReport(s)
			if opts.json {
				return writeJSON(out, rep)
			}
			p := newPrinter(out, opts.noColor)
			p.score(rep)
			return nil
		},
	}
	cmd.Flags().Float64Var(&lcp, "lcp", 0, "largest contentful paint in seconds")
	cmd.Flags().Float64Var(&fid, "fid", 0, "first input delay in milliseconds")
	cmd.Flags().Float64Var(&cls, "cls", 0, "cumulative layout shift")
	for _, name := range []string{"lcp", "fid", "cls"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newClassifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <metric> <value>",
		Short: "Classify a single metric value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := vitals.ParseMetric(args[0])
			if err != nil {
				return err
			}
			v, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("value %q: %w", args[1], err)
			}
			if err := checkValue(v); err != nil {
				return err
			}
			row := buildMetricRow(m, v)
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, row)
			}
			newPrinter(out, opts.noColor).classification(row)
			return nil
		},
	}
}

func newSuggestionsCmd(opts *options) *cobra.Command {
	var metric string
	cmd := &cobra.Command{
		Use:   "suggestions",
		Short: "List optimisation suggestions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := vitals.Catalog()
			if metric != "" {
				m, err := vitals.ParseMetric(metric)
				if err != nil {
					return err
				}
				list = filterSuggestions(list, m)
			}
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, list)
			}
			newPrinter(out, opts.noColor).suggestions(list)
			return nil
		},
	}
	cmd.Flags().StringVar(&metric, "metric", "", "only show suggestions for lcp, fid or cls")
	return cmd
}

func newThresholdsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds",
		Short: "Print the default classification thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, vitals.DefaultThresholds)
			}
			newPrinter(out, opts.noColor).thresholds(vitals.DefaultThresholds)
			return nil
		},
	}
}

func checkValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("value must be a finite non-negative number, got %v", v)
	}
	return nil
}

func filterSuggestions(in []vitals.Suggestion, m vitals.Metric) []vitals.Suggestion {
	out := in[:0]
	for _, s := range in {
		if s.Metric == m {
			out = append(out, s)
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// isTerminal reports whether w is a character device, so ANSI codes are
// only emitted for interactive output.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
