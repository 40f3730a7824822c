package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"derjachat/internal/config"
	"derjachat/internal/dialect"

	"github.com/spf13/cobra"
)

// DialectCommands returns the normalize, drift and rules commands
func DialectCommands(cfg *config.Config) []*cobra.Command {
	return []*cobra.Command{
		normalizeCmd(dialect.DefaultEngine()),
		driftCmd(dialect.NewDetector(dialect.Thresholds{
			LatinRatio:     cfg.Dialect.LatinRatio,
			MinScriptChars: cfg.Dialect.MinScriptChars,
			MinLatinChars:  cfg.Dialect.MinLatinChars,
		})),
		rulesCmd(dialect.DefaultEngine()),
	}
}

func normalizeCmd(engine *dialect.Engine) *cobra.Command {
	var report bool

	cmd := &cobra.Command{
		Use:   "normalize [text]",
		Short: "Rewrite formal Arabic phrasing into the dialect",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			out, matches := engine.ApplyWithReport(text)
			if !report {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), out)
				return err
			}
			return printJSON(cmd, struct {
				Text    string          `json:"text"`
				Matches []dialect.Match `json:"matches"`
			}{Text: out, Matches: matches})
		},
	}

	cmd.Flags().BoolVar(&report, "report", false, "print the replacements made as JSON")
	return cmd
}

func driftCmd(detector *dialect.Detector) *cobra.Command {
	return &cobra.Command{
		Use:   "drift [text]",
		Short: "Check whether a reply drifted out of the dialect",
		Long: `Count Arabic and Latin letters and foreign connector words in a
reply and report whether it would be sent back for a dialect rewrite.
Exits non-zero when the text drifted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			report := detector.Detect(text)
			th := detector.Thresholds()
			if err := printJSON(cmd, struct {
				dialect.Report
				Thresholds dialect.Thresholds `json:"thresholds"`
			}{Report: report, Thresholds: th}); err != nil {
				return err
			}
			if report.Drifted {
				return fmt.Errorf("drift detected: %s", report.Reason)
			}
			return nil
		},
	}
}

func rulesCmd(engine *dialect.Engine) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the dialect rule table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RULE\tTARGETS\tPATTERNS")
			for _, rule := range engine.Rules() {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					rule.Name,
					strings.Join(rule.Targets(), " | "),
					strings.Join(rule.Patterns, ", "),
				)
			}
			return w.Flush()
		},
	}
}
