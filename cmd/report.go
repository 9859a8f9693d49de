package cmd

import (
	"fmt"
	"io"

	"github.com/KaramelBytes/aicfo/internal/advisor"
	"github.com/KaramelBytes/aicfo/internal/analysis"
	"github.com/KaramelBytes/aicfo/internal/dashboard"
	"github.com/spf13/cobra"
)

var (
	reportDataFile  string
	reportRecommend bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the data table and KPIs, optionally with an AI recommendation",
	Example: `  aicfo report
  aicfo report --data q3.csv --recommend`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfig(); err != nil {
			return err
		}
		path := cfg.DataFile
		if reportDataFile != "" {
			path = reportDataFile
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n\n", dashboard.Title)

		tbl, err := analysis.LoadTable(path)
		if err != nil {
			fmt.Fprintf(out, "%s could not be loaded.\n", path)
			return err
		}
		fmt.Fprintf(out, "Financial data\n%s\n\n", tbl.String())

		k, err := analysis.ComputeKPIs(tbl)
		if err != nil {
			return fmt.Errorf("compute kpis: %w", err)
		}
		fmt.Fprintf(out, "Avg. monthly profit: %s\n", k.AvgProfitText())
		fmt.Fprintf(out, "Cash (start):        %s\n", k.StartingCashText())
		fmt.Fprintf(out, "Runway (months):     %s\n", k.RunwayText())

		if !reportRecommend {
			return nil
		}
		fmt.Fprintln(out)
		printRecommendation(out, newAdvisor(cfg, logger).Recommend(cmd.Context(), tbl, k))
		return nil
	},
}

func printRecommendation(out io.Writer, rec *advisor.Recommendation) {
	switch rec.Outcome {
	case advisor.OutcomeSuccess:
		fmt.Fprintf(out, "✓ Analysis complete\n\n%s\n", rec.Narrative)
	case advisor.OutcomeNoKey:
		fmt.Fprintf(out, "✗ %s\n", rec.ErrorText())
	default:
		fmt.Fprintln(out, "⚠ AI currently unavailable, showing the demo fallback.")
		fmt.Fprintf(out, "\nTechnical error (debug)\n%s\n", rec.ErrorText())
		fmt.Fprintf(out, "\nDemo recommendation (fallback)\n%s", rec.Fallback)
	}
}

func init() {
	reportCmd.Flags().StringVar(&reportDataFile, "data", "", "data file (overrides data_file)")
	reportCmd.Flags().BoolVar(&reportRecommend, "recommend", false, "request an AI recommendation")
	rootCmd.AddCommand(reportCmd)
}
