package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ochairo/virsorter-runner/internal/domain/services"
)

func newRenderCmd(_ *app) *cobra.Command {
	var output, title string
	var timestamp bool

	cmd := &cobra.Command{
		Use:   "render <VIRSorter_global-phage-signal.csv>",
		Short: "Render an existing VirSorter summary as HTML",
		Long: `Parses a VirSorter global phage signal table and writes the HTML report
without running the tool or publishing anything.

Example:
  virsorter-runner render virsorter-out/VIRSorter_global-phage-signal.csv -o index.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := services.NewSummaryParser().ParseFile(args[0])
			if err != nil {
				return err
			}

			opts := services.RenderOptions{Title: title}
			if timestamp {
				opts.GeneratedAt = time.Now()
			}
			html, err := services.NewReportRenderer().Render(records, opts)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), html)
				return err
			}
			if err := os.WriteFile(output, []byte(html), 0600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rendered %d contigs to %s\n", len(records), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&title, "title", services.DefaultReportTitle, "Report title")
	cmd.Flags().BoolVar(&timestamp, "timestamp", false, "Stamp the report with the current time")
	return cmd
}
