package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/condo-ledger/engine/ingest"
)

func newIndexCmd(a *app) *cobra.Command {
	var (
		dir, csvPath, export string
		reset                bool
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Extract reports and rebuild the expense index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" && csvPath == "" {
				dir = a.cfg.Ingest.DataDir
			}
			st, err := a.stack()
			if err != nil {
				return err
			}
			defer st.Close()

			rep, err := st.Indexer.Run(cmd.Context(), ingest.Request{
				Dir:     dir,
				CSV:     csvPath,
				Reset:   reset,
				Trigger: ingest.TriggerManual,
			})
			printReport(a, rep)
			if err != nil {
				return err
			}

			if export != "" {
				f, err := os.Create(export)
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				defer f.Close()
				if err := ingest.WriteCSV(f, rep.Records); err != nil {
					return fmt.Errorf("export: %w", err)
				}
				fmt.Fprintf(a.out, "  Exported: %s\n", export)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of PDF reports (default DATA_DIR)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "index a CSV snapshot instead of PDFs")
	cmd.Flags().BoolVar(&reset, "reset", false, "drop the index before loading")
	cmd.Flags().StringVar(&export, "export", "", "write the extracted expenses to a CSV file")
	return cmd
}

func printReport(a *app, rep ingest.Report) {
	fmt.Fprintf(a.out, "Indexed in %s\n", rep.Duration.Round(time.Millisecond))
	fmt.Fprintf(a.out, "  Documents: %d read, %d failed\n", rep.Documents, len(rep.FailedDocuments))
	if len(rep.FailedDocuments) > 0 {
		fmt.Fprintf(a.out, "  Failed:    %s\n", strings.Join(rep.FailedDocuments, ", "))
	}
	fmt.Fprintf(a.out, "  Expenses:  %d valid, %d invalid\n", rep.Expenses, rep.Invalid)
	fmt.Fprintf(a.out, "  Chunks:    %d built, %d indexed, %d skipped\n", rep.Chunks, rep.Index.Indexed, rep.Index.Skipped)
}
