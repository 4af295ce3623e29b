package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadflow/internal/enrich"
)

var bulkEnrichCmd = &cobra.Command{
	Use:   "bulk-enrich",
	Short: "Enrich every contact missing an email, one at a time",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "bulk")
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Bulk.Run(ctx)
		if err != nil {
			return err
		}
		return printReport(report)
	},
}

func printReport(report *enrich.BulkReport) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func init() {
	rootCmd.AddCommand(bulkEnrichCmd)
}
