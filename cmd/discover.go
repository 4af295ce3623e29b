package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadflow/internal/leadgen"
)

var (
	discoverSegment string
	discoverCap     int
	discoverNoWait  bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run one lead discovery pass, streaming NDJSON to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "discover")
		if err != nil {
			return err
		}
		defer env.Close()

		limit := discoverCap
		if limit <= 0 {
			limit = cfg.Discovery.DefaultCap
		}
		if limit > cfg.Discovery.MaxCap {
			limit = cfg.Discovery.MaxCap
		}

		enc := json.NewEncoder(os.Stdout)
		if err := env.Importer.Run(ctx, discoverSegment, limit, func(ev any) error {
			return enc.Encode(ev)
		}); err != nil {
			return err
		}

		// Accepted leads enrich in the background; by default the
		// command waits so a one-shot run leaves nothing half done.
		if !discoverNoWait {
			env.Supervisor.Wait()
		}
		return nil
	},
}

var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "List configured discovery segments",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := leadgen.DefaultCatalog()
		if cfg.Discovery.SegmentsPath != "" {
			var err error
			catalog, err = leadgen.LoadCatalog(cfg.Discovery.SegmentsPath)
			if err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		for _, key := range catalog.Keys() {
			seg, err := catalog.Get(key)
			if err != nil {
				continue
			}
			if err := enc.Encode(map[string]any{
				"key":        key,
				"label":      seg.Label,
				"variations": len(seg.Queries),
			}); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverSegment, "segment", "", "segment key to discover leads for (required)")
	discoverCmd.Flags().IntVar(&discoverCap, "cap", 0, "max candidates for this run (default from config)")
	discoverCmd.Flags().BoolVar(&discoverNoWait, "no-wait", false, "exit without waiting for background enrichment")
	_ = discoverCmd.MarkFlagRequired("segment")
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(segmentsCmd)
}
