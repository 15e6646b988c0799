package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mentionlab/visibility-engine/internal/pipeline"
)

var (
	batchSize        int
	batchCatchMissed bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process all due businesses with a bounded worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		size := batchSize
		if size <= 0 {
			size = cfg.Batch.BatchSize
		}
		catchMissed := batchCatchMissed || cfg.Batch.CatchMissed

		result, err := env.Orchestrator.ProcessDue(ctx, pipeline.BatchOptions{
			BatchSize:   size,
			CatchMissed: catchMissed,
		})
		if err != nil {
			return eris.Wrap(err, "batch")
		}

		zap.L().Info("batch finished",
			zap.Int("processed", result.Processed),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchSize, "batch-size", 0, "concurrent businesses (defaults to config)")
	batchCmd.Flags().BoolVar(&batchCatchMissed, "catch-missed", false, "include businesses whose scheduled window was missed")
	rootCmd.AddCommand(batchCmd)
}
