package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mentionlab/visibility-engine/internal/pipeline"
)

var (
	runBusinessID string
	runForce      bool
	runPublish    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline for a single business",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		outcome, err := env.Orchestrator.Run(ctx, runBusinessID, pipeline.RunOptions{
			Caller:        "cli",
			Force:         runForce,
			ManualPublish: runPublish,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		fields := []zap.Field{
			zap.String("business_id", outcome.BusinessID),
			zap.String("status", string(outcome.Status)),
		}
		if outcome.Analysis != nil {
			fields = append(fields, zap.Int("score", outcome.Analysis.VisibilityScore))
		}
		zap.L().Info("pipeline complete", fields...)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	},
}

func init() {
	runCmd.Flags().StringVar(&runBusinessID, "business", "", "business ID (required)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "bypass the idempotency cache")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "request the publish stage even without auto-publish")
	_ = runCmd.MarkFlagRequired("business")
	rootCmd.AddCommand(runCmd)
}
