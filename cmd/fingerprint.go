package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fingerprintBusinessID string
	fingerprintForce      bool
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Run only the visibility analysis against stored crawl data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		analysis, err := env.Orchestrator.Fingerprint(ctx, fingerprintBusinessID, fingerprintForce)
		if err != nil {
			return eris.Wrap(err, "fingerprint")
		}

		trend, err := env.Orchestrator.Trend(ctx, fingerprintBusinessID)
		if err != nil {
			return eris.Wrap(err, "compute trend")
		}

		zap.L().Info("fingerprint complete",
			zap.String("business_id", analysis.BusinessID),
			zap.Int("score", analysis.VisibilityScore),
			zap.String("trend", string(trend)),
			zap.Float64("estimated_cost", analysis.EstimatedCost),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	},
}

func init() {
	fingerprintCmd.Flags().StringVar(&fingerprintBusinessID, "business", "", "business ID (required)")
	fingerprintCmd.Flags().BoolVar(&fingerprintForce, "force", false, "bypass the idempotency cache")
	_ = fingerprintCmd.MarkFlagRequired("business")
	rootCmd.AddCommand(fingerprintCmd)
}
