package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var notabilityBusinessID string

var notabilityCmd = &cobra.Command{
	Use:   "notability",
	Short: "Run only the notability gate for a business",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		assessment, err := env.Orchestrator.CheckNotability(ctx, notabilityBusinessID)
		if err != nil {
			return eris.Wrap(err, "notability check")
		}

		zap.L().Info("notability check complete",
			zap.String("business_id", notabilityBusinessID),
			zap.Bool("notable", assessment.IsNotable),
			zap.Float64("confidence", assessment.Confidence),
			zap.Int("qualifying_references", assessment.SeriousReferenceCount),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(assessment)
	},
}

func init() {
	notabilityCmd.Flags().StringVar(&notabilityBusinessID, "business", "", "business ID (required)")
	_ = notabilityCmd.MarkFlagRequired("business")
	rootCmd.AddCommand(notabilityCmd)
}
