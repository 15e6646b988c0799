package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var publishBusinessID string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Gate on notability and publish the entity for a business",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		outcome, err := env.Orchestrator.Publish(ctx, publishBusinessID)
		if err != nil {
			return eris.Wrap(err, "publish")
		}

		fields := []zap.Field{
			zap.String("business_id", outcome.BusinessID),
			zap.String("status", string(outcome.Status)),
		}
		if outcome.Publish != nil {
			fields = append(fields, zap.String("qid", outcome.Publish.QID))
		}
		zap.L().Info("publish complete", fields...)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishBusinessID, "business", "", "business ID (required)")
	_ = publishCmd.MarkFlagRequired("business")
	rootCmd.AddCommand(publishCmd)
}
