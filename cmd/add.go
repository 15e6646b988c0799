package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mentionlab/visibility-engine/internal/model"
)

var (
	addName        string
	addURL         string
	addCategory    string
	addCity        string
	addState       string
	addCountry     string
	addAutoPublish bool
	addSchedule    bool
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a business for tracking",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		b := &model.Business{
			ID:          uuid.NewString(),
			Name:        addName,
			URL:         addURL,
			Category:    addCategory,
			City:        addCity,
			State:       addState,
			Country:     addCountry,
			AutoPublish: addAutoPublish,
		}
		if err := st.CreateBusiness(ctx, b); err != nil {
			return eris.Wrap(err, "create business")
		}

		if addSchedule {
			if err := st.SetNextRunAt(ctx, b.ID, time.Now().UTC()); err != nil {
				return eris.Wrap(err, "schedule business")
			}
		}

		zap.L().Info("business registered",
			zap.String("business_id", b.ID),
			zap.String("name", b.Name),
			zap.Bool("auto_publish", b.AutoPublish),
		)
		cmd.Println(b.ID)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addName, "name", "", "business name (required)")
	addCmd.Flags().StringVar(&addURL, "url", "", "business website URL (required)")
	addCmd.Flags().StringVar(&addCategory, "category", "", "business category")
	addCmd.Flags().StringVar(&addCity, "city", "", "city")
	addCmd.Flags().StringVar(&addState, "state", "", "state")
	addCmd.Flags().StringVar(&addCountry, "country", "", "country")
	addCmd.Flags().BoolVar(&addAutoPublish, "auto-publish", false, "publish automatically when notable")
	addCmd.Flags().BoolVar(&addSchedule, "schedule", false, "make the business due for the next batch pass")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(addCmd)
}
