package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/mentionlab/visibility-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP trigger and status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := server.New(env.Orchestrator, env.Store, cfg.Server.Port)
		if err := srv.Start(ctx); err != nil {
			return eris.Wrap(err, "serve")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
