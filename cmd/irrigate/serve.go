package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chosenoffset/mamdani/pkg/mamdani/config"
	"github.com/chosenoffset/mamdani/pkg/mamdani/dashboard"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compute API, event stream and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadService(a.configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.ListenAddr = listen
			}
			if a.modelPath != "" {
				cfg.ModelPath = a.modelPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			st, err := a.buildStack(cfg.ModelPath)
			if err != nil {
				return err
			}
			srv := dashboard.New(st.engine, cfg,
				dashboard.WithLogger(a.log),
				dashboard.WithRegistry(st.registry),
				dashboard.WithInferenceMetrics(st.inference))
			srv.Attach(st.actions)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			select {
			case err := <-errc:
				_ = srv.Stop()
				return err
			case <-ctx.Done():
				a.log.Info("shutting down", zap.Error(context.Cause(ctx)))
				if err := srv.Stop(); err != nil {
					return err
				}
				return <-errc
			}
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "override the listen address")
	return cmd
}
