// Package main runs the irrigation example application: a garden of zones
// whose sensor readings are turned into watering durations by the fuzzy
// controller, with the inference dashboard attached.
//
// The garden API listens on :8080:
//   - POST /zone: create a zone
//   - GET /zone?id=<zone_id>: zone state
//   - POST /reading: submit a sensor reading and get a watering decision
//   - GET /journal?zone=<zone_id>&limit=<n>: recent decisions
//
// The dashboard (compute API, event stream, /metrics) listens on the
// address from the service configuration, :9090 by default.
//
// Usage:
//
//	go run ./irrigation-example/cmd/server --model ./greenhouse.toml --zones beds,lawn
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chosenoffset/mamdani/irrigation-example/internal/garden"
	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/actions"
	"github.com/chosenoffset/mamdani/pkg/mamdani/config"
	"github.com/chosenoffset/mamdani/pkg/mamdani/dashboard"
	"github.com/chosenoffset/mamdani/pkg/mamdani/metrics"
)

func main() {
	var (
		listen     string
		configPath string
		modelPath  string
		zones      []string
		alertAt    float64
	)

	cmd := &cobra.Command{
		Use:          "garden-server",
		Short:        "Irrigation example application",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer log.Sync()
			return run(cmd.Context(), log, listen, configPath, modelPath, zones, alertAt)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "garden API address")
	cmd.Flags().StringVar(&configPath, "config", "", "dashboard service configuration (TOML)")
	cmd.Flags().StringVar(&modelPath, "model", "", "model file; default is the built-in irrigation model")
	cmd.Flags().StringSliceVar(&zones, "zones", []string{"beds", "lawn", "orchard"}, "zones created at startup")
	cmd.Flags().Float64Var(&alertAt, "alert-at", 10, "alert when a decision is at least this many minutes")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, log *zap.Logger, listen, configPath, modelPath string, zones []string, alertAt float64) error {
	cfg, err := config.LoadService(configPath)
	if err != nil {
		return err
	}
	if modelPath != "" {
		cfg.ModelPath = modelPath
	}
	model := config.DefaultModel()
	if cfg.ModelPath != "" {
		if model, err = config.LoadModel(cfg.ModelPath); err != nil {
			return err
		}
	}

	reg := metrics.NewRegistry()
	inference := metrics.NewInferenceMetrics(reg)
	acts := actions.NewActionRegistry(log)
	acts.RegisterHandler(actions.AlertAction, actions.NewLogHandler(log))
	acts.AddThreshold(actions.Threshold{Variable: "irrigation_duration", Min: alertAt})

	engine, err := model.Build(
		mamdani.WithLogger(log),
		mamdani.WithObserver(mamdani.Observers{inference, acts}),
	)
	if err != nil {
		return err
	}

	dash := dashboard.New(engine, cfg,
		dashboard.WithLogger(log),
		dashboard.WithRegistry(reg),
		dashboard.WithInferenceMetrics(inference))
	dash.Attach(acts)

	g := garden.New(engine, cfg.EventBuffer, log)
	for _, z := range zones {
		z = strings.TrimSpace(z)
		if err := g.AddZone(z, z); err != nil {
			return err
		}
	}

	// Separate prefix so the garden's request metrics do not collide with
	// the dashboard's.
	httpMetrics := metrics.NewHTTPMetrics(prometheus.WrapRegistererWithPrefix("garden_", reg))
	mux := http.NewServeMux()
	mux.HandleFunc("/zone", httpMetrics.Middleware("/zone", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			g.HandleCreateZone(w, r)
			return
		}
		g.HandleGetZone(w, r)
	}))
	mux.HandleFunc("/reading", httpMetrics.Middleware("/reading", g.HandleReading))
	mux.HandleFunc("/journal", httpMetrics.Middleware("/journal", g.HandleJournal))

	server := &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 2)
	go func() { errc <- dash.Start() }()
	go func() {
		log.Info("garden API listening", zap.String("addr", listen), zap.Int("zones", len(zones)))
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errc <- err
	}()

	select {
	case err = <-errc:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	_ = dash.Stop()
	return err
}
