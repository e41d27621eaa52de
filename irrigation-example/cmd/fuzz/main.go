// Command fuzz drives the garden server with random sensor readings,
// occasionally running a scripted scenario instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chosenoffset/mamdani/irrigation-example/internal/scenario"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseURL string
		zones   []string
		perSec  float64
		count   int
	)

	cmd := &cobra.Command{
		Use:          "garden-fuzz",
		Short:        "Load generator for the irrigation example",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(zones) == 0 {
				return errors.New("at least one zone is required")
			}
			if perSec <= 0 {
				return fmt.Errorf("rate must be positive, got %g", perSec)
			}
			log, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := &http.Client{Timeout: 5 * time.Second}
			limiter := rate.NewLimiter(rate.Limit(perSec), 1)
			return drive(ctx, log, client, limiter, baseURL, zones, count)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "garden server base URL")
	cmd.Flags().StringSliceVar(&zones, "zones", []string{"beds", "lawn", "orchard"}, "zones to report for")
	cmd.Flags().Float64Var(&perSec, "rate", 10, "requests per second")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many iterations (0 = run until interrupted)")
	return cmd
}

// drive posts readings until count iterations have run or ctx is done.
func drive(ctx context.Context, log *zap.Logger, client *http.Client, limiter *rate.Limiter, baseURL string, zones []string, count int) error {
	scenarios := scenario.Builtin(zones)

	for i := 0; count <= 0 || i < count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rate limiter: %w", err)
		}

		if rand.Intn(10) < 8 {
			r := scenario.Full(zones[rand.Intn(len(zones))],
				rand.Float64()*100, rand.Float64()*45, rand.Float64()*100)
			if _, err := scenario.Post(ctx, client, baseURL, r); err != nil {
				log.Warn("reading failed", zap.Error(err))
			}
			continue
		}

		sc := scenarios[rand.Intn(len(scenarios))]
		log.Info("running scenario", zap.String("scenario", sc.Name()))
		if err := sc.Run(ctx, client, baseURL); err != nil {
			log.Warn("scenario failed", zap.String("scenario", sc.Name()), zap.Error(err))
		}
	}
	return nil
}
