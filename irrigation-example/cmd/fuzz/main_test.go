package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chosenoffset/mamdani/irrigation-example/internal/garden"
	"github.com/chosenoffset/mamdani/pkg/mamdani/irrigation"
)

func TestRejectsNonPositiveRate(t *testing.T) {
	for _, r := range []string{"0", "-2"} {
		t.Run(r, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs([]string{"--rate", r, "--count", "1"})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "rate must be positive")
		})
	}
}

func TestDriveSurfacesLimiterErrors(t *testing.T) {
	limiter := rate.NewLimiter(0, 0)
	err := drive(context.Background(), zap.NewNop(), http.DefaultClient, limiter, "http://127.0.0.1:0", []string{"beds"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestDriveStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	limiter := rate.NewLimiter(1, 1)
	assert.NoError(t, drive(ctx, zap.NewNop(), http.DefaultClient, limiter, "http://127.0.0.1:0", []string{"beds"}, 0))
}

func TestDrivePostsReadings(t *testing.T) {
	engine, err := irrigation.New()
	require.NoError(t, err)
	g := garden.New(engine, 500, nil)
	zones := []string{"beds", "lawn"}
	for _, z := range zones {
		require.NoError(t, g.AddZone(z, z))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/reading", g.HandleReading)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	limiter := rate.NewLimiter(rate.Inf, 1)
	require.NoError(t, drive(context.Background(), zap.NewNop(), ts.Client(), limiter, ts.URL, zones, 10))
	assert.GreaterOrEqual(t, len(g.Journal("", 500)), 10)
}
