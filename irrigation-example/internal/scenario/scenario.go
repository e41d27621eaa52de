// Package scenario scripts sensor situations for the load generator.
package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type Scenario interface {
	Name() string
	Run(ctx context.Context, client *http.Client, baseURL string) error
}

// Reading mirrors the garden's /reading request. Nil fields are omitted,
// which the server treats as a failed sensor.
type Reading struct {
	Zone           string   `json:"zone"`
	SoilMoisture   *float64 `json:"soil_moisture,omitempty"`
	AirTemperature *float64 `json:"air_temperature,omitempty"`
	SolarRadiation *float64 `json:"solar_radiation,omitempty"`
}

func Full(zone string, soil, temp, sun float64) Reading {
	return Reading{Zone: zone, SoilMoisture: &soil, AirTemperature: &temp, SolarRadiation: &sun}
}

// Post sends one reading and returns the response status code.
func Post(ctx context.Context, client *http.Client, baseURL string, r Reading) (int, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/reading", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Builtin returns the scenarios shipped with the example.
func Builtin(zones []string) []Scenario {
	return []Scenario{
		&HeatWave{Zones: zones},
		&Downpour{Zones: zones},
		&SensorDropout{Zones: zones},
	}
}

// HeatWave drives every zone through rising temperature and full sun while
// the soil dries out.
type HeatWave struct{ Zones []string }

func (s *HeatWave) Name() string { return "heat_wave" }

func (s *HeatWave) Run(ctx context.Context, client *http.Client, baseURL string) error {
	for step := 0; step < 5; step++ {
		for _, z := range s.Zones {
			soil := 30 - float64(step)*6
			temp := 25 + float64(step)*4
			if _, err := Post(ctx, client, baseURL, Full(z, soil, temp, 95)); err != nil {
				return fmt.Errorf("heat wave step %d: %w", step, err)
			}
		}
	}
	return nil
}

// Downpour saturates every zone; the controller should answer with
// near-zero durations.
type Downpour struct{ Zones []string }

func (s *Downpour) Name() string { return "downpour" }

func (s *Downpour) Run(ctx context.Context, client *http.Client, baseURL string) error {
	for _, z := range s.Zones {
		if _, err := Post(ctx, client, baseURL, Full(z, 95, 14, 5)); err != nil {
			return fmt.Errorf("downpour: %w", err)
		}
	}
	return nil
}

// SensorDropout reports readings with the temperature probe missing.
type SensorDropout struct{ Zones []string }

func (s *SensorDropout) Name() string { return "sensor_dropout" }

func (s *SensorDropout) Run(ctx context.Context, client *http.Client, baseURL string) error {
	for _, z := range s.Zones {
		soil, sun := 20.0, 50.0
		code, err := Post(ctx, client, baseURL, Reading{Zone: z, SoilMoisture: &soil, SolarRadiation: &sun})
		if err != nil {
			return fmt.Errorf("sensor dropout: %w", err)
		}
		if code != http.StatusUnprocessableEntity {
			return fmt.Errorf("sensor dropout: expected rejection, got status %d", code)
		}
	}
	return nil
}
