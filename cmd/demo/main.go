package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/actions"
	"github.com/chosenoffset/mamdani/pkg/mamdani/config"
	"github.com/chosenoffset/mamdani/pkg/mamdani/dashboard"
	"github.com/chosenoffset/mamdani/pkg/mamdani/irrigation"
	"github.com/chosenoffset/mamdani/pkg/mamdani/metrics"
)

func main() {
	log, _ := zap.NewDevelopment()
	defer log.Sync()

	fmt.Println("Starting irrigation controller demo...")

	reg := metrics.NewRegistry()
	inference := metrics.NewInferenceMetrics(reg)
	acts := actions.NewActionRegistry(log)
	acts.RegisterHandler(actions.AlertAction, actions.NewLogHandler(log))
	acts.AddThreshold(actions.Threshold{
		Variable: irrigation.Duration,
		Min:      10,
		Message:  "Long watering cycle requested",
	})

	engine, err := irrigation.New(
		mamdani.WithLogger(log),
		mamdani.WithObserver(mamdani.Observers{inference, acts}),
	)
	if err != nil {
		log.Fatal("failed to build engine", zap.Error(err))
	}

	cfg := config.DefaultService()
	srv := dashboard.New(engine, cfg,
		dashboard.WithLogger(log),
		dashboard.WithRegistry(reg),
		dashboard.WithInferenceMetrics(inference))
	srv.Attach(acts)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("dashboard failed", zap.Error(err))
		}
	}()
	defer srv.Stop()

	fmt.Printf("Dashboard available at: http://%s\n", cfg.ListenAddr)
	fmt.Println("API endpoints:")
	fmt.Println("  - POST /api/compute  - Run one inference")
	fmt.Println("  - GET  /api/events   - Recent inferences")
	fmt.Println("  - GET  /api/model    - Active model")
	fmt.Println("  - GET  /ws           - Live event stream")
	fmt.Println("  - GET  /metrics      - Prometheus metrics")
	fmt.Println()
	fmt.Println("Simulating a day of sensor readings...")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	simulate(engine, stop)
}

// simulate walks a compressed day: temperature and light follow the sun,
// soil dries out until a watering cycle refills it.
func simulate(engine *mamdani.Engine, stop <-chan os.Signal) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	soil := 40.0
	for hour := 0.0; ; hour = math.Mod(hour+0.5, 24) {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		daylight := math.Max(0, math.Sin((hour-6)/12*math.Pi))
		r := irrigation.Reading{
			SoilMoisture:   soil,
			AirTemperature: 12 + 18*daylight + rand.Float64()*3,
			SolarRadiation: math.Min(100, 95*daylight+rand.Float64()*5),
		}

		minutes, err := irrigation.Minutes(engine, r)
		if err != nil {
			fmt.Printf("%05.1fh  %v\n", hour, err)
			continue
		}
		fmt.Printf("%05.1fh  soil %5.1f%%  temp %4.1fC  sun %5.1f%%  -> %5.2f min\n",
			hour, r.SoilMoisture, r.AirTemperature, r.SolarRadiation, minutes)

		soil = math.Min(100, soil+minutes*4)
		soil = math.Max(0, soil-1.5-2*daylight)
	}
}
