// Command irrigate runs the irrigation fuzzy controller: single readings,
// CSV batches, model validation and the HTTP dashboard.
//
// Usage:
//
//	irrigate compute --input soil_moisture=5,air_temperature=15,solar_radiation=30
//	irrigate batch --in readings.csv --out durations.csv
//	irrigate validate --model greenhouse.yaml
//	irrigate serve --config service.toml
//	irrigate demo
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/actions"
	"github.com/chosenoffset/mamdani/pkg/mamdani/config"
	"github.com/chosenoffset/mamdani/pkg/mamdani/metrics"
)

// app holds what every subcommand shares once the persistent flags are parsed.
type app struct {
	modelPath  string
	configPath string
	verbose    bool

	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "irrigate",
		Short:        "Fuzzy irrigation duration controller",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.log = initLogger(a.verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&a.modelPath, "model", "m", "", "model file (.toml, .yaml); default is the built-in irrigation model")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "service configuration file (TOML)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newComputeCmd(a),
		newBatchCmd(a),
		newValidateCmd(a),
		newServeCmd(a),
		newDemoCmd(a),
	)
	return root
}

func initLogger(verbose bool) *zap.Logger {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.OutputPaths = []string{"stderr"}
	c.EncoderConfig.EncodeCaller = func(
		caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		p := caller.TrimmedPath()
		if len(p) > 30 {
			p = "..." + p[len(p)-27:]
		}
		enc.AppendString(fmt.Sprintf("%30s", p))
	}
	if !verbose {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	log, err := c.Build()
	if err != nil {
		panic(err)
	}
	return log
}

func (a *app) loadModel() (*config.Model, error) {
	if a.modelPath == "" {
		return config.DefaultModel(), nil
	}
	return config.LoadModel(a.modelPath)
}

// buildEngine loads the model and builds an engine with no observers.
func (a *app) buildEngine() (*mamdani.Engine, error) {
	m, err := a.loadModel()
	if err != nil {
		return nil, err
	}
	return m.Build(mamdani.WithLogger(a.log))
}

// stack is an engine wired to metrics and action handlers.
type stack struct {
	engine    *mamdani.Engine
	registry  *prometheus.Registry
	inference *metrics.InferenceMetrics
	actions   *actions.ActionRegistry
}

func (a *app) buildStack(modelPath string) (*stack, error) {
	var (
		m   *config.Model
		err error
	)
	if modelPath == "" {
		m = config.DefaultModel()
	} else if m, err = config.LoadModel(modelPath); err != nil {
		return nil, err
	}

	s := &stack{
		registry: metrics.NewRegistry(),
		actions:  actions.NewActionRegistry(a.log),
	}
	s.inference = metrics.NewInferenceMetrics(s.registry)
	s.actions.RegisterHandler(actions.AlertAction, actions.NewLogHandler(a.log))

	s.engine, err = m.Build(
		mamdani.WithLogger(a.log),
		mamdani.WithObserver(mamdani.Observers{s.inference, s.actions}),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
