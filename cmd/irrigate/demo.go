package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/irrigation"
)

var demoReadings = []struct {
	name    string
	reading irrigation.Reading
}{
	{"dry, cold, dark", irrigation.Reading{SoilMoisture: 5, AirTemperature: 15, SolarRadiation: 30}},
	{"wet", irrigation.Reading{SoilMoisture: 90, AirTemperature: 15, SolarRadiation: 30}},
	{"borderline", irrigation.Reading{SoilMoisture: 22.5, AirTemperature: 20, SolarRadiation: 65}},
	{"optimal, hot, dark", irrigation.Reading{SoilMoisture: 25, AirTemperature: 30, SolarRadiation: 10}},
	{"dry, medium, bright", irrigation.Reading{SoilMoisture: 10, AirTemperature: 20, SolarRadiation: 90}},
}

func newDemoCmd(a *app) *cobra.Command {
	var step float64

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Print durations for sample readings and a soil moisture sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if step <= 0 {
				return fmt.Errorf("step must be positive, got %g", step)
			}
			engine, err := irrigation.New(mamdani.WithLogger(a.log))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "READING\tSOIL\tTEMP\tSUN\tMINUTES\tSTRONGEST RULE")
			for _, d := range demoReadings {
				ic, err := engine.Infer(d.reading.Values())
				if err != nil {
					return fmt.Errorf("%s: %w", d.name, err)
				}
				fmt.Fprintf(tw, "%s\t%g\t%g\t%g\t%.2f\t%s\n",
					d.name, d.reading.SoilMoisture, d.reading.AirTemperature, d.reading.SolarRadiation,
					ic.Outputs[irrigation.Duration], strongest(ic))
			}
			fmt.Fprintln(tw)

			fmt.Fprintln(tw, "SOIL\tMINUTES (temp 20, sun 50)")
			for soil := 0.0; soil <= 100; soil += step {
				minutes, err := irrigation.Minutes(engine, irrigation.Reading{SoilMoisture: soil, AirTemperature: 20, SolarRadiation: 50})
				if err != nil {
					fmt.Fprintf(tw, "%g\t%v\n", soil, err)
					continue
				}
				fmt.Fprintf(tw, "%g\t%.2f\n", soil, minutes)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64Var(&step, "step", 10, "soil moisture step for the sweep")
	return cmd
}

func strongest(ic *mamdani.InferenceContext) string {
	best := mamdani.RuleFiring{}
	for _, f := range ic.Firings {
		if f.Strength > best.Strength {
			best = f
		}
	}
	if best.Rule == "" {
		return "-"
	}
	return fmt.Sprintf("%s (%.2f)", best.Rule, best.Strength)
}
