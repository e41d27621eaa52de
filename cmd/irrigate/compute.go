package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
)

func newComputeCmd(a *app) *cobra.Command {
	var (
		inputs map[string]string
		trace  bool
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute outputs for one set of inputs",
		Long: `Runs one inference and prints every consequent output.

Examples:
  irrigate compute --input soil_moisture=5,air_temperature=15,solar_radiation=30
  irrigate compute -i soil_moisture=90 --trace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.buildEngine()
			if err != nil {
				return err
			}
			values, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			ic, err := engine.Infer(values)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if trace {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ic)
			}
			for _, v := range engine.Consequents() {
				fmt.Fprintf(out, "%s = %.4f\n", v.Name(), ic.Outputs[v.Name()])
			}
			return nil
		},
	}
	cmd.Flags().StringToStringVarP(&inputs, "input", "i", nil, "input values as name=value pairs")
	cmd.Flags().BoolVar(&trace, "trace", false, "print the full inference trace as JSON")
	return cmd
}

func parseInputs(raw map[string]string) (mamdani.Values, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(mamdani.Values, len(raw))
	for _, name := range names {
		x, err := strconv.ParseFloat(raw[name], 64)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", name, err)
		}
		values[mamdani.VariableName(name)] = x
	}
	return values, nil
}
