package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/config"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		rules  []string
		format string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a model file and optional extra rules",
		Long: `Builds the model exactly as compute and serve would and reports its
variables and rules. Extra rules given with --rule are resolved against the
model without being added to it.

Examples:
  irrigate validate --model greenhouse.yaml
  irrigate validate --rule "when soil_moisture.dry { irrigation_duration.long }"
  irrigate validate --print yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.buildEngine()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if format != "" {
				raw, err := config.FromEngine(engine).Encode(config.Format(format))
				if err != nil {
					return err
				}
				_, err = out.Write(raw)
				return err
			}

			for _, v := range engine.Variables() {
				u := v.Universe()
				fmt.Fprintf(out, "%-11s %-24s [%g, %g] step %g, %d sets\n",
					v.Role(), v.Name(), u.Min, u.Max, u.Step, len(v.Sets()))
			}
			fmt.Fprintf(out, "%d rules, required inputs %v\n", len(engine.Rules()), engine.RequiredInputs())

			for i, source := range rules {
				spec, err := mamdani.ParseRule(fmt.Sprintf("extra_%d", i+1), source)
				if err != nil {
					return err
				}
				rule, err := engine.CompileRule(spec)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "ok %s: %s (%d nodes)\n", rule.Name(), spec, rule.Complexity())
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&rules, "rule", "r", nil, "rule source to check against the model (repeatable)")
	cmd.Flags().StringVar(&format, "print", "", "print the normalised model as toml or yaml instead of a summary")
	return cmd
}
