package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		in          string
		out         string
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Compute outputs for every row of a CSV file",
		Long: `Reads a CSV file whose header names antecedent variables and writes the
same rows with one extra column per consequent. Empty cells are treated as
missing inputs.

Examples:
  irrigate batch --in readings.csv --out durations.csv
  cat readings.csv | irrigate batch -p 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.buildEngine()
			if err != nil {
				return err
			}

			r := cmd.InOrStdin()
			if in != "" && in != "-" {
				f, err := os.Open(in)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			runID := uuid.NewString()
			a.log.Debug("batch started", zap.String("run", runID), zap.Int("parallelism", parallelism))
			n, err := runBatch(cmd, engine, r, w, parallelism)
			if err != nil {
				return err
			}
			a.log.Info("batch finished", zap.String("run", runID), zap.Int("rows", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input CSV file (default stdin)")
	cmd.Flags().StringVar(&out, "out", "", "output CSV file (default stdout)")
	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 0, "concurrent inferences (0 = GOMAXPROCS)")
	return cmd
}

func runBatch(cmd *cobra.Command, engine *mamdani.Engine, r io.Reader, w io.Writer, parallelism int) (int, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("CSV input has no header row")
	}

	header := records[0]
	rows := make([]mamdani.Values, 0, len(records)-1)
	for i, rec := range records[1:] {
		values := make(mamdani.Values, len(header))
		for j, cell := range rec {
			if cell == "" {
				continue
			}
			x, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return 0, fmt.Errorf("line %d, column %s: %w", i+2, header[j], err)
			}
			values[mamdani.VariableName(header[j])] = x
		}
		rows = append(rows, values)
	}

	outputs, err := engine.ComputeBatch(cmd.Context(), rows, parallelism)
	if err != nil {
		return 0, locateBatchError(err)
	}

	consequents := engine.Consequents()
	cw := csv.NewWriter(w)
	outHeader := append([]string{}, header...)
	for _, v := range consequents {
		outHeader = append(outHeader, string(v.Name()))
	}
	if err := cw.Write(outHeader); err != nil {
		return 0, err
	}
	for i, rec := range records[1:] {
		line := append([]string{}, rec...)
		for _, v := range consequents {
			line = append(line, strconv.FormatFloat(outputs[i][v.Name()], 'f', 4, 64))
		}
		if err := cw.Write(line); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(rows), cw.Error()
}

// locateBatchError points a failed row at its CSV line, and at the column
// when an input was missing.
func locateBatchError(err error) error {
	var berr *mamdani.BatchError
	if !errors.As(err, &berr) {
		return err
	}
	var missing *mamdani.MissingInputError
	if errors.As(berr.Err, &missing) {
		return fmt.Errorf("line %d, column %s: %w", berr.Row+2, missing.Variable, err)
	}
	return fmt.Errorf("line %d: %w", berr.Row+2, err)
}
