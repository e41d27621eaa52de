package mamdani

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BatchError reports which row of a batch failed.
type BatchError struct {
	Row int
	Err error
}

func (e *BatchError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e *BatchError) Unwrap() error { return e.Err }

// ComputeBatch computes every row with at most parallelism concurrent
// inferences (GOMAXPROCS when parallelism <= 0). The first failing row
// cancels the rest and is returned as a *BatchError.
func (e *Engine) ComputeBatch(ctx context.Context, rows []Values, parallelism int) ([]Values, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	results := make([]Values, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, row := range rows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := e.Compute(row)
			if err != nil {
				return &BatchError{Row: i, Err: err}
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
