package bonus

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ComputeAll computes every person concurrently and returns the breakdowns
// in input order. workers <= 0 means no limit. The first failure cancels
// the remaining work.
func ComputeAll(ctx context.Context, persons []Person, params Parameters, workers int) ([]Breakdown, error) {
	out := make([]Breakdown, len(persons))

	g, gCtx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i := range persons {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			b, err := Compute(persons[i], params)
			if err != nil {
				return fmt.Errorf("compute %s: %w", persons[i].ID, err)
			}
			out[i] = b
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
