package wfc

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// batchSeedStride separates the seed ranges of batch members from each other's attempts
const batchSeedStride = 1_000_000

// GenerateBatch runs n independent generations with at most parallel running at once.
// Each grid stays single-threaded; only whole grids run concurrently. Member i uses
// config.Seed + i*1_000_000 as its base seed. Results are returned in member order; the
// first error cancels members that have not started.
func GenerateBatch(ctx context.Context, model *Model, config *Config, n, parallel int, logger *slog.Logger) ([]*Result, error) {
	if n <= 0 {
		return nil, nil
	}
	if parallel < 1 {
		parallel = 1
	}

	results := make([]*Result, n)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)

	for i := 0; i < n; i++ {
		member := *config
		member.Seed = config.Seed + int64(i)*batchSeedStride
		member.SeedTiles = append([]SeedTile(nil), config.SeedTiles...)

		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			gen := NewGenerator(model, &member)
			gen.SetLogger(logger)
			res, err := gen.Generate(egCtx)
			results[i] = res
			return err
		})
	}

	err := eg.Wait()
	return results, err
}
