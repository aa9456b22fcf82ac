package store

import (
	"context"
	"errors"
	"fmt"
)

const copyBatchSize = 200

// CopyStats reports what CopyRuns did.
type CopyStats struct {
	Copied  int64
	Skipped int64 // already present in the destination
}

// CopyRuns copies every run from src to dst, typically from a local SQLite file into
// PostgreSQL. Runs whose ID already exists in dst are skipped, so an interrupted copy can be
// rerun. With dryRun set nothing is written and every source run counts as copied.
func CopyRuns(ctx context.Context, dst, src *Store, dryRun bool) (CopyStats, error) {
	var stats CopyStats

	for offset := 0; ; offset += copyBatchSize {
		runs, err := src.ListRuns(ctx, ListOptions{Limit: copyBatchSize, Offset: offset})
		if err != nil {
			return stats, fmt.Errorf("failed to read source runs: %w", err)
		}

		for _, run := range runs {
			if dryRun {
				stats.Copied++
				continue
			}
			err := dst.SaveRun(ctx, run)
			switch {
			case errors.Is(err, ErrDuplicateRun):
				stats.Skipped++
			case err != nil:
				return stats, fmt.Errorf("failed to copy run %s: %w", run.ID, err)
			default:
				stats.Copied++
			}
		}

		if len(runs) < copyBatchSize {
			return stats, nil
		}
	}
}
