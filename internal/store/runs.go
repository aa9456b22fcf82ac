package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lawnchairsociety/wfcgen/internal/wfc"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrDuplicateRun = errors.New("run already exists")
)

// Run is a persisted generation run.
type Run struct {
	ID          string
	CreatedAt   time.Time
	SampleName  string
	SampleHash  string
	Rows, Cols  int
	Seed        int64
	Propagation string
	Collapse    string
	Attempts    int
	Steps       int
	Success     bool
	Conflicts   int
	Duration    time.Duration
	Tiles       []string
}

// NewRun builds a Run record from a generation result.
func NewRun(sampleName string, sampleRows []string, cfg *wfc.Config, res *wfc.Result) *Run {
	tiles := make([]string, len(res.Tiles))
	for i, row := range res.Tiles {
		tiles[i] = string(row)
	}
	return &Run{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		SampleName:  sampleName,
		SampleHash:  Fingerprint(sampleRows),
		Rows:        res.Rows,
		Cols:        res.Cols,
		Seed:        res.Seed,
		Propagation: cfg.Propagation.String(),
		Collapse:    cfg.Collapse.String(),
		Attempts:    res.Attempts,
		Steps:       res.Steps,
		Success:     res.Success(),
		Conflicts:   len(res.Conflicts),
		Duration:    res.Duration,
		Tiles:       tiles,
	}
}

// Fingerprint returns a short BLAKE2b digest of sample rows, used to group runs by sample.
func Fingerprint(rows []string) string {
	sum := blake2b.Sum256([]byte(strings.Join(rows, "\n")))
	return hex.EncodeToString(sum[:16])
}

// SaveRun inserts a run. A missing ID is filled with a fresh UUID.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := s.qb.Build(`INSERT INTO runs (
		id, created_at, sample_name, sample_hash, grid_rows, grid_cols, seed,
		propagation, collapse, attempts, steps, success, conflicts, duration_ms, tiles
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.CreatedAt.UnixMilli(), run.SampleName, run.SampleHash,
		run.Rows, run.Cols, run.Seed, run.Propagation, run.Collapse,
		run.Attempts, run.Steps, run.Success, run.Conflicts,
		run.Duration.Milliseconds(), strings.Join(run.Tiles, "\n"),
	)
	if err != nil {
		if s.dialect.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
		}
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const runColumns = `id, created_at, sample_name, sample_hash, grid_rows, grid_cols, seed,
	propagation, collapse, attempts, steps, success, conflicts, duration_ms, tiles`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		createdAt  int64
		durationMS int64
		tiles      string
	)
	err := row.Scan(
		&run.ID, &createdAt, &run.SampleName, &run.SampleHash,
		&run.Rows, &run.Cols, &run.Seed, &run.Propagation, &run.Collapse,
		&run.Attempts, &run.Steps, &run.Success, &run.Conflicts,
		&durationMS, &tiles,
	)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if tiles != "" {
		run.Tiles = strings.Split(tiles, "\n")
	}
	return &run, nil
}

// GetRun loads a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	query := s.qb.Build("SELECT " + runColumns + " FROM runs WHERE id = ?")

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return run, nil
}

// ListOptions filters ListRuns.
type ListOptions struct {
	SampleHash string // only runs of this sample, if set
	Limit      int    // 0 means DefaultListLimit
	Offset     int
}

const DefaultListLimit = 50

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]*Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var (
		where string
		args  []any
	)
	if opts.SampleHash != "" {
		where = " WHERE sample_hash = ?"
		args = append(args, opts.SampleHash)
	}
	args = append(args, limit, opts.Offset)

	query := s.qb.Build("SELECT " + runColumns + " FROM runs" + where +
		" ORDER BY created_at DESC, id LIMIT ? OFFSET ?")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountRuns returns the total number of stored runs.
func (s *Store) CountRuns(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}
