package wfc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("wfcgen.wfc")

// Config contains parameters for a full generation run
type Config struct {
	Rows, Cols  int
	Seed        int64          // Base seed; attempt n uses Seed + n*1000
	Propagation Propagation    // Single-hop or fixpoint
	Collapse    CollapsePolicy // Weighted or uniform draws
	MaxSteps    int            // Step bound per attempt, 0 = unbounded
	MaxAttempts int            // Fresh restarts allowed after a contradiction
	Timeout     time.Duration  // Wall-clock bound across all attempts, 0 = none
	SeedTiles   []SeedTile
}

// DefaultConfig returns reasonable defaults for a grid of the given size
func DefaultConfig(rows, cols int, seed int64) *Config {
	return &Config{
		Rows:        rows,
		Cols:        cols,
		Seed:        seed,
		Propagation: PropagateSingleHop,
		Collapse:    CollapseWeighted,
		MaxAttempts: 10,
		Timeout:     30 * time.Second,
	}
}

// attemptSeed returns the seed used for a given attempt
func (c *Config) attemptSeed(attempt int) int64 {
	return c.Seed + int64(attempt*1000)
}

// Result is the output of a generation run
type Result struct {
	Rows, Cols int
	Tiles      [][]rune // '?' marks cells left unresolved by a failed run
	Seed       int64    // seed of the last attempt
	Attempts   int
	Steps      int
	Conflicts  []Conflict // conflicts of the last attempt, empty on success
	Complete   bool
	Duration   time.Duration
}

// Success reports whether every cell was collapsed without contradiction
func (r *Result) Success() bool {
	return len(r.Conflicts) == 0 && r.Complete
}

// Unresolved is the placeholder rune for cells that never collapsed
const Unresolved = '?'

// Generator runs whole generation attempts, restarting from scratch after a contradiction
type Generator struct {
	model    *Model
	config   *Config
	logger   *slog.Logger
	observer func(attempt int, e Event)
}

// NewGenerator creates a generator for the given model
func NewGenerator(model *Model, config *Config) *Generator {
	return &Generator{
		model:  model,
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger passed to every grid
func (g *Generator) SetLogger(l *slog.Logger) {
	if l != nil {
		g.logger = l
	}
}

// SetObserver registers a callback receiving every step of every attempt
func (g *Generator) SetObserver(fn func(attempt int, e Event)) {
	g.observer = fn
}

// Generate produces a grid. On failure it still returns the last attempt's Result alongside
// the error so callers can report the partial grid and its conflicts.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	cfg := g.config
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "wfc.Generate",
		trace.WithAttributes(
			attribute.Int("wfc.rows", cfg.Rows),
			attribute.Int("wfc.cols", cfg.Cols),
			attribute.Int64("wfc.seed", cfg.Seed),
			attribute.Int("wfc.tiles", g.model.Size()),
			attribute.Int("wfc.rules", g.model.RuleCount()),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		generationDuration.Observe(time.Since(start).Seconds())
	}()

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var result *Result
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		grid, err := g.newGrid(attempt)
		if err != nil {
			// Construction errors are deterministic; retrying cannot help
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if err := grid.contradictionError(); err != nil {
			// Seed tiles alone emptied a cell; every reseeded attempt would do the same
			attemptOutcomes.WithLabelValues("contradiction").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return snapshot(grid, attempt+1, time.Since(start)), err
		}

		err = g.runAttempt(ctx, grid, attempt)
		result = snapshot(grid, attempt+1, time.Since(start))

		if err == nil {
			attemptOutcomes.WithLabelValues("success").Inc()
			span.SetAttributes(attribute.Int("wfc.attempts", attempt+1))
			span.SetStatus(codes.Ok, "")
			g.logger.Info("grid generated",
				"rows", cfg.Rows,
				"cols", cfg.Cols,
				"seed", grid.Seed(),
				"attempts", attempt+1,
				"steps", grid.Steps(),
			)
			return result, nil
		}

		lastErr = err
		if errors.Is(err, ErrContradiction) {
			attemptOutcomes.WithLabelValues("contradiction").Inc()
			g.logger.Warn("attempt contradicted, restarting",
				"attempt", attempt+1,
				"seed", grid.Seed(),
				"steps", grid.Steps(),
				"conflicts", len(result.Conflicts),
			)
			continue
		}

		attemptOutcomes.WithLabelValues("timeout").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	err := fmt.Errorf("%w after %d attempts: %w", ErrNoSolution, maxAttempts, lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return result, err
}

func (g *Generator) newGrid(attempt int) (*Grid, error) {
	cfg := g.config
	opts := []Option{
		WithRandSeed(cfg.attemptSeed(attempt)),
		WithPropagation(cfg.Propagation),
		WithCollapsePolicy(cfg.Collapse),
		WithMaxSteps(cfg.MaxSteps),
		WithSeedTiles(cfg.SeedTiles...),
		WithLogger(g.logger),
	}
	if g.observer != nil {
		opts = append(opts, WithObserver(func(e Event) { g.observer(attempt, e) }))
	}
	return NewGrid(cfg.Rows, cfg.Cols, g.model, opts...)
}

func (g *Generator) runAttempt(ctx context.Context, grid *Grid, attempt int) error {
	ctx, span := tracer.Start(ctx, "wfc.Attempt",
		trace.WithAttributes(
			attribute.Int("wfc.attempt", attempt+1),
			attribute.Int64("wfc.seed", grid.Seed()),
		),
	)
	defer span.End()

	err := grid.Run(ctx)
	span.SetAttributes(attribute.Int("wfc.steps", grid.Steps()))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// snapshot captures a grid's state as a Result
func snapshot(grid *Grid, attempts int, elapsed time.Duration) *Result {
	return &Result{
		Rows:      grid.Rows(),
		Cols:      grid.Cols(),
		Tiles:     grid.Tiles(Unresolved),
		Seed:      grid.Seed(),
		Attempts:  attempts,
		Steps:     grid.Steps(),
		Conflicts: grid.Contradictions(),
		Complete:  grid.Complete(),
		Duration:  elapsed,
	}
}
