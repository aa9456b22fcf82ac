package wfc

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"
)

// Propagation selects how far constraints spread after a collapse
type Propagation int

const (
	// PropagateSingleHop filters only the four immediate neighbors of the collapsed cell
	PropagateSingleHop Propagation = iota
	// PropagateFixpoint keeps filtering outward from every cell that shrank until nothing changes
	PropagateFixpoint
)

// String returns the configuration name of the propagation mode
func (p Propagation) String() string {
	switch p {
	case PropagateSingleHop:
		return "single"
	case PropagateFixpoint:
		return "fixpoint"
	default:
		return "unknown"
	}
}

// ParsePropagation converts a configuration name to a Propagation
func ParsePropagation(s string) (Propagation, error) {
	switch s {
	case "", "single", "single_hop":
		return PropagateSingleHop, nil
	case "fixpoint":
		return PropagateFixpoint, nil
	}
	return 0, fmt.Errorf("wfc: unknown propagation mode %q", s)
}

// CollapsePolicy selects how a tile is drawn from a cell's candidates
type CollapsePolicy int

const (
	// CollapseWeighted draws proportionally to sample weights
	CollapseWeighted CollapsePolicy = iota
	// CollapseUniform draws every candidate with equal probability
	CollapseUniform
)

// String returns the configuration name of the collapse policy
func (p CollapsePolicy) String() string {
	switch p {
	case CollapseWeighted:
		return "weighted"
	case CollapseUniform:
		return "uniform"
	default:
		return "unknown"
	}
}

// ParseCollapsePolicy converts a configuration name to a CollapsePolicy
func ParseCollapsePolicy(s string) (CollapsePolicy, error) {
	switch s {
	case "", "weighted":
		return CollapseWeighted, nil
	case "uniform":
		return CollapseUniform, nil
	}
	return 0, fmt.Errorf("wfc: unknown collapse policy %q", s)
}

type settings struct {
	seed        int64
	rng         *rand.Rand
	seedTiles   []SeedTile
	propagation Propagation
	collapse    CollapsePolicy
	maxSteps    int
	observer    func(Event)
	logger      *slog.Logger
}

func defaultSettings() settings {
	return settings{
		seed:   time.Now().UnixNano(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option customizes a Grid at construction
type Option func(*settings)

// WithRandSeed makes the grid's random draws reproducible
func WithRandSeed(seed int64) Option {
	return func(s *settings) {
		s.seed = seed
		s.rng = nil
	}
}

// WithRand supplies the tie-break stream; the collapse stream is derived from it.
// A nil source is ignored.
func WithRand(r *rand.Rand) Option {
	return func(s *settings) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithSeedTiles pins cells to tiles before the first step
func WithSeedTiles(seeds ...SeedTile) Option {
	return func(s *settings) {
		s.seedTiles = append(s.seedTiles, seeds...)
	}
}

// WithPropagation selects single-hop or fixpoint propagation
func WithPropagation(p Propagation) Option {
	return func(s *settings) {
		s.propagation = p
	}
}

// WithCollapsePolicy selects weighted or uniform tile draws
func WithCollapsePolicy(p CollapsePolicy) Option {
	return func(s *settings) {
		s.collapse = p
	}
}

// WithMaxSteps bounds the number of collapsing steps; 0 means unbounded
func WithMaxSteps(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxSteps = n
		}
	}
}

// WithObserver registers a callback invoked after every step
func WithObserver(fn func(Event)) Option {
	return func(s *settings) {
		s.observer = fn
	}
}

// WithLogger routes engine logs to the given logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
