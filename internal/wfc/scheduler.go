package wfc

import (
	"context"
	"fmt"
	"math"
	"time"
)

// StepResult is the outcome of one scheduler tick
type StepResult int

const (
	StepProgressed StepResult = iota
	StepDone
	StepContradiction
	StepTimeout
)

// String returns the string representation of a StepResult
func (r StepResult) String() string {
	switch r {
	case StepProgressed:
		return "progressed"
	case StepDone:
		return "done"
	case StepContradiction:
		return "contradiction"
	case StepTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Terminal reports whether the result ends generation
func (r StepResult) Terminal() bool {
	return r != StepProgressed
}

// Event describes one scheduler tick to observers
type Event struct {
	Step     int
	Result   StepResult
	Position Position // collapsed cell, only set when Result is StepProgressed
	Tile     Tile
	Entropy  float64 // entropy of the cell just before it collapsed
	Ties     int     // number of cells sharing the minimum entropy
	Removed  int     // candidates removed by propagation
	// Conflicts is set when Result is StepContradiction
	Conflicts []Conflict
}

// entropyEpsilon is the tolerance under which two entropies count as tied
const entropyEpsilon = 1e-12

// Step runs one scheduler tick: it picks the open cell with the lowest entropy (random among
// ties), collapses it and propagates. Recorded contradictions end generation at the next tick.
func (g *Grid) Step() StepResult {
	if len(g.conflicts) > 0 {
		stepOutcomes.WithLabelValues(StepContradiction.String()).Inc()
		g.emit(Event{Step: g.steps, Result: StepContradiction, Conflicts: g.Contradictions()})
		return StepContradiction
	}

	idx, ties, ok := g.nextCell()
	if !ok {
		stepOutcomes.WithLabelValues(StepDone.String()).Inc()
		g.emit(Event{Step: g.steps, Result: StepDone})
		return StepDone
	}

	if g.settings.maxSteps > 0 && g.steps >= g.settings.maxSteps {
		stepOutcomes.WithLabelValues(StepTimeout.String()).Inc()
		g.emit(Event{Step: g.steps, Result: StepTimeout})
		return StepTimeout
	}

	pos := g.positionOf(idx)
	before := g.cells[idx].entropy
	tile := g.draw(&g.cells[idx])
	g.cells[idx].collapse(tile)

	start := time.Now()
	removed := g.Propagate(pos.Row, pos.Col)
	propagationDuration.Observe(time.Since(start).Seconds())
	candidatesRemoved.Add(float64(removed))

	g.steps++
	stepOutcomes.WithLabelValues(StepProgressed.String()).Inc()

	g.logger.Debug("cell collapsed",
		"step", g.steps,
		"cell", pos.String(),
		"tile", tile.String(),
		"entropy", before,
		"ties", ties,
		"removed", removed,
	)

	g.emit(Event{
		Step:     g.steps,
		Result:   StepProgressed,
		Position: pos,
		Tile:     tile,
		Entropy:  before,
		Ties:     ties,
		Removed:  removed,
	})
	return StepProgressed
}

// Collapse commits the cell at (row, col) to a drawn tile and propagates from it.
// It fails with ErrContradiction if the cell has no candidates left.
func (g *Grid) Collapse(row, col int) (Tile, error) {
	if !g.inBounds(row, col) {
		return 0, fmt.Errorf("%w: (%d,%d) outside %dx%d grid", ErrInvalidDimensions, row, col, g.rows, g.cols)
	}
	c := &g.cells[g.indexOf(row, col)]
	if c.collapsed {
		return c.tile, ErrAlreadyCollapsed
	}
	if c.remaining == 0 {
		return 0, fmt.Errorf("%w: cell (%d,%d) has no candidates", ErrContradiction, row, col)
	}

	tile := g.draw(c)
	c.collapse(tile)
	g.Propagate(row, col)
	return tile, nil
}

// Run steps the grid until it is complete, contradicted, out of steps or ctx is done.
// Returns nil on success, a *ContradictionError, or an error wrapping ErrTimeout.
func (g *Grid) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w after %d steps: %v", ErrTimeout, g.steps, ctx.Err())
		default:
		}

		switch g.Step() {
		case StepProgressed:
			continue
		case StepDone:
			return nil
		case StepContradiction:
			return g.contradictionError()
		case StepTimeout:
			return fmt.Errorf("%w: reached %d steps", ErrTimeout, g.settings.maxSteps)
		}
	}
}

// nextCell finds the selectable cell with minimum entropy, breaking ties uniformly at random.
// Returns the chosen index and the number of tied cells.
func (g *Grid) nextCell() (int, int, bool) {
	best := math.Inf(1)
	var ties []int

	for i := range g.cells {
		c := &g.cells[i]
		if !c.selectable() {
			continue
		}
		switch {
		case c.entropy < best-entropyEpsilon:
			best = c.entropy
			ties = append(ties[:0], i)
		case math.Abs(c.entropy-best) <= entropyEpsilon:
			ties = append(ties, i)
		}
	}

	if len(ties) == 0 {
		return 0, 0, false
	}
	return ties[g.pickRNG.Intn(len(ties))], len(ties), true
}

// draw picks a tile from a cell's candidates according to the collapse policy
func (g *Grid) draw(c *cell) Tile {
	if g.settings.collapse == CollapseUniform {
		n := g.drawRNG.Intn(c.remaining)
		for id, ok := range c.candidates {
			if !ok {
				continue
			}
			if n == 0 {
				return g.model.tiles[id]
			}
			n--
		}
	}

	total := 0
	for id, ok := range c.candidates {
		if ok {
			total += g.model.weights[id]
		}
	}
	n := g.drawRNG.Intn(total)
	last := -1
	for id, ok := range c.candidates {
		if !ok {
			continue
		}
		last = id
		if n < g.model.weights[id] {
			return g.model.tiles[id]
		}
		n -= g.model.weights[id]
	}
	return g.model.tiles[last]
}

func (g *Grid) emit(e Event) {
	if g.settings.observer != nil {
		g.settings.observer(e)
	}
}
