package wfc

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
)

var (
	ErrEmptySample       = errors.New("wfc: sample has no tiles")
	ErrRaggedSample      = errors.New("wfc: sample rows differ in length")
	ErrInvalidDimensions = errors.New("wfc: invalid grid size")
	ErrInvalidSeed       = errors.New("wfc: invalid seed tile")
	ErrUnknownTile       = errors.New("wfc: tile not in domain")
	ErrContradiction     = errors.New("wfc: contradiction - no valid tiles for cell")
	ErrAlreadyCollapsed  = errors.New("wfc: cell already collapsed")
	ErrTimeout           = errors.New("wfc: exceeded step bound or deadline")
	ErrNoSolution        = errors.New("wfc: failed to find valid solution")
)

// Conflict records a cell whose candidate set was emptied by propagation
type Conflict struct {
	Cell   Position // the cell left with no candidates
	Source Position // the cell propagation came from
	// SourceCollapsed is false when the source was still open; Tile is then unset
	SourceCollapsed bool
	Tile            Tile      // the source's collapsed tile
	Dir             Direction // direction from Source to Cell
	// Removed lists the candidates eliminated by the final filter
	Removed []Tile
}

// String describes the conflict for logs and error messages
func (c Conflict) String() string {
	src := "open"
	if c.SourceCollapsed {
		src = c.Tile.String()
	}
	removed := make([]string, len(c.Removed))
	for i, t := range c.Removed {
		removed[i] = t.String()
	}
	return fmt.Sprintf("cell %s emptied by %s (%s) to its %s, removed [%s]",
		c.Cell, c.Source, src, c.Dir.Opposite(), strings.Join(removed, " "))
}

// ContradictionError reports every contradicted cell of a grid
type ContradictionError struct {
	Conflicts []Conflict
}

func (e *ContradictionError) Error() string {
	if len(e.Conflicts) == 0 {
		return ErrContradiction.Error()
	}
	return fmt.Sprintf("%s: %d cell(s), first: %s", ErrContradiction, len(e.Conflicts), e.Conflicts[0])
}

// Is lets errors.Is match ErrContradiction
func (e *ContradictionError) Is(target error) bool {
	return target == ErrContradiction
}

func (e *ContradictionError) Unwrap() error {
	return ErrContradiction
}

// SeedTile pins a cell to a tile before generation starts
type SeedTile struct {
	Row, Col int
	Tile     Tile
}

// Grid is the wave: an R×C array of cells sharing one read-only Model.
// A Grid is not safe for concurrent use.
type Grid struct {
	rows, cols int
	model      *Model
	cells      []cell

	settings settings
	seed     int64
	pickRNG  *rand.Rand // tie-breaks between equal-entropy cells
	drawRNG  *rand.Rand // tile draws during collapse
	logger   *slog.Logger

	steps     int
	conflicts []Conflict
}

// NewGrid creates a grid with every cell open over the model's full domain.
// Seed tiles given through WithSeedTiles start collapsed and are propagated immediately.
func NewGrid(rows, cols int, model *Model, opts ...Option) (*Grid, error) {
	if rows <= 0 || cols <= 0 || rows > math.MaxInt/cols {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, rows, cols)
	}
	if model == nil || model.Size() == 0 {
		return nil, ErrEmptySample
	}

	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	g := &Grid{
		rows:     rows,
		cols:     cols,
		model:    model,
		cells:    make([]cell, rows*cols),
		settings: s,
		logger:   s.logger,
	}
	g.initRandom()

	full := 0.0
	for id := range model.tiles {
		full += model.plogp[id]
	}
	n := model.Size()
	for i := range g.cells {
		c := &g.cells[i]
		c.candidates = make([]bool, n)
		for id := range c.candidates {
			c.candidates[id] = true
		}
		c.remaining = n
		c.entropy = full
	}

	if err := g.placeSeeds(s.seedTiles); err != nil {
		return nil, err
	}

	return g, nil
}

// initRandom derives the two RNG streams from the configured source
func (g *Grid) initRandom() {
	if g.settings.rng != nil {
		g.pickRNG = g.settings.rng
		g.seed = g.settings.rng.Int63()
		g.drawRNG = rand.New(rand.NewSource(g.seed))
		return
	}
	g.seed = g.settings.seed
	g.pickRNG = rand.New(rand.NewSource(g.seed))
	g.drawRNG = rand.New(rand.NewSource(g.seed ^ drawStreamSalt))
}

// drawStreamSalt separates the collapse stream from the tie-break stream
const drawStreamSalt = 0x5deece66d

// placeSeeds collapses the seeded cells in order, propagating after each one
func (g *Grid) placeSeeds(seeds []SeedTile) error {
	for _, seed := range seeds {
		if !g.inBounds(seed.Row, seed.Col) {
			return fmt.Errorf("%w: (%d,%d) outside %dx%d grid", ErrInvalidSeed, seed.Row, seed.Col, g.rows, g.cols)
		}
		id, ok := g.model.index[seed.Tile]
		if !ok {
			return fmt.Errorf("%w: %w %q", ErrInvalidSeed, ErrUnknownTile, seed.Tile)
		}
		c := &g.cells[g.indexOf(seed.Row, seed.Col)]
		if c.collapsed {
			return fmt.Errorf("%w: (%d,%d) seeded twice", ErrInvalidSeed, seed.Row, seed.Col)
		}
		if !c.candidates[id] {
			return fmt.Errorf("%w: seed %q at (%d,%d) violates adjacency with an earlier seed",
				ErrContradiction, seed.Tile, seed.Row, seed.Col)
		}
		c.collapse(g.model.tiles[id])
		g.Propagate(seed.Row, seed.Col)
	}
	return nil
}

// Rows returns the number of rows
func (g *Grid) Rows() int {
	return g.rows
}

// Cols returns the number of columns
func (g *Grid) Cols() int {
	return g.cols
}

// Model returns the shared model the grid was built from
func (g *Grid) Model() *Model {
	return g.model
}

// Seed returns the seed the grid's random streams were derived from
func (g *Grid) Seed() int64 {
	return g.seed
}

// Steps returns the number of scheduler steps that collapsed a cell
func (g *Grid) Steps() int {
	return g.steps
}

// Tile returns the collapsed tile at (row, col), or false if the cell is not collapsed
func (g *Grid) Tile(row, col int) (Tile, bool) {
	if !g.inBounds(row, col) {
		return 0, false
	}
	c := &g.cells[g.indexOf(row, col)]
	return c.tile, c.collapsed
}

// Entropy returns the cached entropy of the cell at (row, col)
func (g *Grid) Entropy(row, col int) float64 {
	if !g.inBounds(row, col) {
		return 0
	}
	return g.cells[g.indexOf(row, col)].entropy
}

// Candidates returns the remaining candidate tiles of the cell at (row, col).
// A collapsed cell has none.
func (g *Grid) Candidates(row, col int) []Tile {
	if !g.inBounds(row, col) {
		return nil
	}
	return g.candidateTiles(&g.cells[g.indexOf(row, col)])
}

// Cell returns a snapshot of the cell at (row, col)
func (g *Grid) Cell(row, col int) Cell {
	if !g.inBounds(row, col) {
		return Cell{Position: Position{Row: row, Col: col}}
	}
	c := &g.cells[g.indexOf(row, col)]
	return Cell{
		Position:     Position{Row: row, Col: col},
		Collapsed:    c.collapsed,
		Tile:         c.tile,
		Entropy:      c.entropy,
		Candidates:   g.candidateTiles(c),
		Contradicted: c.contradicted(),
	}
}

// Tiles returns the grid as rows of runes, with unresolved cells set to placeholder
func (g *Grid) Tiles(placeholder rune) [][]rune {
	out := make([][]rune, g.rows)
	for r := 0; r < g.rows; r++ {
		out[r] = make([]rune, g.cols)
		for col := 0; col < g.cols; col++ {
			c := &g.cells[g.indexOf(r, col)]
			if c.collapsed {
				out[r][col] = rune(c.tile)
			} else {
				out[r][col] = placeholder
			}
		}
	}
	return out
}

// Complete reports whether every cell is collapsed
func (g *Grid) Complete() bool {
	for i := range g.cells {
		if !g.cells[i].collapsed {
			return false
		}
	}
	return true
}

// Contradictions returns the conflicts recorded so far
func (g *Grid) Contradictions() []Conflict {
	out := make([]Conflict, len(g.conflicts))
	copy(out, g.conflicts)
	return out
}

// contradictionError wraps the recorded conflicts, or returns nil if there are none
func (g *Grid) contradictionError() error {
	if len(g.conflicts) == 0 {
		return nil
	}
	return &ContradictionError{Conflicts: g.Contradictions()}
}

func (g *Grid) candidateTiles(c *cell) []Tile {
	if c.collapsed {
		return nil
	}
	out := make([]Tile, 0, c.remaining)
	for id, ok := range c.candidates {
		if ok {
			out = append(out, g.model.tiles[id])
		}
	}
	return out
}

func (g *Grid) inBounds(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

func (g *Grid) indexOf(row, col int) int {
	return row*g.cols + col
}

func (g *Grid) positionOf(idx int) Position {
	return Position{Row: idx / g.cols, Col: idx % g.cols}
}

// neighbor returns the index of the cell one step from idx in dir
func (g *Grid) neighbor(idx int, dir Direction) (int, bool) {
	p := g.positionOf(idx).Step(dir)
	if !g.inBounds(p.Row, p.Col) {
		return 0, false
	}
	return g.indexOf(p.Row, p.Col), true
}
