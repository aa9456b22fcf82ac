package wfc

import (
	"fmt"
	"math"
	"sort"

	"github.com/zyedidia/generic/mapset"
)

// Rule says a cell holding From may have a neighbor lying in Dir holding To
type Rule struct {
	From Tile
	To   Tile
	Dir  Direction
}

// String formats the rule as "(From, To, dir)"
func (r Rule) String() string {
	return fmt.Sprintf("(%s, %s, %s)", r.From, r.To, r.Dir)
}

// Model is the tile domain, weight table and adjacency rule set derived from a sample.
// A Model is read-only once built and may be shared by any number of grids.
type Model struct {
	tiles   []Tile
	index   map[Tile]int
	weights []int
	total   int

	rules mapset.Set[Rule]
	// allow[d][a*n+b] reports whether tile id b may lie in direction d of tile id a
	allow [numDirections][]bool
	// plogp[id] is -p*ln(p) for the tile's global probability
	plogp []float64
}

// Build extracts the tile domain, weights and adjacency rules from a sample grid.
// Every in-bounds neighbor of every sample cell contributes one rule, recorded with the
// direction in which the neighbor lies relative to the cell.
func Build(sample [][]Tile) (*Model, error) {
	cells := 0
	for _, row := range sample {
		cells += len(row)
	}
	if cells == 0 {
		return nil, ErrEmptySample
	}

	width := len(sample[0])
	for r, row := range sample {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d tiles, want %d", ErrRaggedSample, r, len(row), width)
		}
	}

	weights := make(map[Tile]int)
	rules := mapset.New[Rule]()
	height := len(sample)

	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			tile := sample[r][c]
			weights[tile]++

			for _, dir := range AllDirections() {
				dr, dc := dir.Offset()
				nr, nc := r+dr, c+dc
				if nr < 0 || nr >= height || nc < 0 || nc >= width {
					continue
				}
				rules.Put(Rule{From: tile, To: sample[nr][nc], Dir: dir})
			}
		}
	}

	return newModel(weights, rules), nil
}

// NewModel builds a model from an explicit weight table and rule list.
// Duplicate rules are collapsed into one entry.
func NewModel(weights map[Tile]int, rules []Rule) (*Model, error) {
	if len(weights) == 0 {
		return nil, ErrEmptySample
	}
	for tile, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("wfc: tile %q has non-positive weight %d", tile, w)
		}
	}

	set := mapset.New[Rule]()
	for _, rule := range rules {
		if _, ok := weights[rule.From]; !ok {
			return nil, fmt.Errorf("%w: rule %s", ErrUnknownTile, rule)
		}
		if _, ok := weights[rule.To]; !ok {
			return nil, fmt.Errorf("%w: rule %s", ErrUnknownTile, rule)
		}
		if rule.Dir < Up || rule.Dir > Left {
			return nil, fmt.Errorf("wfc: rule %s has invalid direction", rule)
		}
		set.Put(rule)
	}

	copied := make(map[Tile]int, len(weights))
	for tile, w := range weights {
		copied[tile] = w
	}
	return newModel(copied, set), nil
}

func newModel(weights map[Tile]int, rules mapset.Set[Rule]) *Model {
	tiles := make([]Tile, 0, len(weights))
	for tile := range weights {
		tiles = append(tiles, tile)
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i] < tiles[j] })

	n := len(tiles)
	m := &Model{
		tiles:   tiles,
		index:   make(map[Tile]int, n),
		weights: make([]int, n),
		rules:   rules,
		plogp:   make([]float64, n),
	}
	for id, tile := range tiles {
		m.index[tile] = id
		m.weights[id] = weights[tile]
		m.total += weights[tile]
	}
	for id := range tiles {
		p := float64(m.weights[id]) / float64(m.total)
		m.plogp[id] = -p * math.Log(p)
	}

	for d := range m.allow {
		m.allow[d] = make([]bool, n*n)
	}
	rules.Each(func(rule Rule) {
		a, b := m.index[rule.From], m.index[rule.To]
		m.allow[rule.Dir][a*n+b] = true
	})

	return m
}

// Tiles returns the tile domain in ascending symbol order
func (m *Model) Tiles() []Tile {
	out := make([]Tile, len(m.tiles))
	copy(out, m.tiles)
	return out
}

// Size returns the number of tiles in the domain
func (m *Model) Size() int {
	return len(m.tiles)
}

// Has reports whether the tile belongs to the domain
func (m *Model) Has(tile Tile) bool {
	_, ok := m.index[tile]
	return ok
}

// Weight returns the sample occurrence count of a tile, or 0 if it is not in the domain
func (m *Model) Weight(tile Tile) int {
	id, ok := m.index[tile]
	if !ok {
		return 0
	}
	return m.weights[id]
}

// Weights returns a copy of the weight table
func (m *Model) Weights() map[Tile]int {
	out := make(map[Tile]int, len(m.tiles))
	for id, tile := range m.tiles {
		out[tile] = m.weights[id]
	}
	return out
}

// TotalWeight returns the sum of all tile weights
func (m *Model) TotalWeight() int {
	return m.total
}

// Probability returns weight(tile) / TotalWeight
func (m *Model) Probability(tile Tile) float64 {
	return float64(m.Weight(tile)) / float64(m.total)
}

// RuleCount returns the number of distinct adjacency rules
func (m *Model) RuleCount() int {
	return m.rules.Size()
}

// Rules returns the rule set sorted by From, To, then Dir
func (m *Model) Rules() []Rule {
	out := make([]Rule, 0, m.rules.Size())
	m.rules.Each(func(rule Rule) {
		out = append(out, rule)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Dir < out[j].Dir
	})
	return out
}

// Allows reports whether a cell holding from may have to as its neighbor in direction dir
func (m *Model) Allows(from, to Tile, dir Direction) bool {
	return m.rules.Has(Rule{From: from, To: to, Dir: dir})
}

// allows is the id-based lookup used on the hot path
func (m *Model) allows(dir Direction, from, to int) bool {
	return m.allow[dir][from*len(m.tiles)+to]
}

// Entropy returns the entropy of a candidate set given as tiles.
// Tiles outside the domain are ignored.
func (m *Model) Entropy(candidates []Tile) float64 {
	h := 0.0
	for _, tile := range candidates {
		if id, ok := m.index[tile]; ok {
			h += m.plogp[id]
		}
	}
	return h
}
