package wfc

// Propagate removes candidates from the neighbors of (row, col) that no rule allows next to it.
// It is called after every collapse. In single-hop mode only the four immediate neighbors are
// filtered; in fixpoint mode filtering continues from every neighbor that shrank until no
// candidate set changes or a cell is emptied. Emptied cells are recorded as conflicts.
// Returns the number of candidates removed.
func (g *Grid) Propagate(row, col int) int {
	if !g.inBounds(row, col) {
		return 0
	}
	start := g.indexOf(row, col)
	if g.settings.propagation == PropagateFixpoint {
		return g.propagateFixpoint(start)
	}
	removed, _ := g.filterNeighbors(start)
	return removed
}

func (g *Grid) propagateFixpoint(start int) int {
	queued := make([]bool, len(g.cells))
	queue := []int{start}
	queued[start] = true
	conflictsBefore := len(g.conflicts)
	total := 0

	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		queued[idx] = false

		removed, shrunk := g.filterNeighbors(idx)
		total += removed
		if len(g.conflicts) > conflictsBefore {
			break
		}
		for _, next := range shrunk {
			if !queued[next] {
				queued[next] = true
				queue = append(queue, next)
			}
		}
	}

	return total
}

// filterNeighbors filters each selectable neighbor of src against src's possible tiles.
// Returns the number of candidates removed and the neighbors that shrank but are not empty.
func (g *Grid) filterNeighbors(src int) (int, []int) {
	source := &g.cells[src]
	support := g.support(source)
	if len(support) == 0 {
		return 0, nil
	}

	removed := 0
	var shrunk []int
	for _, dir := range AllDirections() {
		ni, ok := g.neighbor(src, dir)
		if !ok {
			continue
		}
		target := &g.cells[ni]
		if !target.selectable() {
			continue
		}

		var dropped []int
		for k, present := range target.candidates {
			if present && !g.supported(support, dir, k) {
				target.remove(k)
				dropped = append(dropped, k)
			}
		}
		if len(dropped) == 0 {
			continue
		}

		removed += len(dropped)
		target.recomputeEntropy(g.model)
		if target.remaining == 0 {
			g.recordConflict(ni, src, source, dir, dropped)
			continue
		}
		shrunk = append(shrunk, ni)
	}

	return removed, shrunk
}

// support returns the tile ids a cell may still hold
func (g *Grid) support(c *cell) []int {
	if c.collapsed {
		return []int{g.model.index[c.tile]}
	}
	ids := make([]int, 0, c.remaining)
	for id, ok := range c.candidates {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// supported reports whether any tile in support allows candidate k in direction dir
func (g *Grid) supported(support []int, dir Direction, k int) bool {
	for _, a := range support {
		if g.model.allows(dir, a, k) {
			return true
		}
	}
	return false
}

func (g *Grid) recordConflict(idx, src int, source *cell, dir Direction, dropped []int) {
	conflict := Conflict{
		Cell:    g.positionOf(idx),
		Source:  g.positionOf(src),
		Dir:     dir,
		Removed: make([]Tile, len(dropped)),
	}
	if source.collapsed {
		conflict.SourceCollapsed = true
		conflict.Tile = source.tile
	}
	for i, id := range dropped {
		conflict.Removed[i] = g.model.tiles[id]
	}
	g.conflicts = append(g.conflicts, conflict)

	g.logger.Warn("cell contradicted",
		"cell", conflict.Cell.String(),
		"source", conflict.Source.String(),
		"direction", dir.String(),
	)
}
