package wfc

// cell is the mutable state of one grid position.
// candidates is indexed by tile id; remaining counts the true entries.
type cell struct {
	candidates []bool
	remaining  int
	entropy    float64
	collapsed  bool
	tile       Tile
}

// contradicted reports an open cell with nothing left to choose from
func (c *cell) contradicted() bool {
	return !c.collapsed && c.remaining == 0
}

// selectable reports whether the scheduler may collapse this cell
func (c *cell) selectable() bool {
	return !c.collapsed && c.remaining > 0
}

func (c *cell) collapse(tile Tile) {
	for id := range c.candidates {
		c.candidates[id] = false
	}
	c.remaining = 0
	c.entropy = 0
	c.collapsed = true
	c.tile = tile
}

// remove drops a candidate and reports whether it was present
func (c *cell) remove(id int) bool {
	if !c.candidates[id] {
		return false
	}
	c.candidates[id] = false
	c.remaining--
	return true
}

// recomputeEntropy sums -p*ln(p) over the remaining candidates using global probabilities
func (c *cell) recomputeEntropy(m *Model) {
	h := 0.0
	for id, ok := range c.candidates {
		if ok {
			h += m.plogp[id]
		}
	}
	c.entropy = h
}

// Cell is a read-only snapshot of one grid position
type Cell struct {
	Position     Position
	Collapsed    bool
	Tile         Tile
	Entropy      float64
	Candidates   []Tile
	Contradicted bool
}
