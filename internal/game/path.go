package game

// Path is a route produced by FindPath. The initial sequence starts at the
// start cell and ends at the goal; the remaining queue excludes the start and
// is consumed with Dequeue as the agent commits each hop.
type Path struct {
	initial []*Cell
	queue   []*Cell
}

func newPath(cells []*Cell) *Path {
	p := &Path{initial: cells}
	if len(cells) > 1 {
		p.queue = append([]*Cell(nil), cells[1:]...)
	}
	return p
}

// Unreachable reports whether the search failed. A path whose start equals
// its goal is reachable but has nothing to consume.
func (p *Path) Unreachable() bool {
	return p == nil || len(p.initial) == 0
}

// Len returns the number of hops still to take.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.queue)
}

// Dequeue removes and returns the next hop, or nil when exhausted.
func (p *Path) Dequeue() *Cell {
	if p.Len() == 0 {
		return nil
	}
	c := p.queue[0]
	p.queue = p.queue[1:]
	return c
}

// Peek returns the next hop without consuming it.
func (p *Path) Peek() *Cell {
	if p.Len() == 0 {
		return nil
	}
	return p.queue[0]
}

// Cells returns a copy of the remaining hops.
func (p *Path) Cells() []*Cell {
	if p.Len() == 0 {
		return nil
	}
	return append([]*Cell(nil), p.queue...)
}

// Initial returns a copy of the full route including the start cell.
func (p *Path) Initial() []*Cell {
	if p == nil {
		return nil
	}
	return append([]*Cell(nil), p.initial...)
}

// Steps returns the hop count of the full route.
func (p *Path) Steps() int {
	if p.Unreachable() {
		return 0
	}
	return len(p.initial) - 1
}

// Start returns the first cell of the route.
func (p *Path) Start() *Cell {
	if p.Unreachable() {
		return nil
	}
	return p.initial[0]
}

// End returns the goal cell of the route.
func (p *Path) End() *Cell {
	if p.Unreachable() {
		return nil
	}
	return p.initial[len(p.initial)-1]
}

// Contains reports whether c lies anywhere on the full route.
func (p *Path) Contains(c *Cell) bool {
	if p == nil {
		return false
	}
	for _, pc := range p.initial {
		if pc == c {
			return true
		}
	}
	return false
}

// Cost sums the step costs of the full route as priced by tg.
func (p *Path) Cost(tg *TileGraph) float64 {
	if p.Unreachable() || tg == nil {
		return 0
	}
	total := 0.0
	for i := 1; i < len(p.initial); i++ {
		total += stepCost(tg.opts.costOf(p.initial[i]), p.initial[i-1], p.initial[i])
	}
	return total
}
