package game

// GraphEdge is a directed connection. Cost is the movement cost of the
// destination cell.
type GraphEdge struct {
	Node *GraphNode
	Cost float64
}

// GraphNode wraps one navigable cell.
type GraphNode struct {
	Cell  *Cell
	Edges []GraphEdge
}

// GraphOptions controls which cells and moves a TileGraph contains.
type GraphOptions struct {
	// IgnoreAgents keeps agent-occupied cells in the graph.
	IgnoreAgents bool
	// Root is always included when passable, even if an agent stands on it.
	Root *Cell
	// Diagonals enables 8-way moves.
	Diagonals bool
	// Cost overrides Cell.MovementCost, e.g. to plan around a hypothetical
	// furniture move. 0 excludes the cell.
	Cost func(c *Cell) float64
}

func (o GraphOptions) costOf(c *Cell) float64 {
	if o.Cost != nil {
		return o.Cost(c)
	}
	return c.MovementCost()
}

// neighbourDirs lists orthogonal moves first so 4-way graphs use a prefix.
var neighbourDirs = [8][2]int{
	{0, -1}, {1, 0}, {0, 1}, {-1, 0},
	{1, -1}, {1, 1}, {-1, 1}, {-1, -1},
}

// TileGraph is an immutable navigation snapshot of a Grid. Rebuild it
// whenever Stale reports true.
type TileGraph struct {
	Nodes   map[*Cell]*GraphNode
	grid    *Grid
	version uint64
	opts    GraphOptions
}

// BuildTileGraph snapshots the grid into a navigation graph. Cells with cost 0
// are left out, as are agent-occupied cells unless IgnoreAgents is set or the
// cell is the root. A diagonal is only added when both orthogonal cells it
// passes are present with cost exactly 1, so moves never clip a corner.
func BuildTileGraph(g *Grid, opts GraphOptions) *TileGraph {
	tg := &TileGraph{
		Nodes: make(map[*Cell]*GraphNode),
		grid:  g,
		opts:  opts,
	}
	if g == nil {
		return tg
	}
	tg.version = g.Version()

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := g.At(x, y)
			if opts.costOf(c) <= 0 {
				continue
			}
			if c.Agent != nil && !opts.IgnoreAgents && c != opts.Root {
				continue
			}
			tg.Nodes[c] = &GraphNode{Cell: c}
		}
	}

	dirCount := 4
	if opts.Diagonals {
		dirCount = 8
	}
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			node := tg.Nodes[g.At(x, y)]
			if node == nil {
				continue
			}
			for _, d := range neighbourDirs[:dirCount] {
				nb := tg.Nodes[g.At(x+d[0], y+d[1])]
				if nb == nil {
					continue
				}
				if d[0] != 0 && d[1] != 0 && tg.clipsCorner(x, y, d[0], d[1]) {
					continue
				}
				node.Edges = append(node.Edges, GraphEdge{Node: nb, Cost: opts.costOf(nb.Cell)})
			}
		}
	}
	return tg
}

// clipsCorner returns true if a diagonal move from (x, y) by (dx, dy) would
// brush a missing, blocked or slow orthogonal cell. Occupancy is ignored.
func (tg *TileGraph) clipsCorner(x, y, dx, dy int) bool {
	for _, c := range [2]*Cell{tg.grid.At(x+dx, y), tg.grid.At(x, y+dy)} {
		if c == nil {
			return true
		}
		if tg.opts.costOf(c) != 1 {
			return true
		}
	}
	return false
}

// Node returns the graph node for c, or nil if c is not navigable.
func (tg *TileGraph) Node(c *Cell) *GraphNode {
	if tg == nil || c == nil {
		return nil
	}
	return tg.Nodes[c]
}

// Contains returns true if c is a graph node.
func (tg *TileGraph) Contains(c *Cell) bool {
	return tg.Node(c) != nil
}

// HasEdge returns true if a direct move from a to b exists.
func (tg *TileGraph) HasEdge(a, b *Cell) bool {
	n := tg.Node(a)
	if n == nil {
		return false
	}
	for _, e := range n.Edges {
		if e.Node.Cell == b {
			return true
		}
	}
	return false
}

// Len returns the number of nodes.
func (tg *TileGraph) Len() int {
	return len(tg.Nodes)
}

// Stale returns true once the source grid has changed since the build.
func (tg *TileGraph) Stale() bool {
	return tg.grid != nil && tg.grid.Version() != tg.version
}

// Options returns the options the graph was built with.
func (tg *TileGraph) Options() GraphOptions {
	return tg.opts
}
