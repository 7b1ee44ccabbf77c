package game

import (
	"fmt"
	"math"
	"sort"
)

// FloorType identifies the base surface of a cell.
type FloorType uint8

const (
	FloorTile      FloorType = iota // Default shop floor
	FloorCarpet                     // Fitting rooms, entrance carpet
	FloorConcrete                   // Stock room
	FloorWet                        // Freshly mopped or spilled, slow
	FloorOutside                    // Pavement beyond the entrance
	FloorVoid                       // Not part of the store
	floorTypeCount                  // sentinel
)

func (f FloorType) String() string {
	switch f {
	case FloorTile:
		return "tile"
	case FloorCarpet:
		return "carpet"
	case FloorConcrete:
		return "concrete"
	case FloorWet:
		return "wet"
	case FloorOutside:
		return "outside"
	case FloorVoid:
		return "void"
	default:
		return "unknown"
	}
}

// floorMovementCost returns the movement cost of a floor type.
// 0 = impassable, 1 = free, >1 = slower.
func floorMovementCost(f FloorType) float64 {
	switch f {
	case FloorTile, FloorCarpet, FloorConcrete, FloorOutside:
		return 1.0
	case FloorWet:
		return 2.0
	case FloorVoid:
		return 0
	default:
		return 1.0
	}
}

// cellCost combines floor and furniture costs. Positive results are clamped
// to at least 1 so the straight-line heuristic never overestimates.
func cellCost(floor FloorType, f *Furniture) float64 {
	cost := floorMovementCost(floor)
	if cost <= 0 {
		return 0
	}
	if f != nil {
		if f.Cost <= 0 {
			return 0
		}
		cost *= f.Cost
	}
	if cost < 1 {
		cost = 1
	}
	return cost
}

// Cell is one square of the store floor.
type Cell struct {
	X, Y       int
	Floor      FloorType
	Furniture  *Furniture // obstacle occupying the cell, nil if none
	Agent      *Agent     // agent standing on the cell, nil if none
	Outside    bool       // beyond the store boundary
	QueueCell  bool       // part of a checkout queue lane
	QueueDepth int        // 1 = head of queue
}

func (c *Cell) String() string {
	if c == nil {
		return "(none)"
	}
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// MovementCost returns the cost of stepping onto the cell. 0 means impassable.
func (c *Cell) MovementCost() float64 {
	return cellCost(c.Floor, c.Furniture)
}

// MovementCostIgnoring returns the cost as if f were not on the cell.
func (c *Cell) MovementCostIgnoring(f *Furniture) float64 {
	if f != nil && c.Furniture == f {
		return cellCost(c.Floor, nil)
	}
	return c.MovementCost()
}

// IsPassable returns true if an agent could ever stand on the cell.
func (c *Cell) IsPassable() bool {
	return c.MovementCost() > 0
}

// IsEmpty returns true if neither furniture nor an agent occupies the cell.
func (c *Cell) IsEmpty() bool {
	return c.Furniture == nil && c.Agent == nil
}

// IsNeighbour reports whether o is one step away, counting diagonals when
// diagonal is true.
func (c *Cell) IsNeighbour(o *Cell, diagonal bool) bool {
	if c == nil || o == nil || c == o {
		return false
	}
	dx := absInt(c.X - o.X)
	dy := absInt(c.Y - o.Y)
	if dx > 1 || dy > 1 {
		return false
	}
	if dx == 1 && dy == 1 {
		return diagonal
	}
	return true
}

// Distance returns the straight-line distance between cell centres.
func (c *Cell) Distance(o *Cell) float64 {
	dx := float64(c.X - o.X)
	dy := float64(c.Y - o.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Grid is the authoritative per-cell store representation. It owns every
// Cell for its lifetime.
type Grid struct {
	Width  int
	Height int
	cells  []Cell // row-major: index = y*Width + x

	furniture []*Furniture
	nextID    int
	version   uint64
	events    *EventQueue
}

// NewGrid creates a grid with a plain tiled floor.
func NewGrid(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	g := &Grid{
		Width:  width,
		Height: height,
		cells:  make([]Cell, width*height),
		nextID: 1,
		events: &EventQueue{},
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := &g.cells[y*width+x]
			c.X = x
			c.Y = y
			c.Floor = FloorTile
		}
	}
	return g
}

// inBounds returns true if (x, y) is within the grid.
func (g *Grid) inBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// At returns the cell at (x, y), or nil if out of bounds.
func (g *Grid) At(x, y int) *Cell {
	if g == nil || !g.inBounds(x, y) {
		return nil
	}
	return &g.cells[y*g.Width+x]
}

// ForEachCell calls fn for every cell in row-major order.
func (g *Grid) ForEachCell(fn func(c *Cell)) {
	for i := range g.cells {
		fn(&g.cells[i])
	}
}

// Version is bumped on every change that can alter a navigation graph.
// Paths computed under an older version must not be reused.
func (g *Grid) Version() uint64 {
	return g.version
}

// Events returns the grid's change queue. The simulation drains it each tick.
func (g *Grid) Events() *EventQueue {
	return g.events
}

// Furniture returns every placed piece of furniture in placement order.
func (g *Grid) Furniture() []*Furniture {
	return g.furniture
}

func (g *Grid) touch() {
	g.version++
}

// SetFloor changes the floor of a cell.
func (g *Grid) SetFloor(x, y int, f FloorType) {
	c := g.At(x, y)
	if c == nil || c.Floor == f {
		return
	}
	c.Floor = f
	if f == FloorOutside {
		c.Outside = true
	}
	g.touch()
	g.events.Push(Event{Kind: EventFloorChanged, Cell: c})
}

// SetQueue flags cells as a queue lane. The first cell is the head (depth 1).
func (g *Grid) SetQueue(cells ...*Cell) {
	depth := 0
	for _, c := range cells {
		if c == nil {
			continue
		}
		depth++
		c.QueueCell = true
		c.QueueDepth = depth
	}
}

// QueueCells returns all queue cells ordered by depth, then position.
func (g *Grid) QueueCells() []*Cell {
	var out []*Cell
	g.ForEachCell(func(c *Cell) {
		if c.QueueCell {
			out = append(out, c)
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].QueueDepth < out[j].QueueDepth
	})
	return out
}

// QueueCellAtDepth returns the queue cell with the given depth nearest to near.
func (g *Grid) QueueCellAtDepth(depth int, near *Cell) *Cell {
	var best *Cell
	bestDist := math.MaxFloat64
	g.ForEachCell(func(c *Cell) {
		if !c.QueueCell || c.QueueDepth != depth {
			return
		}
		d := 0.0
		if near != nil {
			d = c.Distance(near)
		}
		if d < bestDist {
			best = c
			bestDist = d
		}
	})
	return best
}

// PlaceAgent puts an agent on an empty passable cell. Fails rather than
// overwriting an occupant.
func (g *Grid) PlaceAgent(a *Agent, c *Cell) bool {
	if a == nil || c == nil || a.cell != nil {
		return false
	}
	if c.Agent != nil || !c.IsPassable() || (c.Furniture != nil && c.Furniture.Movable) {
		return false
	}
	c.Agent = a
	a.cell = c
	return true
}

// MoveAgent commits an agent onto an adjacent cell. The target is checked
// and claimed in one step so two agents can never share a cell; cells with
// movable furniture and non-adjacent cells are refused.
func (g *Grid) MoveAgent(a *Agent, to *Cell) bool {
	if a == nil || to == nil || a.cell == nil {
		return false
	}
	if !a.cell.IsNeighbour(to, true) {
		return false
	}
	if to.Agent != nil || !to.IsPassable() || (to.Furniture != nil && to.Furniture.Movable) {
		return false
	}
	from := a.cell
	from.Agent = nil
	to.Agent = a
	a.cell = to
	g.events.Push(Event{Kind: EventAgentMoved, Agent: a, From: from, Cell: to})
	return true
}

// RemoveAgent takes an agent off the grid.
func (g *Grid) RemoveAgent(a *Agent) {
	if a == nil || a.cell == nil {
		return
	}
	if a.cell.Agent == a {
		a.cell.Agent = nil
	}
	a.cell = nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
