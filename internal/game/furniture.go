package game

import (
	"strconv"
	"strings"
)

// FurnitureKind identifies a placeable obstacle.
type FurnitureKind uint8

const (
	FurnitureWall      FurnitureKind = iota // Structural wall
	FurnitureShelf                          // Stock shelving, blocks movement
	FurnitureTill                           // Checkout counter
	FurnitureDoor                           // Entrance door, must open before entry
	FurnitureTrolley                        // Shopping trolley, movable
	FurnitureCrate                          // Stock crate, movable and heavy
	FurnitureBin                            // Waste bin, movable
	FurnitureMat                            // Display mat, slows but never blocks
	furnitureKindCount                      // sentinel
)

var furnitureKindNames = [...]string{
	FurnitureWall:    "wall",
	FurnitureShelf:   "shelf",
	FurnitureTill:    "till",
	FurnitureDoor:    "door",
	FurnitureTrolley: "trolley",
	FurnitureCrate:   "crate",
	FurnitureBin:     "bin",
	FurnitureMat:     "mat",
}

func (k FurnitureKind) String() string {
	if int(k) < len(furnitureKindNames) {
		return furnitureKindNames[k]
	}
	return "unknown"
}

// ParseFurnitureKind resolves a kind by name (case-insensitive).
func ParseFurnitureKind(s string) (FurnitureKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range furnitureKindNames {
		if name == s {
			return FurnitureKind(k), true
		}
	}
	return 0, false
}

// furnitureCost returns the movement cost multiplier for a kind. 0 blocks.
func furnitureCost(k FurnitureKind) float64 {
	switch k {
	case FurnitureWall, FurnitureShelf, FurnitureTill:
		return 0
	case FurnitureDoor:
		return 1.0
	case FurnitureTrolley:
		return 2.0
	case FurnitureCrate:
		return 3.0
	case FurnitureBin:
		return 2.0
	case FurnitureMat:
		return 1.5
	default:
		return 0
	}
}

// furnitureMovable returns true for kinds an agent may push or pull.
func furnitureMovable(k FurnitureKind) bool {
	switch k {
	case FurnitureTrolley, FurnitureCrate, FurnitureBin:
		return true
	default:
		return false
	}
}

// Furniture is an obstacle occupying a Width×Height footprint from its anchor.
type Furniture struct {
	ID      int
	Kind    FurnitureKind
	Width   int
	Height  int
	Movable bool
	Cost    float64 // multiplier applied to every footprint cell, 0 = blocking

	anchor   *Cell
	openness float64 // doors: 0 closed .. 1 open
	held     bool    // doors: kept open this tick
}

// NewFurniture creates a 1×1 piece with the kind's default cost and mobility.
func NewFurniture(kind FurnitureKind) *Furniture {
	return NewFurnitureSized(kind, 1, 1)
}

// NewFurnitureSized creates a piece with an explicit footprint.
func NewFurnitureSized(kind FurnitureKind, width, height int) *Furniture {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &Furniture{
		Kind:    kind,
		Width:   width,
		Height:  height,
		Movable: furnitureMovable(kind),
		Cost:    furnitureCost(kind),
	}
}

func (f *Furniture) String() string {
	if f == nil {
		return "none"
	}
	return f.Kind.String() + "#" + strconv.Itoa(f.ID)
}

// Anchor returns the top-left footprint cell, or nil when not placed.
func (f *Furniture) Anchor() *Cell {
	return f.anchor
}

// IsDoor returns true for doors.
func (f *Furniture) IsDoor() bool {
	return f != nil && f.Kind == FurnitureDoor
}

// IsOpen returns true once a door has fully opened. Non-doors are always open.
func (f *Furniture) IsOpen() bool {
	if !f.IsDoor() {
		return true
	}
	return f.openness >= 1
}

// Openness returns the door opening fraction.
func (f *Furniture) Openness() float64 {
	return f.openness
}

// Open advances a door toward fully open and holds it for this tick.
func (f *Furniture) Open(amount float64) {
	if !f.IsDoor() {
		return
	}
	f.held = true
	f.openness += amount
	if f.openness > 1 {
		f.openness = 1
	}
}

// hold keeps a door from closing this tick.
func (f *Furniture) hold() {
	f.held = true
}

// update closes doors nobody held during the tick.
func (f *Furniture) update(closeAmount float64) {
	if !f.IsDoor() {
		return
	}
	if f.held {
		f.held = false
		return
	}
	f.openness -= closeAmount
	if f.openness < 0 {
		f.openness = 0
	}
}

// footprint returns the cells covered when anchored at anchor, or nil if any
// would fall outside the grid.
func (g *Grid) footprint(f *Furniture, anchor *Cell) []*Cell {
	if anchor == nil {
		return nil
	}
	cells := make([]*Cell, 0, f.Width*f.Height)
	for dy := 0; dy < f.Height; dy++ {
		for dx := 0; dx < f.Width; dx++ {
			c := g.At(anchor.X+dx, anchor.Y+dy)
			if c == nil {
				return nil
			}
			cells = append(cells, c)
		}
	}
	return cells
}

// Footprint returns the cells a placed piece currently covers.
func (g *Grid) Footprint(f *Furniture) []*Cell {
	if f == nil || f.anchor == nil {
		return nil
	}
	return g.footprint(f, f.anchor)
}

// canHold returns true if c can take f without overwriting anything.
func canHold(c *Cell, f *Furniture) bool {
	if c.Floor == FloorVoid {
		return false
	}
	if c.Furniture != nil && c.Furniture != f {
		return false
	}
	return c.Agent == nil
}

// placementValid checks kind-specific rules. Doors need walls on two
// opposite sides.
func (g *Grid) placementValid(f *Furniture, anchor *Cell) bool {
	if f.Kind != FurnitureDoor {
		return true
	}
	if f.Width != 1 || f.Height != 1 {
		return false
	}
	isWall := func(x, y int) bool {
		c := g.At(x, y)
		return c != nil && c.Furniture != nil && c.Furniture.Kind == FurnitureWall
	}
	x, y := anchor.X, anchor.Y
	return (isWall(x-1, y) && isWall(x+1, y)) || (isWall(x, y-1) && isWall(x, y+1))
}

// PlaceFurniture anchors f at anchor. Fails if any footprint cell is out of
// bounds, void, already occupied, or the kind's placement rule is violated.
// A successful placement invalidates every graph built from this grid.
func (g *Grid) PlaceFurniture(f *Furniture, anchor *Cell) bool {
	if f == nil || anchor == nil || f.anchor != nil {
		return false
	}
	cells := g.footprint(f, anchor)
	if cells == nil {
		return false
	}
	for _, c := range cells {
		if !canHold(c, f) {
			return false
		}
	}
	if !g.placementValid(f, anchor) {
		return false
	}
	for _, c := range cells {
		c.Furniture = f
	}
	f.anchor = anchor
	if f.ID == 0 {
		f.ID = g.nextID
		g.nextID++
	}
	g.furniture = append(g.furniture, f)
	g.touch()
	g.events.Push(Event{Kind: EventFurniturePlaced, Furniture: f, Cell: anchor})
	return true
}

// RemoveFurniture lifts f off the grid.
func (g *Grid) RemoveFurniture(f *Furniture) bool {
	if f == nil || f.anchor == nil {
		return false
	}
	from := f.anchor
	for _, c := range g.footprint(f, f.anchor) {
		if c.Furniture == f {
			c.Furniture = nil
		}
	}
	f.anchor = nil
	for i, p := range g.furniture {
		if p == f {
			g.furniture = append(g.furniture[:i], g.furniture[i+1:]...)
			break
		}
	}
	g.touch()
	g.events.Push(Event{Kind: EventFurnitureRemoved, Furniture: f, Cell: from})
	return true
}

// MoveFurniture re-anchors a placed piece at to. The new footprint may only
// overlap f itself.
func (g *Grid) MoveFurniture(f *Furniture, to *Cell) bool {
	if f == nil || f.anchor == nil || to == nil {
		return false
	}
	if to == f.anchor {
		return true
	}
	cells := g.footprint(f, to)
	if cells == nil {
		return false
	}
	for _, c := range cells {
		if !canHold(c, f) {
			return false
		}
	}
	from := f.anchor
	for _, c := range g.footprint(f, from) {
		c.Furniture = nil
	}
	for _, c := range cells {
		c.Furniture = f
	}
	f.anchor = to
	g.touch()
	g.events.Push(Event{Kind: EventFurnitureMoved, Furniture: f, From: from, Cell: to})
	return true
}
