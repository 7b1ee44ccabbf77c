package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Cells ---

func TestNewGrid_DefaultsToTile(t *testing.T) {
	g := NewGrid(4, 3)
	require.Equal(t, 4, g.Width)
	require.Equal(t, 3, g.Height)
	g.ForEachCell(func(c *Cell) {
		if c.Floor != FloorTile {
			t.Fatalf("cell %s: expected tile floor, got %s", c, c.Floor)
		}
		if c.MovementCost() != 1 {
			t.Fatalf("cell %s: expected cost 1, got %.2f", c, c.MovementCost())
		}
	})
	assert.Nil(t, g.At(-1, 0))
	assert.Nil(t, g.At(4, 0))
	assert.Nil(t, g.At(0, 3))
	assert.Equal(t, "(3,2)", g.At(3, 2).String())
}

func TestCellCost_Combinations(t *testing.T) {
	tests := []struct {
		name  string
		floor FloorType
		kind  FurnitureKind
		furn  bool
		want  float64
	}{
		{"tile", FloorTile, 0, false, 1},
		{"wet", FloorWet, 0, false, 2},
		{"void", FloorVoid, 0, false, 0},
		{"wall", FloorTile, FurnitureWall, true, 0},
		{"shelf on wet", FloorWet, FurnitureShelf, true, 0},
		{"trolley", FloorTile, FurnitureTrolley, true, 2},
		{"crate on wet", FloorWet, FurnitureCrate, true, 6},
		{"mat", FloorTile, FurnitureMat, true, 1.5},
		{"door", FloorTile, FurnitureDoor, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f *Furniture
			if tt.furn {
				f = NewFurniture(tt.kind)
			}
			assert.InDelta(t, tt.want, cellCost(tt.floor, f), 1e-9)
		})
	}
}

func TestCellCost_ClampedToOne(t *testing.T) {
	f := NewFurniture(FurnitureMat)
	f.Cost = 0.25
	if got := cellCost(FloorTile, f); got != 1 {
		t.Fatalf("positive costs below 1 should clamp to 1, got %.2f", got)
	}
}

func TestCell_IsNeighbour(t *testing.T) {
	g := NewGrid(3, 3)
	c := g.At(1, 1)
	assert.True(t, c.IsNeighbour(g.At(1, 0), false))
	assert.False(t, c.IsNeighbour(g.At(0, 0), false))
	assert.True(t, c.IsNeighbour(g.At(0, 0), true))
	assert.False(t, c.IsNeighbour(c, true))
	assert.False(t, g.At(0, 0).IsNeighbour(g.At(2, 2), true))
	assert.False(t, c.IsNeighbour(nil, true))
}

func TestSetFloor_BumpsVersionAndEmits(t *testing.T) {
	g := NewGrid(3, 3)
	v := g.Version()
	g.SetFloor(1, 1, FloorWet)
	require.Greater(t, g.Version(), v)
	events := g.Events().Drain()
	require.Len(t, events, 1)
	assert.Equal(t, EventFloorChanged, events[0].Kind)
	assert.Equal(t, g.At(1, 1), events[0].Cell)

	// Same floor again is a no-op.
	v = g.Version()
	g.SetFloor(1, 1, FloorWet)
	assert.Equal(t, v, g.Version())
	assert.Equal(t, 0, g.Events().Len())

	g.SetFloor(0, 0, FloorOutside)
	assert.True(t, g.At(0, 0).Outside)
}

// --- Queue lanes ---

func TestSetQueue_DepthOrder(t *testing.T) {
	g := NewGrid(5, 5)
	g.SetQueue(g.At(2, 1), g.At(2, 2), nil, g.At(2, 3))
	q := g.QueueCells()
	require.Len(t, q, 3)
	for i, c := range q {
		if c.QueueDepth != i+1 {
			t.Fatalf("queue cell %d: expected depth %d, got %d", i, i+1, c.QueueDepth)
		}
	}
	assert.Equal(t, g.At(2, 2), g.QueueCellAtDepth(2, g.At(0, 0)))
	assert.Nil(t, g.QueueCellAtDepth(4, nil))
}

// --- Agents ---

func TestPlaceAgent_RefusesOccupiedAndBlocked(t *testing.T) {
	g := NewGrid(4, 1)
	require.True(t, g.PlaceFurniture(NewFurniture(FurnitureWall), g.At(1, 0)))
	require.True(t, g.PlaceFurniture(NewFurniture(FurnitureTrolley), g.At(2, 0)))

	a := NewAgent(1, "C0", AgentCustomer, 2)
	b := NewAgent(2, "C1", AgentCustomer, 2)
	require.True(t, g.PlaceAgent(a, g.At(0, 0)))
	assert.False(t, g.PlaceAgent(b, g.At(0, 0)), "occupied")
	assert.False(t, g.PlaceAgent(b, g.At(1, 0)), "wall")
	assert.False(t, g.PlaceAgent(b, g.At(2, 0)), "movable furniture")
	assert.False(t, g.PlaceAgent(a, g.At(3, 0)), "already placed")
	assert.True(t, g.PlaceAgent(b, g.At(3, 0)))
}

func TestMoveAgent_NeverShares(t *testing.T) {
	g := NewGrid(3, 1)
	a := NewAgent(1, "C0", AgentCustomer, 2)
	b := NewAgent(2, "C1", AgentCustomer, 2)
	require.True(t, g.PlaceAgent(a, g.At(0, 0)))
	require.True(t, g.PlaceAgent(b, g.At(1, 0)))

	assert.False(t, g.MoveAgent(a, g.At(1, 0)))
	assert.Equal(t, a, g.At(0, 0).Agent)
	assert.Equal(t, b, g.At(1, 0).Agent)

	require.True(t, g.MoveAgent(b, g.At(2, 0)))
	require.True(t, g.MoveAgent(a, g.At(1, 0)))
	assert.Nil(t, g.At(0, 0).Agent)
	assert.Equal(t, g.At(1, 0), a.Cell())

	moves := 0
	for _, ev := range g.Events().Drain() {
		if ev.Kind == EventAgentMoved {
			moves++
		}
	}
	assert.Equal(t, 2, moves)

	g.RemoveAgent(a)
	assert.Nil(t, a.Cell())
	assert.Nil(t, g.At(1, 0).Agent)
}

func TestMoveAgent_RefusesMovableFurnitureAndDistantCells(t *testing.T) {
	g := NewGrid(5, 1)
	require.True(t, g.PlaceFurniture(NewFurniture(FurnitureTrolley), g.At(3, 0)))
	a := NewAgent(1, "C0", AgentCustomer, 2)
	require.True(t, g.PlaceAgent(a, g.At(4, 0)))

	assert.False(t, g.MoveAgent(a, g.At(3, 0)), "movable furniture")
	assert.False(t, g.MoveAgent(a, g.At(2, 0)), "not adjacent")
	assert.False(t, g.MoveAgent(a, g.At(4, 0)), "same cell")
	assert.Equal(t, g.At(4, 0), a.Cell())
	assert.Equal(t, a, g.At(4, 0).Agent)
	assert.Nil(t, g.At(2, 0).Agent)

	for _, ev := range g.Events().Drain() {
		assert.NotEqual(t, EventAgentMoved, ev.Kind)
	}
}
