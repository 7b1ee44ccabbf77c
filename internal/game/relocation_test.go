package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// corridorSim is a one-cell corridor with a trolley in front of C0 and a
// single alcove above (3,1).
func corridorSim(t *testing.T, opts ...SimOption) *Sim {
	t.Helper()
	s := NewSim(append([]SimOption{
		WithRows(
			"###.#",
			".T...",
			"#####",
		),
		WithCustomer("C0", 0, 1),
	}, opts...)...)
	require.NoError(t, s.Err())
	return s
}

func TestPlan_OpenFloorEndToEnd(t *testing.T) {
	s := NewSim(
		WithGridSize(5, 5),
		WithFurniture(FurnitureTrolley, 2, 2),
		WithCustomer("C0", 1, 1),
	)
	require.NoError(t, s.Err())
	g := s.Grid
	f := g.At(2, 2).Furniture

	rel, err := s.Planner().Plan(g, g.At(1, 1), g.At(4, 4), f)
	require.NoError(t, err)
	assert.Equal(t, RelocationPull, rel.Mode)
	assert.Equal(t, g.At(2, 2), rel.From)
	assert.Equal(t, g.At(2, 1), rel.To)
	assert.Equal(t, g.At(1, 1), rel.AgentStart)
	assert.Equal(t, g.At(3, 1), rel.AgentFinal)
	assert.Equal(t, 1, rel.Candidates)

	// The onward route, planned with the trolley on its new cell, avoids it.
	require.True(t, g.MoveFurniture(f, rel.To))
	onward := FindPath(s.Graph(rel.AgentFinal, true), rel.AgentFinal, g.At(4, 4))
	require.False(t, onward.Unreachable())
	assert.False(t, onward.Contains(rel.To))
}

func TestPlan_Push(t *testing.T) {
	s := corridorSim(t)
	g := s.Grid
	f := g.At(1, 1).Furniture
	require.NotNil(t, f)
	v := g.Version()

	rel, err := s.Planner().Plan(g, g.At(0, 1), g.At(4, 1), f)
	require.NoError(t, err)
	assert.Equal(t, RelocationPush, rel.Mode)
	assert.Equal(t, g.At(3, 0), rel.To)
	assert.Equal(t, g.At(3, 1), rel.AgentFinal)
	assert.Equal(t, 3, rel.Candidates)
	assert.Equal(t, []*Cell{g.At(0, 1), g.At(1, 1), g.At(2, 1), g.At(3, 1)}, rel.AgentPath)
	assert.Equal(t, []*Cell{g.At(2, 1), g.At(3, 1), g.At(3, 0)}, rel.Trajectory)

	// Planning never touches the grid.
	assert.Equal(t, v, g.Version())
	assert.Equal(t, f, g.At(1, 1).Furniture)
}

func TestPlan_Pull(t *testing.T) {
	s := NewSim(
		WithGridSize(5, 3),
		WithFurniture(FurnitureTrolley, 2, 1),
		WithCustomer("C0", 1, 1),
	)
	require.NoError(t, s.Err())
	g := s.Grid

	rel, err := s.Planner().Plan(g, g.At(1, 1), g.At(0, 1), g.At(2, 1).Furniture)
	require.NoError(t, err)
	assert.Equal(t, RelocationPull, rel.Mode)
	assert.Equal(t, g.At(2, 0), rel.To)
	assert.Equal(t, g.At(3, 0), rel.AgentFinal)
	require.Len(t, rel.Trajectory, len(rel.AgentPath)-1)
	assert.Equal(t, rel.To, rel.Trajectory[len(rel.Trajectory)-1])
	assert.Equal(t, rel.AgentStart, rel.Trajectory[0])
}

func TestPlan_Exhausted(t *testing.T) {
	s := NewSim(
		WithRows(
			"#####",
			".T...",
			"#####",
		),
		WithCustomer("C0", 0, 1),
	)
	require.NoError(t, s.Err())
	g := s.Grid

	_, err := s.Planner().Plan(g, g.At(0, 1), g.At(4, 1), g.At(1, 1).Furniture)
	require.ErrorIs(t, err, ErrRelocationExhausted)
	assert.Contains(t, err.Error(), "after 3 candidates")
}

func TestPlan_CandidateBound(t *testing.T) {
	s := corridorSim(t, WithConfig(func() Config {
		cfg := DefaultConfig()
		cfg.MaxRelocationCandidates = 2
		return cfg
	}()))
	g := s.Grid

	_, err := s.Planner().Plan(g, g.At(0, 1), g.At(4, 1), g.At(1, 1).Furniture)
	require.ErrorIs(t, err, ErrRelocationExhausted)
	assert.Contains(t, err.Error(), "after 2 candidates")
}

func TestPlan_Rejections(t *testing.T) {
	s := NewSim(
		WithGridSize(6, 6),
		WithFurniture(FurnitureShelf, 1, 0),
		WithFurnitureSized(FurnitureCrate, 3, 3, 2, 1),
		WithFurniture(FurnitureBin, 5, 5),
		WithFurniture(FurnitureTrolley, 1, 1),
		WithCustomer("C0", 0, 0),
	)
	require.NoError(t, s.Err())
	g := s.Grid
	agent := g.At(0, 0)
	rp := s.Planner()

	_, err := rp.Plan(g, agent, nil, g.At(1, 0).Furniture)
	assert.ErrorIs(t, err, ErrNotRelocatable, "fixed shelf")

	_, err = rp.Plan(g, agent, nil, g.At(3, 3).Furniture)
	assert.ErrorIs(t, err, ErrNotRelocatable, "multi-cell crate")

	_, err = rp.Plan(g, agent, nil, g.At(5, 5).Furniture)
	assert.ErrorIs(t, err, ErrNotAdjacent)

	// Diagonal neighbour across the shelf corner.
	_, err = rp.Plan(g, agent, nil, g.At(1, 1).Furniture)
	assert.ErrorIs(t, err, ErrNotAdjacent, "clipped corner")

	_, err = rp.Plan(g, agent, nil, nil)
	assert.ErrorIs(t, err, ErrNotRelocatable)
}

func TestPlan_NeverReturnsOccupiedCell(t *testing.T) {
	setups := []struct {
		name   string
		others [][2]int
	}{
		{"alone", nil},
		{"north taken", [][2]int{{2, 1}}},
		{"crowded", [][2]int{{2, 1}, {3, 2}, {2, 3}, {3, 1}}},
	}
	for _, tt := range setups {
		t.Run(tt.name, func(t *testing.T) {
			opts := []SimOption{
				WithGridSize(5, 5),
				WithFurniture(FurnitureTrolley, 2, 2),
				WithFurniture(FurnitureCrate, 4, 0),
				WithCustomer("C0", 1, 1),
			}
			for i, xy := range tt.others {
				opts = append(opts, WithCustomer("X"+string(rune('0'+i)), xy[0], xy[1]))
			}
			s := NewSim(opts...)
			require.NoError(t, s.Err())
			g := s.Grid

			rel, err := s.Planner().Plan(g, g.At(1, 1), g.At(4, 4), g.At(2, 2).Furniture)
			require.NoError(t, err)
			assert.Nil(t, rel.To.Agent, "destination %s holds an agent", rel.To)
			assert.Nil(t, rel.To.Furniture, "destination %s holds furniture", rel.To)
			assert.NotEqual(t, rel.From, rel.To)
			for _, c := range rel.Trajectory {
				if c.Agent != nil && c.Agent.Label != "C0" {
					t.Fatalf("trajectory crosses %s at %s", c.Agent.Label, c)
				}
			}
		})
	}
}
