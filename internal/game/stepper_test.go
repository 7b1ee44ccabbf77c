package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dumpLog prints the full SimLog to t.Log so it appears in `go test -v` output.
func dumpLog(t *testing.T, s *Sim) {
	t.Helper()
	entries := s.SimLog.Entries()
	if len(entries) == 0 {
		t.Log("(no log entries)")
		return
	}
	for _, e := range entries {
		t.Log(e.String())
	}
}

func arrived(label string) func(*Sim) bool {
	return func(s *Sim) bool {
		a := s.AgentByLabel(label)
		return a != nil && a.State() == AgentIdle && a.Arrived()
	}
}

// checkOccupancy fails if the grid and the agents disagree about who stands where.
func checkOccupancy(t *testing.T, s *Sim) {
	t.Helper()
	seen := make(map[*Cell]string)
	for _, a := range s.Agents {
		c := a.Cell()
		if c == nil {
			continue
		}
		if other, ok := seen[c]; ok {
			t.Fatalf("T=%d: %s and %s share %s", s.Tick, other, a.Label, c)
		}
		seen[c] = a.Label
		if c.Agent != a {
			t.Fatalf("T=%d: %s thinks it is on %s but the cell holds %v", s.Tick, a.Label, c, c.Agent)
		}
	}
}

func TestUpdate_WalksToDestination(t *testing.T) {
	s := NewSim(
		WithGridSize(10, 10),
		WithCustomer("C0", 0, 0),
		WithDestination("C0", 5, 0),
	)
	require.NoError(t, s.Err())

	tick := s.RunUntil(arrived("C0"), 100)
	if tick < 0 {
		dumpLog(t, s)
		t.Fatal("C0 never arrived")
	}
	a := s.AgentByLabel("C0")
	assert.Equal(t, s.Grid.At(5, 0), a.Cell())
	assert.Equal(t, 5, a.Stats().Steps)
	assert.Equal(t, 1, a.Stats().Arrivals)
	assert.True(t, s.SimLog.HasEntry("move", "arrived", "(5,0)"))
	// 5 cells at 2 cells/s and 0.1s ticks.
	assert.InDelta(t, 25, tick, 2)
}

func TestUpdate_WetFloorIsSlower(t *testing.T) {
	run := func(floor FloorType) int {
		opts := []SimOption{
			WithGridSize(5, 1),
			WithCustomer("C0", 0, 0),
			WithDestination("C0", 4, 0),
		}
		for x := 1; x < 5; x++ {
			opts = append(opts, WithFloor(x, 0, floor))
		}
		s := NewSim(opts...)
		require.NoError(t, s.Err())
		return s.RunUntil(arrived("C0"), 500)
	}
	dry, wet := run(FloorTile), run(FloorWet)
	require.Positive(t, dry)
	require.Positive(t, wet)
	assert.Greater(t, wet, dry+dry/2, "wet floor should roughly halve speed (dry=%d wet=%d)", dry, wet)
}

func TestUpdate_UnreachableDestination(t *testing.T) {
	var failed []Event
	s := NewSim(
		WithRows(
			".....",
			".###.",
			".#.#.",
			".###.",
		),
		WithCustomer("C0", 0, 0),
		WithDestination("C0", 2, 2),
	)
	require.NoError(t, s.Err())
	s.Observe(func(ev Event) {
		if ev.Kind == EventPathFailed {
			failed = append(failed, ev)
		}
	})

	s.RunTicks(20)
	a := s.AgentByLabel("C0")
	assert.Equal(t, s.Grid.At(0, 0), a.Cell(), "must not move")
	assert.GreaterOrEqual(t, a.Stats().PathFailures, 2, "retried after the repath delay")
	assert.True(t, s.SimLog.HasEntry("path", "unreachable", "(2,2)"))
	require.NotEmpty(t, failed)
	assert.Equal(t, a, failed[0].Agent)
}

func TestUpdate_WaitsForDoor(t *testing.T) {
	s := NewSim(
		WithRows(
			"ooo",
			"#D#",
			"...",
		),
		WithCustomer("C0", 1, 2),
		WithDestination("C0", 1, 0),
	)
	require.NoError(t, s.Err())
	door := s.Grid.At(1, 1).Furniture
	require.True(t, door.IsDoor())

	tick := s.RunUntil(func(s *Sim) bool {
		return s.AgentByLabel("C0").State() == AgentWaitingSoon
	}, 5)
	require.Positive(t, tick, "C0 should wait at the closed door")
	assert.Greater(t, door.Openness(), 0.0)

	require.Positive(t, s.RunUntil(arrived("C0"), 100))

	// Nobody holds it any more, so it swings shut.
	s.RunTicks(20)
	assert.Equal(t, 0.0, door.Openness())
}

func TestUpdate_AskToMove(t *testing.T) {
	s := NewSim(
		WithGridSize(5, 2),
		WithEmployee("E0", 2, 0),
		WithCustomer("C0", 0, 0),
		WithDestination("C0", 4, 0),
	)
	require.NoError(t, s.Err())

	if s.RunUntil(arrived("C0"), 200) < 0 {
		dumpLog(t, s)
		t.Fatal("C0 never got past E0")
	}
	e := s.AgentByLabel("E0")
	assert.True(t, s.SimLog.HasEntry("wait", "ask_to_move", "E0"))
	assert.True(t, s.SimLog.HasEntry("wait", "step_aside", "(2,1)"))
	assert.Equal(t, 1, e.Stats().AskedToMove)
	assert.Equal(t, s.Grid.At(2, 1), e.Cell())
	assert.Zero(t, s.AgentByLabel("C0").Stats().WaitTimeouts)
}

func TestUpdate_WaitingBlockerResumesAfterSteppingAside(t *testing.T) {
	// Two agents meet head-on in the doorway; one steps back so the other can
	// pass, then carries on.
	s := NewSim(
		WithRows(
			"ooooo",
			"##D##",
			".....",
			".....",
		),
		WithCustomer("IN", 2, 0),
		WithDestination("IN", 2, 3),
		WithCustomer("OUT", 2, 2),
		WithDestination("OUT", 2, 0),
	)
	require.NoError(t, s.Err())

	done := s.RunUntil(func(s *Sim) bool {
		checkOccupancy(t, s)
		return arrived("IN")(s) && arrived("OUT")(s)
	}, 600)
	if done < 0 {
		dumpLog(t, s)
		t.Fatal("agents never got past each other")
	}
	assert.True(t, s.SimLog.HasEntry("wait", "step_aside", ""))
	assert.True(t, s.SimLog.HasEntry("wait", "resume", ""))
}

func TestUpdate_RelocatesTrolley(t *testing.T) {
	var started, finished int
	s := corridorSim(t, WithDestination("C0", 4, 1))
	s.Observe(func(ev Event) {
		switch ev.Kind {
		case EventRelocationStarted:
			started++
		case EventRelocationFinished:
			finished++
		}
	})
	trolley := s.Grid.At(1, 1).Furniture

	sawPushing := false
	tick := s.RunUntil(func(s *Sim) bool {
		checkOccupancy(t, s)
		if s.AgentByLabel("C0").State() == AgentPushingOrPulling {
			sawPushing = true
		}
		return arrived("C0")(s)
	}, 300)
	if tick < 0 {
		dumpLog(t, s)
		t.Fatal("C0 never arrived")
	}
	a := s.AgentByLabel("C0")
	assert.True(t, sawPushing)
	assert.Equal(t, s.Grid.At(3, 0), trolley.Anchor())
	assert.Equal(t, 1, a.Stats().Relocations)
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, finished)
	assert.True(t, s.SimLog.HasEntry("relocate", "start", "push"))
	assert.True(t, s.SimLog.HasEntry("relocate", "done", "(3,0)"))
	assert.Nil(t, a.Relocation())
}

func TestUpdate_RelocationFailureNeverHalts(t *testing.T) {
	s := NewSim(
		WithRows(
			"#####",
			".T...",
			"#####",
		),
		WithCustomer("C0", 0, 1),
		WithDestination("C0", 4, 1),
	)
	require.NoError(t, s.Err())
	trolley := s.Grid.At(1, 1).Furniture

	s.RunTicks(50)
	a := s.AgentByLabel("C0")
	assert.Equal(t, s.Grid.At(0, 1), a.Cell())
	assert.Equal(t, s.Grid.At(1, 1), trolley.Anchor())
	assert.GreaterOrEqual(t, a.Stats().RelocationFailures, 1)
	assert.GreaterOrEqual(t, a.Stats().PathFailures, 1)
	assert.True(t, s.SimLog.HasEntry("relocate", "failed", "no valid destination"))
}

func TestUpdate_DetoursAroundWideFurniture(t *testing.T) {
	s := NewSim(
		WithGridSize(6, 3),
		WithFurnitureSized(FurnitureTrolley, 2, 1, 2, 1),
		WithCustomer("C0", 3, 0),
		WithDestination("C0", 3, 2),
	)
	require.NoError(t, s.Err())
	trolley := s.Grid.At(3, 1).Furniture
	require.NotNil(t, trolley)
	require.Equal(t, s.Grid.At(2, 1), trolley.Anchor())

	if s.RunUntil(arrived("C0"), 200) < 0 {
		dumpLog(t, s)
		t.Fatal("C0 never got past the wide trolley")
	}
	a := s.AgentByLabel("C0")
	assert.Equal(t, 1, a.Stats().RelocationFailures)
	assert.Equal(t, 4, a.Stats().Steps)
	assert.Equal(t, s.Grid.At(2, 1), trolley.Anchor())
	assert.True(t, s.SimLog.HasEntry("relocate", "failed", "cannot be moved"))
}

func TestUpdate_RepathsWhenGridChanges(t *testing.T) {
	s := NewSim(
		WithGridSize(7, 3),
		WithVerbose(true),
		WithCustomer("C0", 0, 1),
		WithDestination("C0", 6, 1),
	)
	require.NoError(t, s.Err())
	s.RunTicks(3)
	require.True(t, s.Grid.PlaceFurniture(NewFurniture(FurnitureShelf), s.Grid.At(3, 1)))

	if s.RunUntil(arrived("C0"), 200) < 0 {
		dumpLog(t, s)
		t.Fatal("C0 never arrived")
	}
	assert.True(t, s.SimLog.HasEntry("path", "stale", ""))
	assert.GreaterOrEqual(t, s.SimLog.CountCategory("path", "found"), 2)
}

func TestUpdate_CrowdNeverShares(t *testing.T) {
	s := NewSim(
		WithGridSize(8, 8),
		WithSeed(7),
		WithCustomer("A", 0, 0), WithDestination("A", 7, 7),
		WithCustomer("B", 7, 7), WithDestination("B", 0, 0),
		WithCustomer("C", 0, 7), WithDestination("C", 7, 0),
		WithCustomer("D", 7, 0), WithDestination("D", 0, 7),
		WithCustomer("E", 3, 3), WithDestination("E", 4, 4),
	)
	require.NoError(t, s.Err())
	for i := 0; i < 400; i++ {
		s.Step(s.Config.TickSeconds)
		checkOccupancy(t, s)
	}
	assert.Positive(t, s.Totals().Arrivals)
}

func TestUpdate_ClampsDeltaTime(t *testing.T) {
	s := NewSim(
		WithGridSize(10, 1),
		WithCustomer("C0", 0, 0),
		WithDestination("C0", 9, 0),
	)
	a := s.AgentByLabel("C0")
	// One huge frame moves at most MaxDeltaTime worth of distance.
	a.Update(s, 60)
	assert.LessOrEqual(t, a.MoveFrac(), s.Config.MaxDeltaTime*a.BaseSpeed+1e-9)
	assert.Equal(t, s.Grid.At(0, 0), a.Cell())
}

func TestAgent_Enterability(t *testing.T) {
	s := NewSim(
		WithRows(
			"#D#",
			".T.",
			"...",
		),
		WithCustomer("C0", 0, 1),
		WithCustomer("C1", 0, 2),
	)
	require.NoError(t, s.Err())
	a := s.AgentByLabel("C0")
	g := s.Grid
	assert.Equal(t, EnterNever, a.Enterability(g.At(0, 0)), "wall")
	assert.Equal(t, EnterNever, a.Enterability(nil))
	assert.Equal(t, EnterSoon, a.Enterability(g.At(1, 0)), "closed door")
	assert.Equal(t, EnterSoon, a.Enterability(g.At(0, 2)), "other agent")
	assert.Equal(t, EnterYes, a.Enterability(g.At(1, 1)), "trolley is passable")
	assert.Equal(t, EnterYes, a.Enterability(g.At(0, 1)), "own cell")
}

func TestAgent_Position(t *testing.T) {
	s := NewSim(
		WithGridSize(3, 1),
		WithCustomer("C0", 0, 0),
		WithDestination("C0", 2, 0),
	)
	a := s.AgentByLabel("C0")
	s.Step(0.1)
	x, y := a.Position()
	assert.InDelta(t, 0.2, x, 1e-9)
	assert.Zero(t, y)
}
