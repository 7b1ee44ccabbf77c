package game

import (
	"errors"
	"fmt"

	"github.com/zyedidia/generic/mapset"
)

var (
	// ErrRelocationExhausted is returned when no candidate cell yields a valid move.
	ErrRelocationExhausted = errors.New("relocation: no valid destination")
	// ErrNotRelocatable is returned for fixed or multi-cell furniture.
	ErrNotRelocatable = errors.New("relocation: furniture cannot be moved")
	// ErrNotAdjacent is returned when the agent is not next to the obstacle.
	ErrNotAdjacent = errors.New("relocation: agent not adjacent to obstacle")
)

// RelocationMode says how the agent moves the obstacle.
type RelocationMode uint8

const (
	RelocationPush RelocationMode = iota // agent walks into the obstacle's cell
	RelocationPull                       // agent walks away, obstacle follows
)

func (m RelocationMode) String() string {
	if m == RelocationPull {
		return "pull"
	}
	return "push"
}

// Relocation is a committed plan for moving one obstacle out of the way.
//
// AgentPath starts at the agent's current cell and ends at AgentFinal.
// Trajectory[i] is where the obstacle sits once the agent has stepped onto
// AgentPath[i+1]; its last entry is To.
type Relocation struct {
	Furniture  *Furniture
	From       *Cell
	To         *Cell
	Mode       RelocationMode
	AgentStart *Cell
	AgentFinal *Cell
	AgentPath  []*Cell
	Trajectory []*Cell
	Candidates int // candidate cells evaluated before this one was accepted
}

// RelocationPlanner searches for somewhere to put an obstacle blocking an
// agent. MaxCandidates bounds the search; zero means every reachable cell.
type RelocationPlanner struct {
	Diagonals     bool
	MaxCandidates int
}

// relocationState is one pending search step: the candidates already ruled out.
type relocationState struct {
	excluded mapset.Set[*Cell]
}

func (st relocationState) with(c *Cell) relocationState {
	next := mapset.New[*Cell]()
	st.excluded.Each(func(e *Cell) { next.Put(e) })
	next.Put(c)
	return relocationState{excluded: next}
}

// Plan finds a cell for f such that the agent standing on agentCell can move
// it there by pushing or pulling and still reach dest afterwards without
// crossing the obstacle's new cell. The grid is not modified.
//
// The search walks candidates nearest-first from the obstacle, ruling each
// failed one out, until one passes or the candidates run out.
func (rp RelocationPlanner) Plan(g *Grid, agentCell, dest *Cell, f *Furniture) (*Relocation, error) {
	if f == nil || !f.Movable || f.Width != 1 || f.Height != 1 {
		return nil, fmt.Errorf("%w: %s", ErrNotRelocatable, f)
	}
	obstacle := f.Anchor()
	if obstacle == nil || agentCell == nil || agentCell.Agent == nil {
		return nil, fmt.Errorf("%w: %s not on grid", ErrNotRelocatable, f)
	}
	graph := BuildTileGraph(g, GraphOptions{Root: agentCell, Diagonals: rp.Diagonals})
	// A clipped diagonal would drag the obstacle through a wall corner.
	if !graph.HasEdge(agentCell, obstacle) {
		return nil, fmt.Errorf("%w: agent %s, %s at %s", ErrNotAdjacent, agentCell, f, obstacle)
	}
	stack := []relocationState{{excluded: mapset.New[*Cell]()}}
	tried := 0

	for len(stack) > 0 {
		st := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if rp.MaxCandidates > 0 && tried >= rp.MaxCandidates {
			break
		}

		cand := NearestFreeCell(graph, obstacle, st.excluded, true)
		if cand == nil {
			break
		}
		tried++

		if rel := rp.evaluate(g, graph, agentCell, dest, f, cand); rel != nil {
			rel.Candidates = tried
			return rel, nil
		}
		stack = append(stack, st.with(cand))
	}
	return nil, fmt.Errorf("%w: %s after %d candidates", ErrRelocationExhausted, f, tried)
}

// evaluate checks one candidate cell and returns the plan, or nil if the
// candidate cannot work.
func (rp RelocationPlanner) evaluate(g *Grid, graph *TileGraph, agentCell, dest *Cell, f *Furniture, cand *Cell) *Relocation {
	agent := agentCell.Agent
	obstacle := f.Anchor()

	route := FindPath(graph, agentCell, cand)
	if route.Unreachable() || route.Steps() == 0 {
		return nil
	}
	cells := route.Initial()

	rel := &Relocation{
		Furniture:  f,
		From:       obstacle,
		To:         cand,
		AgentStart: agentCell,
	}
	if cells[1] == obstacle {
		// Push: the agent stops one short of the candidate and the obstacle
		// stays one cell ahead of it.
		if len(cells) < 3 {
			return nil
		}
		rel.Mode = RelocationPush
		rel.AgentPath = cells[:len(cells)-1]
		rel.Trajectory = cells[2:]
	} else {
		// Pull: the agent walks through the candidate and one step beyond,
		// dragging the obstacle along the cells it vacates.
		for _, c := range cells[1:] {
			if c == obstacle {
				return nil
			}
		}
		prev := cells[len(cells)-2]
		final := g.At(cand.X+(cand.X-prev.X), cand.Y+(cand.Y-prev.Y))
		if final == nil || final.Furniture != nil || (final.Agent != nil && final.Agent != agent) {
			return nil
		}
		if !graph.HasEdge(cand, final) {
			return nil
		}
		rel.Mode = RelocationPull
		rel.AgentPath = append(cells, final)
		rel.Trajectory = cells
	}
	rel.AgentFinal = rel.AgentPath[len(rel.AgentPath)-1]

	for _, c := range rel.Trajectory {
		if c.Furniture != nil && c.Furniture != f {
			return nil
		}
		if c.Agent != nil && c.Agent != agent {
			return nil
		}
	}

	if dest == nil || dest == rel.AgentFinal {
		return rel
	}
	// Plan the onward route as if the obstacle already sat on the candidate.
	hypothetical := BuildTileGraph(g, GraphOptions{
		IgnoreAgents: true,
		Root:         rel.AgentFinal,
		Diagonals:    rp.Diagonals,
		Cost: func(c *Cell) float64 {
			switch c {
			case obstacle:
				return cellCost(c.Floor, nil)
			case cand:
				return cellCost(c.Floor, f)
			default:
				return c.MovementCost()
			}
		},
	})
	onward := FindPath(hypothetical, rel.AgentFinal, dest)
	if onward.Unreachable() || onward.Contains(cand) {
		return nil
	}
	return rel
}
