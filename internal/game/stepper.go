package game

import (
	"fmt"

	"github.com/zyedidia/generic/mapset"
)

// Update advances the agent by dt seconds. It never panics on inconsistent
// state: problems are logged, the route is dropped and the tick completes.
func (a *Agent) Update(s *Sim, dt float64) {
	if a.cell == nil {
		return
	}
	if dt < 0 {
		dt = 0
	}
	if limit := s.Config.MaxDeltaTime; limit > 0 && dt > limit {
		dt = limit
	}
	if a.holdTime > 0 {
		a.holdTime -= dt
	}

	if a.relocation != nil {
		a.updateRelocation(s, dt)
		return
	}
	if a.Arrived() {
		a.arrive(s)
		return
	}
	if a.state == AgentPathFailed && a.retryIn > 0 {
		a.retryIn -= dt
		return
	}
	if a.path != nil && a.pathVersion != s.Grid.Version() {
		s.logVerbose(a, "path", "stale", fmt.Sprintf("v%d -> v%d", a.pathVersion, s.Grid.Version()), 0)
		a.path = nil
	}
	if a.next == nil && !a.nextHop(s) {
		return
	}

	next := a.next
	switch a.Enterability(next) {
	case EnterNever:
		s.log(a, "wait", "blocked", next.String(), 0)
		a.dropRoute()
		a.setState(s, AgentWaitingBlocked)
		return
	case EnterSoon:
		a.waitSoon(s, dt)
		return
	}
	if f := next.Furniture; f != nil && f.Movable {
		a.startRelocation(s, f)
		return
	}

	a.clearWait()
	a.setState(s, AgentMoving)
	if a.progress(s, dt, 1, nil) && a.commitHop(s) && a.Arrived() {
		a.arrive(s)
	}
}

func (a *Agent) setState(s *Sim, st AgentState) {
	if a.state == st {
		return
	}
	s.logVerbose(a, "state", "change", a.state.String()+" -> "+st.String(), 0)
	a.state = st
}

func (a *Agent) clearWait() {
	a.waitTime = 0
	a.asked = false
}

// dropRoute forgets the path and any hop in progress.
func (a *Agent) dropRoute() {
	a.path = nil
	a.next = nil
	a.moveFrac = 0
}

func (a *Agent) arrive(s *Sim) {
	a.dropRoute()
	a.clearWait()
	if a.state == AgentIdle {
		return
	}
	if a.dest != nil {
		a.stats.Arrivals++
		s.log(a, "move", "arrived", a.cell.String(), 0)
		s.emit(Event{Kind: EventAgentArrived, Agent: a, Cell: a.cell})
	}
	if dest := a.resume; dest != nil {
		s.log(a, "wait", "resume", dest.String(), 0)
		a.SetDestination(dest)
		return
	}
	a.setState(s, AgentIdle)
}

// nextHop takes the next cell off the path, searching for a new path first
// when there is none.
func (a *Agent) nextHop(s *Sim) bool {
	if a.path == nil || a.path.Len() == 0 {
		if !a.findPath(s) {
			return false
		}
	}
	next := a.path.Dequeue()
	if next == nil || next == a.cell {
		s.log(a, "path", "inconsistent", "next hop is the current cell", 0)
		a.path = nil
		return false
	}
	if !a.cell.IsNeighbour(next, true) {
		s.log(a, "path", "not_adjacent", a.cell.String()+" -> "+next.String(), 0)
		a.path = nil
		return false
	}
	a.next = next
	a.moveFrac = 0
	return true
}

// findPath runs A* on a fresh graph. Agents are ignored unless a wait timed
// out; every cell of an obstacle that could not be relocated is treated as
// impassable once.
func (a *Agent) findPath(s *Sim) bool {
	a.setState(s, AgentNeedPath)
	opts := GraphOptions{
		IgnoreAgents: !a.avoidAgent,
		Root:         a.cell,
		Diagonals:    s.Config.Diagonals,
	}
	if a.avoid != nil && a.avoid.Anchor() != nil {
		blocked := mapset.New[*Cell]()
		for _, c := range s.Grid.Footprint(a.avoid) {
			blocked.Put(c)
		}
		opts.Cost = func(c *Cell) float64 {
			if blocked.Has(c) {
				return 0
			}
			return c.MovementCost()
		}
	}
	a.avoidAgent = false
	a.avoid = nil

	p := FindPath(BuildTileGraph(s.Grid, opts), a.cell, a.dest)
	if p.Unreachable() || p.Len() == 0 {
		a.stats.PathFailures++
		a.path = nil
		a.retryIn = s.Config.RepathDelay
		a.setState(s, AgentPathFailed)
		s.log(a, "path", "unreachable", a.cell.String()+" -> "+a.dest.String(), 0)
		s.emit(Event{Kind: EventPathFailed, Agent: a, Cell: a.dest})
		return false
	}
	a.path = p
	a.pathVersion = s.Grid.Version()
	s.logVerbose(a, "path", "found", a.cell.String()+" -> "+a.dest.String(), float64(p.Steps()))
	return true
}

// waitSoon holds the agent in front of a closed door or another agent. The
// door is opened by waiting; an occupant is asked to move and, after MaxWait,
// the agent gives up and routes around agents.
func (a *Agent) waitSoon(s *Sim, dt float64) {
	if a.state != AgentWaitingSoon {
		a.setState(s, AgentWaitingSoon)
		a.clearWait()
	}
	a.waitTime += dt
	a.stats.WaitSeconds += dt

	next := a.next
	if f := next.Furniture; f.IsDoor() && !f.IsOpen() {
		f.Open(s.Config.DoorOpenSpeed * dt)
		s.logVerbose(a, "wait", "door", next.String(), f.Openness())
	}
	if other := next.Agent; other != nil && other != a && !a.asked && a.waitTime >= s.Config.AskToMoveAfter {
		a.asked = true
		s.log(a, "wait", "ask_to_move", other.Label, a.waitTime)
		s.emit(Event{Kind: EventAskToMove, Agent: a, Target: other, Cell: next})
	}
	if a.waitTime >= s.Config.MaxWait {
		a.stats.WaitTimeouts++
		s.log(a, "wait", "timeout", next.String(), a.waitTime)
		a.dropRoute()
		a.avoidAgent = true
		a.clearWait()
		a.setState(s, AgentWaitingBlocked)
	}
}

// progress moves the agent toward a.next and reports whether the hop is
// complete. carrying is furniture whose cost is replaced by drag.
func (a *Agent) progress(s *Sim, dt, drag float64, carrying *Furniture) bool {
	next := a.next
	cost := next.MovementCostIgnoring(carrying)
	if cost <= 0 {
		return false
	}
	if f := next.Furniture; f.IsDoor() {
		f.hold()
	}
	if drag < 1 {
		drag = 1
	}
	a.speed = a.BaseSpeed / cost / drag
	dist := a.cell.Distance(next)
	if dist <= 0 {
		return true
	}
	a.moveFrac += a.speed * dt / dist
	return a.moveFrac >= 1
}

// commitHop claims a.next. If another agent got there first the hop stays
// pending and is retried next tick.
func (a *Agent) commitHop(s *Sim) bool {
	from := a.cell
	if !s.Grid.MoveAgent(a, a.next) {
		a.moveFrac = 1
		s.logVerbose(a, "move", "claim_lost", a.next.String(), 0)
		return false
	}
	a.stats.Steps++
	a.next = nil
	a.moveFrac = 0
	s.logVerbose(a, "move", "step", from.String()+" -> "+a.cell.String(), a.speed)
	return true
}

func (a *Agent) startRelocation(s *Sim, f *Furniture) {
	plan, err := s.Planner().Plan(s.Grid, a.cell, a.dest, f)
	if err != nil {
		a.stats.RelocationFailures++
		s.log(a, "relocate", "failed", err.Error(), 0)
		s.emit(Event{Kind: EventRelocationFailed, Agent: a, Furniture: f, Cell: f.Anchor()})
		a.dropRoute()
		a.avoid = f
		a.setState(s, AgentWaitingBlocked)
		return
	}
	a.dropRoute()
	a.clearWait()
	a.relocation = &relocationRun{plan: plan}
	a.setState(s, AgentPushingOrPulling)
	s.log(a, "relocate", "start",
		fmt.Sprintf("%s %s %s -> %s", plan.Mode, f, plan.From, plan.To), float64(len(plan.AgentPath)-1))
	s.emit(Event{Kind: EventRelocationStarted, Agent: a, Furniture: f, From: plan.From, Cell: plan.To})
}

// updateRelocation walks the agent along its relocation path, moving the
// furniture one trajectory cell per committed hop. Pushing moves the
// furniture before the agent; pulling moves it into the cell the agent left.
func (a *Agent) updateRelocation(s *Sim, dt float64) {
	run := a.relocation
	plan := run.plan
	f := plan.Furniture
	if run.step+1 >= len(plan.AgentPath) {
		a.finishRelocation(s)
		return
	}

	expected := plan.From
	if run.step > 0 {
		expected = plan.Trajectory[run.step-1]
	}
	if f.Anchor() != expected {
		a.abortRelocation(s, fmt.Sprintf("%s moved to %s", f, f.Anchor()))
		return
	}
	next := plan.AgentPath[run.step+1]
	to := plan.Trajectory[run.step]
	if (to.Furniture != nil && to.Furniture != f) || (next.Furniture != nil && next.Furniture != f) || !next.IsPassable() {
		a.abortRelocation(s, "route obstructed by furniture")
		return
	}
	if (next.Agent != nil && next.Agent != a) || (to.Agent != nil && to.Agent != a) {
		a.waitTime += dt
		a.stats.WaitSeconds += dt
		if a.waitTime >= s.Config.MaxWait {
			a.abortRelocation(s, "route obstructed by agent")
		}
		return
	}
	a.waitTime = 0

	a.next = next
	if !a.progress(s, dt, f.Cost, f) {
		return
	}
	switch plan.Mode {
	case RelocationPush:
		if !s.Grid.MoveFurniture(f, to) {
			a.abortRelocation(s, "push blocked at "+to.String())
			return
		}
		if !a.commitHop(s) {
			a.abortRelocation(s, "step blocked at "+next.String())
			return
		}
	case RelocationPull:
		if !a.commitHop(s) {
			a.abortRelocation(s, "step blocked at "+next.String())
			return
		}
		if !s.Grid.MoveFurniture(f, to) {
			a.abortRelocation(s, "pull blocked at "+to.String())
			return
		}
	}
	run.step++
	if run.step+1 >= len(plan.AgentPath) {
		a.finishRelocation(s)
	}
}

func (a *Agent) finishRelocation(s *Sim) {
	f := a.relocation.plan.Furniture
	a.relocation = nil
	a.dropRoute()
	a.clearWait()
	a.stats.Relocations++
	s.log(a, "relocate", "done", f.String()+" at "+f.Anchor().String(), 0)
	s.emit(Event{Kind: EventRelocationFinished, Agent: a, Furniture: f, Cell: f.Anchor()})
	if a.Arrived() {
		a.arrive(s)
		return
	}
	a.setState(s, AgentNeedPath)
}

func (a *Agent) abortRelocation(s *Sim, reason string) {
	f := a.relocation.plan.Furniture
	a.relocation = nil
	a.dropRoute()
	a.clearWait()
	a.stats.RelocationFailures++
	a.avoid = f
	s.log(a, "relocate", "aborted", reason, 0)
	s.emit(Event{Kind: EventRelocationFailed, Agent: a, Furniture: f, Cell: f.Anchor()})
	a.setState(s, AgentWaitingBlocked)
}
