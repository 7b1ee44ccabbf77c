package game

import "github.com/zyedidia/generic/mapset"

// Brain picks destinations for idle agents. A nil result keeps the agent
// where it is.
type Brain interface {
	Decide(s *Sim, a *Agent) *Cell
}

// BrainFunc adapts a function to the Brain interface.
type BrainFunc func(s *Sim, a *Agent) *Cell

func (f BrainFunc) Decide(s *Sim, a *Agent) *Cell { return f(s, a) }

// QueueBrain is the built-in shop policy. Customers join the nearest free
// queue slot, shuffle forward as the queue moves, are served at the head
// while an employee is at the till, then walk to the nearest outside cell and
// leave. Employees stand on the free cell nearest the queue head.
type QueueBrain struct{}

func (QueueBrain) Decide(s *Sim, a *Agent) *Cell {
	switch a.Role.Kind {
	case AgentCustomer:
		return decideCustomer(s, a)
	case AgentEmployee:
		return decideEmployee(s, a)
	}
	return nil
}

func decideCustomer(s *Sim, a *Agent) *Cell {
	role := &a.Role.Customer
	if role.Done {
		return nil
	}
	if role.Leaving {
		if a.cell.Outside {
			role.Done = true
			s.log(a, "queue", "done", a.cell.String(), role.Served)
			return nil
		}
		return NearestOutsideCell(s.Graph(a.cell, true), a.cell)
	}

	if a.cell.QueueCell {
		if a.cell.QueueDepth == 1 {
			if !employeeServing(s, a.cell) {
				return nil
			}
			role.Served += s.DeltaTime()
			if role.Served < s.Config.ServeSeconds {
				return nil
			}
			role.Leaving = true
			s.log(a, "queue", "served", a.cell.String(), role.Served)
			return NearestOutsideCell(s.Graph(a.cell, true), a.cell)
		}
		ahead := s.Grid.QueueCellAtDepth(a.cell.QueueDepth-1, a.cell)
		if ahead != nil && ahead.IsEmpty() {
			s.logVerbose(a, "queue", "advance", ahead.String(), float64(ahead.QueueDepth))
			return ahead
		}
		return nil
	}

	graph := s.Graph(a.cell, true)
	slot := QueueSlot(graph, a.cell, false)
	if slot == nil {
		return nil
	}
	if !slot.IsEmpty() {
		// Queue full: wait on the nearest free cell that is not part of it.
		if a.cell.Distance(slot) <= 3 {
			return nil
		}
		lane := mapset.New[*Cell]()
		for _, c := range s.Grid.QueueCells() {
			lane.Put(c)
		}
		slot = NearestFreeCell(graph, slot, lane, true)
		if slot == nil || slot == a.cell {
			return nil
		}
		s.logVerbose(a, "queue", "overflow", slot.String(), 0)
		return slot
	}
	s.log(a, "queue", "join", slot.String(), float64(slot.QueueDepth))
	return slot
}

// employeeServing returns true if an idle employee stands within two cells
// of the queue head.
func employeeServing(s *Sim, head *Cell) bool {
	for _, e := range s.Agents {
		if !e.IsEmployee() || e.cell == nil || e.state != AgentIdle {
			continue
		}
		if absInt(e.cell.X-head.X) <= 2 && absInt(e.cell.Y-head.Y) <= 2 {
			return true
		}
	}
	return false
}

func decideEmployee(s *Sim, a *Agent) *Cell {
	role := &a.Role.Employee
	if role.Till == nil {
		graph := s.Graph(a.cell, true)
		head := QueueSlot(graph, a.cell, true)
		if head == nil {
			return nil
		}
		lane := mapset.New[*Cell]()
		for _, c := range s.Grid.QueueCells() {
			lane.Put(c)
		}
		till := NearestFreeCell(graph, head, lane, false)
		if till == nil {
			return nil
		}
		role.Till = till
		s.log(a, "queue", "till", till.String(), 0)
	}
	if a.cell == role.Till {
		return nil
	}
	return role.Till
}
