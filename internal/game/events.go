package game

import "github.com/zyedidia/generic/queue"

// EventKind identifies what happened.
type EventKind uint8

const (
	EventFurniturePlaced EventKind = iota
	EventFurnitureRemoved
	EventFurnitureMoved
	EventFloorChanged
	EventAgentMoved
	EventAgentArrived
	EventPathFailed
	EventAskToMove // Agent asks Target to vacate Cell
	EventRelocationStarted
	EventRelocationFinished
	EventRelocationFailed
)

func (k EventKind) String() string {
	switch k {
	case EventFurniturePlaced:
		return "furniture_placed"
	case EventFurnitureRemoved:
		return "furniture_removed"
	case EventFurnitureMoved:
		return "furniture_moved"
	case EventFloorChanged:
		return "floor_changed"
	case EventAgentMoved:
		return "agent_moved"
	case EventAgentArrived:
		return "agent_arrived"
	case EventPathFailed:
		return "path_failed"
	case EventAskToMove:
		return "ask_to_move"
	case EventRelocationStarted:
		return "relocation_started"
	case EventRelocationFinished:
		return "relocation_finished"
	case EventRelocationFailed:
		return "relocation_failed"
	default:
		return "unknown"
	}
}

// Event is a grid or agent change. Unused fields are nil.
type Event struct {
	Kind      EventKind
	Cell      *Cell
	From      *Cell
	Furniture *Furniture
	Agent     *Agent
	Target    *Agent
}

// EventQueue buffers events until the simulation drains them.
type EventQueue struct {
	items *queue.Queue[Event]
	n     int
}

// Push appends an event.
func (q *EventQueue) Push(ev Event) {
	if q == nil {
		return
	}
	if q.items == nil {
		q.items = queue.New[Event]()
	}
	q.items.Enqueue(ev)
	q.n++
}

// Drain returns all queued events in arrival order and empties the queue.
func (q *EventQueue) Drain() []Event {
	if q == nil || q.n == 0 {
		return nil
	}
	out := make([]Event, 0, q.n)
	for !q.items.Empty() {
		out = append(out, q.items.Dequeue())
	}
	q.n = 0
	return out
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	if q == nil {
		return 0
	}
	return q.n
}
