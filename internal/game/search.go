package game

import (
	"github.com/zyedidia/generic/mapset"
	"github.com/zyedidia/generic/queue"
)

// breadthFirst visits graph nodes in BFS order from root, following edge
// order, and returns the first cell accepted by match. The root itself is
// tested only when includeRoot is set.
func breadthFirst(tg *TileGraph, root *Cell, includeRoot bool, match func(c *Cell) bool) *Cell {
	start := tg.Node(root)
	if start == nil {
		return nil
	}
	if includeRoot && match(root) {
		return root
	}

	visited := mapset.New[*GraphNode]()
	visited.Put(start)
	q := queue.New[*GraphNode]()
	q.Enqueue(start)

	for !q.Empty() {
		n := q.Dequeue()
		for _, e := range n.Edges {
			if visited.Has(e.Node) {
				continue
			}
			visited.Put(e.Node)
			if match(e.Node.Cell) {
				return e.Node.Cell
			}
			q.Enqueue(e.Node)
		}
	}
	return nil
}

// NearestFreeCell returns the closest cell, in BFS hop order from root, with
// no furniture and not in excluded. With requireNoAgent the cell must also be
// unoccupied. The root is never returned. Nil when nothing qualifies or root
// is not a graph node.
func NearestFreeCell(tg *TileGraph, root *Cell, excluded mapset.Set[*Cell], requireNoAgent bool) *Cell {
	return breadthFirst(tg, root, false, func(c *Cell) bool {
		if c.Furniture != nil {
			return false
		}
		if requireNoAgent && c.Agent != nil {
			return false
		}
		return !excluded.Has(c)
	})
}

// QueueSlot finds where a customer should queue. With headOnly it returns the
// nearest depth-1 queue cell regardless of occupancy. Otherwise it returns the
// nearest unoccupied queue cell, falling back to the nearest queue cell of any
// occupancy when all are taken. The root is a candidate.
//
// Occupied queue cells are only found when tg was built with IgnoreAgents;
// otherwise they are not graph nodes and an occupied head yields nil.
func QueueSlot(tg *TileGraph, root *Cell, headOnly bool) *Cell {
	if headOnly {
		return breadthFirst(tg, root, true, func(c *Cell) bool {
			return c.QueueCell && c.QueueDepth == 1
		})
	}
	if c := breadthFirst(tg, root, true, func(c *Cell) bool {
		return c.QueueCell && c.IsEmpty()
	}); c != nil {
		return c
	}
	return breadthFirst(tg, root, true, func(c *Cell) bool {
		return c.QueueCell
	})
}

// NearestOutsideCell returns the closest unoccupied cell beyond the store.
func NearestOutsideCell(tg *TileGraph, root *Cell) *Cell {
	return breadthFirst(tg, root, true, func(c *Cell) bool {
		return c.Outside && c.IsEmpty()
	})
}
