package game

import (
	"container/heap"

	"github.com/zyedidia/generic/mapset"
)

// --- A* pathfinding ---

type pathNode struct {
	node   *GraphNode
	g, h   float64
	parent *pathNode
	index  int // heap index
	seq    int // insertion order, breaks f and h ties
}

type openList []*pathNode

func (ol openList) Len() int { return len(ol) }
func (ol openList) Less(i, j int) bool {
	fi, fj := ol[i].g+ol[i].h, ol[j].g+ol[j].h
	if fi != fj {
		return fi < fj
	}
	if ol[i].h != ol[j].h {
		return ol[i].h < ol[j].h
	}
	return ol[i].seq < ol[j].seq
}
func (ol openList) Swap(i, j int)       { ol[i], ol[j] = ol[j], ol[i]; ol[i].index = i; ol[j].index = j }
func (ol *openList) Push(x interface{}) { n := x.(*pathNode); n.index = len(*ol); *ol = append(*ol, n) }
func (ol *openList) Pop() interface{} {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil
	n.index = -1
	*ol = old[:len(old)-1]
	return n
}

// stepCost is the cost of moving from a to b given b's movement cost.
// Diagonal steps are scaled by their length.
func stepCost(cost float64, a, b *Cell) float64 {
	return cost * a.Distance(b)
}

// FindPath runs A* over tg from start to goal. The heuristic is the
// straight-line distance, which never overestimates because every positive
// cost is at least 1. Nodes already in the open list are re-keyed in place
// only on a strictly better g.
//
// A nil start or a start/goal missing from the graph yields an unreachable
// path. start == goal yields a path containing only start.
func FindPath(tg *TileGraph, start, goal *Cell) *Path {
	if start == nil {
		return &Path{}
	}
	if goal == nil || start == goal {
		return newPath([]*Cell{start})
	}
	sn := tg.Node(start)
	gn := tg.Node(goal)
	if sn == nil || gn == nil {
		return &Path{}
	}

	seq := 0
	first := &pathNode{node: sn, h: start.Distance(goal), seq: seq}
	ol := &openList{first}
	heap.Init(ol)

	best := map[*GraphNode]*pathNode{sn: first}
	closed := mapset.New[*GraphNode]()

	for ol.Len() > 0 {
		cur := heap.Pop(ol).(*pathNode)
		if cur.node == gn {
			return buildPath(cur)
		}
		closed.Put(cur.node)

		for _, e := range cur.node.Edges {
			if closed.Has(e.Node) {
				continue
			}
			g := cur.g + stepCost(e.Cost, cur.node.Cell, e.Node.Cell)
			if prev, ok := best[e.Node]; ok {
				if g >= prev.g {
					continue
				}
				prev.g = g
				prev.parent = cur
				if prev.index >= 0 {
					heap.Fix(ol, prev.index)
				}
				continue
			}
			seq++
			n := &pathNode{node: e.Node, g: g, h: e.Node.Cell.Distance(goal), parent: cur, seq: seq}
			best[e.Node] = n
			heap.Push(ol, n)
		}
	}
	return &Path{}
}

// buildPath walks parents back to the start and returns the route in order.
func buildPath(n *pathNode) *Path {
	var cells []*Cell
	for cur := n; cur != nil; cur = cur.parent {
		cells = append(cells, cur.node.Cell)
	}
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	return newPath(cells)
}
