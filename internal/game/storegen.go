package game

import (
	"fmt"
	"math/rand"
)

// Minimum generated store size.
const (
	minStoreWidth  = 12
	minStoreHeight = 10
)

// GenerateStore lays out a rectangular shop: a pavement strip along the top,
// a perimeter wall with an entrance door, shelf aisles, a till with a queue
// lane beside it, and a few loose trolleys, crates and bins. One employee
// stands behind the till and customers wait outside.
func GenerateStore(w, h, customers int, rng *rand.Rand) (*Layout, error) {
	if w < minStoreWidth || h < minStoreHeight {
		return nil, fmt.Errorf("storegen: %w: %dx%d is smaller than %dx%d",
			ErrInvalidLayout, w, h, minStoreWidth, minStoreHeight)
	}
	if customers > w {
		customers = w
	}

	grid := make([][]rune, h)
	for y := range grid {
		grid[y] = make([]rune, w)
		for x := range grid[y] {
			switch {
			case y == 0:
				grid[y][x] = 'o'
			case y == 1 || y == h-1 || x == 0 || x == w-1:
				grid[y][x] = '#'
			default:
				grid[y][x] = '.'
			}
		}
	}

	// --- Entrance ---
	doorX := 2 + rng.Intn(w/2-2)
	grid[1][doorX] = 'D'
	if rng.Float64() < 0.5 {
		grid[2][doorX] = 'm'
	}

	// --- Till and queue lane ---
	tillX, tillY := w-3, 3
	laneX := w - 4
	grid[tillY][tillX] = 'K'
	depth := min(5, h-6)
	for d := 1; d <= depth; d++ {
		grid[tillY+d-1][laneX] = rune('0' + d)
	}

	// --- Shelf aisles ---
	for x := 3; x <= w-7; x += 3 {
		top, bottom := 4, h-4
		gap := -1
		if bottom-top >= 3 && rng.Float64() < 0.5 {
			gap = top + 1 + rng.Intn(bottom-top-1)
		}
		for y := top; y <= bottom; y++ {
			if y != gap {
				grid[y][x] = 'S'
			}
		}
	}

	// --- Spill ---
	if rng.Float64() < 0.3 {
		if x, y, ok := randomFloor(grid, rng, doorX, laneX); ok {
			grid[y][x] = '~'
		}
	}

	// --- Loose stock ---
	loose := []rune{'T', 'X', 'B'}
	for i, n := 0, 1+rng.Intn(3); i < n; i++ {
		if x, y, ok := randomFloor(grid, rng, doorX, laneX); ok {
			grid[y][x] = loose[rng.Intn(len(loose))]
		}
	}

	l := &Layout{Name: fmt.Sprintf("generated %dx%d", w, h)}
	for _, row := range grid {
		l.Rows = append(l.Rows, string(row))
	}
	l.Agents = append(l.Agents, AgentSpec{Label: "E0", Kind: "employee", X: w - 2, Y: tillY})
	for i, x := range rng.Perm(w)[:customers] {
		l.Agents = append(l.Agents, AgentSpec{Label: fmt.Sprintf("C%d", i), Kind: "customer", X: x, Y: 0})
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("storegen: %w", err)
	}
	return l, nil
}

// randomFloor picks a plain tile inside the store that is clear of the
// entrance approach, the queue lane and the cell behind the till.
func randomFloor(grid [][]rune, rng *rand.Rand, doorX, laneX int) (int, int, bool) {
	h, w := len(grid), len(grid[0])
	for tries := 0; tries < 50; tries++ {
		x := 1 + rng.Intn(w-2)
		y := 2 + rng.Intn(h-3)
		if grid[y][x] != '.' {
			continue
		}
		if absInt(x-doorX) <= 1 && y <= 3 {
			continue
		}
		if x >= laneX-1 {
			continue
		}
		return x, y, true
	}
	return 0, 0, false
}
