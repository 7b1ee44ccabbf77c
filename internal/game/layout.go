package game

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalidLayout is wrapped by every layout validation failure.
var ErrInvalidLayout = errors.New("invalid layout")

// Layout is a store floor plan loaded from YAML.
//
//	name: corner shop
//	rows:
//	  - "ooooDoooo"
//	  - "#...T...#"
//	furniture:
//	  - {kind: crate, x: 3, y: 1}
//	agents:
//	  - {label: C0, kind: customer, x: 1, y: 1, dest: [7, 1]}
//
// Row legend:
//
//	.  tile floor      ,  carpet       _  concrete     ~  wet floor
//	o  outside         (space) void
//	#  wall            S  shelf        K  till         D  door
//	T  trolley         X  crate        B  bin          m  mat
//	1-9 queue cell of that depth (tile floor)
type Layout struct {
	Name      string          `yaml:"name"`
	Rows      []string        `yaml:"rows"`
	Furniture []FurnitureSpec `yaml:"furniture"`
	Agents    []AgentSpec     `yaml:"agents"`
}

// FurnitureSpec places one piece of furniture beyond what the rows show.
type FurnitureSpec struct {
	Kind   string `yaml:"kind"`
	X      int    `yaml:"x"`
	Y      int    `yaml:"y"`
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
}

// AgentSpec places an agent, optionally with a destination.
type AgentSpec struct {
	Label string `yaml:"label"`
	Kind  string `yaml:"kind,omitempty"`
	X     int    `yaml:"x"`
	Y     int    `yaml:"y"`
	Dest  []int  `yaml:"dest,flow,omitempty"`
}

// layoutCell describes what a legend rune puts on a cell.
type layoutCell struct {
	floor     FloorType
	furniture FurnitureKind
	hasFurn   bool
	queue     int
}

var layoutLegend = map[rune]layoutCell{
	'.': {floor: FloorTile},
	',': {floor: FloorCarpet},
	'_': {floor: FloorConcrete},
	'~': {floor: FloorWet},
	'o': {floor: FloorOutside},
	' ': {floor: FloorVoid},
	'#': {floor: FloorTile, furniture: FurnitureWall, hasFurn: true},
	'S': {floor: FloorTile, furniture: FurnitureShelf, hasFurn: true},
	'K': {floor: FloorTile, furniture: FurnitureTill, hasFurn: true},
	'D': {floor: FloorTile, furniture: FurnitureDoor, hasFurn: true},
	'T': {floor: FloorTile, furniture: FurnitureTrolley, hasFurn: true},
	'X': {floor: FloorTile, furniture: FurnitureCrate, hasFurn: true},
	'B': {floor: FloorTile, furniture: FurnitureBin, hasFurn: true},
	'm': {floor: FloorTile, furniture: FurnitureMat, hasFurn: true},
}

func legendFor(r rune) (layoutCell, bool) {
	if r >= '1' && r <= '9' {
		return layoutCell{floor: FloorTile, queue: int(r - '0')}, true
	}
	lc, ok := layoutLegend[r]
	return lc, ok
}

// ParseLayout decodes and validates a YAML layout.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("layout: unmarshal: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// LoadLayout reads and parses a layout file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("layout: read %s: %w", path, err)
	}
	l, err := ParseLayout(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if l.Name == "" {
		l.Name = path
	}
	return l, nil
}

// Marshal encodes the layout back to YAML.
func (l *Layout) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("layout: marshal: %w", err)
	}
	return data, nil
}

// Size returns the grid dimensions the rows describe.
func (l *Layout) Size() (int, int) {
	w := 0
	for _, r := range l.Rows {
		if n := len([]rune(r)); n > w {
			w = n
		}
	}
	return w, len(l.Rows)
}

// Validate checks the rows, furniture and agents without building anything.
func (l *Layout) Validate() error {
	if len(l.Rows) == 0 {
		return fmt.Errorf("layout: %w: no rows", ErrInvalidLayout)
	}
	w, h := l.Size()
	inBounds := func(x, y int) bool { return x >= 0 && x < w && y >= 0 && y < h }

	for y, row := range l.Rows {
		for x, r := range []rune(row) {
			if _, ok := legendFor(r); !ok {
				return fmt.Errorf("layout: %w: unknown rune %q at (%d,%d)", ErrInvalidLayout, r, x, y)
			}
		}
	}
	for i, f := range l.Furniture {
		if _, ok := ParseFurnitureKind(f.Kind); !ok {
			return fmt.Errorf("layout: %w: furniture %d: unknown kind %q", ErrInvalidLayout, i, f.Kind)
		}
		if !inBounds(f.X, f.Y) {
			return fmt.Errorf("layout: %w: furniture %d at (%d,%d) out of bounds", ErrInvalidLayout, i, f.X, f.Y)
		}
	}
	labels := make(map[string]bool)
	for i, a := range l.Agents {
		if a.Label == "" {
			return fmt.Errorf("layout: %w: agent %d has no label", ErrInvalidLayout, i)
		}
		if labels[a.Label] {
			return fmt.Errorf("layout: %w: duplicate agent label %q", ErrInvalidLayout, a.Label)
		}
		labels[a.Label] = true
		if _, ok := ParseAgentKind(a.Kind); !ok {
			return fmt.Errorf("layout: %w: agent %q: unknown kind %q", ErrInvalidLayout, a.Label, a.Kind)
		}
		if !inBounds(a.X, a.Y) {
			return fmt.Errorf("layout: %w: agent %q at (%d,%d) out of bounds", ErrInvalidLayout, a.Label, a.X, a.Y)
		}
		if len(a.Dest) > 0 {
			if len(a.Dest) != 2 || !inBounds(a.Dest[0], a.Dest[1]) {
				return fmt.Errorf("layout: %w: agent %q: dest must be [x, y] inside the grid", ErrInvalidLayout, a.Label)
			}
		}
	}
	return nil
}

// Options converts the layout into Sim options.
func (l *Layout) Options() []SimOption {
	opts := []SimOption{WithRows(l.Rows...)}
	for _, f := range l.Furniture {
		kind, _ := ParseFurnitureKind(f.Kind)
		opts = append(opts, WithFurnitureSized(kind, f.X, f.Y, f.Width, f.Height))
	}
	for _, a := range l.Agents {
		kind, _ := ParseAgentKind(a.Kind)
		if kind == AgentEmployee {
			opts = append(opts, WithEmployee(a.Label, a.X, a.Y))
		} else {
			opts = append(opts, WithCustomer(a.Label, a.X, a.Y))
		}
		if len(a.Dest) == 2 {
			opts = append(opts, WithDestination(a.Label, a.Dest[0], a.Dest[1]))
		}
	}
	return opts
}

// NewSimFromLayout builds a Sim from a layout plus extra options. Any
// placement failure is returned as an error.
func NewSimFromLayout(l *Layout, opts ...SimOption) (*Sim, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	s := NewSim(append(l.Options(), opts...)...)
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("layout %s: %w", l.Name, err)
	}
	return s, nil
}

// applyRows lays legend rows onto g. Walls go down before doors so door
// placement can see them. Queue digits are linked in depth order.
func applyRows(g *Grid, rows []string) error {
	type placement struct {
		kind FurnitureKind
		c    *Cell
	}
	var pending []placement
	var queue []*Cell
	var errs []error

	for y, row := range rows {
		for x, r := range []rune(row) {
			lc, ok := legendFor(r)
			c := g.At(x, y)
			if !ok || c == nil {
				errs = append(errs, fmt.Errorf("%w: rune %q at (%d,%d)", ErrInvalidLayout, r, x, y))
				continue
			}
			c.Floor = lc.floor
			c.Outside = lc.floor == FloorOutside
			if lc.hasFurn {
				pending = append(pending, placement{kind: lc.furniture, c: c})
			}
			if lc.queue > 0 {
				c.QueueDepth = lc.queue
				queue = append(queue, c)
			}
		}
		// Short rows are padded with void.
		for x := len([]rune(row)); x < g.Width; x++ {
			g.At(x, y).Floor = FloorVoid
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].kind == FurnitureWall && pending[j].kind != FurnitureWall
	})
	for _, p := range pending {
		if !g.PlaceFurniture(NewFurniture(p.kind), p.c) {
			errs = append(errs, fmt.Errorf("place %s at %s: rejected", p.kind, p.c))
		}
	}
	for _, c := range queue {
		c.QueueCell = true
	}
	g.touch()
	return errors.Join(errs...)
}
