package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/zyedidia/generic/mapset"
)

// Sim is the headless shop simulation. It owns the grid and the agents and
// advances them in a fixed order each tick: brains, agents, furniture, event
// drain, reporter sample.
type Sim struct {
	Config   Config
	Grid     *Grid
	Agents   []*Agent
	SimLog   *SimLog
	Reporter *SimReporter
	Brain    Brain
	Tick     int
	Time     float64 // simulated seconds

	width, height int
	rows          []string
	rng           *rand.Rand
	logger        *slog.Logger
	observers     []func(Event)
	nextID        int
	lastDT        float64
	spawnTimer    float64
	spawned       int
	departed      AgentStats
	departedCount int
	setupErrs     []error
}

// simOptionKind controls the pass in which an option is applied.
type simOptionKind int

const (
	simOptInfra  simOptionKind = iota // grid size, config, seed, verbose, brain
	simOptMap                         // floors, furniture, queues
	simOptAgent                       // add agents
	simOptOrders                      // destinations for existing agents
)

// SimOption is a builder function applied to a Sim during construction.
type SimOption struct {
	kind simOptionKind
	fn   func(*Sim)
}

// WithGridSize sets the grid dimensions in cells.
func WithGridSize(w, h int) SimOption {
	return SimOption{simOptInfra, func(s *Sim) {
		s.width = w
		s.height = h
	}}
}

// WithRows lays the grid out from legend rows (see Layout). The grid is
// sized to fit.
func WithRows(rows ...string) SimOption {
	return SimOption{simOptInfra, func(s *Sim) {
		s.rows = rows
		s.height = len(rows)
		s.width = 0
		for _, r := range rows {
			if n := len([]rune(r)); n > s.width {
				s.width = n
			}
		}
	}}
}

// WithConfig replaces the default config.
func WithConfig(cfg Config) SimOption {
	return SimOption{simOptInfra, func(s *Sim) {
		s.Config = cfg
	}}
}

// WithSeed sets the RNG seed for deterministic runs.
func WithSeed(seed int64) SimOption {
	return SimOption{simOptInfra, func(s *Sim) {
		s.rng = rand.New(rand.NewSource(seed)) // #nosec G404 -- simulation RNG
	}}
}

// WithVerbose enables per-hop verbose logging.
func WithVerbose(v bool) SimOption {
	return SimOption{simOptInfra, func(s *Sim) {
		s.Config.Verbose = v
	}}
}

// WithLogger forwards SimLog entries to l.
func WithLogger(l *slog.Logger) SimOption {
	return SimOption{simOptInfra, func(s *Sim) {
		s.logger = l
	}}
}

// WithBrain sets the destination policy.
func WithBrain(b Brain) SimOption {
	return SimOption{simOptInfra, func(s *Sim) {
		s.Brain = b
	}}
}

// WithFloor sets the floor type of one cell.
func WithFloor(x, y int, f FloorType) SimOption {
	return SimOption{simOptMap, func(s *Sim) {
		if s.Grid.At(x, y) == nil {
			s.setupErr(fmt.Errorf("floor %s at (%d,%d): out of bounds", f, x, y))
			return
		}
		s.Grid.SetFloor(x, y, f)
	}}
}

// WithFurniture places a 1×1 piece of furniture.
func WithFurniture(kind FurnitureKind, x, y int) SimOption {
	return WithFurnitureSized(kind, x, y, 1, 1)
}

// WithFurnitureSized places furniture with an explicit footprint.
func WithFurnitureSized(kind FurnitureKind, x, y, w, h int) SimOption {
	return SimOption{simOptMap, func(s *Sim) {
		f := NewFurnitureSized(kind, w, h)
		if !s.Grid.PlaceFurniture(f, s.Grid.At(x, y)) {
			s.setupErr(fmt.Errorf("place %s at (%d,%d): cell unavailable", kind, x, y))
		}
	}}
}

// WithQueue marks a queue lane, head first.
func WithQueue(cells ...[2]int) SimOption {
	return SimOption{simOptMap, func(s *Sim) {
		lane := make([]*Cell, 0, len(cells))
		for _, xy := range cells {
			c := s.Grid.At(xy[0], xy[1])
			if c == nil {
				s.setupErr(fmt.Errorf("queue cell (%d,%d): out of bounds", xy[0], xy[1]))
				return
			}
			lane = append(lane, c)
		}
		s.Grid.SetQueue(lane...)
	}}
}

// WithCustomer adds a customer at (x, y).
func WithCustomer(label string, x, y int) SimOption {
	return SimOption{simOptAgent, func(s *Sim) {
		s.addAgent(AgentCustomer, label, x, y)
	}}
}

// WithEmployee adds an employee at (x, y).
func WithEmployee(label string, x, y int) SimOption {
	return SimOption{simOptAgent, func(s *Sim) {
		s.addAgent(AgentEmployee, label, x, y)
	}}
}

// WithDestination sends an existing agent to (x, y).
func WithDestination(label string, x, y int) SimOption {
	return SimOption{simOptOrders, func(s *Sim) {
		a := s.AgentByLabel(label)
		c := s.Grid.At(x, y)
		if a == nil || c == nil {
			s.setupErr(fmt.Errorf("destination for %q at (%d,%d): unknown agent or cell", label, x, y))
			return
		}
		a.SetDestination(c)
	}}
}

// NewSim constructs a Sim from the given options in ordered passes:
//  1. Infrastructure (size, config, seed, verbose, brain)
//  2. Build the grid and apply layout rows
//  3. Map (floors, furniture, queues)
//  4. Agents
//  5. Destinations
func NewSim(opts ...SimOption) *Sim {
	s := &Sim{
		Config: DefaultConfig(),
		width:  10,
		height: 10,
		rng:    rand.New(rand.NewSource(1)), // #nosec G404 -- simulation default
		nextID: 1,
	}
	passes := []simOptionKind{simOptInfra, simOptMap, simOptAgent, simOptOrders}
	for _, pass := range passes {
		if pass == simOptMap {
			s.buildGrid()
		}
		for _, o := range opts {
			if o.kind == pass {
				o.fn(s)
			}
		}
	}
	// Setup changes are not news to anyone.
	s.Grid.Events().Drain()
	return s
}

// buildGrid creates the grid and logging once the infrastructure pass is done.
func (s *Sim) buildGrid() {
	s.SimLog = NewSimLog(s.Config.Verbose)
	s.SimLog.SetLogger(s.logger)
	s.Reporter = NewSimReporter(s.Config.ReportWindowTicks, s.Config.ReportEvery, s.Config.Verbose)
	s.Grid = NewGrid(s.width, s.height)
	if len(s.rows) > 0 {
		if err := applyRows(s.Grid, s.rows); err != nil {
			s.setupErr(err)
		}
	}
}

func (s *Sim) setupErr(err error) {
	s.setupErrs = append(s.setupErrs, err)
	s.SimLog.Add(0, "--", "--", "grid", "place_failed", err.Error(), 0)
}

// Err returns the problems hit while applying options, if any.
func (s *Sim) Err() error {
	if len(s.setupErrs) == 0 {
		return nil
	}
	return fmt.Errorf("sim setup: %w", errors.Join(s.setupErrs...))
}

func (s *Sim) speedFor(kind AgentKind) float64 {
	if kind == AgentEmployee {
		return s.Config.EmployeeSpeed
	}
	return s.Config.CustomerSpeed
}

// addAgent is the internal helper used by WithCustomer / WithEmployee.
func (s *Sim) addAgent(kind AgentKind, label string, x, y int) *Agent {
	a := NewAgent(s.nextID, label, kind, s.speedFor(kind))
	if !s.Grid.PlaceAgent(a, s.Grid.At(x, y)) {
		s.setupErr(fmt.Errorf("place %s %q at (%d,%d): cell unavailable", kind, label, x, y))
		return nil
	}
	s.nextID++
	s.Agents = append(s.Agents, a)
	return a
}

// Spawn adds an agent on c during a run.
func (s *Sim) Spawn(kind AgentKind, label string, c *Cell) *Agent {
	if c == nil {
		return nil
	}
	a := NewAgent(s.nextID, label, kind, s.speedFor(kind))
	if !s.Grid.PlaceAgent(a, c) {
		return nil
	}
	s.nextID++
	s.Agents = append(s.Agents, a)
	s.log(a, "state", "spawned", c.String(), 0)
	return a
}

// AgentByLabel returns the agent with the given label, or nil.
func (s *Sim) AgentByLabel(label string) *Agent {
	for _, a := range s.Agents {
		if a.Label == label {
			return a
		}
	}
	return nil
}

// AgentsOfKind returns all agents of one kind.
func (s *Sim) AgentsOfKind(kind AgentKind) []*Agent {
	var out []*Agent
	for _, a := range s.Agents {
		if a.Kind() == kind {
			out = append(out, a)
		}
	}
	return out
}

// Observe registers fn to receive every drained event.
func (s *Sim) Observe(fn func(Event)) {
	s.observers = append(s.observers, fn)
}

// Planner returns the relocation planner configured for this run.
func (s *Sim) Planner() RelocationPlanner {
	return RelocationPlanner{
		Diagonals:     s.Config.Diagonals,
		MaxCandidates: s.Config.MaxRelocationCandidates,
	}
}

// Graph builds a fresh navigation graph rooted at root.
func (s *Sim) Graph(root *Cell, ignoreAgents bool) *TileGraph {
	return BuildTileGraph(s.Grid, GraphOptions{
		IgnoreAgents: ignoreAgents,
		Root:         root,
		Diagonals:    s.Config.Diagonals,
	})
}

// DeltaTime returns the clamped length of the current tick in seconds.
func (s *Sim) DeltaTime() float64 {
	return s.lastDT
}

// Rand returns the simulation RNG.
func (s *Sim) Rand() *rand.Rand {
	return s.rng
}

// Totals sums agent counters, including agents that have left.
func (s *Sim) Totals() AgentStats {
	total := s.departed
	for _, a := range s.Agents {
		total.add(a.stats)
	}
	return total
}

// Departed returns how many customers have left the store.
func (s *Sim) Departed() int {
	return s.departedCount
}

func (s *Sim) emit(ev Event) {
	s.Grid.Events().Push(ev)
}

func (s *Sim) log(a *Agent, category, key, value string, num float64) {
	label, kind := "--", "--"
	if a != nil {
		label = a.Label
		kind = a.Kind().String()
	}
	s.SimLog.Add(s.Tick, label, kind, category, key, value, num)
}

func (s *Sim) logVerbose(a *Agent, category, key, value string, num float64) {
	if !s.SimLog.Verbose() {
		return
	}
	s.log(a, category, key, value, num)
}

// Step advances the simulation by dt seconds.
func (s *Sim) Step(dt float64) {
	if dt < 0 {
		dt = 0
	}
	if limit := s.Config.MaxDeltaTime; limit > 0 && dt > limit {
		dt = limit
	}
	s.Tick++
	s.Time += dt
	s.lastDT = dt

	s.spawnCustomers(dt)
	s.think()
	for _, a := range s.Agents {
		a.Update(s, dt)
	}
	s.updateFurniture(dt)
	s.drainEvents()
	s.despawn()
	if s.Reporter != nil {
		s.Reporter.Sample(s)
	}
}

// RunTicks advances the simulation n ticks of Config.TickSeconds.
func (s *Sim) RunTicks(n int) {
	for i := 0; i < n; i++ {
		s.Step(s.Config.TickSeconds)
	}
}

// RunUntil advances the simulation up to maxTicks, stopping early if predicate
// returns true. Returns the tick at which the predicate was satisfied, or -1.
func (s *Sim) RunUntil(predicate func(*Sim) bool, maxTicks int) int {
	for i := 0; i < maxTicks; i++ {
		s.Step(s.Config.TickSeconds)
		if predicate(s) {
			return s.Tick
		}
	}
	return -1
}

// think asks the brain for a destination for every idle agent and for agents
// whose last search failed.
func (s *Sim) think() {
	if s.Brain == nil {
		return
	}
	for _, a := range s.Agents {
		if a.cell == nil || a.relocation != nil || a.holdTime > 0 {
			continue
		}
		if a.state != AgentIdle && a.state != AgentPathFailed {
			continue
		}
		dest := s.Brain.Decide(s, a)
		if dest == nil || dest == a.cell || dest == a.dest {
			continue
		}
		s.log(a, "brain", "destination", dest.String(), 0)
		a.SetDestination(dest)
	}
}

// updateFurniture closes doors that nobody held open this tick.
func (s *Sim) updateFurniture(dt float64) {
	for _, f := range s.Grid.Furniture() {
		if !f.IsDoor() {
			continue
		}
		if c := f.Anchor(); c != nil && c.Agent != nil {
			f.hold()
		}
		f.update(s.Config.DoorCloseSpeed * dt)
	}
}

// drainEvents handles requests carried on the queue and notifies observers.
func (s *Sim) drainEvents() {
	for _, ev := range s.Grid.Events().Drain() {
		switch ev.Kind {
		case EventAskToMove:
			s.handleAskToMove(ev)
		case EventFurnitureMoved:
			s.logVerbose(ev.Agent, "grid", "furniture_moved",
				fmt.Sprintf("%s %s -> %s", ev.Furniture, ev.From, ev.Cell), 0)
		}
		for _, fn := range s.observers {
			fn(ev)
		}
	}
}

// handleAskToMove sends a blocker that is not busy moving to the nearest free
// cell off the asker's remaining route. A blocker that was itself waiting
// goes back to its own destination afterwards.
func (s *Sim) handleAskToMove(ev Event) {
	asker, target := ev.Agent, ev.Target
	if asker == nil || target == nil || asker.cell == nil || target.cell == nil {
		return
	}
	if asker.state != AgentWaitingSoon || asker.next != ev.Cell || target.cell != ev.Cell {
		s.logVerbose(asker, "wait", "ask_stale", ev.Cell.String(), 0)
		return
	}
	if target.state == AgentMoving || target.relocation != nil {
		s.logVerbose(target, "wait", "ask_ignored", "busy", 0)
		return
	}
	if target.IsCustomer() && target.cell.QueueCell {
		s.log(target, "wait", "ask_ignored", "queueing", 0)
		return
	}

	excluded := mapset.New[*Cell]()
	for _, c := range asker.path.Cells() {
		excluded.Put(c)
	}
	for _, c := range []*Cell{asker.cell, asker.next, asker.dest} {
		if c != nil {
			excluded.Put(c)
		}
	}
	aside := NearestFreeCell(s.Graph(target.cell, false), target.cell, excluded, true)
	if aside == nil {
		s.log(target, "wait", "no_room", "asked by "+asker.Label, 0)
		return
	}
	resume := target.dest
	if resume == target.cell {
		resume = nil
	}
	target.stats.AskedToMove++
	target.dropRoute()
	target.clearWait()
	target.SetDestination(aside)
	target.resume = resume
	target.holdTime = s.Config.MaxWait
	s.log(target, "wait", "step_aside", aside.String(), 0)
}

// spawnCustomers adds a customer on a random free outside cell every
// Config.SpawnEvery seconds, up to Config.MaxCustomers present at once.
func (s *Sim) spawnCustomers(dt float64) {
	if s.Config.SpawnEvery <= 0 {
		return
	}
	s.spawnTimer += dt
	if s.spawnTimer < s.Config.SpawnEvery {
		return
	}
	s.spawnTimer -= s.Config.SpawnEvery
	if s.Config.MaxCustomers > 0 && len(s.AgentsOfKind(AgentCustomer)) >= s.Config.MaxCustomers {
		return
	}
	var free []*Cell
	s.Grid.ForEachCell(func(c *Cell) {
		if c.Outside && c.IsEmpty() && c.IsPassable() {
			free = append(free, c)
		}
	})
	if len(free) == 0 {
		return
	}
	c := free[s.rng.Intn(len(free))]
	s.Spawn(AgentCustomer, fmt.Sprintf("S%d", s.spawned), c)
	s.spawned++
}

// despawn removes customers who have left the store.
func (s *Sim) despawn() {
	kept := s.Agents[:0]
	for _, a := range s.Agents {
		if a.IsCustomer() && a.Role.Customer.Done {
			s.log(a, "state", "left", a.cell.String(), 0)
			s.Grid.RemoveAgent(a)
			s.departed.add(a.stats)
			s.departedCount++
			continue
		}
		kept = append(kept, a)
	}
	s.Agents = kept
}
