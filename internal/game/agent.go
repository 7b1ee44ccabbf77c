package game

// AgentKind is the role an agent plays in the shop.
type AgentKind uint8

const (
	AgentCustomer AgentKind = iota
	AgentEmployee
)

func (k AgentKind) String() string {
	switch k {
	case AgentCustomer:
		return "customer"
	case AgentEmployee:
		return "employee"
	default:
		return "unknown"
	}
}

// ParseAgentKind resolves "customer" or "employee".
func ParseAgentKind(s string) (AgentKind, bool) {
	switch s {
	case "customer", "":
		return AgentCustomer, true
	case "employee":
		return AgentEmployee, true
	default:
		return 0, false
	}
}

// CustomerRole is the per-customer state.
type CustomerRole struct {
	Served  float64 // seconds spent being served at the queue head
	Leaving bool
	Done    bool // reached the outside after leaving, ready to despawn
}

// EmployeeRole is the per-employee state.
type EmployeeRole struct {
	Till *Cell // where the employee stands to serve
}

// AgentRole is a tagged variant: Kind selects which of the payloads is live.
type AgentRole struct {
	Kind     AgentKind
	Customer CustomerRole
	Employee EmployeeRole
}

// AgentState is the movement state of an agent.
type AgentState uint8

const (
	AgentIdle AgentState = iota
	AgentNeedPath
	AgentMoving
	AgentWaitingSoon
	AgentWaitingBlocked
	AgentPushingOrPulling
	AgentPathFailed
	agentStateCount
)

func (s AgentState) String() string {
	switch s {
	case AgentIdle:
		return "idle"
	case AgentNeedPath:
		return "need_path"
	case AgentMoving:
		return "moving"
	case AgentWaitingSoon:
		return "waiting_soon"
	case AgentWaitingBlocked:
		return "waiting_blocked"
	case AgentPushingOrPulling:
		return "pushing_or_pulling"
	case AgentPathFailed:
		return "path_failed"
	default:
		return "unknown"
	}
}

// Enterability says whether an agent can step onto a cell now.
type Enterability uint8

const (
	EnterYes   Enterability = iota
	EnterSoon               // closed door or another agent, wait
	EnterNever              // impassable, repath
)

// AgentStats are cumulative per-agent counters.
type AgentStats struct {
	Steps              int
	Arrivals           int
	PathFailures       int
	Relocations        int
	RelocationFailures int
	AskedToMove        int
	WaitTimeouts       int
	WaitSeconds        float64
}

func (s *AgentStats) add(o AgentStats) {
	s.Steps += o.Steps
	s.Arrivals += o.Arrivals
	s.PathFailures += o.PathFailures
	s.Relocations += o.Relocations
	s.RelocationFailures += o.RelocationFailures
	s.AskedToMove += o.AskedToMove
	s.WaitTimeouts += o.WaitTimeouts
	s.WaitSeconds += o.WaitSeconds
}

// relocationRun tracks an agent working through a Relocation plan.
type relocationRun struct {
	plan *Relocation
	step int // index in plan.AgentPath of the agent's current cell
}

// Agent is a customer or employee walking the grid.
type Agent struct {
	ID        int
	Label     string
	Role      AgentRole
	BaseSpeed float64 // cells per second on cost-1 floor

	cell        *Cell
	next        *Cell
	dest        *Cell
	path        *Path
	pathVersion uint64
	moveFrac    float64 // progress toward next, 0..1
	speed       float64 // current effective speed
	state       AgentState

	waitTime   float64
	asked      bool
	retryIn    float64
	holdTime   float64 // brain is not consulted while positive
	avoidAgent bool
	avoid      *Furniture // obstacle to route around after a failed relocation
	resume     *Cell      // destination to go back to after stepping aside
	relocation *relocationRun

	stats AgentStats
}

// NewAgent creates an agent that is not yet on a grid.
func NewAgent(id int, label string, kind AgentKind, speed float64) *Agent {
	return &Agent{
		ID:        id,
		Label:     label,
		Role:      AgentRole{Kind: kind},
		BaseSpeed: speed,
	}
}

func (a *Agent) Kind() AgentKind   { return a.Role.Kind }
func (a *Agent) Cell() *Cell       { return a.cell }
func (a *Agent) Next() *Cell       { return a.next }
func (a *Agent) Dest() *Cell       { return a.dest }
func (a *Agent) Path() *Path       { return a.path }
func (a *Agent) State() AgentState { return a.state }
func (a *Agent) MoveFrac() float64 { return a.moveFrac }
func (a *Agent) Speed() float64    { return a.speed }
func (a *Agent) Stats() AgentStats { return a.stats }
func (a *Agent) Relocating() bool  { return a.relocation != nil }
func (a *Agent) WaitTime() float64 { return a.waitTime }
func (a *Agent) Arrived() bool     { return a.dest == nil || a.cell == a.dest }
func (a *Agent) IsCustomer() bool  { return a.Role.Kind == AgentCustomer }
func (a *Agent) IsEmployee() bool  { return a.Role.Kind == AgentEmployee }
func (a *Agent) Relocation() *Relocation {
	if a.relocation == nil {
		return nil
	}
	return a.relocation.plan
}

// SetDestination points the agent at c. Any current path is dropped; a hop
// in progress is finished first. A relocation in progress keeps running and
// the new destination is used once it completes.
func (a *Agent) SetDestination(c *Cell) {
	a.dest = c
	a.path = nil
	a.avoidAgent = false
	a.avoid = nil
	a.resume = nil
	a.retryIn = 0
	if a.relocation != nil {
		return
	}
	if c == nil || c == a.cell {
		a.state = AgentIdle
		return
	}
	a.state = AgentNeedPath
}

// Position returns the interpolated position in cell units.
func (a *Agent) Position() (float64, float64) {
	if a.cell == nil {
		return 0, 0
	}
	x, y := float64(a.cell.X), float64(a.cell.Y)
	if a.next != nil && a.moveFrac > 0 {
		x += (float64(a.next.X) - x) * a.moveFrac
		y += (float64(a.next.Y) - y) * a.moveFrac
	}
	return x, y
}

// Enterability reports whether a can step onto c now.
func (a *Agent) Enterability(c *Cell) Enterability {
	if c == nil || !c.IsPassable() {
		return EnterNever
	}
	if f := c.Furniture; f != nil && f.IsDoor() && !f.IsOpen() {
		return EnterSoon
	}
	if c.Agent != nil && c.Agent != a {
		return EnterSoon
	}
	return EnterYes
}
