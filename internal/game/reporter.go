package game

import (
	"fmt"
	"strings"
)

// defaultReportWindowTicks is the sliding window for recent-behaviour
// reports (~10s at 10 ticks per second).
const defaultReportWindowTicks = 100

// --- Snapshot types ---

// AgentReport captures a single agent's state.
type AgentReport struct {
	ID         int
	Label      string
	Kind       AgentKind
	State      AgentState
	X, Y       int
	Dest       string
	Relocating bool
	WaitTime   float64
	Stats      AgentStats
}

// SimReport is a full snapshot of the simulation at one tick.
type SimReport struct {
	Tick int

	// Agent state distribution per kind.
	CustomerStates map[AgentState]int
	EmployeeStates map[AgentState]int

	Customers   int
	Employees   int
	Queued      int // customers standing on queue cells
	Departed    int
	Waiting     int // agents in either waiting state
	Relocating  int
	DoorsOpen   int
	GridVersion uint64

	// Cumulative counters at this tick.
	Totals AgentStats

	// Agent detail (optional, for verbose mode).
	Agents []AgentReport
}

// --- Reporter ---

// SimReporter collects periodic reports from the simulation and can produce
// summaries over sliding time windows.
type SimReporter struct {
	history     []SimReport
	windowTicks int
	every       int
	verbose     bool
}

// NewSimReporter creates a reporter with the given window size that samples
// every `every` ticks.
func NewSimReporter(windowTicks, every int, verbose bool) *SimReporter {
	if windowTicks <= 0 {
		windowTicks = defaultReportWindowTicks
	}
	if every <= 0 {
		every = 1
	}
	return &SimReporter{
		windowTicks: windowTicks,
		every:       every,
		verbose:     verbose,
	}
}

// Sample collects a snapshot if the current tick falls on the sampling period.
func (r *SimReporter) Sample(s *Sim) {
	if s.Tick%r.every != 0 {
		return
	}
	r.Collect(s)
}

// Collect gathers a snapshot from the current simulation state.
func (r *SimReporter) Collect(s *Sim) {
	report := SimReport{
		Tick:           s.Tick,
		CustomerStates: make(map[AgentState]int),
		EmployeeStates: make(map[AgentState]int),
		Departed:       s.Departed(),
		GridVersion:    s.Grid.Version(),
		Totals:         s.Totals(),
	}
	for _, a := range s.Agents {
		r.tallyAgent(a, &report)
	}
	for _, f := range s.Grid.Furniture() {
		if f.IsDoor() && f.Openness() > 0 {
			report.DoorsOpen++
		}
	}

	r.history = append(r.history, report)

	// Prune old history beyond 2x window to prevent unbounded growth.
	maxKeep := r.windowTicks / r.every * 2
	if maxKeep < 100 {
		maxKeep = 100
	}
	if len(r.history) > maxKeep {
		r.history = r.history[len(r.history)-maxKeep:]
	}
}

func (r *SimReporter) tallyAgent(a *Agent, report *SimReport) {
	states := report.CustomerStates
	if a.IsEmployee() {
		states = report.EmployeeStates
		report.Employees++
	} else {
		report.Customers++
		if a.cell != nil && a.cell.QueueCell {
			report.Queued++
		}
	}
	states[a.State()]++

	if a.State() == AgentWaitingSoon || a.State() == AgentWaitingBlocked {
		report.Waiting++
	}
	if a.Relocating() {
		report.Relocating++
	}

	if r.verbose {
		ar := AgentReport{
			ID:         a.ID,
			Label:      a.Label,
			Kind:       a.Kind(),
			State:      a.State(),
			Dest:       a.Dest().String(),
			Relocating: a.Relocating(),
			WaitTime:   a.WaitTime(),
			Stats:      a.Stats(),
		}
		if c := a.Cell(); c != nil {
			ar.X, ar.Y = c.X, c.Y
		}
		report.Agents = append(report.Agents, ar)
	}
}

// Latest returns the most recent report, or nil if none collected yet.
func (r *SimReporter) Latest() *SimReport {
	if len(r.history) == 0 {
		return nil
	}
	return &r.history[len(r.history)-1]
}

// History returns all collected reports.
func (r *SimReporter) History() []SimReport {
	return r.history
}

// WindowReport is an aggregated summary over a time window.
type WindowReport struct {
	FromTick, ToTick int
	SampleCount      int

	// State distribution as percentages (0-100) across all agents.
	StatePct map[AgentState]float64

	// Averages over the window.
	AvgCustomers, AvgQueued   float64
	AvgWaiting, AvgRelocating float64
	AvgDoorsOpen              float64

	// Deltas of cumulative counters across the window.
	Arrivals, PathFailures        int
	Relocations, RelocationFailed int
	WaitTimeouts, AskedToMove     int
	Departed                      int
}

// WindowSummary returns an aggregated summary over the recent time window.
func (r *SimReporter) WindowSummary() *WindowReport {
	if len(r.history) == 0 {
		return nil
	}

	latestTick := r.history[len(r.history)-1].Tick
	cutoff := latestTick - r.windowTicks
	var window []SimReport
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].Tick < cutoff {
			break
		}
		window = append(window, r.history[i])
	}
	if len(window) == 0 {
		return nil
	}

	n := float64(len(window))
	newest, oldest := window[0], window[len(window)-1]
	wr := &WindowReport{
		FromTick:    oldest.Tick,
		ToTick:      newest.Tick,
		SampleCount: len(window),
		StatePct:    make(map[AgentState]float64),
	}

	stateTotal := make(map[AgentState]float64)
	var agents float64
	for _, rpt := range window {
		for _, states := range []map[AgentState]int{rpt.CustomerStates, rpt.EmployeeStates} {
			for st, c := range states {
				stateTotal[st] += float64(c)
				agents += float64(c)
			}
		}
		wr.AvgCustomers += float64(rpt.Customers)
		wr.AvgQueued += float64(rpt.Queued)
		wr.AvgWaiting += float64(rpt.Waiting)
		wr.AvgRelocating += float64(rpt.Relocating)
		wr.AvgDoorsOpen += float64(rpt.DoorsOpen)
	}
	if agents > 0 {
		for st, c := range stateTotal {
			wr.StatePct[st] = c / agents * 100
		}
	}
	wr.AvgCustomers /= n
	wr.AvgQueued /= n
	wr.AvgWaiting /= n
	wr.AvgRelocating /= n
	wr.AvgDoorsOpen /= n

	wr.Arrivals = newest.Totals.Arrivals - oldest.Totals.Arrivals
	wr.PathFailures = newest.Totals.PathFailures - oldest.Totals.PathFailures
	wr.Relocations = newest.Totals.Relocations - oldest.Totals.Relocations
	wr.RelocationFailed = newest.Totals.RelocationFailures - oldest.Totals.RelocationFailures
	wr.WaitTimeouts = newest.Totals.WaitTimeouts - oldest.Totals.WaitTimeouts
	wr.AskedToMove = newest.Totals.AskedToMove - oldest.Totals.AskedToMove
	wr.Departed = newest.Departed - oldest.Departed
	return wr
}

// Format returns a human-readable multi-line string of the window summary.
func (wr *WindowReport) Format() string {
	if wr == nil {
		return "No data collected yet.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Floor Report (T=%d..%d, %d samples) ===\n",
		wr.FromTick, wr.ToTick, wr.SampleCount)

	sb.WriteString("\n--- Agent States ---\n")
	for st := AgentIdle; st < agentStateCount; st++ {
		if pct, ok := wr.StatePct[st]; ok && pct > 0.5 {
			fmt.Fprintf(&sb, "  %-18s %5.1f%%\n", st, pct)
		}
	}

	sb.WriteString("\n--- Flow ---\n")
	fmt.Fprintf(&sb, "  customers=%.1f  queued=%.1f  departed=%d  arrivals=%d\n",
		wr.AvgCustomers, wr.AvgQueued, wr.Departed, wr.Arrivals)

	sb.WriteString("\n--- Congestion ---\n")
	fmt.Fprintf(&sb, "  waiting=%.1f  wait_timeouts=%d  asked_to_move=%d  doors_open=%.1f\n",
		wr.AvgWaiting, wr.WaitTimeouts, wr.AskedToMove, wr.AvgDoorsOpen)
	fmt.Fprintf(&sb, "  path_failures=%d  relocations=%d  relocation_failures=%d  relocating=%.1f\n",
		wr.PathFailures, wr.Relocations, wr.RelocationFailed, wr.AvgRelocating)
	fmt.Fprintf(&sb, "  flow: %s\n", wr.Flow())

	return sb.String()
}

// Flow classifies how freely agents moved over the window.
func (wr *WindowReport) Flow() string {
	if wr == nil {
		return "n/a"
	}
	return flowLabel(wr)
}

// flowLabel classifies how freely agents are moving over the window.
func flowLabel(wr *WindowReport) string {
	switch {
	case wr.AvgWaiting >= 3 && wr.Arrivals == 0:
		return "gridlock"
	case wr.WaitTimeouts > wr.Arrivals:
		return "congested"
	case wr.AvgWaiting > 0.5:
		return "busy"
	default:
		return "free"
	}
}

// FormatLatest returns a concise snapshot of the most recent collected report.
func (r *SimReporter) FormatLatest() string {
	rpt := r.Latest()
	if rpt == nil {
		return "No data.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- Snapshot T=%d ---\n", rpt.Tick)
	fmt.Fprintf(&sb, "Customers: %d  queued=%d  departed=%d\n", rpt.Customers, rpt.Queued, rpt.Departed)
	fmt.Fprintf(&sb, "Employees: %d\n", rpt.Employees)
	fmt.Fprintf(&sb, "Waiting=%d relocating=%d doors_open=%d grid_v=%d\n",
		rpt.Waiting, rpt.Relocating, rpt.DoorsOpen, rpt.GridVersion)
	fmt.Fprintf(&sb, "Totals: steps=%d arrivals=%d path_failures=%d relocations=%d\n",
		rpt.Totals.Steps, rpt.Totals.Arrivals, rpt.Totals.PathFailures, rpt.Totals.Relocations)
	for _, a := range rpt.Agents {
		fmt.Fprintf(&sb, "  %-4s %-8s (%d,%d) %-18s dest=%s\n", a.Label, a.Kind, a.X, a.Y, a.State, a.Dest)
	}
	return sb.String()
}
