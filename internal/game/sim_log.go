package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SimLogEntry is one recorded event during a simulation run.
type SimLogEntry struct {
	Tick     int
	Agent    string  // label e.g. "C0", "E1", or "--" for global events
	Kind     string  // "customer", "employee", or "--"
	Category string  // path, move, wait, relocate, queue, grid, brain, state
	Key      string  // specific event name within the category
	Value    string  // human-readable detail
	NumVal   float64 // optional numeric value for threshold checks
}

// String formats the entry as a fixed-width log line.
//
//	[T=042] C0   relocate start            push trolley#3 (2,2) -> (2,1)
func (e SimLogEntry) String() string {
	return fmt.Sprintf("[T=%03d] %-4s %-9s %-16s %s",
		e.Tick, e.Agent, e.Category, e.Key, e.Value)
}

// SimLog collects structured events during a simulation. It is unbounded and
// machine-readable. When a logger is attached every entry is also forwarded
// to it.
type SimLog struct {
	entries []SimLogEntry
	verbose bool
	logger  *slog.Logger
}

// NewSimLog creates a SimLog. If verbose is true, per-hop movement, path and
// state-change entries are also recorded.
func NewSimLog(verbose bool) *SimLog {
	return &SimLog{verbose: verbose}
}

// SetLogger forwards future entries to l. Nil stops forwarding.
func (sl *SimLog) SetLogger(l *slog.Logger) {
	sl.logger = l
}

// Verbose reports whether verbose entries are recorded.
func (sl *SimLog) Verbose() bool {
	return sl.verbose
}

// Add records a new entry.
func (sl *SimLog) Add(tick int, agent, kind, category, key, value string, numVal float64) {
	e := SimLogEntry{
		Tick:     tick,
		Agent:    agent,
		Kind:     kind,
		Category: category,
		Key:      key,
		Value:    value,
		NumVal:   numVal,
	}
	sl.entries = append(sl.entries, e)
	sl.forward(e)
}

// AddVerbose records an entry only when verbose mode is on.
func (sl *SimLog) AddVerbose(tick int, agent, kind, category, key, value string, numVal float64) {
	if !sl.verbose {
		return
	}
	sl.Add(tick, agent, kind, category, key, value, numVal)
}

func (sl *SimLog) forward(e SimLogEntry) {
	if sl.logger == nil {
		return
	}
	level := slog.LevelInfo
	switch e.Key {
	case "unreachable", "failed", "aborted", "timeout", "inconsistent", "not_adjacent", "place_failed":
		level = slog.LevelWarn
	}
	if sl.verbose && level == slog.LevelInfo && isVerboseKey(e.Key) {
		level = slog.LevelDebug
	}
	sl.logger.LogAttrs(context.Background(), level, e.Category+" "+e.Key,
		slog.Int("tick", e.Tick),
		slog.String("agent", e.Agent),
		slog.String("kind", e.Kind),
		slog.String("value", e.Value),
		slog.Float64("num", e.NumVal),
	)
}

func isVerboseKey(key string) bool {
	switch key {
	case "step", "found", "stale", "change", "door", "claim_lost":
		return true
	}
	return false
}

// Entries returns all recorded entries.
func (sl *SimLog) Entries() []SimLogEntry {
	return sl.entries
}

// Filter returns entries matching the given category and/or key.
// Pass empty string to match any value for that field.
func (sl *SimLog) Filter(category, key string) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterAgent returns entries for a specific agent label.
func (sl *SimLog) FilterAgent(label string) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if e.Agent == label {
			out = append(out, e)
		}
	}
	return out
}

// FilterTickRange returns entries within [fromTick, toTick] inclusive.
func (sl *SimLog) FilterTickRange(fromTick, toTick int) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if e.Tick >= fromTick && e.Tick <= toTick {
			out = append(out, e)
		}
	}
	return out
}

// CountCategory returns how many entries match the given category and key.
func (sl *SimLog) CountCategory(category, key string) int {
	return len(sl.Filter(category, key))
}

// LastOf returns the most recent entry matching category+key, or false if none.
func (sl *SimLog) LastOf(category, key string) (SimLogEntry, bool) {
	entries := sl.Filter(category, key)
	if len(entries) == 0 {
		return SimLogEntry{}, false
	}
	return entries[len(entries)-1], true
}

// HasEntry returns true if at least one entry matches category, key, and value substring.
func (sl *SimLog) HasEntry(category, key, valueSubstr string) bool {
	for _, e := range sl.entries {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		if valueSubstr != "" && !strings.Contains(e.Value, valueSubstr) {
			continue
		}
		return true
	}
	return false
}

// Format returns the full log as a single string for t.Log output.
func (sl *SimLog) Format() string {
	var sb strings.Builder
	for _, e := range sl.entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatRange returns a log string filtered to a tick range.
func (sl *SimLog) FormatRange(fromTick, toTick int) string {
	var sb strings.Builder
	for _, e := range sl.FilterTickRange(fromTick, toTick) {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Summary returns a short human-readable summary of the simulation state.
func (sl *SimLog) Summary(tick int, agents []*Agent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- Summary at T=%03d ---\n", tick)

	for _, kind := range []AgentKind{AgentCustomer, AgentEmployee} {
		counts := map[AgentState]int{}
		n := 0
		for _, a := range agents {
			if a.Kind() == kind {
				counts[a.State()]++
				n++
			}
		}
		if n == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%ss (%d): ", kind, n)
		for st := AgentIdle; st < agentStateCount; st++ {
			if c := counts[st]; c > 0 {
				fmt.Fprintf(&sb, "%s=%d  ", st, c)
			}
		}
		sb.WriteByte('\n')
	}

	fmt.Fprintf(&sb, "Paths failed: %d  relocations: %d (failed %d)  ask-to-move: %d\n",
		sl.CountCategory("path", "unreachable"),
		sl.CountCategory("relocate", "done"),
		sl.CountCategory("relocate", "failed")+sl.CountCategory("relocate", "aborted"),
		sl.CountCategory("wait", "ask_to_move"))

	var relocating []string
	for _, a := range agents {
		if r := a.Relocation(); r != nil {
			relocating = append(relocating, fmt.Sprintf("%s %s %s", a.Label, r.Mode, r.Furniture))
		}
	}
	if len(relocating) == 0 {
		sb.WriteString("Relocating: none\n")
	} else {
		fmt.Fprintf(&sb, "Relocating: %s\n", strings.Join(relocating, ", "))
	}
	return sb.String()
}
