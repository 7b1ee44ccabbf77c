package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"

	"github.com/Garsondee/shopfloor/internal/game"
)

type options struct {
	layout string
	config string
	script string

	runs     int
	ticks    int
	seedBase int64
	seedStep int64

	customers int
	width     int
	height    int

	watch   bool
	copy    bool
	verbose bool
}

type runStats struct {
	runIndex int
	seed     int64
	layout   string
	ticks    int

	firstJoinTick       int
	firstServedTick     int
	firstDepartTick     int
	firstRelocationTick int
	firstPathFailTick   int

	joins             int
	served            int
	departed          int
	relocations       int
	relocationsFailed int
	pathFailures      int
	askToMove         int
	stepAsides        int
	waitTimeouts      int
	scriptErrors      int

	remainingCustomers int
	totals             game.AgentStats
	windowSummary      *game.WindowReport
	summary            string
}

func parseOptions(args []string, out io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("headless-report", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.layout, "layout", "", "store layout YAML (default: generate one per run)")
	fs.StringVar(&o.config, "config", "", "simulation config YAML")
	fs.StringVar(&o.script, "script", "", "tengo brain script (falls back to the queue brain)")
	fs.IntVar(&o.runs, "runs", 3, "number of headless simulation runs")
	fs.IntVar(&o.ticks, "ticks", 1200, "ticks per run")
	fs.Int64Var(&o.seedBase, "seed-base", 42, "base RNG seed for run 1")
	fs.Int64Var(&o.seedStep, "seed-step", 1, "seed increment between runs")
	fs.IntVar(&o.customers, "customers", 4, "customers in generated stores")
	fs.IntVar(&o.width, "width", 16, "generated store width")
	fs.IntVar(&o.height, "height", 12, "generated store height")
	fs.BoolVar(&o.watch, "watch", false, "rerun when the layout, config or script changes")
	fs.BoolVar(&o.copy, "copy", false, "copy the report to the clipboard")
	fs.BoolVar(&o.verbose, "verbose", false, "record per-hop events and log them at debug level")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, o.validate()
}

func (o options) validate() error {
	var errs []error
	if o.runs <= 0 {
		errs = append(errs, errors.New("-runs must be > 0"))
	}
	if o.ticks <= 0 {
		errs = append(errs, errors.New("-ticks must be > 0"))
	}
	if o.layout == "" && o.customers < 0 {
		errs = append(errs, errors.New("-customers must not be negative"))
	}
	if o.watch && len(o.watchTargets()) == 0 {
		errs = append(errs, errors.New("-watch needs -layout, -config or -script"))
	}
	return errors.Join(errs...)
}

func (o options) watchTargets() []string {
	var out []string
	for _, f := range []string{o.layout, o.config, o.script} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(2)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := publish(opts, os.Stdout, logger); err != nil {
		logger.Error("report failed", "err", err)
		if !opts.watch {
			os.Exit(1)
		}
	}
	if opts.watch {
		if err := watchAndRerun(ctx, opts, os.Stdout, logger); err != nil {
			logger.Error("watch failed", "err", err)
			os.Exit(1)
		}
	}
}

// publish builds one report, writes it to out and optionally copies it.
func publish(opts options, out io.Writer, logger *slog.Logger) error {
	report, err := buildReport(opts, logger)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(out, report); err != nil {
		return err
	}
	if opts.copy {
		if err := clipboard.WriteAll(report); err != nil {
			logger.Warn("clipboard unavailable", "err", err)
		} else {
			logger.Info("report copied to clipboard", "bytes", len(report))
		}
	}
	return nil
}

func watchAndRerun(ctx context.Context, opts options, out io.Writer, logger *slog.Logger) error {
	fw, err := game.NewFileWatcher(opts.watchTargets()...)
	if err != nil {
		return err
	}
	defer fw.Close()
	logger.Info("watching", "files", strings.Join(opts.watchTargets(), ","))

	for {
		select {
		case <-ctx.Done():
			return nil
		case name, ok := <-fw.Events:
			if !ok {
				return nil
			}
			logger.Info("changed, rerunning", "file", name)
			if err := publish(opts, out, logger); err != nil {
				logger.Error("rerun failed", "file", name, "err", err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)
		}
	}
}

func buildReport(opts options, logger *slog.Logger) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Headless Shop Report ===\n")
	layoutName := opts.layout
	if layoutName == "" {
		layoutName = fmt.Sprintf("generated %dx%d", opts.width, opts.height)
	}
	fmt.Fprintf(&sb, "layout=%s runs=%d ticks=%d seed_base=%d seed_step=%d\n\n",
		layoutName, opts.runs, opts.ticks, opts.seedBase, opts.seedStep)

	all := make([]runStats, 0, opts.runs)
	for i := 0; i < opts.runs; i++ {
		seed := opts.seedBase + int64(i)*opts.seedStep
		rs, err := runOnce(opts, i+1, seed, logger)
		if err != nil {
			return "", fmt.Errorf("run %d (seed=%d): %w", i+1, seed, err)
		}
		all = append(all, rs)
		printRun(&sb, rs)
	}
	printAggregate(&sb, all)
	return sb.String(), nil
}

func loadRun(opts options, seed int64) (*game.Layout, game.Config, game.Brain, error) {
	cfg := game.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = game.LoadConfig(opts.config); err != nil {
			return nil, cfg, nil, err
		}
	}

	var (
		l   *game.Layout
		err error
	)
	if opts.layout != "" {
		l, err = game.LoadLayout(opts.layout)
	} else {
		rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- store generation
		l, err = game.GenerateStore(opts.width, opts.height, opts.customers, rng)
	}
	if err != nil {
		return nil, cfg, nil, err
	}

	var brain game.Brain = game.QueueBrain{}
	if opts.script != "" {
		sb, err := game.LoadScriptBrain(opts.script, brain)
		if err != nil {
			return nil, cfg, nil, err
		}
		brain = sb
	}
	return l, cfg, brain, nil
}

func runOnce(opts options, runIndex int, seed int64, logger *slog.Logger) (runStats, error) {
	l, cfg, brain, err := loadRun(opts, seed)
	if err != nil {
		return runStats{}, err
	}
	simOpts := []game.SimOption{
		game.WithConfig(cfg),
		game.WithSeed(seed),
		game.WithBrain(brain),
		game.WithLogger(logger.With("run", runIndex, "seed", seed)),
	}
	if opts.verbose {
		simOpts = append(simOpts, game.WithVerbose(true))
	}
	s, err := game.NewSimFromLayout(l, simOpts...)
	if err != nil {
		return runStats{}, err
	}
	s.RunTicks(opts.ticks)
	return collectStats(s, runIndex, seed, l.Name, opts.ticks), nil
}

func collectStats(s *game.Sim, runIndex int, seed int64, layout string, ticks int) runStats {
	entries := s.SimLog.Entries()
	count := s.SimLog.CountCategory
	return runStats{
		runIndex:            runIndex,
		seed:                seed,
		layout:              layout,
		ticks:               ticks,
		firstJoinTick:       firstTick(entries, "queue", "join", ""),
		firstServedTick:     firstTick(entries, "queue", "served", ""),
		firstDepartTick:     firstTick(entries, "state", "left", ""),
		firstRelocationTick: firstTick(entries, "relocate", "done", ""),
		firstPathFailTick:   firstTick(entries, "path", "unreachable", ""),
		joins:               count("queue", "join"),
		served:              count("queue", "served"),
		departed:            s.Departed(),
		relocations:         count("relocate", "done"),
		relocationsFailed:   count("relocate", "failed") + count("relocate", "aborted"),
		pathFailures:        count("path", "unreachable"),
		askToMove:           count("wait", "ask_to_move"),
		stepAsides:          count("wait", "step_aside"),
		waitTimeouts:        count("wait", "timeout"),
		scriptErrors:        count("brain", "script_error"),
		remainingCustomers:  len(s.AgentsOfKind(game.AgentCustomer)),
		totals:              s.Totals(),
		windowSummary:       s.Reporter.WindowSummary(),
		summary:             s.SimLog.Summary(s.Tick, s.Agents),
	}
}

func firstTick(entries []game.SimLogEntry, category, key, contains string) int {
	for _, e := range entries {
		if e.Category != category || e.Key != key {
			continue
		}
		if contains == "" || strings.Contains(e.Value, contains) {
			return e.Tick
		}
	}
	return -1
}

// detectGridlock reports whether customers are still in the store while
// nothing moved through it during the last report window.
func detectGridlock(rs runStats) (bool, string) {
	if rs.remainingCustomers == 0 {
		return false, "store_empty"
	}
	wr := rs.windowSummary
	if wr == nil {
		return false, "no_samples"
	}
	if wr.Arrivals > 0 || wr.Departed > 0 {
		return false, "still_flowing"
	}
	if wr.AvgWaiting < 1 && wr.WaitTimeouts == 0 && wr.PathFailures == 0 {
		return false, "idle_not_blocked"
	}
	reasons := []string{"no_flow", fmt.Sprintf("waiting=%.1f", wr.AvgWaiting)}
	if wr.WaitTimeouts > 0 {
		reasons = append(reasons, fmt.Sprintf("wait_timeouts=%d", wr.WaitTimeouts))
	}
	if wr.PathFailures > 0 {
		reasons = append(reasons, fmt.Sprintf("path_failures=%d", wr.PathFailures))
	}
	return true, strings.Join(reasons, ",")
}

func printRun(w io.Writer, rs runStats) {
	fmt.Fprintf(w, "--- Run %d (seed=%d layout=%q) ---\n", rs.runIndex, rs.seed, rs.layout)
	fmt.Fprintf(w, "phase_markers: first_join=%d first_served=%d first_departure=%d first_relocation=%d first_path_failure=%d\n",
		rs.firstJoinTick, rs.firstServedTick, rs.firstDepartTick, rs.firstRelocationTick, rs.firstPathFailTick)
	fmt.Fprintf(w, "event_totals: join=%d served=%d departed=%d relocations=%d relocation_failed=%d\n",
		rs.joins, rs.served, rs.departed, rs.relocations, rs.relocationsFailed)
	fmt.Fprintf(w, "congestion: path_failures=%d ask_to_move=%d step_aside=%d wait_timeouts=%d wait_seconds=%.1f\n",
		rs.pathFailures, rs.askToMove, rs.stepAsides, rs.waitTimeouts, rs.totals.WaitSeconds)
	fmt.Fprintf(w, "movement: steps=%d arrivals=%d remaining_customers=%d\n",
		rs.totals.Steps, rs.totals.Arrivals, rs.remainingCustomers)
	if rs.scriptErrors > 0 {
		fmt.Fprintf(w, "script_errors=%d\n", rs.scriptErrors)
	}
	gridlock, reason := detectGridlock(rs)
	fmt.Fprintf(w, "gridlock=%t (%s)\n", gridlock, reason)
	if rs.windowSummary != nil {
		fmt.Fprintf(w, "window_samples=%d window_tick_range=%d..%d flow=%s\n",
			rs.windowSummary.SampleCount, rs.windowSummary.FromTick, rs.windowSummary.ToTick,
			rs.windowSummary.Flow())
	}
	fmt.Fprint(w, rs.summary)
	fmt.Fprintln(w)
}

func printAggregate(w io.Writer, all []runStats) {
	var joins, served, departed, relocations, relocFailed, pathFailures, asks, timeouts, steps int
	var gridlocked []string
	joinTicks := make([]int, 0, len(all))
	servedTicks := make([]int, 0, len(all))
	departTicks := make([]int, 0, len(all))

	for _, rs := range all {
		joins += rs.joins
		served += rs.served
		departed += rs.departed
		relocations += rs.relocations
		relocFailed += rs.relocationsFailed
		pathFailures += rs.pathFailures
		asks += rs.askToMove
		timeouts += rs.waitTimeouts
		steps += rs.totals.Steps
		if rs.firstJoinTick >= 0 {
			joinTicks = append(joinTicks, rs.firstJoinTick)
		}
		if rs.firstServedTick >= 0 {
			servedTicks = append(servedTicks, rs.firstServedTick)
		}
		if rs.firstDepartTick >= 0 {
			departTicks = append(departTicks, rs.firstDepartTick)
		}
		if ok, _ := detectGridlock(rs); ok {
			gridlocked = append(gridlocked, fmt.Sprintf("%d", rs.runIndex))
		}
	}

	n := len(all)
	fmt.Fprintln(w, "=== Aggregate ===")
	fmt.Fprintf(w, "runs=%d\n", n)
	fmt.Fprintf(w, "avg_per_run: join=%.1f served=%.1f departed=%.1f steps=%.1f\n",
		avg(joins, n), avg(served, n), avg(departed, n), avg(steps, n))
	fmt.Fprintf(w, "avg_congestion_per_run: path_failures=%.1f ask_to_move=%.1f wait_timeouts=%.1f relocations=%.1f relocation_failed=%.1f\n",
		avg(pathFailures, n), avg(asks, n), avg(timeouts, n), avg(relocations, n), avg(relocFailed, n))
	fmt.Fprintf(w, "phase_marker_avg_ticks: first_join=%s first_served=%s first_departure=%s\n",
		avgTickString(joinTicks), avgTickString(servedTicks), avgTickString(departTicks))
	if len(gridlocked) == 0 {
		fmt.Fprintln(w, "gridlocked_runs=none")
	} else {
		fmt.Fprintf(w, "gridlocked_runs=%s\n", strings.Join(gridlocked, ","))
	}
}

func avg(sum int, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func avgTickString(vals []int) string {
	if len(vals) == 0 {
		return "n/a"
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return fmt.Sprintf("%.1f", float64(sum)/float64(len(vals)))
}
