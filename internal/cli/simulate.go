package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/astrolabe/pkg/core/geom"
	"github.com/matzehuels/astrolabe/pkg/core/layout"
	"github.com/matzehuels/astrolabe/pkg/core/stability"
	"github.com/matzehuels/astrolabe/pkg/observability"
	"github.com/matzehuels/astrolabe/pkg/pipeline"
)

const (
	// defaultFrameRate is the simulation tick rate.
	defaultFrameRate = 60

	// defaultMaxTicks bounds headless runs.
	defaultMaxTicks = 10000
)

// =============================================================================
// Command
// =============================================================================

// simulateCommand creates the simulate command that runs the live
// simulation.
func (c *CLI) simulateCommand() *cobra.Command {
	var (
		sflags       simplifyFlags
		lflags       layoutFlags
		fresh        bool
		watch        bool
		headless     bool
		exitOnStable bool
		maxTicks     int
		fps          int
	)

	cmd := &cobra.Command{
		Use:   "simulate [graph.json]",
		Short: "Run the force simulation until the layout settles",
		Long: `Run the force simulation interactively.

The graph is simplified and loaded from the project's stored positions, then
ticked at a fixed frame rate. When average movement stays below the stability
threshold long enough, the positions are saved to the project and a stable
event is published.

With --watch the graph file is reloaded when it changes. Small changes keep
the running layout; large ones trigger a fresh warmup.

With --headless the simulation runs without a UI until it settles or
--max-ticks is reached.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sim, closeFn, err := c.newSimulation(cmd, args[0], sflags, lflags, fresh)
			if err != nil {
				return err
			}
			defer closeFn()

			frame := time.Second / time.Duration(max(fps, 1))
			if headless {
				return c.runHeadless(ctx, sim, frame, maxTicks)
			}
			var watcher *fileWatcher
			if watch {
				watcher, err = newFileWatcher(args[0], watchDebounce, c.Logger)
				if err != nil {
					return err
				}
				defer watcher.Close()
			}
			m := newSimulateModel(sim, frame, watcher, exitOnStable)
			if _, err := tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil {
				return fmt.Errorf("simulate: %w", err)
			}
			return nil
		},
	}

	sflags.register(cmd)
	cmd.Flags().StringVarP(&lflags.project, "project", "p", "", "project to load and save positions (default from config)")
	cmd.Flags().Uint64Var(&lflags.seed, "seed", 0, "spawn seed (default from config)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "ignore stored positions")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload the graph file when it changes")
	cmd.Flags().BoolVar(&headless, "headless", false, "run without the interactive UI")
	cmd.Flags().BoolVar(&exitOnStable, "exit-on-stable", false, "quit the UI once the layout is stable")
	cmd.Flags().IntVar(&maxTicks, "max-ticks", defaultMaxTicks, "tick budget for --headless")
	cmd.Flags().IntVar(&fps, "fps", defaultFrameRate, "ticks per second")

	return cmd
}

// =============================================================================
// Simulation
// =============================================================================

// simulation owns a stability controller and the graph file it follows.
// It is driven from a single goroutine.
type simulation struct {
	ctx     context.Context
	runner  *pipeline.Runner
	opts    pipeline.Options
	ctrl    *stability.Controller
	sink    *pipeline.StableSink
	input  string
	cli    *CLI

	// Load report for display.
	solve   layout.SolveResult
	nodes   int
	edges   int
	stables int
	reloads int
}

// newSimulation loads the graph and returns a ready controller with the
// stable sink attached. The returned func releases the backends.
func (c *CLI) newSimulation(cmd *cobra.Command, input string, sflags simplifyFlags, lflags layoutFlags, fresh bool) (*simulation, func(), error) {
	ctx := cmd.Context()
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	runner, err := c.newRunner(ctx, cfg, false)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize runner: %w", err)
	}

	opts := c.pipelineOptions(cfg)
	sflags.apply(cmd, &opts.Simplify)
	lflags.apply(&opts)
	if err := opts.ValidateForLayout(); err != nil {
		_ = runner.Close()
		return nil, nil, err
	}

	sim := &simulation{
		ctx:    ctx,
		runner: runner,
		opts:   opts,
		input:  input,
		cli:    c,
	}
	ctrlCfg := cfg.Controller()
	ctrlCfg.Physics = opts.Physics
	ctrlCfg.Solve = opts.Solve
	engine := layout.New(layout.WithSeed(opts.Seed))
	sim.ctrl = stability.New(engine, ctrlCfg, stability.WithLogger(c.Logger))
	sim.sink = runner.StableSink(opts.Project)
	sim.sink.Attach(ctx, sim.ctrl)
	sim.ctrl.OnStable(func(stability.Snapshot) { sim.stables++ })

	g, err := c.readGraph(input)
	if err != nil {
		_ = runner.Close()
		return nil, nil, err
	}
	simplified, _, err := runner.Simplify(ctx, g, opts)
	if err != nil {
		_ = runner.Close()
		return nil, nil, fmt.Errorf("simplify: %w", err)
	}

	var saved map[string]geom.Vec3
	if !fresh {
		saved, err = runner.LoadPositions(ctx, opts.Project)
		if err != nil {
			_ = runner.Close()
			return nil, nil, fmt.Errorf("load positions: %w", err)
		}
	}

	sim.solve, err = sim.ctrl.Load(ctx, simplified, saved)
	if err != nil {
		_ = runner.Close()
		return nil, nil, fmt.Errorf("warm up: %w", err)
	}
	sim.nodes, sim.edges = simplified.NodeCount(), simplified.EdgeCount()
	c.Logger.Debug("simulation loaded",
		"nodes", sim.nodes,
		"edges", sim.edges,
		"restored", len(saved),
		"fast_path", sim.solve.FastPath)

	return sim, func() { _ = runner.Close() }, nil
}

// tick advances the controller by dt.
func (s *simulation) tick(dt time.Duration) stability.TickResult {
	res := s.ctrl.Tick(dt)
	observability.Simulation().OnTick(s.ctx, res.Average)
	return res
}

// reload re-reads the graph file and feeds it to the controller.
func (s *simulation) reload() (stability.UpdateResult, error) {
	g, err := s.cli.readGraph(s.input)
	if err != nil {
		return stability.UpdateResult{}, err
	}
	simplified, _, err := s.runner.Simplify(s.ctx, g, s.opts)
	if err != nil {
		return stability.UpdateResult{}, err
	}
	res, err := s.ctrl.Update(s.ctx, simplified)
	if err != nil {
		return stability.UpdateResult{}, err
	}
	s.nodes, s.edges = simplified.NodeCount(), simplified.EdgeCount()
	s.reloads++
	if res.Rebuilt {
		s.sink.Rebuilt(s.ctx, s.nodes, s.ctrl.Ticks())
	}
	return res, nil
}

// runHeadless ticks until the layout is stable, the budget is spent or ctx
// is cancelled. Ticks are not paced.
func (c *CLI) runHeadless(ctx context.Context, sim *simulation, frame time.Duration, maxTicks int) error {
	if sim.nodes == 0 {
		printInfo("Graph is empty, nothing to simulate")
		return nil
	}
	prog := newProgress(c.Logger)
	var last stability.TickResult
	for i := 0; i < maxTicks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = sim.tick(frame)
		if last.Stable {
			prog.done(fmt.Sprintf("Stable after %d ticks", sim.ctrl.Ticks()))
			printSuccess("Layout stable")
			printKeyValue("project", sim.opts.Project)
			printKeyValue("nodes", fmt.Sprintf("%d", sim.nodes))
			return nil
		}
	}
	printWarning("Not stable after %d ticks (average movement %.4f)", maxTicks, last.Average)
	return nil
}

// =============================================================================
// TUI Model
// =============================================================================

type (
	frameMsg time.Time
	watchMsg time.Time
)

var (
	simBarStyle    = lipgloss.NewStyle().Foreground(colorCyan)
	simStableStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
)

// simulateModel is the bubbletea model for the live simulation.
type simulateModel struct {
	sim          *simulation
	frame        time.Duration
	watcher      *fileWatcher
	exitOnStable bool

	last     time.Time
	res      stability.TickResult
	paused   bool
	status   string
	quitting bool
}

func newSimulateModel(sim *simulation, frame time.Duration, watcher *fileWatcher, exitOnStable bool) simulateModel {
	return simulateModel{
		sim:          sim,
		frame:        frame,
		watcher:      watcher,
		exitOnStable: exitOnStable,
	}
}

func (m simulateModel) nextFrame() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m simulateModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.nextFrame()}
	if m.watcher != nil {
		cmds = append(cmds, m.watcher.wait())
	}
	return tea.Batch(cmds...)
}

func (m simulateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case " ", "p":
			m.paused = !m.paused
			m.last = time.Time{}
		}

	case frameMsg:
		now := time.Time(msg)
		dt := m.frame
		if !m.last.IsZero() {
			dt = now.Sub(m.last)
		}
		m.last = now
		if !m.paused {
			m.res = m.sim.tick(dt)
			if m.res.Stable {
				m.status = fmt.Sprintf("stable at tick %d, positions saved", m.sim.ctrl.Ticks())
				if m.exitOnStable {
					return m, tea.Quit
				}
			}
		}
		return m, m.nextFrame()

	case watchMsg:
		res, err := m.sim.reload()
		switch {
		case err != nil:
			m.status = "reload failed: " + err.Error()
		case res.Rebuilt:
			m.status = fmt.Sprintf("graph changed, rebuilt (%d added, %d removed)", res.Sync.Added, res.Sync.Removed)
		default:
			m.status = fmt.Sprintf("graph changed (%d added, %d removed)", res.Sync.Added, res.Sync.Removed)
		}
		return m, m.watcher.wait()
	}
	return m, nil
}

func (m simulateModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	s := m.sim
	cfg := s.ctrl.Config()

	b.WriteString(StyleTitle.Render("astrolabe simulate"))
	b.WriteString("  ")
	b.WriteString(StyleDim.Render(s.opts.Project))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(styleLabel.Render(label))
		b.WriteString(" ")
		b.WriteString(value)
		b.WriteString("\n")
	}
	row("graph", StyleNumber.Render(fmt.Sprintf("%d nodes · %d edges", s.nodes, s.edges)))
	row("tick", StyleNumber.Render(fmt.Sprintf("%d", s.ctrl.Ticks())))
	row("movement", StyleValue.Render(fmt.Sprintf("%.4f", m.res.Average)))
	row("streak", streakBar(m.res.Streak, cfg.StableTicks))

	state := StyleWarning.Render("settling")
	switch {
	case m.paused:
		state = StyleDim.Render("paused")
	case s.ctrl.Stable():
		state = simStableStyle.Render("stable")
	}
	row("state", state)
	if s.reloads > 0 {
		row("reloads", StyleNumber.Render(fmt.Sprintf("%d", s.reloads)))
	}
	if s.stables > 0 {
		row("saved", StyleSuccess.Render(fmt.Sprintf("%d snapshots", s.stables)))
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(StyleDim.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("space: pause  q: quit"))
	b.WriteString("\n")
	return b.String()
}

// streakBar renders progress toward the stable streak.
func streakBar(streak, target int) string {
	const width = 20
	if target <= 0 {
		return ""
	}
	filled := min(streak*width/target, width)
	return simBarStyle.Render(strings.Repeat("█", filled)) +
		StyleDim.Render(strings.Repeat("░", width-filled)) +
		StyleDim.Render(fmt.Sprintf(" %d/%d", min(streak, target), target))
}
