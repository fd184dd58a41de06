package viz

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/scenario"
)

const historyCapacity = 600

// PausablePacer holds a run in place while paused and otherwise defers to
// the wrapped pacer. Time spent paused is hidden from the wrapped pacer so a
// resumed run does not race to catch up.
type PausablePacer struct {
	inner  scenario.Pacer
	paused atomic.Bool
	held   time.Duration
}

func NewPausablePacer(inner scenario.Pacer) *PausablePacer {
	if inner == nil {
		inner = scenario.NewRealtimePacer()
	}
	return &PausablePacer{inner: inner}
}

// Toggle flips the pause state and returns the new one.
func (p *PausablePacer) Toggle() bool {
	for {
		cur := p.paused.Load()
		if p.paused.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}

func (p *PausablePacer) Paused() bool { return p.paused.Load() }

func (p *PausablePacer) Wait(ctx context.Context, simTime float64) error {
	if p.paused.Load() {
		start := time.Now()
		for p.paused.Load() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
		}
		p.held += time.Since(start)
	}
	return p.inner.Wait(ctx, simTime+p.held.Seconds())
}

type sampleMsg struct {
	t      float64
	stage  string
	values []float64
}

type doneMsg struct {
	report *scenario.Report
	err    error
}

// LiveModel runs a scenario in the background and follows it on screen.
type LiveModel struct {
	ctx    context.Context
	cancel context.CancelFunc
	runner *scenario.Runner
	h      *fdm.Handle
	sc     scenario.Scenario
	pacer  *PausablePacer

	samples chan sampleMsg
	done    chan doneMsg

	columns  []string
	history  [][]float64
	latest   []float64
	t        float64
	stage    string
	selected int
	theme    Theme
	styles   styles

	finished bool
	report   *scenario.Report
	err      error
}

// NewLiveModel prepares a realtime run of sc on h. The runner is copied so
// the caller's observers and pacer are left alone.
func NewLiveModel(ctx context.Context, runner *scenario.Runner, h *fdm.Handle, sc *scenario.Scenario, pacer scenario.Pacer) *LiveModel {
	ctx, cancel := context.WithCancel(ctx)
	r := *runner
	r.Observers = append([]scenario.Observer(nil), runner.Observers...)

	m := &LiveModel{
		ctx:     ctx,
		cancel:  cancel,
		runner:  &r,
		h:       h,
		sc:      *sc,
		pacer:   NewPausablePacer(pacer),
		samples: make(chan sampleMsg, 256),
		done:    make(chan doneMsg, 1),
		columns: sc.Columns(),
		theme:   ThemeCockpit,
		styles:  newStyles(ThemeCockpit),
	}
	m.sc.Realtime = true
	m.runner.Pacer = m.pacer
	m.history = make([][]float64, len(m.columns))
	m.runner.AddObserver(scenario.ObserverFunc(m.forward))
	return m
}

// WithTheme sets the starting color theme.
func (m *LiveModel) WithTheme(t Theme) *LiveModel {
	m.theme, m.styles = t, newStyles(t)
	return m
}

// forward runs on the scenario goroutine. Samples are dropped while the UI
// is behind.
func (m *LiveModel) forward(t float64, stage string, sample map[string]float64) {
	values := make([]float64, len(m.columns))
	for i, c := range m.columns {
		values[i] = sample[c]
	}
	select {
	case m.samples <- sampleMsg{t: t, stage: stage, values: values}:
	default:
	}
}

func (m *LiveModel) start() tea.Msg {
	go func() {
		report, err := m.runner.Run(m.ctx, m.h, &m.sc)
		m.done <- doneMsg{report: report, err: err}
	}()
	return nil
}

// wait drains pending samples before reporting the end of the run.
func (m *LiveModel) wait() tea.Msg {
	select {
	case s := <-m.samples:
		return s
	default:
	}
	select {
	case s := <-m.samples:
		return s
	case d := <-m.done:
		return d
	}
}

func (m *LiveModel) Init() tea.Cmd {
	return tea.Batch(m.start, m.wait)
}

func (m *LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case " ":
			m.pacer.Toggle()
		case "tab":
			if len(m.columns) > 0 {
				m.selected = (m.selected + 1) % len(m.columns)
			}
		case "t":
			m.theme = nextTheme(m.theme)
			m.styles = newStyles(m.theme)
		}
	case sampleMsg:
		m.t, m.stage, m.latest = msg.t, msg.stage, msg.values
		for i, v := range msg.values {
			h := append(m.history[i], v)
			if len(h) > historyCapacity {
				h = h[len(h)-historyCapacity:]
			}
			m.history[i] = h
		}
		return m, m.wait
	case doneMsg:
		m.finished = true
		m.report, m.err = msg.report, msg.err
	}
	return m, nil
}

// Report returns the finished run, if any.
func (m *LiveModel) Report() (*scenario.Report, error) { return m.report, m.err }

func (m *LiveModel) View() string {
	s := m.styles
	var sb strings.Builder

	sb.WriteString(s.title.Render(fmt.Sprintf("%s  ·  %s", m.sc.Name, m.stage)) + "\n")
	status := s.ok.Render("running")
	switch {
	case m.finished && m.err != nil:
		status = s.fail.Render("stopped: " + m.err.Error())
	case m.finished:
		status = s.ok.Render("finished")
	case m.pacer.Paused():
		status = s.warn.Render("paused")
	}
	sb.WriteString(fmt.Sprintf("%s %6.2fs / %.0fs  %s\n\n",
		ProgressBar(m.t/m.sc.Duration, 30, m.theme), m.t, m.sc.Duration, status))

	if len(m.columns) > 0 && len(m.history[m.selected]) > 1 {
		chart := asciigraph.Plot(downsample(m.history[m.selected], 60),
			asciigraph.Height(8), asciigraph.Width(60), asciigraph.Caption(m.columns[m.selected]))
		sb.WriteString(s.panel.Render(chart) + "\n")
	}

	for i, c := range m.columns {
		if i >= len(m.latest) {
			break
		}
		label := s.label.Render(c)
		if i == m.selected {
			label = s.ok.Width(28).Render(c)
		}
		sb.WriteString(label + s.value.Render(formatFloat(m.latest[i])) + "  " +
			s.muted.Render(Sparkline(m.history[i], 20)) + "\n")
	}

	if m.finished && m.report != nil {
		sb.WriteString("\n" + RenderReport(m.report) + "\n")
	}
	sb.WriteString("\n" + s.muted.Render("space pause · tab column · t theme · q quit"))
	return sb.String()
}
