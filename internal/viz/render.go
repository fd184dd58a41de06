package viz

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/san-kum/aerotrim/internal/analysis"
	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/linearize"
	"github.com/san-kum/aerotrim/internal/props"
	"github.com/san-kum/aerotrim/internal/scenario"
	"github.com/san-kum/aerotrim/internal/trim"
	"gonum.org/v1/gonum/mat"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func newTable(s styles, headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.border).
		Headers(headers...)
}

// RenderMatrix draws m with labelled rows and columns.
func RenderMatrix(title string, rows, cols []string, m mat.Matrix) string {
	s := defaultStyles
	r, c := m.Dims()
	t := newTable(s, append([]string{""}, cols...)...)
	for i := 0; i < r; i++ {
		row := make([]string, 0, c+1)
		if i < len(rows) {
			row = append(row, rows[i])
		} else {
			row = append(row, strconv.Itoa(i))
		}
		for j := 0; j < c; j++ {
			row = append(row, formatFloat(m.At(i, j)))
		}
		t.Row(row...)
	}
	return s.title.Render(title) + "\n" + t.String()
}

func RenderModel(m *linearize.Model) string {
	return RenderMatrix("A", m.Derivs, m.States, m.A) + "\n" +
		RenderMatrix("B", m.Derivs, m.Inputs, m.B)
}

func RenderTrim(r *trim.Result) string {
	s := defaultStyles
	var sb strings.Builder

	status := s.ok.Render("converged")
	if !r.Converged {
		status = s.fail.Render("not converged")
	}
	sb.WriteString(s.title.Render("Trim") + "\n")
	line := func(label, value string) {
		sb.WriteString(s.label.Render(label) + s.value.Render(value) + "\n")
	}
	line("status", status+" ("+r.Status+")")
	line("cost", formatFloat(r.Cost))
	line("max constraint", formatFloat(r.MaxViolation()))
	line("iterations", strconv.Itoa(r.Iterations))
	line("evaluations", strconv.Itoa(r.Evaluations))

	point := newTable(s, "property", "value")
	for _, e := range r.Point.Entries() {
		point.Row(e.Name, formatFloat(e.Value))
	}
	sb.WriteString(point.String() + "\n")

	if len(r.ConstraintValues) > 0 {
		cons := newTable(s, "constraint", "value")
		for i, v := range r.ConstraintValues {
			name := fmt.Sprintf("c%d", i)
			if i < len(r.ConstraintNames) {
				name = r.ConstraintNames[i]
			}
			cons.Row(name, formatFloat(v))
		}
		sb.WriteString(cons.String() + "\n")
	}
	if r.Err != nil {
		sb.WriteString(s.warn.Render(r.Err.Error()) + "\n")
	}
	return sb.String()
}

func formatSeconds(v float64) string {
	if math.IsInf(v, 0) {
		return "-"
	}
	return formatFloat(v)
}

func RenderModes(modes []analysis.Mode) string {
	s := defaultStyles
	t := newTable(s, "eigenvalue", "wn (rad/s)", "zeta", "period (s)", "t½ (s)", "t2 (s)")
	for _, m := range modes {
		ev := formatFloat(real(m.Eigenvalue))
		if m.Oscillatory() {
			ev += " ± " + formatFloat(imag(m.Eigenvalue)) + "i"
		}
		t.Row(ev, formatFloat(m.NaturalFrequency), formatFloat(m.Damping),
			formatSeconds(m.Period), formatSeconds(m.TimeToHalf), formatSeconds(m.TimeToDouble))
	}
	verdict := s.ok.Render("stable")
	if !analysis.Stable(modes) {
		verdict = s.fail.Render("unstable")
	}
	return s.title.Render("Modes") + "\n" + t.String() + "\n" + verdict
}

func RenderReport(r *scenario.Report) string {
	s := defaultStyles
	var sb strings.Builder
	sb.WriteString(s.title.Render("Scenario "+r.Scenario) + "\n")
	sb.WriteString(s.muted.Render("run "+r.RunID) + "\n")

	stages := newTable(s, "stage", "entered (s)", "exited (s)", "trim", "models", "error")
	for _, st := range r.Stages {
		trimmed := ""
		if st.Trim != nil {
			trimmed = "ok"
			if !st.Trim.Converged {
				trimmed = "failed"
			}
		}
		models := make([]string, 0, len(st.Models))
		for name := range st.Models {
			models = append(models, name)
		}
		sort.Strings(models)
		errText := ""
		if st.Err != nil {
			errText = st.Err.Error()
		}
		stages.Row(st.Name, formatFloat(st.Entered), formatFloat(st.Exited), trimmed, strings.Join(models, ", "), errText)
	}
	sb.WriteString(stages.String() + "\n")

	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(s.label.Render(name) + s.value.Render(formatFloat(r.Metrics[name])) + "\n")
	}

	status := s.ok.Render(fmt.Sprintf("completed at t=%.2fs", r.Elapsed))
	if !r.Completed {
		status = s.fail.Render(fmt.Sprintf("stopped at t=%.2fs", r.Elapsed))
	}
	sb.WriteString(status)
	return sb.String()
}

func RenderSweep(points []trim.SweepPoint) string {
	s := defaultStyles
	t := newTable(s, "altitude (ft)", "mach", "gamma (rad)", "status", "cost", "max constraint", "throttle", "elevator")
	for _, p := range points {
		row := []string{formatFloat(p.Input.AltitudeFt), formatFloat(p.Input.Mach), formatFloat(p.Input.GammaRad)}
		switch {
		case p.Result == nil:
			errText := "not run"
			if p.Err != nil {
				errText = p.Err.Error()
			}
			row = append(row, errText, "", "", "", "")
		default:
			status := "converged"
			if !p.Result.Converged {
				status = "not converged"
			}
			row = append(row, status, formatFloat(p.Result.Cost), formatFloat(p.Result.MaxViolation()),
				pointValue(p.Result.Point, props.FCSThrottle0), pointValue(p.Result.Point, props.FCSElevator))
		}
		t.Row(row...)
	}
	return s.title.Render("Trim sweep") + "\n" + t.String()
}

func pointValue(op *fdm.OperatingPoint, id props.ID) string {
	v, ok := op.Get(id.Name())
	if !ok {
		return "-"
	}
	return formatFloat(v)
}
