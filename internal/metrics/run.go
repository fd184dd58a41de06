package metrics

import "math"

// Metric summarizes one scenario run from its logged samples.
type Metric interface {
	Name() string
	Observe(sample map[string]float64, t float64)
	Value() float64
	Reset()
}

// Defaults returns the metrics attached to every scenario report.
func Defaults() []Metric {
	return []Metric{
		NewEnergyHeight(),
		NewSteadiness(1.0),
		NewControlEffort(),
	}
}

const gravityFtps2 = 32.174

// EnergyHeight is the specific energy h + V²/2g (ft) at the last sample.
type EnergyHeight struct {
	value   float64
	samples int
}

func NewEnergyHeight() *EnergyHeight { return &EnergyHeight{} }

func (e *EnergyHeight) Name() string { return "energy_height_ft" }

func (e *EnergyHeight) Observe(s map[string]float64, t float64) {
	h, ok := s["position/h-sl-ft"]
	if !ok {
		return
	}
	vt := s["velocities/vt-fps"]
	e.value = h + vt*vt/(2*gravityFtps2)
	e.samples++
}

func (e *EnergyHeight) Value() float64 { return e.value }

func (e *EnergyHeight) Reset() {
	e.value = 0
	e.samples = 0
}

var accelerationColumns = []string{
	"accelerations/udot-ft_sec2",
	"accelerations/vdot-ft_sec2",
	"accelerations/wdot-ft_sec2",
	"accelerations/pdot-rad_sec2",
	"accelerations/qdot-rad_sec2",
	"accelerations/rdot-rad_sec2",
}

// Steadiness is the fraction of samples whose logged body accelerations all
// stay within threshold.
type Steadiness struct {
	threshold  float64
	violations int
	samples    int
}

func NewSteadiness(threshold float64) *Steadiness {
	return &Steadiness{threshold: threshold}
}

func (s *Steadiness) Name() string { return "steadiness" }

func (s *Steadiness) Observe(sample map[string]float64, t float64) {
	s.samples++
	for _, c := range accelerationColumns {
		if v, ok := sample[c]; ok && math.Abs(v) > s.threshold {
			s.violations++
			return
		}
	}
}

func (s *Steadiness) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Steadiness) Reset() {
	s.violations = 0
	s.samples = 0
}

var surfaceColumns = []string{
	"fcs/aileron-cmd-norm",
	"fcs/elevator-cmd-norm",
	"fcs/rudder-cmd-norm",
}

// ControlEffort is the mean absolute surface command per sample.
type ControlEffort struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(s map[string]float64, t float64) {
	for _, col := range surfaceColumns {
		c.sum += math.Abs(s[col])
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
