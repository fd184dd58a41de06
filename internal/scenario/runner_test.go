package scenario_test

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/log"
	"github.com/san-kum/aerotrim/internal/models"
	"github.com/san-kum/aerotrim/internal/props"
	"github.com/san-kum/aerotrim/internal/scenario"
)

func newHandle(model string) *fdm.Handle {
	spec, err := models.Builtin(model)
	Expect(err).NotTo(HaveOccurred())
	a, err := models.NewAffine(spec)
	Expect(err).NotTo(HaveOccurred())
	return fdm.NewHandle(a)
}

const elevatorKick = `
name: kick
duration: 2
log: [aero/alpha-rad, velocities/q-rad_sec, fcs/elevator-cmd-norm]
stages:
  - name: wait
    hold_for: 0.5
  - name: kick
    set:
      fcs/elevator-cmd-norm: 1
    until:
      property: aero/alpha-rad
      above: 0.1
  - name: release
    set:
      fcs/elevator-cmd-norm: 0
`

type countingPacer struct{ calls int }

func (p *countingPacer) Wait(ctx context.Context, simTime float64) error {
	p.calls++
	return ctx.Err()
}

var _ = Describe("Runner", func() {
	var (
		runner *scenario.Runner
		ctx    context.Context
	)

	BeforeEach(func() {
		runner = &scenario.Runner{Logger: log.Discard()}
		ctx = context.Background()
	})

	Context("with the short-period model", func() {
		var (
			h  *fdm.Handle
			sc *scenario.Scenario
		)

		BeforeEach(func() {
			h = newHandle("short-period")
			var err error
			sc, err = scenario.Parse([]byte(elevatorKick))
			Expect(err).NotTo(HaveOccurred())
		})

		It("advances stages on hold_for and until", func() {
			report, err := runner.Run(ctx, h, sc)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Completed).To(BeTrue())
			Expect(report.Stages).To(HaveLen(3))

			wait, kick, release := report.Stages[0], report.Stages[1], report.Stages[2]
			Expect(wait.Entered).To(Equal(0.0))
			Expect(kick.Entered).To(BeNumerically("~", 0.5, 1e-9))
			Expect(wait.Exited).To(Equal(kick.Entered))
			Expect(release.Entered).To(BeNumerically(">", kick.Entered))
			Expect(release.Exited).To(BeNumerically("~", 2, 1e-6))
			Expect(report.Errors()).To(BeNil())

			alpha, ok := report.Log.Column("aero/alpha-rad")
			Expect(ok).To(BeTrue())
			Expect(alpha).To(HaveLen(200))
			Expect(alpha[0]).To(Equal(0.0))
			for i, r := range report.Log.Records {
				if r.Stage == "release" {
					// The record on which the kick ended crossed the threshold.
					Expect(alpha[i-1]).To(BeNumerically(">", 0.1))
					break
				}
			}
		})

		It("applies stage settings on every step", func() {
			report, err := runner.Run(ctx, h, sc)
			Expect(err).NotTo(HaveOccurred())
			elevator, _ := report.Log.Column("fcs/elevator-cmd-norm")
			for i, r := range report.Log.Records {
				switch r.Stage {
				case "kick":
					Expect(elevator[i]).To(Equal(1.0))
				case "wait", "release":
					Expect(elevator[i]).To(Equal(0.0))
				}
			}
		})

		It("tags the report with a run id", func() {
			report, err := runner.Run(ctx, h, sc)
			Expect(err).NotTo(HaveOccurred())
			_, err = uuid.Parse(report.RunID)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Log.RunID).To(Equal(report.RunID))
		})

		It("notifies observers and summarizes metrics", func() {
			var steps int
			runner.AddObserver(scenario.ObserverFunc(func(t float64, stage string, sample map[string]float64) {
				steps++
				Expect(sample).To(HaveKey("aero/alpha-rad"))
			}))
			report, err := runner.Run(ctx, h, sc)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(Equal(report.Log.Len()))
			Expect(report.Metrics).To(HaveKey("control_effort"))
			Expect(report.Metrics).To(HaveKey("steadiness"))
		})

		It("paces realtime scenarios", func() {
			pacer := &countingPacer{}
			runner.Pacer = pacer
			sc.Realtime = true
			report, err := runner.Run(ctx, h, sc)
			Expect(err).NotTo(HaveOccurred())
			Expect(pacer.calls).To(Equal(report.Log.Len()))
		})

		It("stops when the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			runner.AddObserver(scenario.ObserverFunc(func(t float64, _ string, _ map[string]float64) {
				if t > 1 {
					cancel()
				}
			}))
			report, err := runner.Run(cctx, h, sc)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(report).NotTo(BeNil())
			Expect(report.Completed).To(BeFalse())
			Expect(report.Elapsed).To(BeNumerically("<", 1.1))
		})

		It("records linearization failures and keeps running", func() {
			sc.Stages[1].Linearize = []string{"short-period", "lateral"}
			report, err := runner.Run(ctx, h, sc)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Completed).To(BeTrue())

			kick, ok := report.Stage("kick")
			Expect(ok).To(BeTrue())
			Expect(kick.Models).To(HaveKey("short-period"))
			Expect(kick.Models).NotTo(HaveKey("lateral"))
			Expect(errors.Is(kick.Err, fdm.ErrUnknownProperty)).To(BeTrue())
			Expect(report.Errors()).To(MatchError(ContainSubstring("kick")))
		})

		It("records trim failures and keeps running", func() {
			sc.Stages[2].Trim = &scenario.TrimCondition{AltitudeFt: 1000, Mach: 0.2}
			report, err := runner.Run(ctx, h, sc)
			Expect(err).NotTo(HaveOccurred())
			release, _ := report.Stage("release")
			Expect(release.Trim).To(BeNil())
			Expect(release.Err).To(HaveOccurred())
		})

		It("rejects names the engine does not know", func() {
			sc.Log = append(sc.Log, "velocities/vt-fps")
			_, err := runner.Run(ctx, h, sc)
			Expect(errors.Is(err, fdm.ErrUnknownProperty)).To(BeTrue())
		})

		It("refuses a handle that is already owned", func() {
			release, err := h.Acquire("someone else")
			Expect(err).NotTo(HaveOccurred())
			defer release()
			_, err = runner.Run(ctx, h, sc)
			Expect(errors.Is(err, fdm.ErrHandleBusy)).To(BeTrue())
		})
	})

	Context("with the built-in takeoff", func() {
		It("rolls to rotation speed and trims the climb-out", func() {
			sc, err := scenario.Builtin("takeoff")
			Expect(err).NotTo(HaveOccurred())
			h := newHandle("c172-linear")

			report, err := runner.Run(ctx, h, sc)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Completed).To(BeTrue())
			Expect(report.Stages).To(HaveLen(3))

			roll, _ := report.Stage("roll")
			Expect(roll.Entered).To(BeNumerically("~", 5, 0.02))

			climb, ok := report.Stage("climb-out")
			Expect(ok).To(BeTrue())
			Expect(climb.Entered).To(BeNumerically("~", 17.6, 0.5))
			Expect(climb.Err).NotTo(HaveOccurred())
			Expect(climb.Trim.Converged).To(BeTrue())
			Expect(climb.Models).To(HaveKey("short-period"))
			Expect(climb.Models).To(HaveKey("longitudinal"))

			u, _ := report.Log.Column("velocities/u-fps")
			for i, r := range report.Log.Records {
				if r.Stage == "hold" {
					Expect(u[i]).To(Equal(0.0))
				}
			}
			Expect(math.Abs(u[len(u)-1] - 180)).To(BeNumerically("<", 1))
		})
	})
})

var _ = Describe("Scenario files", func() {
	DescribeTable("invalid scenarios",
		func(doc string) {
			_, err := scenario.Parse([]byte(doc))
			Expect(errors.Is(err, fdm.ErrInvalidConfiguration)).To(BeTrue(), "got %v", err)
		},
		Entry("no name", "duration: 1\nstages: [{name: a}]"),
		Entry("no duration", "name: x\nstages: [{name: a}]"),
		Entry("no stages", "name: x\nduration: 1"),
		Entry("duplicate stage", "name: x\nduration: 1\nstages: [{name: a}, {name: a}]"),
		Entry("until without threshold", "name: x\nduration: 1\nstages: [{name: a, until: {property: velocities/vt-fps}}]"),
		Entry("until with both thresholds", "name: x\nduration: 1\nstages: [{name: a, until: {property: p, above: 1, below: 0}}]"),
		Entry("unknown preset", "name: x\nduration: 1\nstages: [{name: a, linearize: [phugoid]}]"),
	)

	It("lists and resolves built-ins", func() {
		Expect(scenario.BuiltinNames()).To(ContainElement("takeoff"))
		sc, err := scenario.Resolve("takeoff")
		Expect(err).NotTo(HaveOccurred())
		Expect(sc.Initial.Keys()[0]).To(Equal("ic/h-sl-ft"))
		Expect(sc.Columns()).To(Equal(scenario.DefaultColumns))
	})

	It("lists every property a scenario touches", func() {
		sc, err := scenario.Resolve("takeoff")
		Expect(err).NotTo(HaveOccurred())
		names := sc.Required()
		Expect(names).To(ContainElements(
			"ic/u-fps", "forces/hold-down", "velocities/vt-fps",
			"fcs/elevator-cmd-norm", "accelerations/udot-ft_sec2", "custom/machdot",
		))
		seen := make(map[string]bool)
		for _, n := range names {
			Expect(seen[n]).To(BeFalse(), "duplicate %s", n)
			seen[n] = true
		}

		reg := props.NewRegistry()
		c172 := newHandle("c172-linear")
		Expect(reg.Validate(fdm.CatalogNames(c172.FDM()), names)).To(Succeed())

		err = reg.Validate(fdm.CatalogNames(newHandle("short-period").FDM()), names)
		Expect(errors.Is(err, fdm.ErrUnknownProperty)).To(BeTrue(), "got %v", err)
	})

	It("reports a missing file", func() {
		_, err := scenario.Resolve("/nonexistent/scenario.yaml")
		Expect(err).To(HaveOccurred())
	})
})
