// Package analysis characterizes linear models produced by the linearizer.
//
//   - [Modes]: eigenvalues of A with frequency, damping and time constants
//   - [Stable]: whether every mode decays
//   - [ControllabilityRank]: rank of [B AB ... A^(n-1)B]
//   - [StepResponse]: time history of the linear model under a step input
//   - [PowerSpectrum]: amplitude spectrum of a logged series, for comparing
//     simulated oscillations with predicted modes
//
// A short-period model, for example:
//
//	modes, err := analysis.Modes(m.A)
//	if err == nil && !analysis.Stable(modes) {
//	    // at least one mode diverges
//	}
package analysis
