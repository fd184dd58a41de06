// Package fdm defines the contract between aerotrim and an external flight
// dynamics model.
//
// The engine itself (aerodynamics, propulsion, integration) lives outside this
// module. aerotrim only needs a flat namespace of named properties plus a few
// operations:
//
//   - [FDM]: get/set properties, settle an initial condition, advance one step
//   - [Propulsion]: optional hook to force engines into a running state
//   - [Resetter]: optional hook to return to the engine's canonical initial condition
//   - [OperatingPoint]: an ordered snapshot of initial-condition values
//   - [Handle]: the single-owner reference every trim, linearization and
//     scenario call is given
//
// # Errors
//
// Every failure surfaced by a [Handle] is an [*Error] whose Kind maps onto one
// of the sentinel errors, so callers can branch with errors.Is:
//
//	if errors.Is(err, fdm.ErrUnknownProperty) {
//	    // bad name
//	}
//
// # Thread Safety
//
// An FDM instance is mutated by every operation, including reads that follow a
// settle. A Handle must never be shared across goroutines; [Handle.Acquire]
// turns accidental sharing into an [ErrHandleBusy] error instead of corrupted
// simulation state.
package fdm
