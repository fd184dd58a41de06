package fdm

import "strings"

// PropertyName is a dotted key into the engine's flat namespace, e.g. "ic/alpha-rad".
type PropertyName = string

// FDM is the external flight dynamics engine.
type FDM interface {
	SetProperty(name string, value float64) error
	GetProperty(name string) (float64, error)
	// RunIC resolves a consistent state from the current ic/* properties.
	// It settles; it does not integrate.
	RunIC() error
	// Run advances simulated time by one fixed step.
	Run() error
	// PropertyCatalog lists every registered name, each optionally followed by
	// an access-flag token such as " (RW)".
	PropertyCatalog() []string
	SimTime() float64
}

// Propulsion is implemented by engines that can force their powerplant into
// a running state before a settle.
type Propulsion interface {
	InitRunning(engine int) error
}

// Resetter is implemented by engines that can return to their canonical
// initial condition independent of previous calls.
type Resetter interface {
	ResetIC() error
}

// CatalogName strips the access-flag token from a catalog entry.
func CatalogName(entry string) string {
	entry = strings.TrimSpace(entry)
	if i := strings.IndexByte(entry, ' '); i >= 0 {
		return entry[:i]
	}
	return entry
}

// CatalogNames returns the stripped names of every catalog entry, skipping blanks.
func CatalogNames(f FDM) []string {
	entries := f.PropertyCatalog()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if n := CatalogName(e); n != "" {
			names = append(names, n)
		}
	}
	return names
}
