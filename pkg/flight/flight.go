// Package flight implements the Flight aggregate and FlightStore (spec
// §3, §4.3): the rolling per-aircraft state the rule evaluator reads and
// the store that upserts, snapshots, and expires it.
package flight

import (
	"github.com/flightops/ruled/pkg/geo"
	"github.com/flightops/ruled/pkg/report"
)

// Flight is the mutable per-aircraft aggregate. Only the driver loop
// (through Store) ever mutates one; rule evaluation and action dispatch
// read it and write only notes/cooldowns through the methods below.
type Flight struct {
	Identifier string

	LastReport report.Report
	PrevReport report.Report
	hasPrev    bool

	// CurrentRegions / PreviousRegions are vectors parallel to the
	// RegionSet's file list; each entry is nil or a region name (spec
	// §3 I2).
	CurrentRegions  []*string
	PreviousRegions []*string

	// Notes survive across points until cleared by a `note` action with
	// the clear sentinel (spec §4.6).
	Notes map[string]*string

	// RuleCooldowns is a dense vector indexed by each rule's stable
	// integer index (spec §9: "use a dense vector on the flight rather
	// than a map by rule name"), holding the stream timestamp of this
	// rule's last fire against this flight. Zero value (0) means never.
	RuleCooldowns []float64

	// ExpireCallbacks are the names of `expire_callback` actions
	// registered against this flight by matched rules; invoked once
	// each, in registration order, when the flight is evicted.
	ExpireCallbacks []string

	CreatedAt  float64
	LastSeenAt float64
}

// newFlight creates a fresh aggregate for a first-seen identifier.
func newFlight(ident string, numRules int) *Flight {
	return &Flight{
		Identifier:    ident,
		Notes:         make(map[string]*string),
		RuleCooldowns: make([]float64, numRules),
	}
}

// Point adapts the flight's latest position to pkg/geo's coordinate type.
func (f *Flight) Point() geo.Point {
	return geo.Point{Lat: f.LastReport.Lat, Lon: f.LastReport.Lon}
}

// HasPrevReport reports whether a prior report exists — false only for
// the very first report of a flight's life, when prev_report is
// undefined (spec §3 treats prev_report as "latest two Reports").
func (f *Flight) HasPrevReport() bool {
	return f.hasPrev
}

// SetNote implements the `note` action: a nil value is the clear
// sentinel and removes the note entirely (spec §4.6).
func (f *Flight) SetNote(name string, value *string) {
	if value == nil {
		delete(f.Notes, name)
		return
	}
	v := *value
	f.Notes[name] = &v
}

// RegisterExpireCallback records an `expire_callback` action for this
// flight; duplicates (same rule firing twice before eviction) are
// collapsed so the callback still fires exactly once on eviction.
func (f *Flight) RegisterExpireCallback(name string) {
	for _, existing := range f.ExpireCallbacks {
		if existing == name {
			return
		}
	}
	f.ExpireCallbacks = append(f.ExpireCallbacks, name)
}

// View is the narrow, read-only snapshot handed to user callbacks (spec
// §6: "a narrow flight view value type that exposes only the fields §3
// lists, decoupling user code from the internal flight aggregate").
type View struct {
	Identifier string
	Report     report.Report
	Notes      map[string]string
	LastSeenAt float64
	CreatedAt  float64
}

// Snapshot builds the callback-facing View of this flight.
func (f *Flight) Snapshot() View {
	notes := make(map[string]string, len(f.Notes))
	for k, v := range f.Notes {
		if v != nil {
			notes[k] = *v
		}
	}
	return View{
		Identifier: f.Identifier,
		Report:     f.LastReport,
		Notes:      notes,
		LastSeenAt: f.LastSeenAt,
		CreatedAt:  f.CreatedAt,
	}
}
