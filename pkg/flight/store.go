package flight

import (
	"github.com/flightops/ruled/pkg/geo"
	"github.com/flightops/ruled/pkg/report"
)

// Regions resolves a point to its per-file region vector. pkg/region.Set
// satisfies this; Store depends on the interface rather than the concrete
// type so tests can fake region membership cheaply.
type Regions interface {
	Resolve(p geo.Point) []*string
}

// ExpireHook is invoked once per evicted flight, in eviction order, for
// every name in that flight's ExpireCallbacks (spec §4.6
// expire_callback, §8 property 4).
type ExpireHook func(f *Flight, callbackName string)

// Store is the single-writer, in-memory mapping from aircraft identifier
// to Flight (spec §3, §4.3). All mutation happens on the driver loop's
// goroutine; nothing here is safe for concurrent writers, matching spec
// §5's single-threaded-cooperative model.
type Store struct {
	regions  Regions
	numRules int
	expiry   float64

	flights map[string]*Flight
}

// NewStore builds a Store. numRules sizes each Flight's cooldown vector;
// expirySeconds is EXPIRY from spec §3 I3 (default 600s is the caller's
// choice, not hard-coded here).
func NewStore(regions Regions, numRules int, expirySeconds float64) *Store {
	return &Store{
		regions:  regions,
		numRules: numRules,
		expiry:   expirySeconds,
		flights:  make(map[string]*Flight),
	}
}

// Update upserts the flight for r.Identifier: pushes LastReport into
// PrevReport, installs r as the new LastReport, and recomputes
// CurrentRegions (after sliding the old value into PreviousRegions) —
// spec §4.3, invariants I1/I2. Reports with a non-positive position are
// the ingest layer's problem, not Store's; Update trusts r is
// well-formed.
func (s *Store) Update(r report.Report) (f *Flight, created bool) {
	f, ok := s.flights[r.Identifier]
	if !ok {
		f = newFlight(r.Identifier, s.numRules)
		f.CreatedAt = r.Timestamp
		s.flights[r.Identifier] = f
		created = true
	}

	if f.hasPrevOrFirst() {
		f.PrevReport = f.LastReport
		f.hasPrev = true
	}
	f.LastReport = r
	f.LastSeenAt = r.Timestamp

	f.PreviousRegions = f.CurrentRegions
	f.CurrentRegions = s.regions.Resolve(geo.Point{Lat: r.Lat, Lon: r.Lon})

	return f, created
}

// hasPrevOrFirst reports whether this flight already has a LastReport to
// slide into PrevReport — false only immediately after newFlight, before
// the first report has been installed.
func (f *Flight) hasPrevOrFirst() bool {
	return f.LastReport.Identifier != ""
}

// Get returns the live flight for ident, or nil if it is not currently
// tracked.
func (s *Store) Get(ident string) *Flight {
	return s.flights[ident]
}

// IterLive returns a snapshot slice of all currently-live flights, for
// the proximity engine's O(N) scan (spec §4.5). The slice is a point-in-
// time copy of the map's values; callers must not assume it stays in
// sync with subsequent Updates.
func (s *Store) IterLive() []*Flight {
	out := make([]*Flight, 0, len(s.flights))
	for _, f := range s.flights {
		out = append(out, f)
	}
	return out
}

// Len reports the number of currently-tracked flights.
func (s *Store) Len() int {
	return len(s.flights)
}

// NumRules reports the cooldown-vector width this store's flights were
// built with. A replacement rules.Set whose NumRules differs cannot be
// swapped in without resizing every tracked flight's cooldown vector.
func (s *Store) NumRules() int {
	return s.numRules
}

// Expire evicts every flight with now-LastSeenAt >= EXPIRY (spec §3 I3),
// invoking hook once per registered expire_callback on each evicted
// flight before removing it from the store.
func (s *Store) Expire(now float64, hook ExpireHook) int {
	evicted := 0
	for ident, f := range s.flights {
		if now-f.LastSeenAt < s.expiry {
			continue
		}
		if hook != nil {
			for _, cb := range f.ExpireCallbacks {
				hook(f, cb)
			}
		}
		delete(s.flights, ident)
		evicted++
	}
	return evicted
}

// ExpireAll unconditionally evicts every tracked flight, invoking hook
// for each registered expire_callback first. Used for the driver's
// terminal sweep (spec §4.7: "source exhausted -> final expiration
// sweep firing all registered expire_callbacks"), which must not depend
// on how close any flight is to the configured EXPIRY window.
func (s *Store) ExpireAll(hook ExpireHook) int {
	evicted := 0
	for ident, f := range s.flights {
		if hook != nil {
			for _, cb := range f.ExpireCallbacks {
				hook(f, cb)
			}
		}
		delete(s.flights, ident)
		evicted++
	}
	return evicted
}
