package rules

import (
	"github.com/flightops/ruled/pkg/flight"
	"github.com/flightops/ruled/pkg/geo"
)

// proximityRecencyWindow bounds the proximity scan to flights seen within
// this many stream-seconds of now (spec §4.5: "ignore partners whose last
// report is older than 60s relative to now").
const proximityRecencyWindow = 60.0

// Proximity implements the `proximity: [alt_ft, lat_nm]` condition. It is
// not a plain Condition: a match can pair the subject flight with more
// than one live partner, and the evaluator needs each pairing to drive
// its own cooldown-gated fire (spec §4.4 edges: "fires once per ordered
// pair encountered").
type Proximity struct {
	AltFeet float64
	LatNM   float64
}

// Find returns every other live flight currently within the configured
// altitude and lateral thresholds of subject, in Store.IterLive order,
// excluding subject itself and anything stale relative to now.
func (p Proximity) Find(store *flight.Store, subject *flight.Flight, now float64) []*flight.Flight {
	if !subject.LastReport.HasAlt {
		return nil
	}
	subjectPt := subject.Point()

	var out []*flight.Flight
	for _, other := range store.IterLive() {
		if other == subject {
			continue
		}
		if !other.LastReport.HasAlt {
			continue
		}
		if now-other.LastSeenAt > proximityRecencyWindow {
			continue
		}
		altDiff := subject.LastReport.AltBaro - other.LastReport.AltBaro
		if altDiff < 0 {
			altDiff = -altDiff
		}
		if altDiff > p.AltFeet {
			continue
		}
		if geo.DistanceNM(subjectPt, other.Point()) > p.LatNM {
			continue
		}
		out = append(out, other)
	}
	return out
}
