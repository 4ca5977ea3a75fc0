package rules

import (
	"strings"
	"time"

	"github.com/flightops/ruled/pkg/aclist"
	"github.com/flightops/ruled/pkg/flight"
	"github.com/flightops/ruled/pkg/geo"
)

// EvalContext carries everything a compiled condition needs to judge one
// flight at one instant (spec §4.4): the flight itself, the store (for
// proximity's cross-flight scan), the stream clock, and the time zone
// min_time/max_time converts into.
type EvalContext struct {
	Flight   *flight.Flight
	Store    *flight.Store
	Now      float64
	Location *time.Location
}

// Condition is one compiled predicate. All conditions in a rule are
// AND-ed; evaluation short-circuits on the first false (spec §4.4).
type Condition interface {
	Eval(ctx *EvalContext) bool
}

// ConditionFunc adapts a plain function to the Condition interface.
type ConditionFunc func(ctx *EvalContext) bool

// Eval implements Condition.
func (f ConditionFunc) Eval(ctx *EvalContext) bool { return f(ctx) }

// MinAlt implements `min_alt: A` — missing altitude is always false.
func MinAlt(feet float64) Condition {
	return ConditionFunc(func(ctx *EvalContext) bool {
		r := ctx.Flight.LastReport
		return r.HasAlt && r.AltBaro >= feet
	})
}

// MaxAlt implements `max_alt: A` — missing altitude is always false.
func MaxAlt(feet float64) Condition {
	return ConditionFunc(func(ctx *EvalContext) bool {
		r := ctx.Flight.LastReport
		return r.HasAlt && r.AltBaro <= feet
	})
}

// AircraftList implements `aircraft_list: L`.
func AircraftList(list aclist.List) Condition {
	return ConditionFunc(func(ctx *EvalContext) bool {
		return list.Contains(ctx.Flight.Identifier)
	})
}

// ExcludeAircraftList implements `exclude_aircraft_list: L`.
func ExcludeAircraftList(list aclist.List) Condition {
	return ConditionFunc(func(ctx *EvalContext) bool {
		return !list.Contains(ctx.Flight.Identifier)
	})
}

// ExcludeAircraftSubstrs implements `exclude_aircraft_substrs: [s...]`.
func ExcludeAircraftSubstrs(substrs []string) Condition {
	return ConditionFunc(func(ctx *EvalContext) bool {
		for _, s := range substrs {
			if strings.Contains(ctx.Flight.Identifier, s) {
				return false
			}
		}
		return true
	})
}

// Regions implements `regions: [n...]`. An empty list means "no region of
// any file"; a non-empty list means "at least one named region in any
// file" (spec §4.4 table + edges).
func Regions(names []string) Condition {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	empty := len(names) == 0

	return ConditionFunc(func(ctx *EvalContext) bool {
		if empty {
			for _, r := range ctx.Flight.CurrentRegions {
				if r != nil {
					return false
				}
			}
			return true
		}
		for _, r := range ctx.Flight.CurrentRegions {
			if r == nil {
				continue
			}
			if _, ok := wanted[*r]; ok {
				return true
			}
		}
		return false
	})
}

// TransitionRegions implements `transition_regions: [from, to]`. Either
// side may be nil, meaning "none". Matches iff some region-file slot
// moved from exactly `from` to exactly `to`.
func TransitionRegions(from, to *string) Condition {
	return ConditionFunc(func(ctx *EvalContext) bool {
		if !ctx.Flight.HasPrevReport() {
			return false
		}
		prev := ctx.Flight.PreviousRegions
		cur := ctx.Flight.CurrentRegions
		n := len(cur)
		if len(prev) < n {
			n = len(prev)
		}
		for i := 0; i < n; i++ {
			if regionEquals(prev[i], from) && regionEquals(cur[i], to) {
				return true
			}
		}
		return false
	})
}

// ChangedRegions implements `changed_regions: true`.
func ChangedRegions() Condition {
	return ConditionFunc(func(ctx *EvalContext) bool {
		if !ctx.Flight.HasPrevReport() {
			return false
		}
		prev := ctx.Flight.PreviousRegions
		cur := ctx.Flight.CurrentRegions
		n := len(cur)
		if len(prev) < n {
			n = len(prev)
		}
		for i := 0; i < n; i++ {
			if !regionEquals(prev[i], cur[i]) {
				return true
			}
		}
		return len(prev) != len(cur)
	})
}

func regionEquals(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// LatLongRing implements `latlongring: [nm, lat, lon]`.
func LatLongRing(radiusNM, lat, lon float64) Condition {
	center := geo.Point{Lat: lat, Lon: lon}
	return ConditionFunc(func(ctx *EvalContext) bool {
		return geo.WithinRing(center, ctx.Flight.Point(), radiusNM)
	})
}

// HasAttr implements `has_attr: name`.
func HasAttr(name string) Condition {
	return ConditionFunc(func(ctx *EvalContext) bool {
		return ctx.Flight.LastReport.HasAttr(name)
	})
}

// MinTime implements `min_time: HHMM`.
func MinTime(hhmm int) Condition {
	return ConditionFunc(func(ctx *EvalContext) bool {
		return localHHMM(ctx) >= hhmm
	})
}

// MaxTime implements `max_time: HHMM`.
func MaxTime(hhmm int) Condition {
	return ConditionFunc(func(ctx *EvalContext) bool {
		return localHHMM(ctx) <= hhmm
	})
}

func localHHMM(ctx *EvalContext) int {
	loc := ctx.Location
	if loc == nil {
		loc = time.UTC
	}
	t := ctx.Flight.LastReport.Time().In(loc)
	return t.Hour()*100 + t.Minute()
}
