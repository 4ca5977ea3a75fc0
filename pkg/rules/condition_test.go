package rules

import (
	"testing"
	"time"

	"github.com/flightops/ruled/pkg/aclist"
	"github.com/flightops/ruled/pkg/flight"
	"github.com/flightops/ruled/pkg/geo"
	"github.com/flightops/ruled/pkg/report"
)

func ctxFor(r report.Report) *EvalContext {
	f := &flight.Flight{Identifier: r.Identifier, LastReport: r}
	return &EvalContext{Flight: f, Now: r.Timestamp, Location: time.UTC}
}

// variableRegions lets a test drive two Store.Update calls through
// different resolved regions, the only way to legitimately put a
// *flight.Flight into the "has a previous report" state from outside
// the flight package.
type variableRegions struct {
	current *string
}

func (r *variableRegions) Resolve(p geo.Point) []*string {
	return []*string{r.current}
}

func TestMinAltMaxAlt(t *testing.T) {
	withAlt := ctxFor(report.Report{AltBaro: 5000, HasAlt: true})
	noAlt := ctxFor(report.Report{})

	if !MinAlt(1000).Eval(withAlt) {
		t.Error("MinAlt(1000) should match an altitude of 5000")
	}
	if MinAlt(10000).Eval(withAlt) {
		t.Error("MinAlt(10000) should not match an altitude of 5000")
	}
	if MinAlt(0).Eval(noAlt) {
		t.Error("MinAlt should never match a report with no altitude")
	}
	if MaxAlt(0).Eval(noAlt) {
		t.Error("MaxAlt should never match a report with no altitude")
	}
}

func TestAircraftListConditions(t *testing.T) {
	list := aclist.New("watch", []string{"abc123"})
	ctx := ctxFor(report.Report{Identifier: "ABC123"})

	if !AircraftList(list).Eval(ctx) {
		t.Error("AircraftList should match a listed identifier")
	}
	if ExcludeAircraftList(list).Eval(ctx) {
		t.Error("ExcludeAircraftList should reject a listed identifier")
	}
}

func TestExcludeAircraftSubstrs(t *testing.T) {
	ctx := ctxFor(report.Report{Identifier: "TESTFLIGHT1"})
	if ExcludeAircraftSubstrs([]string{"TEST"}).Eval(ctx) {
		t.Error("expected identifier containing TEST to be excluded")
	}
	if !ExcludeAircraftSubstrs([]string{"ZZZZ"}).Eval(ctx) {
		t.Error("expected identifier not containing ZZZZ to pass")
	}
}

func TestRegionsCondition(t *testing.T) {
	apron := "apron"
	ctx := &EvalContext{Flight: &flight.Flight{CurrentRegions: []*string{&apron, nil}}}

	if !Regions([]string{"apron"}).Eval(ctx) {
		t.Error("Regions([apron]) should match when apron is a current region")
	}
	if Regions([]string{"taxiway"}).Eval(ctx) {
		t.Error("Regions([taxiway]) should not match")
	}
	if Regions(nil).Eval(ctx) {
		t.Error("Regions([]) should only match when no region at all is current")
	}

	noneCtx := &EvalContext{Flight: &flight.Flight{CurrentRegions: []*string{nil, nil}}}
	if !Regions(nil).Eval(noneCtx) {
		t.Error("Regions([]) should match when no file has a current region")
	}
}

func TestTransitionRegionsNoPrevReport(t *testing.T) {
	apron, taxiway := "apron", "taxiway"
	ctx := ctxFor(report.Report{})
	if TransitionRegions(&apron, &taxiway).Eval(ctx) {
		t.Error("TransitionRegions should not match before any previous report exists")
	}
}

func TestTransitionRegionsMatches(t *testing.T) {
	apron, taxiway := "apron", "taxiway"
	regions := &variableRegions{current: &apron}
	store := flight.NewStore(regions, 0, 600)
	store.Update(report.Report{Identifier: "abc", Timestamp: 1, Lat: 1, Lon: 1})

	regions.current = &taxiway
	f, _ := store.Update(report.Report{Identifier: "abc", Timestamp: 2, Lat: 1, Lon: 1})

	ctx := &EvalContext{Flight: f}
	if !TransitionRegions(&apron, &taxiway).Eval(ctx) {
		t.Error("expected a transition from apron to taxiway to match")
	}
	if TransitionRegions(&taxiway, &apron).Eval(ctx) {
		t.Error("did not expect the reverse transition to match")
	}
}

func TestChangedRegions(t *testing.T) {
	apron, taxiway := "apron", "taxiway"
	regions := &variableRegions{current: &apron}
	store := flight.NewStore(regions, 0, 600)
	store.Update(report.Report{Identifier: "abc", Timestamp: 1, Lat: 1, Lon: 1})

	regions.current = &taxiway
	f, _ := store.Update(report.Report{Identifier: "abc", Timestamp: 2, Lat: 1, Lon: 1})

	ctx := &EvalContext{Flight: f}
	if !ChangedRegions().Eval(ctx) {
		t.Error("ChangedRegions should match after a region transition")
	}
}

func TestLatLongRing(t *testing.T) {
	ctx := ctxFor(report.Report{Lat: 40.001, Lon: -74.001})
	if !LatLongRing(5, 40, -74).Eval(ctx) {
		t.Error("expected a nearby point to match the ring")
	}
	if LatLongRing(5, 50, -80).Eval(ctx) {
		t.Error("expected a distant point to miss the ring")
	}
}

func TestHasAttrCondition(t *testing.T) {
	ctx := ctxFor(report.Report{Attrs: map[string]any{"emergency": "7700"}})
	if !HasAttr("emergency").Eval(ctx) {
		t.Error("expected HasAttr to match a present, truthy attribute")
	}
	if HasAttr("missing").Eval(ctx) {
		t.Error("expected HasAttr to miss an absent attribute")
	}
}

func TestMinMaxTime(t *testing.T) {
	ctx := ctxFor(report.Report{Timestamp: float64(time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC).Unix())})
	ctx.Location = time.UTC

	if !MinTime(1400).Eval(ctx) {
		t.Error("MinTime(1400) should match 14:30")
	}
	if MinTime(1500).Eval(ctx) {
		t.Error("MinTime(1500) should not match 14:30")
	}
	if !MaxTime(1500).Eval(ctx) {
		t.Error("MaxTime(1500) should match 14:30")
	}
	if MaxTime(1400).Eval(ctx) {
		t.Error("MaxTime(1400) should not match 14:30")
	}
}
