package rules

import (
	"testing"

	"github.com/flightops/ruled/pkg/flight"
	"github.com/flightops/ruled/pkg/geo"
	"github.com/flightops/ruled/pkg/report"
)

type noRegions struct{}

func (noRegions) Resolve(p geo.Point) []*string { return nil }

func TestProximityFind(t *testing.T) {
	store := flight.NewStore(noRegions{}, 0, 600)
	subject, _ := store.Update(report.Report{Identifier: "subject", Timestamp: 100, Lat: 40, Lon: -74, AltBaro: 5000, HasAlt: true})
	store.Update(report.Report{Identifier: "near", Timestamp: 100, Lat: 40.01, Lon: -74.01, AltBaro: 5100, HasAlt: true})
	store.Update(report.Report{Identifier: "far", Timestamp: 100, Lat: 50, Lon: -80, AltBaro: 5000, HasAlt: true})
	store.Update(report.Report{Identifier: "stale", Timestamp: 0, Lat: 40, Lon: -74, AltBaro: 5000, HasAlt: true})
	store.Update(report.Report{Identifier: "noalt", Timestamp: 100, Lat: 40, Lon: -74})

	p := Proximity{AltFeet: 500, LatNM: 5}
	partners := p.Find(store, subject, 100)

	if len(partners) != 1 || partners[0].Identifier != "near" {
		t.Fatalf("Find() = %v, want exactly [near]", identifiers(partners))
	}
}

func TestProximityFindRequiresSubjectAltitude(t *testing.T) {
	store := flight.NewStore(noRegions{}, 0, 600)
	subject, _ := store.Update(report.Report{Identifier: "subject", Timestamp: 100, Lat: 40, Lon: -74})
	store.Update(report.Report{Identifier: "other", Timestamp: 100, Lat: 40, Lon: -74, AltBaro: 5000, HasAlt: true})

	p := Proximity{AltFeet: 10000, LatNM: 100}
	if got := p.Find(store, subject, 100); got != nil {
		t.Errorf("Find() = %v, want nil when subject has no altitude", identifiers(got))
	}
}

func identifiers(flights []*flight.Flight) []string {
	out := make([]string, len(flights))
	for i, f := range flights {
		out[i] = f.Identifier
	}
	return out
}
