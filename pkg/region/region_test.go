package region

import (
	"testing"

	"github.com/flightops/ruled/pkg/geo"
)

func rectangle(minLat, minLon, maxLat, maxLon float64) geo.Polygon {
	return geo.NewPolygon([]geo.Point{
		{Lat: minLat, Lon: minLon},
		{Lat: minLat, Lon: maxLon},
		{Lat: maxLat, Lon: maxLon},
		{Lat: maxLat, Lon: minLon},
	})
}

func TestFileResolveFirstMatchWins(t *testing.T) {
	f := NewFile("airport", []string{"inner", "outer"}, []geo.Polygon{
		rectangle(0, 0, 1, 1),
		rectangle(-5, -5, 5, 5),
	})

	name, ok := f.Resolve(geo.Point{Lat: 0.5, Lon: 0.5})
	if !ok || name != "inner" {
		t.Errorf("Resolve() = (%q, %v), want (inner, true) — first declared region should win", name, ok)
	}
}

func TestFileResolveNoMatch(t *testing.T) {
	f := NewFile("airport", []string{"inner"}, []geo.Polygon{rectangle(0, 0, 1, 1)})
	if _, ok := f.Resolve(geo.Point{Lat: 50, Lon: 50}); ok {
		t.Error("expected no region match outside the polygon")
	}
}

func TestSetResolve(t *testing.T) {
	fileA := NewFile("airspace", []string{"bravo"}, []geo.Polygon{rectangle(0, 0, 10, 10)})
	fileB := NewFile("runway", nil, nil)
	set := NewSet(fileA, fileB)

	if set.NumFiles() != 2 {
		t.Fatalf("NumFiles() = %d, want 2", set.NumFiles())
	}

	got := set.Resolve(geo.Point{Lat: 5, Lon: 5})
	if len(got) != 2 {
		t.Fatalf("Resolve returned %d entries, want 2", len(got))
	}
	if got[0] == nil || *got[0] != "bravo" {
		t.Errorf("Resolve()[0] = %v, want bravo", got[0])
	}
	if got[1] != nil {
		t.Errorf("Resolve()[1] = %v, want nil (empty file)", got[1])
	}
}

func TestSetNilReceiver(t *testing.T) {
	var set *Set
	if set.NumFiles() != 0 {
		t.Error("NumFiles on a nil Set should be 0")
	}
	if set.Resolve(geo.Point{}) != nil {
		t.Error("Resolve on a nil Set should return nil")
	}
}
