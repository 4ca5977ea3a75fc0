// Package report defines the Report type — one ADS-B position observation —
// and the tolerant JSON decoding used to build one from whatever shape an
// ingest adapter hands it.
package report

import (
	"fmt"
	"strings"
	"time"
)

// Report is a single, immutable point observation for one aircraft.
// Once constructed it is never mutated; the engine discards it after
// folding it into the owning Flight's last_report/prev_report pair.
type Report struct {
	// Identifier is the canonical tail/flight id: trimmed and uppercased.
	Identifier string

	// Timestamp is seconds since epoch, carried by the stream — this is
	// the clock that drives every scheduling decision in the engine,
	// never wall-clock time.
	Timestamp float64

	Lat, Lon float64

	// AltBaro is feet MSL. HasAlt is false when the source reported no
	// altitude (or "ground", which resolves to zero with HasAlt true).
	AltBaro float64
	HasAlt  bool

	GroundSpeed    float64
	HasGroundSpeed bool
	Track          float64
	HasTrack       bool

	// Attrs holds named extra scalars (squawk, category, emergency, ...)
	// preserved verbatim for has_attr matching and user callbacks.
	Attrs map[string]any
}

// Time returns the report's stream timestamp as a time.Time in UTC, used
// for the min_time/max_time conditions which need hour/minute
// components and for the print action's timestamp, never for expiry or
// cooldown math (those stay in raw seconds of stream time).
func (r Report) Time() time.Time {
	return time.Unix(int64(r.Timestamp), 0).UTC()
}

// rawPoint is the tolerant wire shape: a superset of the field names named
// in spec §6 (hex|flight, lat, lon, alt_baro|alt, now|seen_pos), modeled
// as pointers the way the teacher's airplanesLiveAircraft struct treats
// optional API fields, so "field present but null" and "field absent" are
// both representable.
type rawPoint struct {
	Hex    *string `json:"hex"`
	Flight *string `json:"flight"`

	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`

	AltBaro any `json:"alt_baro"`
	Alt     any `json:"alt"`

	GroundSpeed *float64 `json:"gs"`
	Track       *float64 `json:"track"`

	Now     *float64 `json:"now"`
	SeenPos *float64 `json:"seen_pos"`

	Attrs map[string]any `json:"attrs"`
}

// ErrMissingPosition is returned by Parse when a raw point carries no
// usable lat/lon — such points are dropped per spec §6 and §7.
var ErrMissingPosition = fmt.Errorf("report: missing position")

// ErrMissingIdentifier is returned by Parse when neither hex nor flight is
// present — such points are dropped per spec §6.
var ErrMissingIdentifier = fmt.Errorf("report: missing identifier")

// Parse decodes one already-unmarshaled point object (a map produced by
// encoding/json, or a typed struct round-tripped through it) into a
// Report. fallbackTimestamp is used when the point carries neither `now`
// nor `seen_pos`, per spec §6 ("Timestamp absent -> use now from the
// source").
func Parse(raw map[string]any, fallbackTimestamp float64) (Report, error) {
	var rp rawPoint
	if err := remarshal(raw, &rp); err != nil {
		return Report{}, fmt.Errorf("report: decode: %w", err)
	}
	return fromRaw(rp, fallbackTimestamp)
}

func fromRaw(rp rawPoint, fallbackTimestamp float64) (Report, error) {
	ident := ""
	if rp.Hex != nil && strings.TrimSpace(*rp.Hex) != "" {
		ident = *rp.Hex
	} else if rp.Flight != nil && strings.TrimSpace(*rp.Flight) != "" {
		ident = *rp.Flight
	}
	ident = strings.ToUpper(strings.TrimSpace(ident))
	if ident == "" {
		return Report{}, ErrMissingIdentifier
	}

	if rp.Lat == nil || rp.Lon == nil {
		return Report{}, ErrMissingPosition
	}

	r := Report{
		Identifier: ident,
		Timestamp:  fallbackTimestamp,
		Lat:        *rp.Lat,
		Lon:        *rp.Lon,
		Attrs:      rp.Attrs,
	}

	if rp.Now != nil {
		r.Timestamp = *rp.Now
	} else if rp.SeenPos != nil {
		r.Timestamp = fallbackTimestamp - *rp.SeenPos
	}

	if alt, ok := parseAltitude(rp.AltBaro); ok {
		r.AltBaro, r.HasAlt = alt, true
	} else if alt, ok := parseAltitude(rp.Alt); ok {
		r.AltBaro, r.HasAlt = alt, true
	}

	if rp.GroundSpeed != nil {
		r.GroundSpeed, r.HasGroundSpeed = *rp.GroundSpeed, true
	}
	if rp.Track != nil {
		r.Track, r.HasTrack = *rp.Track, true
	}

	if r.Attrs == nil {
		r.Attrs = map[string]any{}
	}

	return r, nil
}

// parseAltitude extracts a numeric altitude from a field that may be a
// float64, a string "ground" (treated as zero feet), or absent/invalid.
func parseAltitude(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		if v == "ground" {
			return 0, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// HasAttr implements the `has_attr` condition's truthiness rule: present,
// not null, not empty string, not numeric zero.
func (r Report) HasAttr(name string) bool {
	v, ok := r.Attrs[name]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case bool:
		return t
	default:
		return true
	}
}

// Point returns the report's position as a (lat, lon) pair.
func (r Report) Point() (lat, lon float64) {
	return r.Lat, r.Lon
}
