package region

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/flightops/ruled/pkg/geo"
)

// No KML-parsing library appears anywhere in the retrieved corpus (see
// DESIGN.md), so this loader decodes the small subset of the KML schema
// region files actually use — Placemark/Polygon/outerBoundaryIs/
// coordinates — directly with encoding/xml. Parsed rings are handed to
// pkg/geo, which stores them as github.com/paulmach/orb rings and uses
// orb's bounding box for fast rejection; the containment test itself is
// pkg/geo's own.

type kmlDocument struct {
	XMLName   xml.Name     `xml:"kml"`
	Placemark []kmlPlace   `xml:"Document>Placemark"`
	Top       []kmlPlace   `xml:"Placemark"`
	Folder    []kmlFolder  `xml:"Document>Folder"`
}

type kmlFolder struct {
	Placemark []kmlPlace `xml:"Placemark"`
}

type kmlPlace struct {
	Name    string     `xml:"name"`
	Polygon kmlPolygon `xml:"Polygon"`
}

type kmlPolygon struct {
	OuterBoundary kmlBoundary `xml:"outerBoundaryIs"`
}

type kmlBoundary struct {
	LinearRing kmlLinearRing `xml:"LinearRing"`
}

type kmlLinearRing struct {
	Coordinates string `xml:"coordinates"`
}

// LoadKML parses a KML document from r and returns a File named name.
// Regions come in this order: Placemarks directly under Document, then
// top-level Placemarks, then Placemarks inside Document>Folder elements,
// each group in declaration order. An empty document yields a File
// with no regions (spec §6: "Empty file -> no regions for that slot").
func LoadKML(name string, r io.Reader) (File, error) {
	var doc kmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return File{}, fmt.Errorf("region: parse kml %q: %w", name, err)
	}

	places := doc.Placemark
	places = append(places, doc.Top...)
	for _, folder := range doc.Folder {
		places = append(places, folder.Placemark...)
	}

	names := make([]string, 0, len(places))
	polys := make([]geo.Polygon, 0, len(places))

	for _, pl := range places {
		coordsText := strings.TrimSpace(pl.Polygon.OuterBoundary.LinearRing.Coordinates)
		if coordsText == "" {
			continue
		}
		verts, err := parseCoordinates(coordsText)
		if err != nil {
			return File{}, fmt.Errorf("region: parse kml %q placemark %q: %w", name, pl.Name, err)
		}
		if len(verts) < 3 {
			continue
		}
		names = append(names, pl.Name)
		polys = append(polys, geo.NewPolygon(verts))
	}

	return NewFile(name, names, polys), nil
}

// parseCoordinates parses a KML <coordinates> text node: whitespace
// separated tuples of "lon,lat[,alt]". Longitude comes first — this is
// the one place real-world KML tooling reliably gets backwards, so it is
// spelled out explicitly and tested.
func parseCoordinates(text string) ([]geo.Point, error) {
	fields := strings.Fields(text)
	points := make([]geo.Point, 0, len(fields))
	for _, f := range fields {
		parts := strings.Split(f, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed coordinate tuple %q", f)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed longitude %q: %w", parts[0], err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed latitude %q: %w", parts[1], err)
		}
		points = append(points, geo.Point{Lat: lat, Lon: lon})
	}
	return points, nil
}
