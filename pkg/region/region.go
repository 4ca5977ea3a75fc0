// Package region implements the RegionSet model (spec §3, §4.2): an
// ordered collection of region files, each holding an ordered
// name -> polygon mapping, answering "which region (if any) of each file
// contains point P?" with at most one region per file.
package region

import "github.com/flightops/ruled/pkg/geo"

// namedPolygon preserves declaration order within a file — "first region
// in that file containing P" (spec §4.2) depends on it.
type namedPolygon struct {
	name    string
	polygon geo.Polygon
}

// File is one loaded region file: an ordered set of named polygons.
type File struct {
	Name     string
	polygons []namedPolygon
}

// NewFile builds a File from an ordered slice of (name, polygon) pairs.
func NewFile(name string, names []string, polygons []geo.Polygon) File {
	f := File{Name: name, polygons: make([]namedPolygon, 0, len(names))}
	for i, n := range names {
		f.polygons = append(f.polygons, namedPolygon{name: n, polygon: polygons[i]})
	}
	return f
}

// Resolve returns the name of the first polygon in the file containing p,
// or "" with ok=false if the file is empty or contains no region for p.
func (f File) Resolve(p geo.Point) (name string, ok bool) {
	for _, np := range f.polygons {
		if np.polygon.Contains(p) {
			return np.name, true
		}
	}
	return "", false
}

// Set is the ordered list of region files loaded at startup. It is
// read-only after construction; queries never mutate it.
type Set struct {
	files []File
}

// NewSet builds a Set from ordered files.
func NewSet(files ...File) *Set {
	return &Set{files: files}
}

// NumFiles reports how many region files this set holds. Flight.current_regions
// and previous_regions are vectors parallel to this count (spec §3 I2).
func (s *Set) NumFiles() int {
	if s == nil {
		return 0
	}
	return len(s.files)
}

// FileNames returns the configured region file names in order, for
// diagnostics and condition-compilation error messages.
func (s *Set) FileNames() []string {
	names := make([]string, len(s.files))
	for i, f := range s.files {
		names[i] = f.Name
	}
	return names
}

// Resolve computes, for point p, the per-file vector of containing region
// names. Each entry is nil if p lies in no region of that file.
func (s *Set) Resolve(p geo.Point) []*string {
	if s == nil {
		return nil
	}
	out := make([]*string, len(s.files))
	for i, f := range s.files {
		if name, ok := f.Resolve(p); ok {
			n := name
			out[i] = &n
		}
	}
	return out
}
