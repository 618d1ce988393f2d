// Package gazetteer defines the reference-data contract the geocoder
// consumes: administrative boundary tables at four depths, keyed by
// country/admin1/admin2/admin3 and, for spatial use, carrying a geometry.
//
// Acquiring the data (download, caching, format conversion) is a
// collaborator's job; this package only models a loaded reference and the
// Store interface backends implement. Concrete stores live in subpackages
// (sqlitestore, postgres) and an in-memory implementation is provided here
// for tests and for callers that preloaded their tables.
package gazetteer

import (
	"context"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Level is an administrative depth, admin0 (country) through admin3.
type Level int

const (
	Admin0 Level = iota
	Admin1
	Admin2
	Admin3
)

// ParseLevel accepts the wire names "admin0".."admin3" plus the alias
// "country" for admin0.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "admin0", "country":
		return Admin0, nil
	case "admin1":
		return Admin1, nil
	case "admin2":
		return Admin2, nil
	case "admin3":
		return Admin3, nil
	}
	return 0, fmt.Errorf("gazetteer: unknown admin level %q", s)
}

func (l Level) String() string {
	switch l {
	case Admin0:
		return "admin0"
	case Admin1:
		return "admin1"
	case Admin2:
		return "admin2"
	case Admin3:
		return "admin3"
	}
	return fmt.Sprintf("admin(%d)", int(l))
}

// Column returns the output column this level populates.
func (l Level) Column() string {
	if l == Admin0 {
		return "country"
	}
	return l.String()
}

// Place is one administrative unit. Fields deeper than the reference's
// level are empty; Geometry is nil for name-only gazetteer rows.
type Place struct {
	Country  string
	Admin1   string
	Admin2   string
	Admin3   string
	Geometry orb.Geometry
}

// Field returns the place's name at the given level.
func (p *Place) Field(l Level) string {
	switch l {
	case Admin0:
		return p.Country
	case Admin1:
		return p.Admin1
	case Admin2:
		return p.Admin2
	case Admin3:
		return p.Admin3
	}
	return ""
}

// Reference is a loaded boundary/gazetteer table for one depth.
type Reference struct {
	Level  Level
	Places []Place

	bounds []orb.Bound // lazily built, parallel to Places
}

// Locate finds the first place whose geometry contains the point.
// Point-in-polygon is delegated to the planar package; a bounding-box check
// prunes candidates first. The second return is false when no polygon
// contains the point.
func (r *Reference) Locate(pt orb.Point) (*Place, bool) {
	if r.bounds == nil {
		r.bounds = make([]orb.Bound, len(r.Places))
		for i := range r.Places {
			if g := r.Places[i].Geometry; g != nil {
				r.bounds[i] = g.Bound()
			}
		}
	}
	for i := range r.Places {
		p := &r.Places[i]
		if p.Geometry == nil || !r.bounds[i].Contains(pt) {
			continue
		}
		if geometryContains(p.Geometry, pt) {
			return p, true
		}
	}
	return nil, false
}

func geometryContains(g orb.Geometry, pt orb.Point) bool {
	switch t := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(t, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(t, pt)
	case orb.Bound:
		return t.Contains(pt)
	}
	return false
}

// Countries returns the sorted distinct country names in the reference.
func (r *Reference) Countries() []string {
	return r.distinct(Admin0, "", "")
}

// NamesUnder returns the sorted distinct names at the given level, scoped
// to an already-resolved parent country. An empty country removes the
// scoping. This is the candidate list fuzzy reconciliation matches against.
func (r *Reference) NamesUnder(level Level, country string) []string {
	return r.distinct(level, "country", country)
}

func (r *Reference) distinct(level Level, scopeField, scopeValue string) []string {
	seen := map[string]bool{}
	for i := range r.Places {
		p := &r.Places[i]
		if scopeField == "country" && scopeValue != "" && p.Country != scopeValue {
			continue
		}
		if v := p.Field(level); v != "" && !seen[v] {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Store loads a reference table for a depth. Implementations may cache;
// callers should treat Load as potentially expensive.
type Store interface {
	Load(ctx context.Context, level Level) (*Reference, error)
}

// MemoryStore is a Store over preloaded references, used in tests and by
// callers that already hold their boundary tables in memory.
type MemoryStore struct {
	refs map[Level]*Reference
}

// NewMemoryStore builds a MemoryStore from the given references.
func NewMemoryStore(refs ...*Reference) *MemoryStore {
	m := &MemoryStore{refs: map[Level]*Reference{}}
	for _, r := range refs {
		m.refs[r.Level] = r
	}
	return m
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, level Level) (*Reference, error) {
	r, ok := m.refs[level]
	if !ok {
		return nil, fmt.Errorf("gazetteer: no reference loaded for %s", level)
	}
	return r, nil
}
