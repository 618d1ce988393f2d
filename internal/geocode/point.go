package geocode

import (
	"fmt"

	"github.com/paulmach/orb"

	"geonorm/internal/frame"
	"geonorm/internal/gazetteer"
	"geonorm/internal/metrics"
)

// Join disambiguation suffixes. When the spatial join would collide with a
// column already on the table (say an annotated "country" kept as a
// feature), the original column keeps LeftSuffix and the geocoded column
// keeps GeocodedSuffix; the output assembler strips GeocodedSuffix and the
// pivot prefers the LeftSuffix copy as the value source.
const (
	LeftSuffix     = "_left"
	GeocodedSuffix = "_geocoded"
)

// Locator is the polygon-reference contract point geocoding consumes.
// *gazetteer.Reference satisfies it; tests substitute call-counting stubs
// to pin the cache-effectiveness guarantee.
type Locator interface {
	Locate(pt orb.Point) (*gazetteer.Place, bool)
}

// PointOptions configures point geocoding.
type PointOptions struct {
	// Depth is the administrative depth to resolve to, admin0..admin3.
	Depth gazetteer.Level

	// LngCol/LatCol name the coordinate columns; they default to the
	// canonical "lng"/"lat".
	LngCol, LatCol string
}

func (o *PointOptions) defaults() {
	if o.LngCol == "" {
		o.LngCol = "lng"
	}
	if o.LatCol == "" {
		o.LatCol = "lat"
	}
}

// Points geocodes every coordinate pair on the table and left-joins the
// resolved administrative hierarchy back onto it.
//
// Pairs are de-duplicated first; only pairs absent from the cache hit the
// polygon reference. Newly resolved pairs are merged into the cache only
// after the join succeeds, so a failing file never leaves the shared cache
// half-written. Points no polygon contains keep nil admin fields — rows are
// never dropped here.
//
// The returned frame replaces the input; the caller's cache is mutated.
func Points(f *frame.Frame, ref Locator, cache *CoordCache, opt PointOptions) (*frame.Frame, error) {
	opt.defaults()
	if cache == nil {
		cache = NewCoordCache()
	}
	if !f.Has(opt.LngCol) || !f.Has(opt.LatCol) {
		return nil, fmt.Errorf("geocode: table has no %s/%s columns", opt.LngCol, opt.LatCol)
	}

	// Coerce coordinates to float64 up front so cache keys and join keys
	// agree regardless of how the source file spelled them.
	toFloat := func(v any) any {
		fv, ok := frame.CellFloat(v)
		if !ok {
			return nil
		}
		return fv
	}
	_ = f.Apply(opt.LngCol, toFloat)
	_ = f.Apply(opt.LatCol, toFloat)

	// Resolve the distinct pairs missing from the cache.
	delta := NewCoordCache()
	seen := map[uint64]bool{}
	lngs := f.Column(opt.LngCol)
	lats := f.Column(opt.LatCol)
	for i := 0; i < f.Len(); i++ {
		lng, okX := lngs[i].(float64)
		lat, okY := lats[i].(float64)
		if !okX || !okY {
			continue
		}
		k := coordKey(lng, lat)
		if seen[k] {
			continue
		}
		seen[k] = true

		if _, ok := cache.Lookup(lng, lat); ok {
			metrics.RecordGeocode(metrics.GeocodeCacheHit, 1)
			continue
		}
		metrics.RecordGeocode(metrics.GeocodeCacheMiss, 1)

		if ref == nil {
			return nil, fmt.Errorf("geocode: uncached point (%v, %v) and no polygon reference supplied", lng, lat)
		}
		metrics.RecordGeocode(metrics.GeocodeSpatialJoin, 1)
		entry := CacheEntry{Lng: lng, Lat: lat}
		if place, ok := ref.Locate(orb.Point{lng, lat}); ok {
			entry.Country = orNil(place.Country)
			if opt.Depth >= gazetteer.Admin1 {
				entry.Admin1 = orNil(place.Admin1)
			}
			if opt.Depth >= gazetteer.Admin2 {
				entry.Admin2 = orNil(place.Admin2)
			}
			if opt.Depth >= gazetteer.Admin3 {
				entry.Admin3 = orNil(place.Admin3)
			}
		} else {
			metrics.RecordGeocode(metrics.GeocodeUnresolved, 1)
		}
		delta.Add(entry)
	}

	// Join against the union of cache and delta without committing the
	// delta yet.
	combined := NewCoordCache()
	combined.Merge(cache)
	combined.Merge(delta)

	lookup := combined.lookupFrame(opt.Depth, opt.LngCol, opt.LatCol)
	joined, err := frame.LeftJoin(f, lookup, []string{opt.LngCol, opt.LatCol}, LeftSuffix, GeocodedSuffix)
	if err != nil {
		return nil, fmt.Errorf("geocode: join cache: %w", err)
	}

	cache.Merge(delta)
	return joined, nil
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
