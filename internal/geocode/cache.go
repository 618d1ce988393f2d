// Package geocode resolves geographic identity for a normalized table. It
// operates in one of two mutually exclusive modes per table: point
// geocoding, which spatially joins canonical lat/lng pairs against a
// polygon reference, and name reconciliation, which fuzzy-matches
// administrative names against the gazetteer scoped to their resolved
// parent level.
//
// The coordinate cache is the performance contract for batch runs: a time
// series of rasters shares its pixel grid across files, so every file after
// the first should resolve entirely from cache. The cache is always passed
// and returned explicitly; nothing in this package holds hidden state.
package geocode

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"

	"geonorm/internal/frame"
	"geonorm/internal/gazetteer"
)

// CacheEntry is one resolved coordinate pair. Admin fields hold string or
// nil; fields deeper than the depth the pair was resolved at are nil, as
// are all fields for points no polygon contained.
type CacheEntry struct {
	Lng, Lat float64
	Country  any
	Admin1   any
	Admin2   any
	Admin3   any
}

// Field returns the entry's value at the given level.
func (e *CacheEntry) Field(l gazetteer.Level) any {
	switch l {
	case gazetteer.Admin0:
		return e.Country
	case gazetteer.Admin1:
		return e.Admin1
	case gazetteer.Admin2:
		return e.Admin2
	case gazetteer.Admin3:
		return e.Admin3
	}
	return nil
}

// coordKey hashes a coordinate pair into a compact map key.
func coordKey(lng, lat float64) uint64 {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], math.Float64bits(lng))
	binary.LittleEndian.PutUint64(b[8:], math.Float64bits(lat))
	return xxh3.Hash(b[:])
}

// CoordCache is an append-only mapping from a coordinate pair to its
// resolved administrative hierarchy. It grows monotonically within a run or
// batch and never evicts. It is not safe for concurrent mutation; batch
// workers keep their own partition and merge afterwards.
type CoordCache struct {
	index   map[uint64]int
	entries []CacheEntry
}

// NewCoordCache returns an empty cache.
func NewCoordCache() *CoordCache {
	return &CoordCache{index: map[uint64]int{}}
}

// Len returns the number of cached pairs.
func (c *CoordCache) Len() int { return len(c.entries) }

// Lookup returns the cached resolution for a pair.
func (c *CoordCache) Lookup(lng, lat float64) (CacheEntry, bool) {
	i, ok := c.index[coordKey(lng, lat)]
	if !ok {
		return CacheEntry{}, false
	}
	return c.entries[i], true
}

// Add inserts an entry. A pair already present is left untouched: the cache
// is append-only and a pair's resolution never changes within a batch.
func (c *CoordCache) Add(e CacheEntry) {
	k := coordKey(e.Lng, e.Lat)
	if _, ok := c.index[k]; ok {
		return
	}
	c.index[k] = len(c.entries)
	c.entries = append(c.entries, e)
}

// Merge folds another cache (typically a per-file or per-worker delta) into
// this one.
func (c *CoordCache) Merge(other *CoordCache) {
	if other == nil {
		return
	}
	for _, e := range other.entries {
		c.Add(e)
	}
}

// Covers reports whether every parseable coordinate pair in the table is
// already cached. Cells that do not parse as floats never reach the polygon
// reference, so they do not count against coverage. Callers use this to
// skip loading reference data for fully cached tables.
func (c *CoordCache) Covers(f *frame.Frame, lngCol, latCol string) bool {
	if !f.Has(lngCol) || !f.Has(latCol) {
		return false
	}
	lngs := f.Column(lngCol)
	lats := f.Column(latCol)
	for i := 0; i < f.Len(); i++ {
		lng, okX := frame.CellFloat(lngs[i])
		lat, okY := frame.CellFloat(lats[i])
		if !okX || !okY {
			continue
		}
		if _, ok := c.index[coordKey(lng, lat)]; !ok {
			return false
		}
	}
	return true
}

// Entries returns the cached entries in insertion order. The slice is a
// copy; the entries are values.
func (c *CoordCache) Entries() []CacheEntry {
	out := make([]CacheEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// lookupFrame renders the cache as a join table with lng/lat key columns
// and one admin column per level up to and including depth.
func (c *CoordCache) lookupFrame(depth gazetteer.Level, lngCol, latCol string) *frame.Frame {
	n := len(c.entries)
	lng := make([]any, n)
	lat := make([]any, n)
	admins := make([][]any, int(depth)+1)
	for l := range admins {
		admins[l] = make([]any, n)
	}
	for i, e := range c.entries {
		lng[i] = e.Lng
		lat[i] = e.Lat
		for l := range admins {
			admins[l][i] = e.Field(gazetteer.Level(l))
		}
	}
	f := frame.New(n)
	_ = f.Set(lngCol, lng)
	_ = f.Set(latCol, lat)
	for l := range admins {
		_ = f.Set(gazetteer.Level(l).Column(), admins[l])
	}
	return f
}
