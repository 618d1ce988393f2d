package geocode

import (
	"testing"

	"github.com/paulmach/orb"

	"geonorm/internal/frame"
	"geonorm/internal/gazetteer"
)

// square returns a polygon covering [x0,x1] x [y0,y1].
func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}}
}

func testReference() *gazetteer.Reference {
	return &gazetteer.Reference{
		Level: gazetteer.Admin2,
		Places: []gazetteer.Place{
			{Country: "Sudan", Admin1: "Khartoum", Admin2: "Khartoum", Geometry: square(32, 15, 33, 16)},
			{Country: "Ethiopia", Admin1: "Oromia", Admin2: "Arsi", Geometry: square(38, 7, 40, 9)},
		},
	}
}

// countingLocator wraps a Locator and counts Locate calls; it is the
// call-counting stub the cache-effectiveness guarantee is verified with.
type countingLocator struct {
	ref   *gazetteer.Reference
	calls int
}

func (c *countingLocator) Locate(pt orb.Point) (*gazetteer.Place, bool) {
	c.calls++
	return c.ref.Locate(pt)
}

func pointFrame(t *testing.T, coords [][2]float64) *frame.Frame {
	t.Helper()
	lng := make([]any, len(coords))
	lat := make([]any, len(coords))
	val := make([]any, len(coords))
	for i, c := range coords {
		lng[i] = c[0]
		lat[i] = c[1]
		val[i] = int64(i)
	}
	f, err := frame.FromColumns([]string{"lng", "lat", "v"}, map[string][]any{
		"lng": lng, "lat": lat, "v": val,
	})
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	return f
}

func TestPointsResolvesAndNullsUnmatched(t *testing.T) {
	f := pointFrame(t, [][2]float64{
		{32.5, 15.5}, // Khartoum
		{0.0, 0.0},   // open ocean: unresolved, kept with nulls
	})
	cache := NewCoordCache()
	out, err := Points(f, testReference(), cache, PointOptions{Depth: gazetteer.Admin2})
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if got, want := out.Len(), 2; got != want {
		t.Fatalf("rows = %d, want %d", got, want)
	}
	if got := out.Column("country")[0]; got != "Sudan" {
		t.Fatalf("country[0] = %v, want Sudan", got)
	}
	if got := out.Column("admin2")[0]; got != "Khartoum" {
		t.Fatalf("admin2[0] = %v, want Khartoum", got)
	}
	if got := out.Column("country")[1]; got != nil {
		t.Fatalf("country[1] = %v, want nil for unresolved point", got)
	}
	if got, want := cache.Len(), 2; got != want {
		t.Fatalf("cache size = %d, want %d (unresolved points are cached too)", got, want)
	}
}

// TestPointsCacheAvoidsRepeatJoins is the cache-effectiveness property:
// a second file sharing the first file's coordinate grid must trigger zero
// additional polygon lookups.
func TestPointsCacheAvoidsRepeatJoins(t *testing.T) {
	loc := &countingLocator{ref: testReference()}
	cache := NewCoordCache()

	first := pointFrame(t, [][2]float64{{32.5, 15.5}, {39.0, 8.0}, {32.5, 15.5}})
	if _, err := Points(first, loc, cache, PointOptions{Depth: gazetteer.Admin2}); err != nil {
		t.Fatalf("first Points: %v", err)
	}
	if got, want := loc.calls, 2; got != want {
		t.Fatalf("locate calls after first file = %d, want %d (pairs de-duplicated)", got, want)
	}

	second := pointFrame(t, [][2]float64{{39.0, 8.0}, {32.5, 15.5}})
	if _, err := Points(second, loc, cache, PointOptions{Depth: gazetteer.Admin2}); err != nil {
		t.Fatalf("second Points: %v", err)
	}
	if got, want := loc.calls, 2; got != want {
		t.Fatalf("locate calls after second file = %d, want %d (all cached)", got, want)
	}
}

func TestPointsSuffixesCollidingColumns(t *testing.T) {
	f := pointFrame(t, [][2]float64{{32.5, 15.5}})
	_ = f.Set("country", []any{"annotated-country"})
	out, err := Points(f, testReference(), NewCoordCache(), PointOptions{Depth: gazetteer.Admin0})
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if got := out.Column("country" + LeftSuffix)[0]; got != "annotated-country" {
		t.Fatalf("country_left[0] = %v, want annotated-country", got)
	}
	if got := out.Column("country" + GeocodedSuffix)[0]; got != "Sudan" {
		t.Fatalf("country_geocoded[0] = %v, want Sudan", got)
	}
}

func TestPointsStringCoordinates(t *testing.T) {
	f, err := frame.FromColumns([]string{"lng", "lat"}, map[string][]any{
		"lng": {"32.5", "not-a-number"},
		"lat": {"15.5", "1.0"},
	})
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	out, err := Points(f, testReference(), NewCoordCache(), PointOptions{Depth: gazetteer.Admin0})
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if got := out.Column("country")[0]; got != "Sudan" {
		t.Fatalf("country[0] = %v, want Sudan (string coords coerced)", got)
	}
	if got := out.Column("country")[1]; got != nil {
		t.Fatalf("country[1] = %v, want nil for unparseable coordinate", got)
	}
}

func TestCoordCacheAppendOnly(t *testing.T) {
	c := NewCoordCache()
	c.Add(CacheEntry{Lng: 1, Lat: 2, Country: "A"})
	c.Add(CacheEntry{Lng: 1, Lat: 2, Country: "B"}) // ignored: pair exists
	if got, want := c.Len(), 1; got != want {
		t.Fatalf("len = %d, want %d", got, want)
	}
	e, ok := c.Lookup(1, 2)
	if !ok || e.Country != "A" {
		t.Fatalf("Lookup = (%v, %v), want first entry kept", e, ok)
	}
}

// TestCoordCacheCovers: coverage holds only when every parseable pair is
// cached; unparseable cells never reach the reference, so they don't count.
func TestCoordCacheCovers(t *testing.T) {
	c := NewCoordCache()
	c.Add(CacheEntry{Lng: 32.5, Lat: 15.5, Country: "Sudan"})

	f := pointFrame(t, [][2]float64{{32.5, 15.5}})
	if !c.Covers(f, "lng", "lat") {
		t.Fatalf("Covers = false, want true for cached pair")
	}

	f2 := pointFrame(t, [][2]float64{{32.5, 15.5}, {40, 8}})
	if c.Covers(f2, "lng", "lat") {
		t.Fatalf("Covers = true, want false with an uncached pair")
	}

	f3, err := frame.FromColumns([]string{"lng", "lat"}, map[string][]any{
		"lng": {32.5, "not-a-number"},
		"lat": {15.5, "either"},
	})
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	if !c.Covers(f3, "lng", "lat") {
		t.Fatalf("Covers = false, want true: unparseable cells don't count")
	}
}

func TestReconcileNamesScopedToCountry(t *testing.T) {
	ref := &gazetteer.Reference{
		Level: gazetteer.Admin2,
		Places: []gazetteer.Place{
			{Country: "Sudan", Admin1: "Khartoum", Admin2: "Khartoum"},
			{Country: "Sudan", Admin1: "Kassala", Admin2: "Kassala"},
			{Country: "Ethiopia", Admin1: "Oromia", Admin2: "Arsi"},
		},
	}
	f, err := frame.FromColumns([]string{"country", "admin1"}, map[string][]any{
		"country": {"Sudan", "Sudn", "Ethiopia"},
		"admin1":  {"Khartum", "Kassala", "Oromiya"},
	})
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}

	ReconcileNames(f, ref, ReconcileOptions{
		Depth:  gazetteer.Admin2,
		Levels: []gazetteer.Level{gazetteer.Admin0, gazetteer.Admin1},
	})

	if got := f.Column("country")[1]; got != "Sudan" {
		t.Fatalf("country[1] = %v, want Sudan", got)
	}
	if got := f.Column("admin1")[0]; got != "Khartoum" {
		t.Fatalf("admin1[0] = %v, want Khartoum", got)
	}
	// Correctly spelled values stay untouched.
	if got := f.Column("admin1")[1]; got != "Kassala" {
		t.Fatalf("admin1[1] = %v, want Kassala", got)
	}
	// Ethiopian admin1 reconciles against Ethiopian candidates only.
	if got := f.Column("admin1")[2]; got != "Oromia" {
		t.Fatalf("admin1[2] = %v, want Oromia", got)
	}
}

func TestReconcileNamesLeavesHopelessValues(t *testing.T) {
	ref := &gazetteer.Reference{
		Level:  gazetteer.Admin0,
		Places: []gazetteer.Place{{Country: "Sudan"}},
	}
	f, err := frame.FromColumns([]string{"country"}, map[string][]any{
		"country": {"zzzzzzzzzzzz"},
	})
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	ReconcileNames(f, ref, ReconcileOptions{
		Levels: []gazetteer.Level{gazetteer.Admin0},
	})
	if got := f.Column("country")[0]; got != "zzzzzzzzzzzz" {
		t.Fatalf("country[0] = %v, want original below-threshold value kept", got)
	}
}

func TestFoldName(t *testing.T) {
	if got, want := foldName("São Paulo "), "sao paulo"; got != want {
		t.Fatalf("foldName = %q, want %q", got, want)
	}
}
