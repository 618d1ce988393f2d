// Package normalize implements the normalization engine: it interprets a
// mapper schema against one source table and produces the canonical
// long-format output, the rename ledger, and the updated coordinate cache.
//
// The pipeline is sequenced as: collision resolution, date assembly, geo
// classification, geocoding (points or name reconciliation), feature
// pivoting, output assembly. Each stage is timed through the metrics
// backend.
package normalize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"geonorm/internal/frame"
	"geonorm/internal/gazetteer"
	"geonorm/internal/geocode"
	"geonorm/internal/metrics"
	"geonorm/internal/schema"
)

// ReservedColumns is the canonical output schema, in final order.
// Qualifier columns are appended after these.
var ReservedColumns = []string{
	"timestamp", "country", "admin1", "admin2", "admin3", "lat", "lng", "feature", "value",
}

// protectedColumns are the reserved columns the source table can supply
// directly (everything but the pivot-produced feature and value).
var protectedColumns = []string{
	"timestamp", "country", "admin1", "admin2", "admin3", "lat", "lng",
}

// Options configures one normalization run.
type Options struct {
	// Depth is the administrative depth to geocode to. The zero value is
	// admin0, country only.
	Depth gazetteer.Level

	// Store lazily loads polygon/gazetteer reference data when geocoding
	// needs it. Optional when Reference is set or every coordinate pair is
	// already cached.
	Store gazetteer.Store

	// Reference is a pre-loaded polygon reference, taking precedence over
	// Store.
	Reference *gazetteer.Reference

	// Cache is the coordinate cache threaded across a batch. A nil cache
	// means a fresh per-file cache.
	Cache *geocode.CoordCache

	// ValidateDates makes date parse failures fatal instead of nulling the
	// cell.
	ValidateDates bool

	// Job labels metrics emitted by this run.
	Job string
}

// Result is the output of one normalization run.
type Result struct {
	Frame   *frame.Frame
	Renames Ledger
	Cache   *geocode.CoordCache
}

// Normalize converts one annotated source table into the canonical long
// format. The mapper is updated in place by collision resolution; callers
// reusing a mapper across files should load a fresh copy per file.
func Normalize(ctx context.Context, src *frame.Frame, m *schema.Mapper, opt Options) (*Result, error) {
	if opt.Cache == nil {
		opt.Cache = geocode.NewCoordCache()
	}
	colOrder := append([]string(nil), ReservedColumns...)

	ledger := resolveCollisions(src, m, colOrder)

	// Restrict to the annotated columns; anything unmapped is dropped here.
	f, err := src.Select(m.ColumnNames())
	if err != nil {
		return nil, fmt.Errorf("normalize: source table: %w", err)
	}
	f = f.Clone()
	metrics.RecordRows(opt.Job, "input", int64(f.Len()))

	qualifiers := map[string][]string{}

	start := time.Now()
	features, err := assembleDates(f, m, ledger, qualifiers, opt.ValidateDates)
	metrics.RecordStage(opt.Job, "dates", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	features = classifyGeo(f, m, ledger, qualifiers, features)

	labels := map[string]string{}
	for i := range m.Feature {
		a := &m.Feature[i]
		if len(a.Qualifies) > 0 {
			for _, target := range a.Qualifies {
				qualifiers[target] = append(qualifiers[target], a.Name)
			}
		} else {
			features = append(features, a.Name)
		}
		if a.DisplayName != "" {
			labels[a.Name] = a.DisplayName
		}
		applyAliases(f, a)
	}

	start = time.Now()
	f, err = runGeocode(ctx, f, m, opt)
	metrics.RecordStage(opt.Job, "geocode", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	// The spatial join disambiguates colliding columns; the geocoded copy
	// reclaims the canonical name, the left copy feeds the pivot.
	for _, c := range f.Columns() {
		if strings.HasSuffix(c, geocode.GeocodedSuffix) {
			_ = f.Rename(c, strings.TrimSuffix(c, geocode.GeocodedSuffix))
		}
	}

	protected := make([]string, 0, len(protectedColumns))
	for _, c := range protectedColumns {
		if f.Has(c) {
			protected = append(protected, c)
		}
	}

	// Qualifiers of protected columns ride along on every row.
	for _, target := range protected {
		for _, q := range qualifiers[target] {
			protected = append(protected, q)
			colOrder = append(colOrder, q)
		}
	}

	start = time.Now()
	out, err := pivot(f, features, qualifiers, labels, protected, &colOrder)
	metrics.RecordStage(opt.Job, "pivot", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	for _, c := range colOrder {
		if !out.Has(c) {
			out.SetConst(c, nil)
		}
	}

	if out.Has("value") {
		values := out.Column("value")
		kept := out.FilterRows(func(row int) bool { return !frame.IsNull(values[row]) })
		metrics.RecordRows(opt.Job, "dropped_null_value", int64(out.Len()-kept.Len()))
		out = kept
	}
	out, err = out.Select(colOrder)
	if err != nil {
		return nil, err
	}
	metrics.RecordRows(opt.Job, "output", int64(out.Len()))

	return &Result{Frame: out, Renames: ledger.Audit(), Cache: opt.Cache}, nil
}

// runGeocode picks the geocoding mode: point geocoding whenever canonical
// coordinates exist, name reconciliation when country is the primary geo
// (or present with nothing marked primary), otherwise nothing.
func runGeocode(ctx context.Context, f *frame.Frame, m *schema.Mapper, opt Options) (*frame.Frame, error) {
	primaryTypes := m.PrimaryGeoTypes()

	if f.Has("lat") && f.Has("lng") {
		var loc geocode.Locator
		// A fully cached table never touches the reference store.
		if !opt.Cache.Covers(f, "lng", "lat") {
			ref, err := loadReference(ctx, opt)
			if err != nil {
				return nil, err
			}
			if ref != nil {
				loc = ref
			}
		}
		return geocode.Points(f, loc, opt.Cache, geocode.PointOptions{Depth: opt.Depth})
	}

	countryPrimary := false
	for _, t := range primaryTypes {
		if t == schema.GeoTypeCountry {
			countryPrimary = true
		}
	}
	if !countryPrimary && !(f.Has("country") && len(primaryTypes) == 0) {
		return f, nil
	}

	var levels []gazetteer.Level
	for _, a := range m.Geo {
		if !a.ResolveToGazetteer {
			continue
		}
		if level, ok := levelForGeoType(a.GeoType); ok {
			levels = append(levels, level)
		}
	}
	if len(levels) == 0 {
		return f, nil
	}
	ref, err := loadReference(ctx, opt)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("normalize: name reconciliation requested but no gazetteer reference available")
	}
	geocode.ReconcileNames(f, ref, geocode.ReconcileOptions{Depth: opt.Depth, Levels: levels})
	return f, nil
}

func loadReference(ctx context.Context, opt Options) (*gazetteer.Reference, error) {
	if opt.Reference != nil {
		return opt.Reference, nil
	}
	if opt.Store == nil {
		return nil, nil
	}
	ref, err := opt.Store.Load(ctx, opt.Depth)
	if err != nil {
		return nil, fmt.Errorf("normalize: load gazetteer: %w", err)
	}
	return ref, nil
}
