// Package schema defines the canonical, JSON-serializable annotation model
// consumed by the normalization engine. A mapper document carries three
// ordered annotation lists — geo, date, feature — each element describing how
// one source column participates in the canonical output.
//
// Design goals:
//
//  1. Explicitness: each annotation kind is its own struct with its own
//     kind-specific fields, validated fully at load time. Nothing downstream
//     performs ad hoc key-presence checks.
//  2. Stability: field names mirror the JSON mapper documents produced by the
//     annotation UI; changes should stay additive.
//  3. Minimalism: decoding is performed by the standard library.
//
// Example (trimmed):
//
//	{
//	  "geo": [
//	    {"name": "latitude", "geo_type": "latitude", "primary_geo": true},
//	    {"name": "longitude", "geo_type": "longitude", "primary_geo": true}
//	  ],
//	  "date": [
//	    {"name": "dt", "date_type": "date", "primary_date": true, "time_format": "%m/%d/%y"}
//	  ],
//	  "feature": [
//	    {"name": "rainfall", "feature_type": "float"}
//	  ]
//	}
package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Geo type vocabulary. The admin names are the human-facing labels the
// annotation tooling emits, not the gazetteer level names.
const (
	GeoTypeLatitude    = "latitude"
	GeoTypeLongitude   = "longitude"
	GeoTypeCoordinates = "coordinates"
	GeoTypeCountry     = "country"
	GeoTypeAdmin1      = "state/territory"
	GeoTypeAdmin2      = "county/district"
	GeoTypeAdmin3      = "municipality/town"
	GeoTypeISO2        = "iso2"
	GeoTypeISO3        = "iso3"
)

// Date type vocabulary.
const (
	DateTypeDate  = "date"
	DateTypeEpoch = "epoch"
	DateTypeDay   = "day"
	DateTypeMonth = "month"
	DateTypeYear  = "year"
)

// Coordinate component orders for GeoTypeCoordinates columns.
const (
	CoordFormatLonLat = "lonlat"
	CoordFormatLatLon = "latlon"
)

// GeoAnnotation describes a geographic source column.
type GeoAnnotation struct {
	Name        string   `json:"name"`
	GeoType     string   `json:"geo_type"`
	Primary     bool     `json:"primary_geo,omitempty"`
	Qualifies   []string `json:"qualifies,omitempty"`
	CoordFormat string   `json:"coord_format,omitempty"`

	// ResolveToGazetteer flags this level for fuzzy reconciliation against
	// the reference gazetteer when name-based geocoding runs.
	ResolveToGazetteer bool `json:"resolve_to_gadm,omitempty"`
}

// DateAnnotation describes a temporal source column. Grouped day/month/year
// columns reference each other through AssociatedColumns, a mapping of
// date role ("day", "month", "year") to column name.
type DateAnnotation struct {
	Name              string            `json:"name"`
	DateType          string            `json:"date_type"`
	Primary           bool              `json:"primary_date,omitempty"`
	TimeFormat        string            `json:"time_format,omitempty"`
	Qualifies         []string          `json:"qualifies,omitempty"`
	AssociatedColumns map[string]string `json:"associated_columns,omitempty"`
}

// FeatureAnnotation describes a measured source column.
type FeatureAnnotation struct {
	Name        string   `json:"name"`
	FeatureType string   `json:"feature_type,omitempty"`
	Qualifies   []string `json:"qualifies,omitempty"`

	// DisplayName, when set, replaces the raw column name as the emitted
	// feature label.
	DisplayName string `json:"display_name,omitempty"`

	// Aliases maps raw cell values (as strings) to replacement labels.
	Aliases map[string]string `json:"aliases,omitempty"`
}

// Mapper is one file's annotation schema: three ordered annotation lists.
// The meta section of a mapper document configures the upstream reader and
// is deliberately not modeled here.
type Mapper struct {
	Geo     []GeoAnnotation     `json:"geo"`
	Date    []DateAnnotation    `json:"date"`
	Feature []FeatureAnnotation `json:"feature"`
}

// Load decodes a mapper document and validates it. Any error-severity issue
// fails the load; warnings are dropped (use Validate directly to see them).
func Load(r io.Reader) (*Mapper, error) {
	var m Mapper
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("schema: decode mapper: %w", err)
	}
	for _, iss := range Validate(&m) {
		if iss.Severity == SeverityError {
			return nil, fmt.Errorf("schema: %w", iss)
		}
	}
	return &m, nil
}

// LoadFile is a convenience wrapper around Load.
func LoadFile(path string) (*Mapper, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open mapper: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// ColumnNames returns every annotated source column name in schema order:
// date, then geo, then feature. The engine subsets the source table to
// exactly these columns.
func (m *Mapper) ColumnNames() []string {
	var out []string
	seen := map[string]bool{}
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, a := range m.Date {
		add(a.Name)
	}
	for _, a := range m.Geo {
		add(a.Name)
	}
	for _, a := range m.Feature {
		add(a.Name)
	}
	return out
}

// PrimaryDateNames returns the names of primary date annotations.
func (m *Mapper) PrimaryDateNames() []string {
	var out []string
	for _, a := range m.Date {
		if a.Primary {
			out = append(out, a.Name)
		}
	}
	return out
}

// PrimaryGeoTypes returns the geo_type of every primary geo annotation.
func (m *Mapper) PrimaryGeoTypes() []string {
	var out []string
	for _, a := range m.Geo {
		if a.Primary {
			out = append(out, a.GeoType)
		}
	}
	return out
}

// DateByName returns the date annotation with the given column name.
func (m *Mapper) DateByName(name string) (*DateAnnotation, bool) {
	for i := range m.Date {
		if m.Date[i].Name == name {
			return &m.Date[i], true
		}
	}
	return nil, false
}
