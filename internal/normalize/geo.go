package normalize

import (
	"strings"

	"geonorm/internal/frame"
	"geonorm/internal/gazetteer"
	"geonorm/internal/geocode/isocodes"
	"geonorm/internal/schema"
)

// levelForGeoType maps the annotation vocabulary onto gazetteer levels.
func levelForGeoType(geoType string) (gazetteer.Level, bool) {
	switch geoType {
	case schema.GeoTypeCountry:
		return gazetteer.Admin0, true
	case schema.GeoTypeAdmin1:
		return gazetteer.Admin1, true
	case schema.GeoTypeAdmin2:
		return gazetteer.Admin2, true
	case schema.GeoTypeAdmin3:
		return gazetteer.Admin3, true
	}
	return 0, false
}

// splitCoordinates breaks one "x, y" column into canonical lng and lat
// columns per the declared component order, dropping the source column.
// Cells that do not split cleanly yield nil coordinates.
func splitCoordinates(f *frame.Frame, col, coordFormat string) {
	cells := f.Column(col)
	lng := make([]any, len(cells))
	lat := make([]any, len(cells))
	for i, v := range cells {
		s := frame.CellString(v)
		parts := strings.SplitN(s, ",", 2)
		if len(parts) != 2 {
			continue
		}
		first := strings.TrimSpace(parts[0])
		second := strings.TrimSpace(parts[1])
		if coordFormat == schema.CoordFormatLatLon {
			first, second = second, first
		}
		if fv, ok := frame.CellFloat(first); ok {
			lng[i] = fv
		}
		if fv, ok := frame.CellFloat(second); ok {
			lat[i] = fv
		}
	}
	_ = f.Set("lng", lng)
	_ = f.Set("lat", lat)
	f.Drop(col)
}

// translateISOCodes rewrites ISO country codes to full country names in
// place. Unknown codes pass through unchanged; the gazetteer step simply
// will not match them.
func translateISOCodes(f *frame.Frame, col string) {
	_ = f.Apply(col, func(v any) any {
		s, ok := v.(string)
		if !ok {
			return v
		}
		if name, ok := isocodes.Country(s); ok {
			return name
		}
		return v
	})
}

// classifyGeo routes every geo annotation to its destiny: primary columns
// claim canonical slots (lat, lng, country, admin1..admin3), qualifying
// columns register in the qualifier map, and the rest become features —
// except that when no primary geo exists at all, the first secondary
// column per administrative type is promoted into the matching slot as a
// copy, with the promotion recorded in the ledger.
//
// Returns the feature list extended with any geo columns demoted to
// features.
func classifyGeo(f *frame.Frame, m *schema.Mapper, ledger Ledger, qualifiers map[string][]string, features []string) []string {
	hasPrimary := len(m.PrimaryGeoTypes()) > 0
	promoted := map[string]bool{}

	for i := range m.Geo {
		a := &m.Geo[i]
		switch {
		case a.Primary:
			switch a.GeoType {
			case schema.GeoTypeLatitude:
				_ = f.Rename(a.Name, "lat")
			case schema.GeoTypeLongitude:
				_ = f.Rename(a.Name, "lng")
			case schema.GeoTypeCoordinates:
				splitCoordinates(f, a.Name, a.CoordFormat)
			case schema.GeoTypeCountry:
				_ = f.Rename(a.Name, "country")
			case schema.GeoTypeAdmin1:
				_ = f.Rename(a.Name, "admin1")
			case schema.GeoTypeAdmin2:
				_ = f.Rename(a.Name, "admin2")
			case schema.GeoTypeAdmin3:
				_ = f.Rename(a.Name, "admin3")
			case schema.GeoTypeISO2, schema.GeoTypeISO3:
				translateISOCodes(f, a.Name)
				_ = f.Rename(a.Name, "country")
			}
		case len(a.Qualifies) > 0:
			for _, target := range a.Qualifies {
				qualifiers[target] = append(qualifiers[target], a.Name)
			}
		default:
			if !hasPrimary {
				if level, ok := levelForGeoType(a.GeoType); ok {
					slot := level.Column()
					if !promoted[slot] {
						promoted[slot] = true
						col := f.Column(a.Name)
						copied := make([]any, len(col))
						copy(copied, col)
						_ = f.Set(slot, copied)
						ledger.Record(slot, a.Name)
						continue
					}
				}
			}
			features = append(features, a.Name)
		}
	}
	return features
}
