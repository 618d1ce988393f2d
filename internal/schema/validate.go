// This file adds a lightweight linter/validator for Mapper values. It
// performs static checks over a decoded mapper document and returns a list
// of issues (errors and warnings) that callers can surface in a CLI or tests.
package schema

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a mapper validation issue.
type IssueSeverity string

const (
	// SeverityError indicates a schema error that blocks normalization.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users
	// but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Mapper.
//
// Path is a dotted path into the document (e.g. "date[1].associated_columns").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where one is expected.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

var validGeoTypes = map[string]bool{
	GeoTypeLatitude:    true,
	GeoTypeLongitude:   true,
	GeoTypeCoordinates: true,
	GeoTypeCountry:     true,
	GeoTypeAdmin1:      true,
	GeoTypeAdmin2:      true,
	GeoTypeAdmin3:      true,
	GeoTypeISO2:        true,
	GeoTypeISO3:        true,
}

var validDateTypes = map[string]bool{
	DateTypeDate:  true,
	DateTypeEpoch: true,
	DateTypeDay:   true,
	DateTypeMonth: true,
	DateTypeYear:  true,
}

// Validate performs static validation of a mapper document. It does not
// mutate the mapper; it returns a slice of Issue values and callers decide
// whether to treat warnings as fatal.
func Validate(m *Mapper) []Issue {
	var issues []Issue
	errf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, a...)})
	}

	names := map[string]bool{}
	for _, n := range m.ColumnNames() {
		names[n] = true
	}

	checkQualifies := func(path string, qualifies []string) {
		for _, q := range qualifies {
			if !names[q] {
				warnf(path, "qualifies unknown column %q", q)
			}
		}
	}

	for i, a := range m.Geo {
		path := fmt.Sprintf("geo[%d]", i)
		if strings.TrimSpace(a.Name) == "" {
			errf(path+".name", "name is required")
		}
		if !validGeoTypes[a.GeoType] {
			errf(path+".geo_type", "unknown geo_type %q", a.GeoType)
		}
		if a.GeoType == GeoTypeCoordinates {
			switch a.CoordFormat {
			case CoordFormatLonLat, CoordFormatLatLon:
			case "":
				warnf(path+".coord_format", "coord_format missing; assuming %q", CoordFormatLatLon)
			default:
				errf(path+".coord_format", "unknown coord_format %q", a.CoordFormat)
			}
		}
		checkQualifies(path+".qualifies", a.Qualifies)
	}

	var primarySingles, primaryGrouped int
	for i, a := range m.Date {
		path := fmt.Sprintf("date[%d]", i)
		if strings.TrimSpace(a.Name) == "" {
			errf(path+".name", "name is required")
		}
		if !validDateTypes[a.DateType] {
			errf(path+".date_type", "unknown date_type %q", a.DateType)
		}
		if a.DateType == DateTypeDate && a.TimeFormat == "" {
			errf(path+".time_format", "time_format is required for date_type %q", DateTypeDate)
		}
		if a.Primary {
			switch a.DateType {
			case DateTypeDate, DateTypeEpoch:
				primarySingles++
			case DateTypeDay, DateTypeMonth, DateTypeYear:
				primaryGrouped++
			}
		}
		// An associated_columns reference must land on a column that itself
		// carries a day/month/year date annotation; anything else would
		// silently mis-assemble a date, so it is rejected up front.
		for role, col := range a.AssociatedColumns {
			rp := path + ".associated_columns"
			if role != DateTypeDay && role != DateTypeMonth && role != DateTypeYear {
				errf(rp, "unknown date role %q", role)
				continue
			}
			target, ok := m.DateByName(col)
			if !ok {
				errf(rp, "references column %q which has no date annotation", col)
				continue
			}
			if target.DateType != role {
				errf(rp, "references %q as %s but it is annotated %q", col, role, target.DateType)
			}
		}
		checkQualifies(path+".qualifies", a.Qualifies)
	}
	if primarySingles > 1 {
		errf("date", "multiple primary date/epoch annotations; exactly one may resolve to timestamp")
	}
	if primarySingles > 0 && primaryGrouped > 0 {
		errf("date", "primary date/epoch annotation cannot be combined with a primary day/month/year group")
	}

	seenFeature := map[string]bool{}
	for i, a := range m.Feature {
		path := fmt.Sprintf("feature[%d]", i)
		if strings.TrimSpace(a.Name) == "" {
			errf(path+".name", "name is required")
		}
		if seenFeature[a.Name] {
			warnf(path+".name", "duplicate feature annotation %q", a.Name)
		}
		seenFeature[a.Name] = true
		checkQualifies(path+".qualifies", a.Qualifies)
	}

	return issues
}
