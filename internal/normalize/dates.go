package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ncruces/go-strftime"

	"geonorm/internal/frame"
	"geonorm/internal/schema"
)

// excelDatetimeSuffix is the trailing midnight clock some spreadsheet
// readers attach to plain dates; parse failures retry once without it.
const excelDatetimeSuffix = " 00:00:00"

// formatTime parses t against an strftime pattern and returns epoch
// milliseconds (UTC). On failure, when validate is false the value becomes
// nil and processing continues; when validate is true the parse error is
// returned so one bad cell fails the file.
func formatTime(t, pattern string, validate bool) (any, error) {
	tm, err := strftime.Parse(pattern, t)
	if err != nil {
		if strings.HasSuffix(t, excelDatetimeSuffix) {
			return formatTime(strings.TrimSuffix(t, excelDatetimeSuffix), pattern, validate)
		}
		if validate {
			return nil, fmt.Errorf("normalize: parse %q with format %q: %w", t, pattern, err)
		}
		return nil, nil
	}
	return tm.Unix() * 1000, nil
}

// applyFormatTime converts every cell of a column to epoch milliseconds.
func applyFormatTime(f *frame.Frame, col, pattern string, validate bool) error {
	cells := f.Column(col)
	for i, v := range cells {
		if frame.IsNull(v) {
			cells[i] = nil
			continue
		}
		epoch, err := formatTime(frame.CellString(v), pattern, validate)
		if err != nil {
			return err
		}
		cells[i] = epoch
	}
	return nil
}

// generateTimestampColumn assembles a "month/day/year" string column from
// up to three grouped sub-columns, defaulting missing components the same
// way for every row (day 1, month 1, year 01). Cells pass through
// CellString so an integer day of 9 contributes "9", never "9.0".
func generateTimestampColumn(f *frame.Frame, group map[string]*schema.DateAnnotation, colName string) {
	var dayCol, monthCol, yearCol string
	for name, a := range group {
		switch a.DateType {
		case schema.DateTypeDay:
			dayCol = name
		case schema.DateTypeMonth:
			monthCol = name
		case schema.DateTypeYear:
			yearCol = name
		}
	}

	component := func(col, dflt string, row int) string {
		if col == "" {
			return dflt
		}
		return frame.CellString(f.Column(col)[row])
	}

	out := make([]any, f.Len())
	for i := range out {
		out[i] = component(monthCol, "1", i) + "/" + component(dayCol, "1", i) + "/" + component(yearCol, "01", i)
	}
	_ = f.Set(colName, out)
}

// generateTimestampFormat composes the strftime pattern matching
// generateTimestampColumn's output, honoring each sub-annotation's declared
// format and defaulting day %d, month %m, year %y.
func generateTimestampFormat(group map[string]*schema.DateAnnotation) string {
	day, month, year := "%d", "%m", "%y"
	for _, a := range group {
		if a.TimeFormat == "" {
			continue
		}
		switch a.DateType {
		case schema.DateTypeDay:
			day = a.TimeFormat
		case schema.DateTypeMonth:
			month = a.TimeFormat
		case schema.DateTypeYear:
			year = a.TimeFormat
		}
	}
	return month + "/" + day + "/" + year
}

// generateColumnName concatenates the contributing column names in sorted
// order, so the synthetic name is stable no matter which group member was
// encountered first.
func generateColumnName(fields []string) string {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	return strings.Join(sorted, "")
}

// groupCoversMonthDayYear reports whether all three calendar components are
// present in a grouped date set. Two-of-three groups stay as assembled date
// strings instead of epoch times.
func groupCoversMonthDayYear(group map[string]*schema.DateAnnotation) bool {
	seen := map[string]bool{}
	for _, a := range group {
		seen[a.DateType] = true
	}
	return seen[schema.DateTypeDay] && seen[schema.DateTypeMonth] && seen[schema.DateTypeYear]
}

// dateQualifiesTarget returns the column qualified by exactly this set of
// associated date fields, if any. When day/month/year columns jointly
// qualify one target, their synthetic replacement takes over that role
// instead of becoming a feature.
func dateQualifiesTarget(qualifiers map[string][]string, fields []string) string {
	want := append([]string(nil), fields...)
	sort.Strings(want)
	for target, quals := range qualifiers {
		got := append([]string(nil), quals...)
		sort.Strings(got)
		if len(got) == len(want) && strings.Join(got, "\x00") == strings.Join(want, "\x00") {
			return target
		}
	}
	return ""
}

// assembleDates consolidates the mapper's date annotations into epoch-time
// columns on the table.
//
// Primary annotations resolve to the canonical "timestamp" column: a single
// date or epoch column is renamed (dates converted first), and a grouped
// day/month/year set is assembled then converted. Secondary single dates
// are epoch-converted in place and kept as features; when no primary date
// exists, the first one additionally supplies "timestamp" as a copy so the
// original column's meaning is not lost. Secondary grouped sets drain in
// sorted-name order into one synthetic column each, epoch-converted only
// when the group covers day, month, and year.
//
// Returns the names of date columns that continue as features. Synthetic
// and promoted columns are recorded in the ledger; renamed primaries are
// not, matching the contract that primary slots need no caller follow-up.
func assembleDates(f *frame.Frame, m *schema.Mapper, ledger Ledger, qualifiers map[string][]string, validate bool) ([]string, error) {
	primaryNames := map[string]bool{}
	for _, n := range m.PrimaryDateNames() {
		primaryNames[n] = true
	}

	var features []string
	primaryGroup := map[string]*schema.DateAnnotation{}
	otherGroups := map[string]*schema.DateAnnotation{}

	for i := range m.Date {
		a := &m.Date[i]
		if primaryNames[a.Name] {
			switch a.DateType {
			case schema.DateTypeDate:
				if err := applyFormatTime(f, a.Name, a.TimeFormat, validate); err != nil {
					return nil, err
				}
				_ = f.Rename(a.Name, "timestamp")
			case schema.DateTypeEpoch:
				_ = f.Rename(a.Name, "timestamp")
			case schema.DateTypeDay, schema.DateTypeMonth, schema.DateTypeYear:
				primaryGroup[a.Name] = a
			}
		} else {
			switch {
			case a.DateType == schema.DateTypeDate:
				if err := applyFormatTime(f, a.Name, a.TimeFormat, validate); err != nil {
					return nil, err
				}
				if len(primaryNames) == 0 && !f.Has("timestamp") {
					// Promote to timestamp but keep the feature copy.
					col := f.Column(a.Name)
					copied := make([]any, len(col))
					copy(copied, col)
					_ = f.Set("timestamp", copied)
					ledger.Record("timestamp", a.Name)
				}
				features = append(features, a.Name)
			case len(a.AssociatedColumns) > 0 &&
				(a.DateType == schema.DateTypeDay || a.DateType == schema.DateTypeMonth || a.DateType == schema.DateTypeYear):
				otherGroups[a.Name] = a
			default:
				features = append(features, a.Name)
			}
		}

		for _, target := range a.Qualifies {
			qualifiers[target] = append(qualifiers[target], a.Name)
		}
	}

	if len(primaryGroup) > 0 {
		generateTimestampColumn(f, primaryGroup, "timestamp")
		if err := applyFormatTime(f, "timestamp", generateTimestampFormat(primaryGroup), validate); err != nil {
			return nil, err
		}
	}

	// Drain secondary groups smallest anchor first, so synthetic columns
	// come out identical regardless of annotation order.
	for len(otherGroups) > 0 {
		anchor := ""
		for name := range otherGroups {
			if anchor == "" || name < anchor {
				anchor = name
			}
		}
		ann := otherGroups[anchor]
		delete(otherGroups, anchor)

		group := map[string]*schema.DateAnnotation{anchor: ann}
		fields := []string{anchor}
		for _, role := range []string{schema.DateTypeDay, schema.DateTypeMonth, schema.DateTypeYear} {
			col, ok := ann.AssociatedColumns[role]
			if !ok || col == anchor {
				continue
			}
			if member, ok := otherGroups[col]; ok {
				group[col] = member
				delete(otherGroups, col)
			} else if member, ok := m.DateByName(col); ok {
				group[col] = member
			}
			fields = append(fields, col)
		}

		newName := "timestamp"
		if f.Has("timestamp") {
			newName = generateColumnName(fields)
		}
		generateTimestampColumn(f, group, newName)
		if groupCoversMonthDayYear(group) {
			if err := applyFormatTime(f, newName, generateTimestampFormat(group), validate); err != nil {
				return nil, err
			}
		}
		ledger.Record(newName, fields...)

		if newName != "timestamp" {
			if target := dateQualifiesTarget(qualifiers, fields); target != "" {
				qualifiers[target] = []string{newName}
			} else {
				features = append(features, newName)
			}
		}
	}

	return features, nil
}
