package normalize

import (
	"testing"

	"geonorm/internal/frame"
	"geonorm/internal/schema"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		value   string
		pattern string
		want    int64
	}{
		{"06/15/2020", "%m/%d/%Y", 1592179200000},
		{"6/15/20", "%m/%d/%y", 1592179200000},
		{"2021-03-26", "%Y-%m-%d", 1616716800000},
		// Spreadsheet artifact: trailing midnight clock stripped on retry.
		{"2021-03-26 00:00:00", "%Y-%m-%d", 1616716800000},
	}
	for _, tt := range tests {
		got, err := formatTime(tt.value, tt.pattern, true)
		if err != nil {
			t.Fatalf("formatTime(%q, %q): %v", tt.value, tt.pattern, err)
		}
		if got != any(tt.want) {
			t.Fatalf("formatTime(%q, %q) = %v, want %d", tt.value, tt.pattern, got, tt.want)
		}
	}
}

func TestFormatTimeInvalid(t *testing.T) {
	// Validation off: a bad date nulls out instead of failing the file.
	got, err := formatTime("02/31/2020", "%m/%d/%Y", false)
	if err != nil {
		t.Fatalf("unexpected error with validation off: %v", err)
	}
	if got != nil {
		t.Fatalf("formatTime invalid = %v, want nil", got)
	}

	if _, err := formatTime("02/31/2020", "%m/%d/%Y", true); err == nil {
		t.Fatal("expected error with validation on")
	}
}

func TestGenerateTimestampColumn(t *testing.T) {
	f, err := frame.FromColumns([]string{"d", "m", "y"}, map[string][]any{
		"d": {int64(9), int64(15)},
		"m": {int64(6), int64(12)},
		"y": {int64(2020), int64(1999)},
	})
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	group := map[string]*schema.DateAnnotation{
		"d": {Name: "d", DateType: schema.DateTypeDay},
		"m": {Name: "m", DateType: schema.DateTypeMonth},
		"y": {Name: "y", DateType: schema.DateTypeYear},
	}
	generateTimestampColumn(f, group, "ts")

	// An integer day of 9 must contribute "9", never "9.0".
	if got, want := f.Column("ts")[0], "6/9/2020"; got != want {
		t.Fatalf("ts[0] = %v, want %v", got, want)
	}
	if got, want := f.Column("ts")[1], "12/15/1999"; got != want {
		t.Fatalf("ts[1] = %v, want %v", got, want)
	}
}

func TestGenerateTimestampColumnDefaults(t *testing.T) {
	f, err := frame.FromColumns([]string{"y"}, map[string][]any{"y": {int64(2020)}})
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	group := map[string]*schema.DateAnnotation{
		"y": {Name: "y", DateType: schema.DateTypeYear},
	}
	generateTimestampColumn(f, group, "ts")
	if got, want := f.Column("ts")[0], "1/1/2020"; got != want {
		t.Fatalf("ts[0] = %v, want %v", got, want)
	}
}

func TestGenerateTimestampFormat(t *testing.T) {
	group := map[string]*schema.DateAnnotation{
		"d": {DateType: schema.DateTypeDay, TimeFormat: "%d"},
		"m": {DateType: schema.DateTypeMonth, TimeFormat: "%m"},
		"y": {DateType: schema.DateTypeYear, TimeFormat: "%Y"},
	}
	if got, want := generateTimestampFormat(group), "%m/%d/%Y"; got != want {
		t.Fatalf("format = %q, want %q", got, want)
	}

	// Missing members fall back to defaults, year as two digits.
	partial := map[string]*schema.DateAnnotation{
		"m": {DateType: schema.DateTypeMonth, TimeFormat: "%m"},
	}
	if got, want := generateTimestampFormat(partial), "%m/%d/%y"; got != want {
		t.Fatalf("format = %q, want %q", got, want)
	}
}

// TestGroupedDateEpoch pins the grouped-date contract: day=15, month=6,
// year=2020 with formats %d/%m/%Y assembles to the same epoch as parsing
// "06/15/2020" with "%m/%d/%Y" directly.
func TestGroupedDateEpoch(t *testing.T) {
	f, err := frame.FromColumns([]string{"day", "month", "year"}, map[string][]any{
		"day":   {int64(15)},
		"month": {int64(6)},
		"year":  {int64(2020)},
	})
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	m := &schema.Mapper{
		Date: []schema.DateAnnotation{
			{Name: "day", DateType: schema.DateTypeDay, Primary: true, TimeFormat: "%d"},
			{Name: "month", DateType: schema.DateTypeMonth, Primary: true, TimeFormat: "%m"},
			{Name: "year", DateType: schema.DateTypeYear, Primary: true, TimeFormat: "%Y"},
		},
	}
	ledger := Ledger{}
	if _, err := assembleDates(f, m, ledger, map[string][]string{}, true); err != nil {
		t.Fatalf("assembleDates: %v", err)
	}

	direct, err := formatTime("06/15/2020", "%m/%d/%Y", true)
	if err != nil {
		t.Fatalf("formatTime: %v", err)
	}
	if got := f.Column("timestamp")[0]; got != direct {
		t.Fatalf("timestamp = %v, want %v", got, direct)
	}
}

func TestSecondaryDatePromotedKeepsFeature(t *testing.T) {
	f, err := frame.FromColumns([]string{"obs_date"}, map[string][]any{
		"obs_date": {"06/15/2020"},
	})
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	m := &schema.Mapper{
		Date: []schema.DateAnnotation{
			{Name: "obs_date", DateType: schema.DateTypeDate, TimeFormat: "%m/%d/%Y"},
		},
	}
	ledger := Ledger{}
	features, err := assembleDates(f, m, ledger, map[string][]string{}, true)
	if err != nil {
		t.Fatalf("assembleDates: %v", err)
	}

	if !f.Has("timestamp") {
		t.Fatal("expected promotion to timestamp")
	}
	if !f.Has("obs_date") {
		t.Fatal("expected the original column kept as a feature")
	}
	if len(features) != 1 || features[0] != "obs_date" {
		t.Fatalf("features = %v, want [obs_date]", features)
	}
	if got := ledger["timestamp"]; len(got) != 1 || got[0] != "obs_date" {
		t.Fatalf("ledger[timestamp] = %v, want [obs_date]", got)
	}
	if got, want := f.Column("timestamp")[0], int64(1592179200000); got != any(want) {
		t.Fatalf("timestamp = %v, want %d", got, want)
	}
}

// TestSecondaryGroupDraining: associated day/month/year columns collapse to
// one synthetic feature whose name sorts the contributors, independent of
// annotation order.
func TestSecondaryGroupDraining(t *testing.T) {
	build := func(order []schema.DateAnnotation) (*frame.Frame, []string, Ledger, error) {
		f, err := frame.FromColumns([]string{"ts", "d2", "m2", "y2"}, map[string][]any{
			"ts": {int64(0)},
			"d2": {int64(15)},
			"m2": {int64(6)},
			"y2": {int64(2020)},
		})
		if err != nil {
			return nil, nil, nil, err
		}
		m := &schema.Mapper{Date: append([]schema.DateAnnotation{
			{Name: "ts", DateType: schema.DateTypeEpoch, Primary: true},
		}, order...)}
		ledger := Ledger{}
		feats, err := assembleDates(f, m, ledger, map[string][]string{}, true)
		return f, feats, ledger, err
	}

	assoc := map[string]string{"day": "d2", "month": "m2", "year": "y2"}
	forward := []schema.DateAnnotation{
		{Name: "d2", DateType: schema.DateTypeDay, TimeFormat: "%d", AssociatedColumns: assoc},
		{Name: "m2", DateType: schema.DateTypeMonth, TimeFormat: "%m", AssociatedColumns: assoc},
		{Name: "y2", DateType: schema.DateTypeYear, TimeFormat: "%Y", AssociatedColumns: assoc},
	}
	reversed := []schema.DateAnnotation{forward[2], forward[1], forward[0]}

	f1, feats1, ledger1, err := build(forward)
	if err != nil {
		t.Fatalf("assembleDates forward: %v", err)
	}
	f2, feats2, _, err := build(reversed)
	if err != nil {
		t.Fatalf("assembleDates reversed: %v", err)
	}

	const wantName = "d2m2y2"
	if len(feats1) != 1 || feats1[0] != wantName {
		t.Fatalf("features = %v, want [%s]", feats1, wantName)
	}
	if len(feats2) != 1 || feats2[0] != wantName {
		t.Fatalf("reversed features = %v, want [%s]", feats2, wantName)
	}
	if got, want := f1.Column(wantName)[0], int64(1592179200000); got != any(want) {
		t.Fatalf("synthetic epoch = %v, want %d", got, want)
	}
	if got := f2.Column(wantName)[0]; got != f1.Column(wantName)[0] {
		t.Fatalf("order-dependent result: %v vs %v", got, f1.Column(wantName)[0])
	}
	if got := ledger1[wantName]; len(got) != 3 {
		t.Fatalf("ledger[%s] = %v, want three contributors", wantName, got)
	}
}

// TestTwoOfThreeGroupStaysString: a grouped month/year pair with no day is
// assembled but deliberately not epoch-converted.
func TestTwoOfThreeGroupStaysString(t *testing.T) {
	f, err := frame.FromColumns([]string{"ts", "m2", "y2"}, map[string][]any{
		"ts": {int64(0)},
		"m2": {int64(6)},
		"y2": {int64(2020)},
	})
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	assoc := map[string]string{"month": "m2", "year": "y2"}
	m := &schema.Mapper{Date: []schema.DateAnnotation{
		{Name: "ts", DateType: schema.DateTypeEpoch, Primary: true},
		{Name: "m2", DateType: schema.DateTypeMonth, AssociatedColumns: assoc},
		{Name: "y2", DateType: schema.DateTypeYear, AssociatedColumns: assoc},
	}}
	feats, err := assembleDates(f, m, Ledger{}, map[string][]string{}, true)
	if err != nil {
		t.Fatalf("assembleDates: %v", err)
	}
	if len(feats) != 1 || feats[0] != "m2y2" {
		t.Fatalf("features = %v, want [m2y2]", feats)
	}
	if got, want := f.Column("m2y2")[0], "6/1/2020"; got != want {
		t.Fatalf("m2y2[0] = %v, want %q", got, want)
	}
}

// TestGroupedDatesQualifying: when all members of a date group qualify the
// same column, the synthetic column inherits the qualifier role instead of
// becoming a feature.
func TestGroupedDatesQualifying(t *testing.T) {
	f, err := frame.FromColumns([]string{"ts", "d2", "m2", "y2"}, map[string][]any{
		"ts": {int64(0)},
		"d2": {int64(15)},
		"m2": {int64(6)},
		"y2": {int64(2020)},
	})
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	assoc := map[string]string{"day": "d2", "month": "m2", "year": "y2"}
	m := &schema.Mapper{Date: []schema.DateAnnotation{
		{Name: "ts", DateType: schema.DateTypeEpoch, Primary: true},
		{Name: "d2", DateType: schema.DateTypeDay, TimeFormat: "%d", AssociatedColumns: assoc, Qualifies: []string{"pop"}},
		{Name: "m2", DateType: schema.DateTypeMonth, TimeFormat: "%m", AssociatedColumns: assoc, Qualifies: []string{"pop"}},
		{Name: "y2", DateType: schema.DateTypeYear, TimeFormat: "%Y", AssociatedColumns: assoc, Qualifies: []string{"pop"}},
	}}
	qualifiers := map[string][]string{}
	feats, err := assembleDates(f, m, Ledger{}, qualifiers, true)
	if err != nil {
		t.Fatalf("assembleDates: %v", err)
	}
	if len(feats) != 0 {
		t.Fatalf("features = %v, want none", feats)
	}
	if got := qualifiers["pop"]; len(got) != 1 || got[0] != "d2m2y2" {
		t.Fatalf("qualifiers[pop] = %v, want [d2m2y2]", got)
	}
}
