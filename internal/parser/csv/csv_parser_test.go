package csv

import (
	"strings"
	"testing"
)

func TestParseTypedColumns(t *testing.T) {
	in := "city,pop,rate\nKhartoum,639598,1.5\nKassala,298529,2.25\n"
	f, skipped, err := NewParser(Options{HasHeader: true}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("skipped = %d, want 0", skipped)
	}
	if got, want := f.Len(), 2; got != want {
		t.Fatalf("rows = %d, want %d", got, want)
	}
	if got := f.Column("city")[0]; got != "Khartoum" {
		t.Fatalf("city[0] = %v (%T), want string", got, got)
	}
	if got := f.Column("pop")[0]; got != int64(639598) {
		t.Fatalf("pop[0] = %v (%T), want int64", got, got)
	}
	if got := f.Column("rate")[1]; got != 2.25 {
		t.Fatalf("rate[1] = %v (%T), want float64", got, got)
	}
}

func TestParseEmptyCellsAndMixedColumn(t *testing.T) {
	in := "a,b\n1,x\n,2\n"
	f, _, err := NewParser(Options{HasHeader: true}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := f.Column("a")[1]; got != nil {
		t.Fatalf("a[1] = %v, want nil", got)
	}
	// Column a is still all-int among non-empty cells.
	if got := f.Column("a")[0]; got != int64(1) {
		t.Fatalf("a[0] = %v (%T), want int64", got, got)
	}
	// Column b mixes "x" and "2": stays string.
	if got := f.Column("b")[1]; got != "2" {
		t.Fatalf("b[1] = %v (%T), want string", got, got)
	}
}

func TestParseSkipsBadWidthRows(t *testing.T) {
	in := "a,b\n1,2\n3\n4,5\n"
	f, skipped, err := NewParser(Options{HasHeader: true}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skipped != 1 {
		t.Fatalf("skipped = %d, want 1", skipped)
	}
	if got, want := f.Len(), 2; got != want {
		t.Fatalf("rows = %d, want %d", got, want)
	}
}

func TestParseHeaderBOMAndMap(t *testing.T) {
	in := "\uFEFFDate,Value\n06/15/2020,1\n"
	f, _, err := NewParser(Options{
		HasHeader: true,
		HeaderMap: map[string]string{"Date": "dt"},
	}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.Has("dt") {
		t.Fatalf("columns = %v, want dt via HeaderMap", f.Columns())
	}
	if !f.Has("Value") {
		t.Fatalf("columns = %v, want unmapped header kept verbatim", f.Columns())
	}
}

func TestParseNoHeader(t *testing.T) {
	in := "1,2\n3,4\n"
	f, _, err := NewParser(Options{}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.Has("col_0") || !f.Has("col_1") {
		t.Fatalf("columns = %v, want synthesized col_N names", f.Columns())
	}
}

func TestParseRawStrings(t *testing.T) {
	in := "a\n01\n"
	f, _, err := NewParser(Options{HasHeader: true, RawStrings: true}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := f.Column("a")[0]; got != "01" {
		t.Fatalf("a[0] = %v (%T), want \"01\" untouched", got, got)
	}
}
