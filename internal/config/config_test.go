package config

import (
	"encoding/json"
	"testing"
)

const sampleRun = `{
  "job": "rainfall-2020",
  "inputs": [
    { "data": "rain.csv", "mapper": "rain.mapper.json" },
    { "data": "temp.csv", "mapper": "temp.mapper.json" }
  ],
  "parser": { "options": { "has_header": true, "comma": ";", "header_map": { "Date": "dt" } } },
  "geocoding": {
    "admin_level": "admin2",
    "validate_dates": false,
    "gazetteer": { "kind": "sqlite", "sqlite": { "dsn": "file:gadm.db" } }
  },
  "output": { "dir": "out" },
  "metrics": { "kind": "prompush", "options": { "url": "http://gw:9091" } },
  "runtime": { "workers": 4 }
}`

func TestDecodeRun(t *testing.T) {
	var r Run
	if err := json.Unmarshal([]byte(sampleRun), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Job != "rainfall-2020" {
		t.Fatalf("job = %q", r.Job)
	}
	if len(r.Inputs) != 2 || r.Inputs[1].Mapper != "temp.mapper.json" {
		t.Fatalf("inputs = %+v", r.Inputs)
	}
	if !r.Parser.Options.Bool("has_header", false) {
		t.Fatal("has_header should decode true")
	}
	if got := r.Parser.Options.Rune("comma", ','); got != ';' {
		t.Fatalf("comma = %q, want ';'", got)
	}
	if got := r.Parser.Options.StringMap("header_map")["Date"]; got != "dt" {
		t.Fatalf("header_map[Date] = %q, want dt", got)
	}
	if r.Geocoding.Gazetteer.Kind != "sqlite" || r.Geocoding.Gazetteer.Sqlite.DSN != "file:gadm.db" {
		t.Fatalf("gazetteer = %+v", r.Geocoding.Gazetteer)
	}
	if r.Runtime.Workers != 4 {
		t.Fatalf("workers = %d", r.Runtime.Workers)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{"n": float64(3)}
	if got := o.Int("n", 0); got != 3 {
		t.Fatalf("Int = %d, want 3", got)
	}
	if got := o.Int("missing", 7); got != 7 {
		t.Fatalf("Int default = %d, want 7", got)
	}
	if got := o.String("missing", "x"); got != "x" {
		t.Fatalf("String default = %q, want x", got)
	}
}

func TestOptionsNullDecodesEmpty(t *testing.T) {
	var p Parser
	if err := json.Unmarshal([]byte(`{"kind":"csv","options":null}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Options == nil {
		t.Fatal("options should decode to a non-nil empty map")
	}
}
