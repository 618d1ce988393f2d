// Package config defines the canonical, JSON-serializable configuration model
// for a normalization run. It is intentionally small, explicit, and dependency-
// free so that run files can be loaded from disk (or other sources) and passed
// through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in run files.
//  3. Minimalism: No third-party config libraries; decoding is performed by the
//     standard library, with a light Options helper for typed access.
//
// Example (trimmed):
//
//	{
//	  "job": "rainfall-2020",
//	  "inputs": [
//	    { "data": "rain.csv", "mapper": "rain.mapper.json" }
//	  ],
//	  "parser":    { "options": { "has_header": true } },
//	  "geocoding": { "admin_level": "admin2", "gazetteer": { "kind": "sqlite", "sqlite": { "dsn": "file:gadm.db" } } },
//	  "output":    { "dir": "out" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Run describes one normalization run over one or more annotated inputs. It
// is the top-level object decoded from a run file.
type Run struct {
	// Job names the run; it labels metrics and log lines.
	Job string `json:"job"`

	// Inputs lists the data/mapper pairs to normalize. Multiple inputs share
	// one coordinate cache for the whole run.
	Inputs []Input `json:"inputs"`

	// Parser configures how raw bytes are turned into a table.
	Parser Parser `json:"parser"`

	// Geocoding configures the admin depth, the gazetteer backend, and date
	// validation behavior.
	Geocoding Geocoding `json:"geocoding"`

	// Output describes where normalized tables and rename reports land.
	Output Output `json:"output"`

	// Metrics selects an optional metrics backend.
	Metrics Metrics `json:"metrics"`

	// Runtime controls batch concurrency.
	Runtime RuntimeConfig `json:"runtime"`
}

// Input is one data file plus the mapper document annotating it.
type Input struct {
	// Data is the local filesystem path to the input file.
	Data string `json:"data"`

	// Mapper is the path to the annotation schema for this file.
	Mapper string `json:"mapper"`
}

// Parser selects how to parse the raw source into a table.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	// Empty defaults to "csv".
	Kind string `json:"kind"`

	// Options is a free-form map interpreted by the parser implementation.
	// For CSV, typical keys include:
	//   has_header (bool), comma (string), trim_space (bool),
	//   raw_strings (bool), header_map (object)
	Options Options `json:"options"`
}

// Geocoding configures geographic resolution.
type Geocoding struct {
	// AdminLevel is the administrative depth to resolve to:
	// "admin0".."admin3" (or "country"). Empty defaults to "admin2".
	AdminLevel string `json:"admin_level"`

	// Gazetteer selects the reference-data backend.
	Gazetteer Gazetteer `json:"gazetteer"`

	// ValidateDates makes date parse failures fatal instead of producing
	// null timestamps.
	ValidateDates bool `json:"validate_dates"`

	// PersistCache writes coordinate cache entries back to the sqlite
	// backend at the end of the run, and seeds the run's cache from it at
	// the start. Only honored by the sqlite backend.
	PersistCache bool `json:"persist_cache"`
}

// Gazetteer selects where administrative reference data comes from.
type Gazetteer struct {
	// Kind selects the backend: "sqlite", "postgres", or "none".
	// Empty defaults to "none", which disables gazetteer lookups; point
	// geocoding then only succeeds for fully cached coordinate sets.
	Kind string `json:"kind"`

	// Sqlite carries options for the "sqlite" backend.
	Sqlite DBConfig `json:"sqlite"`

	// Postgres carries options for the "postgres" backend.
	Postgres DBConfig `json:"postgres"`
}

// DBConfig configures a database-backed gazetteer.
type DBConfig struct {
	// DSN is the connection string (file:... for sqlite, postgresql://...
	// for pgx/pgxpool).
	DSN string `json:"dsn"`

	// Table is the fully qualified reference table name. Backends apply
	// their own default when empty.
	Table string `json:"table"`
}

// Output describes where results are written.
type Output struct {
	// Dir receives one normalized CSV and one rename-report JSON per input.
	Dir string `json:"dir"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Kind selects the backend: "prompush", "datadog", or "none" (default).
	Kind string `json:"kind"`

	// Options is interpreted by the selected backend. For prompush:
	//   url (string), job (string). For datadog:
	//   addr (string), namespace (string), tags ([]string).
	Options Options `json:"options"`
}

// RuntimeConfig controls concurrency across a multi-input run.
type RuntimeConfig struct {
	// Workers caps the number of inputs normalized concurrently. Zero or
	// one means sequential.
	Workers int `json:"workers"`
}

// Load reads and decodes a run file.
func Load(path string) (*Run, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run config: %w", err)
	}
	var r Run
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode run config: %w", err)
	}
	return &r, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a key
// is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. This is useful for single-character parser settings such as
// a CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored. Returns an empty map
// when the key is missing or the value is not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of strings
// (or an array of interface values containing strings). Returns nil when the
// key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null "options"
// object in JSON decodes to a non-nil, empty Options map. This simplifies call
// sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
