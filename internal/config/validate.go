// Package config provides configuration models and helpers for normalization
// runs.
//
// This file adds a lightweight linter/validator for Run values. It performs
// static checks over a decoded Run and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Run.
//
// Path is a dotted path into the config (e.g. "geocoding.admin_level",
// "inputs[1].mapper"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidateRun performs static validation / linting of a Run.
//
// It does not mutate the run. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
func ValidateRun(r Run) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}

	if len(r.Inputs) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "inputs",
			Message:  "at least one input is required",
		})
	}
	for i, in := range r.Inputs {
		if strings.TrimSpace(in.Data) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("inputs[%d].data", i),
				Message:  "input requires a non-empty data path",
			})
		}
		if strings.TrimSpace(in.Mapper) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("inputs[%d].mapper", i),
				Message:  "input requires a non-empty mapper path",
			})
		}
	}

	issues = append(issues, validateParser(r.Parser)...)
	issues = append(issues, validateGeocoding(r.Geocoding)...)
	issues = append(issues, validateMetrics(r.Metrics)...)
	issues = append(issues, validateRuntime(r.Runtime)...)

	if strings.TrimSpace(r.Output.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.dir",
			Message:  "output.dir must not be empty",
		})
	}

	return issues
}

// validateParser validates parser configuration.
func validateParser(p Parser) []Issue {
	var issues []Issue

	known := map[string]struct{}{
		"":    {}, // defaults to csv
		"csv": {},
	}
	if _, ok := known[p.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unknown parser kind %q; ensure a matching implementation exists", p.Kind),
		})
	}
	if comma := p.Options.String("comma", ","); len([]rune(comma)) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.comma",
			Message:  "comma must be a single character",
		})
	}
	return issues
}

// validateGeocoding validates geocoding configuration.
func validateGeocoding(g Geocoding) []Issue {
	var issues []Issue

	switch g.AdminLevel {
	case "", "country", "admin0", "admin1", "admin2", "admin3":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "geocoding.admin_level",
			Message:  fmt.Sprintf("unknown admin level %q; expected admin0..admin3", g.AdminLevel),
		})
	}

	switch g.Gazetteer.Kind {
	case "", "none":
		if g.PersistCache {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "geocoding.persist_cache",
				Message:  "persist_cache has no effect without a sqlite gazetteer backend",
			})
		}
	case "sqlite":
		if strings.TrimSpace(g.Gazetteer.Sqlite.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "geocoding.gazetteer.sqlite.dsn",
				Message:  "sqlite gazetteer requires a non-empty dsn",
			})
		}
	case "postgres":
		if strings.TrimSpace(g.Gazetteer.Postgres.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "geocoding.gazetteer.postgres.dsn",
				Message:  "postgres gazetteer requires a non-empty dsn",
			})
		}
		if g.PersistCache {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "geocoding.persist_cache",
				Message:  "persist_cache is only honored by the sqlite backend",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "geocoding.gazetteer.kind",
			Message:  fmt.Sprintf("unknown gazetteer kind %q; expected sqlite, postgres, or none", g.Gazetteer.Kind),
		})
	}

	return issues
}

// validateMetrics validates metrics backend configuration.
func validateMetrics(m Metrics) []Issue {
	var issues []Issue

	switch m.Kind {
	case "", "none":
	case "prompush":
		if strings.TrimSpace(m.Options.String("url", "")) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.options.url",
				Message:  "prompush metrics require a push gateway url",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.Options.String("addr", "")) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.options.addr",
				Message:  "datadog metrics require a statsd addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.kind",
			Message:  fmt.Sprintf("unknown metrics kind %q; expected prompush, datadog, or none", m.Kind),
		})
	}

	return issues
}

// validateRuntime validates runtime configuration.
func validateRuntime(rt RuntimeConfig) []Issue {
	var issues []Issue

	if rt.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}
	if rt.Workers > 64 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.workers",
			Message:  "workers above 64 rarely helps; normalization is memory-bound",
		})
	}

	return issues
}
