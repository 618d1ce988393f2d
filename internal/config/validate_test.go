package config

import (
	"strings"
	"testing"
)

func validRun() Run {
	return Run{
		Job: "j",
		Inputs: []Input{
			{Data: "a.csv", Mapper: "a.mapper.json"},
		},
		Geocoding: Geocoding{
			AdminLevel: "admin2",
			Gazetteer:  Gazetteer{Kind: "sqlite", Sqlite: DBConfig{DSN: "file:x.db"}},
		},
		Output: Output{Dir: "out"},
	}
}

func hasIssue(issues []Issue, sev IssueSeverity, pathPart string) bool {
	for _, i := range issues {
		if i.Severity == sev && strings.Contains(i.Path, pathPart) {
			return true
		}
	}
	return false
}

func TestValidateRunOK(t *testing.T) {
	issues := ValidateRun(validRun())
	for _, i := range issues {
		if i.Severity == SeverityError {
			t.Fatalf("unexpected error: %v", i)
		}
	}
}

func TestValidateRunMissingJob(t *testing.T) {
	r := validRun()
	r.Job = ""
	if !hasIssue(ValidateRun(r), SeverityError, "job") {
		t.Fatal("expected error for empty job")
	}
}

func TestValidateRunNoInputs(t *testing.T) {
	r := validRun()
	r.Inputs = nil
	if !hasIssue(ValidateRun(r), SeverityError, "inputs") {
		t.Fatal("expected error for empty inputs")
	}
}

func TestValidateRunInputPaths(t *testing.T) {
	r := validRun()
	r.Inputs = []Input{{Data: "", Mapper: "m.json"}}
	if !hasIssue(ValidateRun(r), SeverityError, "inputs[0].data") {
		t.Fatal("expected error for empty data path")
	}
}

func TestValidateRunBadAdminLevel(t *testing.T) {
	r := validRun()
	r.Geocoding.AdminLevel = "admin9"
	if !hasIssue(ValidateRun(r), SeverityError, "admin_level") {
		t.Fatal("expected error for bad admin level")
	}
}

func TestValidateRunGazetteerDSN(t *testing.T) {
	r := validRun()
	r.Geocoding.Gazetteer.Sqlite.DSN = ""
	if !hasIssue(ValidateRun(r), SeverityError, "sqlite.dsn") {
		t.Fatal("expected error for missing sqlite dsn")
	}
}

func TestValidateRunPersistCacheWithoutSqlite(t *testing.T) {
	r := validRun()
	r.Geocoding.Gazetteer = Gazetteer{Kind: "none"}
	r.Geocoding.PersistCache = true
	if !hasIssue(ValidateRun(r), SeverityWarning, "persist_cache") {
		t.Fatal("expected warning for persist_cache without sqlite")
	}
}

func TestValidateRunMetrics(t *testing.T) {
	r := validRun()
	r.Metrics = Metrics{Kind: "prompush", Options: Options{}}
	if !hasIssue(ValidateRun(r), SeverityError, "metrics.options.url") {
		t.Fatal("expected error for missing push url")
	}

	r.Metrics = Metrics{Kind: "bogus", Options: Options{}}
	if !hasIssue(ValidateRun(r), SeverityError, "metrics.kind") {
		t.Fatal("expected error for unknown metrics kind")
	}
}

func TestValidateRunRuntime(t *testing.T) {
	r := validRun()
	r.Runtime.Workers = -1
	if !hasIssue(ValidateRun(r), SeverityError, "runtime.workers") {
		t.Fatal("expected error for negative workers")
	}
}
