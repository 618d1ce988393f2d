// Package batch runs a normalization job over one or more annotated inputs.
// Inputs share a single coordinate cache for the whole run: each file
// normalizes against a private snapshot and its additions merge back only on
// success, so one failing file never poisons the cache the others use.
package batch

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"geonorm/internal/config"
	"geonorm/internal/gazetteer"
	"geonorm/internal/gazetteer/postgres"
	"geonorm/internal/gazetteer/sqlitestore"
	"geonorm/internal/geocode"
	"geonorm/internal/metrics"
	"geonorm/internal/normalize"
	"geonorm/internal/parser/csv"
	"geonorm/internal/schema"
)

// FileResult reports the outcome for one input.
type FileResult struct {
	Input       config.Input
	Rows        int
	SkippedRows int
	OutputPath  string
	ReportPath  string
	Err         error
}

// Summary is the outcome of a whole run.
type Summary struct {
	RunID   string
	Results []FileResult
	Failed  int
}

// Run executes the configured job. A per-input failure is recorded in the
// summary and does not stop the other inputs; Run returns an error only for
// setup problems or when at least one input failed.
func Run(ctx context.Context, cfg *config.Run) (*Summary, error) {
	for _, iss := range config.ValidateRun(*cfg) {
		if iss.Severity == config.SeverityError {
			return nil, fmt.Errorf("batch: config: %w", iss)
		}
		log.Printf("config warning: %v", iss)
	}

	level := cfg.Geocoding.AdminLevel
	if level == "" {
		level = "admin2"
	}
	depth, err := gazetteer.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	store, sqliteStore, closeStore, err := openGazetteer(ctx, cfg.Geocoding.Gazetteer)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		defer closeStore()
	}

	shared := geocode.NewCoordCache()
	if cfg.Geocoding.PersistCache && sqliteStore != nil {
		rows, err := sqliteStore.LoadCache(ctx)
		if err != nil {
			return nil, fmt.Errorf("batch: seed cache: %w", err)
		}
		for _, r := range rows {
			shared.Add(geocode.CacheEntry{
				Lng: r.Lng, Lat: r.Lat,
				Country: r.Country, Admin1: r.Admin1, Admin2: r.Admin2, Admin3: r.Admin3,
			})
		}
		log.Printf("seeded coordinate cache with %d entries", shared.Len())
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("batch: output dir: %w", err)
	}

	parserOpts := csv.Options{
		HasHeader:  cfg.Parser.Options.Bool("has_header", true),
		Comma:      cfg.Parser.Options.Rune("comma", ','),
		TrimSpace:  cfg.Parser.Options.Bool("trim_space", false),
		RawStrings: cfg.Parser.Options.Bool("raw_strings", false),
		HeaderMap:  cfg.Parser.Options.StringMap("header_map"),
	}

	summary := &Summary{
		RunID:   uuid.NewString(),
		Results: make([]FileResult, len(cfg.Inputs)),
	}
	log.Printf("run %s: %d input(s), depth %s", summary.RunID, len(cfg.Inputs), depth)

	workers := cfg.Runtime.Workers
	if workers < 1 {
		workers = 1
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, in := range cfg.Inputs {
		g.Go(func() error {
			// Private snapshot; merged back only when the file succeeds.
			local := geocode.NewCoordCache()
			mu.Lock()
			local.Merge(shared)
			mu.Unlock()

			start := time.Now()
			res := processInput(gctx, in, processOptions{
				Job:         cfg.Job,
				Dir:         cfg.Output.Dir,
				Depth:       depth,
				Store:       store,
				Cache:       local,
				Parser:      parserOpts,
				StrictDates: cfg.Geocoding.ValidateDates,
			})
			metrics.RecordStage(cfg.Job, "input", res.Err, time.Since(start))

			mu.Lock()
			summary.Results[i] = res
			if res.Err != nil {
				summary.Failed++
			} else {
				shared.Merge(local)
			}
			mu.Unlock()

			if res.Err != nil {
				log.Printf("input %s: %v", in.Data, res.Err)
			} else {
				log.Printf("input %s: %d rows -> %s", in.Data, res.Rows, res.OutputPath)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	if cfg.Geocoding.PersistCache && sqliteStore != nil {
		rows := make([]sqlitestore.CacheRow, 0, shared.Len())
		for _, e := range shared.Entries() {
			rows = append(rows, sqlitestore.CacheRow{
				Lng: e.Lng, Lat: e.Lat,
				Country: e.Country, Admin1: e.Admin1, Admin2: e.Admin2, Admin3: e.Admin3,
			})
		}
		if err := sqliteStore.SaveCache(ctx, rows); err != nil {
			return summary, fmt.Errorf("batch: persist cache: %w", err)
		}
	}

	if summary.Failed > 0 {
		return summary, fmt.Errorf("batch: %d of %d input(s) failed", summary.Failed, len(cfg.Inputs))
	}
	return summary, nil
}

type processOptions struct {
	Job         string
	Dir         string
	Depth       gazetteer.Level
	Store       gazetteer.Store
	Cache       *geocode.CoordCache
	Parser      csv.Options
	StrictDates bool
}

func processInput(ctx context.Context, in config.Input, opt processOptions) FileResult {
	res := FileResult{Input: in}

	mapper, err := schema.LoadFile(in.Mapper)
	if err != nil {
		res.Err = err
		return res
	}

	f, err := os.Open(in.Data)
	if err != nil {
		res.Err = err
		return res
	}
	table, skipped, err := csv.NewParser(opt.Parser).Parse(f)
	f.Close()
	if err != nil {
		res.Err = fmt.Errorf("parse %s: %w", in.Data, err)
		return res
	}
	res.SkippedRows = skipped

	out, err := normalize.Normalize(ctx, table, mapper, normalize.Options{
		Depth:         opt.Depth,
		Store:         opt.Store,
		Cache:         opt.Cache,
		ValidateDates: opt.StrictDates,
		Job:           opt.Job,
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Rows = out.Frame.Len()

	res.OutputPath, res.ReportPath, res.Err = writeOutputs(opt.Dir, in.Data, out)
	return res
}

// openGazetteer builds the configured reference backend. The sqlite store is
// also returned concretely for cache persistence.
func openGazetteer(ctx context.Context, g config.Gazetteer) (gazetteer.Store, *sqlitestore.Store, func(), error) {
	switch g.Kind {
	case "", "none":
		return nil, nil, nil, nil
	case "sqlite":
		s, closeFn, err := sqlitestore.NewStore(ctx, sqlitestore.Config{DSN: g.Sqlite.DSN})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("batch: sqlite gazetteer: %w", err)
		}
		return s, s, closeFn, nil
	case "postgres":
		s, closeFn, err := postgres.NewStore(ctx, postgres.Config{DSN: g.Postgres.DSN, Table: g.Postgres.Table})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("batch: postgres gazetteer: %w", err)
		}
		return s, nil, closeFn, nil
	}
	return nil, nil, nil, fmt.Errorf("batch: unknown gazetteer kind %q", g.Kind)
}
