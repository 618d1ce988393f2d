// Package sqlitestore implements a SQLite-backed gazetteer.Store using
// database/sql. An embedded database keeps batch runs self-contained: the
// reference tables ship as a single file next to the data, and the
// coordinate cache can be persisted between runs without a server.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"geonorm/internal/gazetteer"

	// SQLite driver; replace with your preferred driver if desired.
	_ "modernc.org/sqlite" // alternative: github.com/mattn/go-sqlite3
)

// Config holds SQLite store configuration.
type Config struct {
	// DSN is passed directly to database/sql; for example:
	//
	//	"file:reference.db?cache=shared"
	//	"reference.db"
	DSN string
}

// Store is a SQLite-backed gazetteer.Store.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite connection, ensures the schema exists, and
// returns a Store plus a Close function for cleanup.
func NewStore(ctx context.Context, cfg Config) (*Store, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlitestore: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlitestore: open: %w", err)
	}

	// Fail fast on invalid DSNs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return s, func() { db.Close() }, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS admin_places (
	level    INTEGER NOT NULL,
	country  TEXT NOT NULL,
	admin1   TEXT NOT NULL DEFAULT '',
	admin2   TEXT NOT NULL DEFAULT '',
	admin3   TEXT NOT NULL DEFAULT '',
	geometry TEXT
);
CREATE INDEX IF NOT EXISTS admin_places_level ON admin_places(level);
CREATE TABLE IF NOT EXISTS coord_cache (
	lng     REAL NOT NULL,
	lat     REAL NOT NULL,
	country TEXT,
	admin1  TEXT,
	admin2  TEXT,
	admin3  TEXT,
	PRIMARY KEY (lng, lat)
);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlitestore: ensure schema: %w", err)
	}
	return nil
}

// Load implements gazetteer.Store. Geometry cells hold GeoJSON text and may
// be NULL for name-only rows.
func (s *Store) Load(ctx context.Context, level gazetteer.Level) (*gazetteer.Reference, error) {
	const q = `SELECT country, admin1, admin2, admin3, geometry
	           FROM admin_places WHERE level = ? ORDER BY country, admin1, admin2, admin3`
	rows, err := s.db.QueryContext(ctx, q, int(level))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load %s: %w", level, err)
	}
	defer rows.Close()

	ref := &gazetteer.Reference{Level: level}
	for rows.Next() {
		var p gazetteer.Place
		var geom sql.NullString
		if err := rows.Scan(&p.Country, &p.Admin1, &p.Admin2, &p.Admin3, &geom); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan place: %w", err)
		}
		if geom.Valid && geom.String != "" {
			g, err := geojson.UnmarshalGeometry([]byte(geom.String))
			if err != nil {
				return nil, fmt.Errorf("sqlitestore: decode geometry: %w", err)
			}
			p.Geometry = g.Geometry()
		}
		ref.Places = append(ref.Places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: load %s: %w", level, err)
	}
	return ref, nil
}

// InsertPlaces seeds the reference table for a level inside a single
// transaction. It is intended for the tooling that imports boundary data;
// normalization itself never writes admin_places.
func (s *Store) InsertPlaces(ctx context.Context, level gazetteer.Level, places []gazetteer.Place) error {
	if len(places) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO admin_places (level, country, admin1, admin2, admin3, geometry) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlitestore: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range places {
		p := &places[i]
		var geom any
		if p.Geometry != nil {
			data, err := json.Marshal(geojson.NewGeometry(p.Geometry))
			if err != nil {
				return fmt.Errorf("sqlitestore: encode geometry: %w", err)
			}
			geom = string(data)
		}
		if _, err := stmt.ExecContext(ctx, int(level), p.Country, p.Admin1, p.Admin2, p.Admin3, geom); err != nil {
			return fmt.Errorf("sqlitestore: insert place: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit: %w", err)
	}
	return nil
}

// CacheRow is one persisted coordinate-cache entry. Admin fields are nil
// when the point did not resolve at that depth.
type CacheRow struct {
	Lng, Lat float64
	Country  any
	Admin1   any
	Admin2   any
	Admin3   any
}

// SaveCache upserts coordinate-cache rows. The cache is append-only in
// memory, so REPLACE semantics are safe: a pair is only ever re-written
// with the same resolution.
func (s *Store) SaveCache(ctx context.Context, rows []CacheRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO coord_cache (lng, lat, country, admin1, admin2, admin3) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlitestore: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Lng, r.Lat, r.Country, r.Admin1, r.Admin2, r.Admin3); err != nil {
			return fmt.Errorf("sqlitestore: insert cache row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit: %w", err)
	}
	return nil
}

// LoadCache reads every persisted coordinate-cache row.
func (s *Store) LoadCache(ctx context.Context) ([]CacheRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lng, lat, country, admin1, admin2, admin3 FROM coord_cache`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load cache: %w", err)
	}
	defer rows.Close()

	var out []CacheRow
	for rows.Next() {
		var r CacheRow
		var c, a1, a2, a3 sql.NullString
		if err := rows.Scan(&r.Lng, &r.Lat, &c, &a1, &a2, &a3); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan cache row: %w", err)
		}
		r.Country = nullable(c)
		r.Admin1 = nullable(a1)
		r.Admin2 = nullable(a2)
		r.Admin3 = nullable(a3)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: load cache: %w", err)
	}
	return out, nil
}

func nullable(v sql.NullString) any {
	if !v.Valid {
		return nil
	}
	return v.String
}
