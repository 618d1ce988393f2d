// Package postgres implements a Postgres-backed gazetteer.Store using pgx
// v5. It suits deployments where many normalization workers share one
// central reference database instead of shipping a SQLite file per host.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"

	"geonorm/internal/gazetteer"
)

// Config holds Postgres store configuration.
type Config struct {
	// DSN is the connection string for pgxpool (e.g., postgresql://...).
	DSN string

	// Table is the fully qualified reference table name. When empty,
	// "public.admin_places" is used. The table shape matches the sqlite
	// backend: level, country, admin1..admin3, geometry (GeoJSON text).
	Table string
}

// Store is a Postgres-backed gazetteer.Store.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// NewStore constructs a Store and returns a Close function for cleanup.
func NewStore(ctx context.Context, cfg Config) (*Store, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = "public.admin_places"
	}
	return &Store{pool: pool, table: table}, func() { pool.Close() }, nil
}

// Load implements gazetteer.Store.
func (s *Store) Load(ctx context.Context, level gazetteer.Level) (*gazetteer.Reference, error) {
	q := fmt.Sprintf(
		`SELECT country, admin1, admin2, admin3, geometry FROM %s
		 WHERE level = $1 ORDER BY country, admin1, admin2, admin3`, s.table)
	rows, err := s.pool.Query(ctx, q, int(level))
	if err != nil {
		return nil, fmt.Errorf("postgres: load %s: %w", level, err)
	}
	defer rows.Close()

	ref := &gazetteer.Reference{Level: level}
	for rows.Next() {
		var p gazetteer.Place
		var geom []byte
		if err := rows.Scan(&p.Country, &p.Admin1, &p.Admin2, &p.Admin3, &geom); err != nil {
			return nil, fmt.Errorf("postgres: scan place: %w", err)
		}
		if len(geom) > 0 {
			g, err := geojson.UnmarshalGeometry(geom)
			if err != nil {
				return nil, fmt.Errorf("postgres: decode geometry: %w", err)
			}
			p.Geometry = g.Geometry()
		}
		ref.Places = append(ref.Places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load %s: %w", level, err)
	}
	return ref, nil
}
