package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/Franciscooxz/Neo-Tracker/internal/neo"
)

var _ neo.Sink = (*PostgresSink)(nil)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS neo_objects (
		id                       TEXT PRIMARY KEY,
		name                     TEXT NOT NULL,
		nasa_jpl_url             TEXT NOT NULL DEFAULT '',
		diameter_min_km          DOUBLE PRECISION NOT NULL,
		diameter_max_km          DOUBLE PRECISION NOT NULL,
		absolute_magnitude_h     DOUBLE PRECISION NOT NULL,
		is_potentially_hazardous BOOLEAN NOT NULL,
		is_sentry_object         BOOLEAN NOT NULL,
		risk_score               INTEGER NOT NULL,
		risk_level               TEXT NOT NULL,
		monitoring_priority      TEXT NOT NULL,
		observation_frequency    TEXT NOT NULL,
		impact_energy_mt         DOUBLE PRECISION NOT NULL,
		updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS close_approaches (
		neo_id                TEXT NOT NULL REFERENCES neo_objects(id) ON DELETE CASCADE,
		approach_at           TIMESTAMPTZ NOT NULL,
		orbiting_body         TEXT NOT NULL,
		miss_distance_km      DOUBLE PRECISION NOT NULL,
		relative_velocity_kmh DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (neo_id, approach_at, orbiting_body)
	)`,
	`CREATE INDEX IF NOT EXISTS neo_objects_risk_level_idx ON neo_objects (risk_level)`,
}

const upsertObject = `INSERT INTO neo_objects (
	id, name, nasa_jpl_url, diameter_min_km, diameter_max_km, absolute_magnitude_h,
	is_potentially_hazardous, is_sentry_object, risk_score, risk_level,
	monitoring_priority, observation_frequency, impact_energy_mt, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	nasa_jpl_url = EXCLUDED.nasa_jpl_url,
	diameter_min_km = EXCLUDED.diameter_min_km,
	diameter_max_km = EXCLUDED.diameter_max_km,
	absolute_magnitude_h = EXCLUDED.absolute_magnitude_h,
	is_potentially_hazardous = EXCLUDED.is_potentially_hazardous,
	is_sentry_object = EXCLUDED.is_sentry_object,
	risk_score = EXCLUDED.risk_score,
	risk_level = EXCLUDED.risk_level,
	monitoring_priority = EXCLUDED.monitoring_priority,
	observation_frequency = EXCLUDED.observation_frequency,
	impact_energy_mt = EXCLUDED.impact_energy_mt,
	updated_at = now()`

const upsertApproach = `INSERT INTO close_approaches (
	neo_id, approach_at, orbiting_body, miss_distance_km, relative_velocity_kmh
) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (neo_id, approach_at, orbiting_body) DO UPDATE SET
	miss_distance_km = EXCLUDED.miss_distance_km,
	relative_velocity_kmh = EXCLUDED.relative_velocity_kmh`

// PostgresSink persists every refreshed batch. It is a downstream copy; reads never hit it.
type PostgresSink struct {
	db *sql.DB
}

// OpenPostgres connects with lib/pq and checks the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pg open: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return conn, nil
}

// NewPostgresSink wraps an open pool.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Name() string { return "postgres" }

// Migrate creates the schema if it does not exist.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("pg migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

// Save upserts objs and their approaches in one transaction.
func (s *PostgresSink) Save(ctx context.Context, objs []neo.NearEarthObject) (err error) {
	if len(objs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pg begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, o := range objs {
		if _, err = tx.ExecContext(ctx, upsertObject,
			o.ID, o.Name, o.NasaJplURL, o.DiameterMinKm, o.DiameterMaxKm, o.AbsoluteMagnitudeH,
			o.IsPotentiallyHazardous, o.IsSentryObject, o.RiskScore, string(o.RiskLevel),
			o.MonitoringPriority, o.ObservationFrequency, o.ImpactEnergyMt,
		); err != nil {
			return fmt.Errorf("pg upsert object %s: %w", o.ID, err)
		}
		for _, a := range o.CloseApproaches {
			if _, err = tx.ExecContext(ctx, upsertApproach,
				o.ID, a.Date, string(a.OrbitingBody), a.MissDistanceKm, a.RelativeVelocityKmH,
			); err != nil {
				return fmt.Errorf("pg upsert approach %s: %w", o.ID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("pg commit: %w", err)
	}
	return nil
}

// Ping checks the connection for readiness reporting.
func (s *PostgresSink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
