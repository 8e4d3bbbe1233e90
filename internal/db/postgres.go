package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS vehicles (
	id               TEXT PRIMARY KEY,
	code             TEXT UNIQUE NOT NULL,
	model            TEXT NOT NULL,
	year             INTEGER NOT NULL,
	organization     TEXT NOT NULL,
	current_odometer BIGINT NOT NULL DEFAULT 0 CHECK (current_odometer >= 0),
	registered_at    TIMESTAMPTZ NOT NULL,
	active           BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS odometer_readings (
	id          TEXT PRIMARY KEY,
	seq         BIGSERIAL,
	vehicle_id  TEXT NOT NULL REFERENCES vehicles (id),
	odometer    BIGINT NOT NULL CHECK (odometer >= 0),
	recorded_at TIMESTAMPTZ NOT NULL,
	notes       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS odometer_readings_vehicle_idx ON odometer_readings (vehicle_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS maintenance_kinds (
	id                 TEXT PRIMARY KEY,
	name               TEXT UNIQUE NOT NULL,
	distance_interval  BIGINT NOT NULL CHECK (distance_interval > 0),
	time_interval_days INTEGER NOT NULL CHECK (time_interval_days > 0),
	description        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS maintenance_events (
	id                TEXT PRIMARY KEY,
	seq               BIGSERIAL UNIQUE,
	vehicle_id        TEXT NOT NULL REFERENCES vehicles (id),
	kind_id           TEXT NOT NULL REFERENCES maintenance_kinds (id),
	odometer          BIGINT NOT NULL CHECK (odometer >= 0),
	performed_at      TIMESTAMPTZ NOT NULL,
	next_due_odometer BIGINT NOT NULL,
	next_due_at       TIMESTAMPTZ NOT NULL,
	notes             TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS maintenance_events_latest_idx
	ON maintenance_events (vehicle_id, kind_id, performed_at DESC, seq DESC);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT UNIQUE NOT NULL,
	email         TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	first_name    TEXT NOT NULL DEFAULT '',
	last_name     TEXT NOT NULL DEFAULT '',
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	last_login    TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
`

// PostgresStore is the PostgreSQL RecordStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool and verifies it.
func NewPostgresStore(ctx context.Context, url string, maxConns int32) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db url: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Pool exposes the underlying pool for collaborators sharing the connection.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const vehicleColumns = `id, code, model, year, organization, current_odometer, registered_at, active`

func scanVehicle(row pgx.Row) (*models.Vehicle, error) {
	var v models.Vehicle
	err := row.Scan(&v.ID, &v.Code, &v.Model, &v.Year, &v.Organization, &v.CurrentOdometer, &v.RegisteredAt, &v.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrVehicleNotFound
		}
		return nil, fmt.Errorf("scan vehicle: %w", err)
	}
	return &v, nil
}

// InsertVehicle inserts a vehicle and its optional initial reading in one transaction.
func (s *PostgresStore) InsertVehicle(ctx context.Context, vehicle models.Vehicle, initial *models.OdometerReading) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO vehicles (`+vehicleColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			vehicle.ID, vehicle.Code, vehicle.Model, vehicle.Year, vehicle.Organization,
			vehicle.CurrentOdometer, vehicle.RegisteredAt, vehicle.Active,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return models.ErrVehicleExists
			}
			return fmt.Errorf("insert vehicle: %w", err)
		}
		if initial != nil {
			if err := insertReading(ctx, tx, *initial); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertReading(ctx context.Context, tx pgx.Tx, r models.OdometerReading) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO odometer_readings (id, vehicle_id, odometer, recorded_at, notes) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.VehicleID, r.Odometer, r.RecordedAt, r.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert odometer reading: %w", err)
	}
	return nil
}

// FindVehicle finds an active vehicle by its normalized code.
func (s *PostgresStore) FindVehicle(ctx context.Context, code string) (*models.Vehicle, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE code = $1 AND active`, code)
	return scanVehicle(row)
}

// ListVehicles returns active vehicles ordered by code.
func (s *PostgresStore) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE active ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()

	vehicles := []models.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}

// UpdateOdometer locks the vehicle row, applies the monotonic gate and appends the reading.
func (s *PostgresStore) UpdateOdometer(ctx context.Context, code string, reading models.OdometerReading) (*models.Vehicle, error) {
	var updated *models.Vehicle
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE code = $1 AND active FOR UPDATE`, code)
		v, err := scanVehicle(row)
		if err != nil {
			return err
		}
		if reading.Odometer < v.CurrentOdometer {
			return models.ErrOdometerRegression
		}
		if _, err := tx.Exec(ctx, `UPDATE vehicles SET current_odometer = $1 WHERE id = $2`, reading.Odometer, v.ID); err != nil {
			return fmt.Errorf("update odometer: %w", err)
		}
		reading.VehicleID = v.ID
		if err := insertReading(ctx, tx, reading); err != nil {
			return err
		}
		v.CurrentOdometer = reading.Odometer
		updated = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListOdometerReadings returns up to limit readings, newest first.
func (s *PostgresStore) ListOdometerReadings(ctx context.Context, vehicleID string, limit int) ([]models.OdometerReading, error) {
	query := `SELECT id, vehicle_id, odometer, recorded_at, notes FROM odometer_readings
		WHERE vehicle_id = $1 ORDER BY recorded_at DESC, seq DESC`
	args := []any{vehicleID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query odometer readings: %w", err)
	}
	defer rows.Close()

	readings := []models.OdometerReading{}
	for rows.Next() {
		var r models.OdometerReading
		if err := rows.Scan(&r.ID, &r.VehicleID, &r.Odometer, &r.RecordedAt, &r.Notes); err != nil {
			return nil, fmt.Errorf("scan odometer reading: %w", err)
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// InsertKind adds a catalog entry unless one with the same id or name exists.
func (s *PostgresStore) InsertKind(ctx context.Context, kind models.MaintenanceKind) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO maintenance_kinds (id, name, distance_interval, time_interval_days, description)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
		kind.ID, kind.Name, kind.DistanceInterval, kind.TimeIntervalDays, kind.Description,
	)
	if err != nil {
		return false, fmt.Errorf("insert maintenance kind: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const kindColumns = `id, name, distance_interval, time_interval_days, description`

func scanKind(row pgx.Row) (*models.MaintenanceKind, error) {
	var k models.MaintenanceKind
	if err := row.Scan(&k.ID, &k.Name, &k.DistanceInterval, &k.TimeIntervalDays, &k.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrMaintenanceKindNotFound
		}
		return nil, fmt.Errorf("scan maintenance kind: %w", err)
	}
	return &k, nil
}

// FindKindByName looks up a catalog entry by its exact name.
func (s *PostgresStore) FindKindByName(ctx context.Context, name string) (*models.MaintenanceKind, error) {
	return scanKind(s.pool.QueryRow(ctx, `SELECT `+kindColumns+` FROM maintenance_kinds WHERE name = $1`, name))
}

// ListKinds returns the catalog ordered by distance interval, then name.
func (s *PostgresStore) ListKinds(ctx context.Context) ([]models.MaintenanceKind, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+kindColumns+` FROM maintenance_kinds ORDER BY distance_interval, name`)
	if err != nil {
		return nil, fmt.Errorf("query maintenance kinds: %w", err)
	}
	defer rows.Close()

	kinds := []models.MaintenanceKind{}
	for rows.Next() {
		k, err := scanKind(rows)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, *k)
	}
	return kinds, rows.Err()
}

const eventColumns = `id, seq, vehicle_id, kind_id, odometer, performed_at, next_due_odometer, next_due_at, notes`

func scanEvent(row pgx.Row) (*models.MaintenanceEvent, error) {
	var e models.MaintenanceEvent
	err := row.Scan(&e.ID, &e.Seq, &e.VehicleID, &e.KindID, &e.Odometer, &e.PerformedAt, &e.NextDueOdometer, &e.NextDueAt, &e.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrEventNotFound
		}
		return nil, fmt.Errorf("scan maintenance event: %w", err)
	}
	return &e, nil
}

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]models.MaintenanceEvent, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query maintenance events: %w", err)
	}
	defer rows.Close()

	events := []models.MaintenanceEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// AppendEvent inserts a maintenance event; the sequence comes from the table's serial.
func (s *PostgresStore) AppendEvent(ctx context.Context, event models.MaintenanceEvent) (*models.MaintenanceEvent, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO maintenance_events (id, vehicle_id, kind_id, odometer, performed_at, next_due_odometer, next_due_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING seq`,
		event.ID, event.VehicleID, event.KindID, event.Odometer, event.PerformedAt,
		event.NextDueOdometer, event.NextDueAt, event.Notes,
	).Scan(&event.Seq)
	if err != nil {
		return nil, fmt.Errorf("insert maintenance event: %w", err)
	}
	return &event, nil
}

// LatestEvent returns the latest event of a kind for a vehicle.
func (s *PostgresStore) LatestEvent(ctx context.Context, vehicleID, kindID string) (*models.MaintenanceEvent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM maintenance_events
		WHERE vehicle_id = $1 AND kind_id = $2
		ORDER BY performed_at DESC, seq DESC LIMIT 1`,
		vehicleID, kindID,
	)
	return scanEvent(row)
}

// LatestEvents returns the latest event of every kind serviced on a vehicle, keyed by kind id.
func (s *PostgresStore) LatestEvents(ctx context.Context, vehicleID string) (map[string]models.MaintenanceEvent, error) {
	events, err := s.queryEvents(ctx,
		`SELECT DISTINCT ON (kind_id) `+eventColumns+` FROM maintenance_events
		WHERE vehicle_id = $1
		ORDER BY kind_id, performed_at DESC, seq DESC`,
		vehicleID,
	)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]models.MaintenanceEvent, len(events))
	for _, e := range events {
		latest[e.KindID] = e
	}
	return latest, nil
}

// ListEvents returns all events of a vehicle, newest first.
func (s *PostgresStore) ListEvents(ctx context.Context, vehicleID string) ([]models.MaintenanceEvent, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM maintenance_events WHERE vehicle_id = $1 ORDER BY performed_at DESC, seq DESC`,
		vehicleID,
	)
}

// Close releases the pool.
func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
