package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"parking-layout/internal/common/clock"
	"parking-layout/internal/plaza/models"
	"parking-layout/internal/store/migrations"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnknownLevel       = errors.New("unknown level")
	ErrUnknownVehicleType = errors.New("unknown vehicle type")
)

// ZoneRow is a zone as stored. Geometry is kept as the polygon text the
// client sent; reading it back is the client's job.
type ZoneRow struct {
	ID            string       `json:"id"`
	LevelID       string       `json:"level_id"`
	Code          string       `json:"code"`
	VehicleTypeID string       `json:"vehicle_type_id"`
	State         models.State `json:"state"`
	Geometry      string       `json:"geometry"`
}

// ZonePatch holds the fields of a partial update. Nil fields are left alone.
type ZonePatch struct {
	Geometry      *string
	Code          *string
	VehicleTypeID *string
	State         *models.State
}

func (p ZonePatch) Empty() bool {
	return p.Geometry == nil && p.Code == nil && p.VehicleTypeID == nil && p.State == nil
}

// ============================================================
// SQLite Repository
// ============================================================

type Repository struct {
	db    *sql.DB
	clock clock.Clock
}

func New(db *sql.DB, clk clock.Clock) *Repository {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Repository{db: db, clock: clk}
}

// Init applies pending migrations, vehicle type seed included.
func (r *Repository) Init(ctx context.Context) error {
	if err := migrations.Apply(ctx, r.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) now() string {
	return r.clock.Now().UTC().Format(time.RFC3339Nano)
}

// ============================================================
// Levels
// ============================================================

func (r *Repository) ListLevels(ctx context.Context) ([]models.Level, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, facility_id, name, plan_image_url
        FROM levels
        ORDER BY created_at, rowid
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := []models.Level{}
	for rows.Next() {
		var l models.Level
		if err := rows.Scan(&l.ID, &l.FacilityID, &l.Name, &l.PlanImageURL); err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

func (r *Repository) GetLevel(ctx context.Context, id string) (models.Level, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, facility_id, name, plan_image_url
        FROM levels
        WHERE id = ?
    `, id)

	var l models.Level
	if err := row.Scan(&l.ID, &l.FacilityID, &l.Name, &l.PlanImageURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Level{}, fmt.Errorf("level %s: %w", id, ErrNotFound)
		}
		return models.Level{}, err
	}
	return l, nil
}

// CreateLevel stores l under a fresh id.
func (r *Repository) CreateLevel(ctx context.Context, l models.Level) (models.Level, error) {
	l.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO levels (id, facility_id, name, plan_image_url, created_at)
        VALUES (?, ?, ?, ?, ?)
    `, l.ID, l.FacilityID, l.Name, l.PlanImageURL, r.now())
	if err != nil {
		return models.Level{}, fmt.Errorf("insert level: %w", err)
	}
	return l, nil
}

// ============================================================
// Zones
// ============================================================

const zoneColumns = `id, level_id, code, vehicle_type_id, state, geometry`

func scanZone(s interface{ Scan(...any) error }) (ZoneRow, error) {
	var z ZoneRow
	err := s.Scan(&z.ID, &z.LevelID, &z.Code, &z.VehicleTypeID, &z.State, &z.Geometry)
	return z, err
}

// ListZones returns the zones of a level in creation order. An unknown level
// is ErrNotFound.
func (r *Repository) ListZones(ctx context.Context, levelID string) ([]ZoneRow, error) {
	if _, err := r.GetLevel(ctx, levelID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
        SELECT `+zoneColumns+`
        FROM zones
        WHERE level_id = ?
        ORDER BY created_at, rowid
    `, levelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	zones := []ZoneRow{}
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

func (r *Repository) GetZone(ctx context.Context, id string) (ZoneRow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+zoneColumns+` FROM zones WHERE id = ?`, id)
	z, err := scanZone(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ZoneRow{}, fmt.Errorf("zone %s: %w", id, ErrNotFound)
		}
		return ZoneRow{}, err
	}
	return z, nil
}

// CreateZone stores z under a fresh id. The level and vehicle type must
// exist.
func (r *Repository) CreateZone(ctx context.Context, z ZoneRow) (ZoneRow, error) {
	if _, err := r.GetLevel(ctx, z.LevelID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ZoneRow{}, fmt.Errorf("create zone: %w", ErrUnknownLevel)
		}
		return ZoneRow{}, err
	}
	if err := r.checkVehicleType(ctx, z.VehicleTypeID); err != nil {
		return ZoneRow{}, fmt.Errorf("create zone: %w", err)
	}

	z.ID = uuid.NewString()
	now := r.now()
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO zones (id, level_id, code, vehicle_type_id, state, geometry, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, z.ID, z.LevelID, z.Code, z.VehicleTypeID, string(z.State), z.Geometry, now, now)
	if err != nil {
		return ZoneRow{}, fmt.Errorf("insert zone: %w", err)
	}
	return z, nil
}

// UpdateZone applies the non-nil fields of p and returns the stored zone.
func (r *Repository) UpdateZone(ctx context.Context, id string, p ZonePatch) (ZoneRow, error) {
	if p.VehicleTypeID != nil {
		if err := r.checkVehicleType(ctx, *p.VehicleTypeID); err != nil {
			return ZoneRow{}, fmt.Errorf("update zone: %w", err)
		}
	}

	sets := []string{"updated_at = ?"}
	args := []any{r.now()}
	if p.Geometry != nil {
		sets = append(sets, "geometry = ?")
		args = append(args, *p.Geometry)
	}
	if p.Code != nil {
		sets = append(sets, "code = ?")
		args = append(args, *p.Code)
	}
	if p.VehicleTypeID != nil {
		sets = append(sets, "vehicle_type_id = ?")
		args = append(args, *p.VehicleTypeID)
	}
	if p.State != nil {
		sets = append(sets, "state = ?")
		args = append(args, string(*p.State))
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `UPDATE zones SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return ZoneRow{}, fmt.Errorf("update zone: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ZoneRow{}, fmt.Errorf("zone %s: %w", id, ErrNotFound)
	}
	return r.GetZone(ctx, id)
}

func (r *Repository) DeleteZone(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM zones WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete zone: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("zone %s: %w", id, ErrNotFound)
	}
	return nil
}

// ============================================================
// Vehicle types
// ============================================================

func (r *Repository) VehicleTypes(ctx context.Context) ([]models.VehicleType, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM vehicle_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := []models.VehicleType{}
	for rows.Next() {
		var vt models.VehicleType
		if err := rows.Scan(&vt.ID, &vt.Name); err != nil {
			return nil, err
		}
		types = append(types, vt)
	}
	return types, rows.Err()
}

func (r *Repository) checkVehicleType(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM vehicle_types WHERE id = ?)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrUnknownVehicleType
	}
	return nil
}

// OpenSQLite opens the sqlite database at dbPath, creating its directory.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000&_pragma=foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
