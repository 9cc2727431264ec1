package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS areas (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    district     TEXT NOT NULL DEFAULT '',
    latitude     DOUBLE PRECISION NOT NULL DEFAULT 0,
    longitude    DOUBLE PRECISION NOT NULL DEFAULT 0,
    postal_codes TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS developments (
    id                  TEXT PRIMARY KEY,
    area_id             TEXT NOT NULL REFERENCES areas (id),
    type                TEXT NOT NULL,
    title               TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    impact_score        DOUBLE PRECISION NOT NULL CHECK (impact_score BETWEEN 0 AND 10),
    date_announced      TIMESTAMPTZ NOT NULL,
    expected_completion TIMESTAMPTZ,
    source_url          TEXT NOT NULL,
    source_publisher    TEXT NOT NULL DEFAULT '',
    source_publish_date TIMESTAMPTZ NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (area_id, title, source_url)
);`

var developmentColumns = []string{
	"id", "area_id", "type", "title", "description", "impact_score",
	"date_announced", "expected_completion", "source_url", "source_publisher",
	"source_publish_date", "created_at", "updated_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository stores areas and developments in Postgres.
type PostgresRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

var (
	_ ports.AreaRepository        = (*PostgresRepository)(nil)
	_ ports.DevelopmentRepository = (*PostgresRepository)(nil)
)

// NewPostgresRepository wires an sqlx handle.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// Open connects to dsn using the lib/pq driver.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables when they are missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

type areaRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	District    string         `db:"district"`
	Latitude    float64        `db:"latitude"`
	Longitude   float64        `db:"longitude"`
	PostalCodes pq.StringArray `db:"postal_codes"`
}

// FindByID returns (nil, nil) when no area has the id.
func (r *PostgresRepository) FindByID(ctx context.Context, areaID string) (*domain.Area, error) {
	query, args, err := psql.
		Select("id", "name", "district", "latitude", "longitude", "postal_codes").
		From("areas").
		Where(sq.Eq{"id": areaID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build area query: %w", err)
	}

	var row areaRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query area: %w", err)
	}
	return &domain.Area{
		ID:          row.ID,
		Name:        row.Name,
		District:    row.District,
		Latitude:    row.Latitude,
		Longitude:   row.Longitude,
		PostalCodes: []string(row.PostalCodes),
	}, nil
}

// UpsertArea inserts or refreshes an area row.
func (r *PostgresRepository) UpsertArea(ctx context.Context, area domain.Area) error {
	query, args, err := psql.
		Insert("areas").
		Columns("id", "name", "district", "latitude", "longitude", "postal_codes").
		Values(area.ID, area.Name, area.District, area.Latitude, area.Longitude, pq.StringArray(area.PostalCodes)).
		Suffix(`ON CONFLICT (id) DO UPDATE
              SET name = EXCLUDED.name,
                  district = EXCLUDED.district,
                  latitude = EXCLUDED.latitude,
                  longitude = EXCLUDED.longitude,
                  postal_codes = EXCLUDED.postal_codes`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build area upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert area: %w", err)
	}
	return nil
}

// Create inserts a development with a fresh id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, dev domain.Development) (domain.Development, error) {
	now := r.now().UTC()
	dev.ID = uuid.NewString()
	dev.CreatedAt, dev.UpdatedAt = now, now

	query, args, err := psql.
		Insert("developments").
		Columns(developmentColumns...).
		Values(developmentValues(dev)...).
		ToSql()
	if err != nil {
		return domain.Development{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return domain.Development{}, fmt.Errorf("insert development: %w", err)
	}
	return dev, nil
}

// FindDuplicateDevelopments returns developments in the area sharing the title
// (case-insensitive) or the source URL.
func (r *PostgresRepository) FindDuplicateDevelopments(ctx context.Context, areaID, title, sourceURL string) ([]domain.Development, error) {
	return r.selectDevelopments(ctx, sq.And{
		sq.Eq{"area_id": areaID},
		sq.Or{sq.Expr("lower(title) = lower(?)", title), sq.Eq{"source_url": sourceURL}},
	})
}

// FindByAreaID lists an area's developments, newest first.
func (r *PostgresRepository) FindByAreaID(ctx context.Context, areaID string) ([]domain.Development, error) {
	return r.selectDevelopments(ctx, sq.Eq{"area_id": areaID})
}

// FindAll lists every development, newest first.
func (r *PostgresRepository) FindAll(ctx context.Context) ([]domain.Development, error) {
	return r.selectDevelopments(ctx, nil)
}

func (r *PostgresRepository) selectDevelopments(ctx context.Context, where sq.Sqlizer) ([]domain.Development, error) {
	builder := psql.Select(developmentColumns...).From("developments").OrderBy("created_at DESC")
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	devs := []domain.Development{}
	if err := r.db.SelectContext(ctx, &devs, query, args...); err != nil {
		return nil, fmt.Errorf("query developments: %w", err)
	}
	return devs, nil
}

// BulkUpsert writes devs in one statement; rows colliding on
// (area_id, title, source_url) are updated instead of duplicated. Repeated
// keys within devs collapse to the last occurrence, since one statement may
// not update the same row twice.
func (r *PostgresRepository) BulkUpsert(ctx context.Context, devs []domain.Development) (int, error) {
	devs = collapseUpsertKeys(devs)
	if len(devs) == 0 {
		return 0, nil
	}

	now := r.now().UTC()
	builder := psql.Insert("developments").Columns(developmentColumns...)
	for _, d := range devs {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		d.CreatedAt, d.UpdatedAt = now, now
		builder = builder.Values(developmentValues(d)...)
	}
	query, args, err := builder.Suffix(`ON CONFLICT (area_id, title, source_url) DO UPDATE
              SET type = EXCLUDED.type,
                  description = EXCLUDED.description,
                  impact_score = EXCLUDED.impact_score,
                  date_announced = EXCLUDED.date_announced,
                  expected_completion = EXCLUDED.expected_completion,
                  source_publisher = EXCLUDED.source_publisher,
                  source_publish_date = EXCLUDED.source_publish_date,
                  updated_at = EXCLUDED.updated_at`).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build bulk upsert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk upsert developments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

func developmentValues(d domain.Development) []any {
	return []any{
		d.ID, d.AreaID, string(d.Type), d.Title, d.Description, d.ImpactScore,
		d.DateAnnounced, d.ExpectedCompletion, d.SourceURL, d.SourcePublisher,
		d.SourcePublishDate, d.CreatedAt, d.UpdatedAt,
	}
}

type upsertKey struct {
	areaID, title, sourceURL string
}

// collapseUpsertKeys keeps one record per (area, title, source URL): the last
// one, at the position of the first.
func collapseUpsertKeys(devs []domain.Development) []domain.Development {
	index := make(map[upsertKey]int, len(devs))
	out := make([]domain.Development, 0, len(devs))
	for _, d := range devs {
		k := upsertKey{d.AreaID, d.Title, d.SourceURL}
		if i, ok := index[k]; ok {
			out[i] = d
			continue
		}
		index[k] = len(out)
		out = append(out, d)
	}
	return out
}
