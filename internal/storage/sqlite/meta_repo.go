package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rpimon/internal/domain"
)

const upsertMetaQuery = `INSERT INTO metric_meta (path, unit, family, title, registered_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET unit = excluded.unit, family = excluded.family, title = excluded.title`

const listMetaQuery = `SELECT path, unit, family, title, registered_at FROM metric_meta ORDER BY path`

// MetaRepository persists the unit registered for each base path. The first
// registration time of a path is kept across re-registrations.
type MetaRepository struct {
	db *sql.DB
}

func NewMetaRepository(db *sql.DB) domain.MetaRepository {
	return &MetaRepository{db: db}
}

func (r *MetaRepository) Upsert(ctx context.Context, m domain.Meta) error {
	if m.RegisteredAt.IsZero() {
		m.RegisteredAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, upsertMetaQuery,
		m.Path.String(), m.Unit.String(), string(m.Family), m.Title, m.RegisteredAt)
	if err != nil {
		return fmt.Errorf("failed to upsert metadata for %s: %w", m.Path, err)
	}
	return nil
}

func (r *MetaRepository) List(ctx context.Context) ([]domain.Meta, error) {
	rows, err := r.db.QueryContext(ctx, listMetaQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	var metas []domain.Meta
	for rows.Next() {
		var (
			m                  domain.Meta
			path, unit, family string
		)
		if err := rows.Scan(&path, &unit, &family, &m.Title, &m.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		u, err := domain.ParseUnit(unit)
		if err != nil {
			return nil, fmt.Errorf("metadata for %s: %w", path, err)
		}
		m.Path = domain.MetricPath(path)
		m.Unit = u
		m.Family = domain.Family(family)
		metas = append(metas, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return metas, nil
}
