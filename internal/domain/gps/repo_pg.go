package gps

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ers/dispatch/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, dispatch_id, latitude, longitude, latlng, recorded_at`

func scan(row pgx.Row) (*Point, error) {
	var p Point
	err := row.Scan(&p.ID, &p.DispatchID, &p.Latitude, &p.Longitude, &p.LatLng, &p.RecordedAt)
	return &p, err
}

func (r *repoPG) Append(ctx context.Context, p *Point) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO gps_points (dispatch_id, latitude, longitude, latlng)
		VALUES ($1, $2, $3, $4)
		RETURNING id, recorded_at`,
		p.DispatchID, p.Latitude, p.Longitude, p.LatLng,
	).Scan(&p.ID, &p.RecordedAt)
	if err != nil {
		return fmt.Errorf("append gps point: %w", err)
	}
	return nil
}

func (r *repoPG) History(ctx context.Context, dispatchID int64) ([]*Point, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+cols+` FROM gps_points WHERE dispatch_id = $1 ORDER BY id`, dispatchID)
	if err != nil {
		return nil, fmt.Errorf("gps history for dispatch %d: %w", dispatchID, err)
	}
	defer rows.Close()

	items := []*Point{}
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) Latest(ctx context.Context, dispatchID int64) (*Point, error) {
	p, err := scan(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+cols+` FROM gps_points WHERE dispatch_id = $1 ORDER BY id DESC LIMIT 1`, dispatchID))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest gps point for dispatch %d: %w", dispatchID, err)
	}
	return p, nil
}
