package responder

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ers/dispatch/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, user_id, username, name, contact_number, status, updated_at`

func scan(row pgx.Row) (*Responder, error) {
	var r Responder
	err := row.Scan(&r.ID, &r.UserID, &r.Username, &r.Name, &r.ContactNumber, &r.Status, &r.UpdatedAt)
	return &r, err
}

func (p *repoPG) GetByID(ctx context.Context, id int64) (*Responder, error) {
	r, err := scan(db.Conn(ctx, p.pool).QueryRow(ctx, `SELECT `+cols+` FROM responders WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get responder %d: %w", id, err)
	}
	return r, nil
}

func (p *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Responder, int, error) {
	conn := db.Conn(ctx, p.pool)

	where := ``
	args := []interface{}{}
	if status != "" {
		where = ` WHERE status = $1`
		args = append(args, status)
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM responders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count responders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM responders%s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		cols, where, len(args)+1, len(args)+2)
	rows, err := conn.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list responders: %w", err)
	}
	defer rows.Close()

	items := []*Responder{}
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

func (p *repoPG) SetStatus(ctx context.Context, id int64, status string) error {
	tag, err := db.Conn(ctx, p.pool).Exec(ctx,
		`UPDATE responders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set responder %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
