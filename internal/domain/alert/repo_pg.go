package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ers/dispatch/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `a.id, a.type, a.location, a.latitude, a.longitude, a.description, a.severity, a.status,
	a.responder_id, r.name, r.username, a.assigned_by, a.assigned_at, a.accepted_at, a.completed_at,
	a.created_at, a.updated_at`

const from = ` FROM alerts a LEFT JOIN responders r ON r.id = a.responder_id`

func scan(row pgx.Row) (*Alert, error) {
	var a Alert
	var status string
	err := row.Scan(&a.ID, &a.Type, &a.Location, &a.Latitude, &a.Longitude, &a.Description, &a.Severity, &status,
		&a.ResponderID, &a.ResponderName, &a.ResponderUsername, &a.AssignedBy, &a.AssignedAt, &a.AcceptedAt, &a.CompletedAt,
		&a.CreatedAt, &a.UpdatedAt)
	a.Status = Status(status)
	return &a, err
}

func (p *repoPG) Create(ctx context.Context, a *Alert) error {
	if a.Status == "" {
		a.Status = StatusPending
	}
	err := db.Conn(ctx, p.pool).QueryRow(ctx, `
		INSERT INTO alerts (type, location, latitude, longitude, description, severity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		a.Type, a.Location, a.Latitude, a.Longitude, a.Description, a.Severity, string(a.Status),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

func (p *repoPG) GetByID(ctx context.Context, id int64) (*Alert, error) {
	a, err := scan(db.Conn(ctx, p.pool).QueryRow(ctx, `SELECT `+cols+from+` WHERE a.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %d: %w", id, err)
	}
	return a, nil
}

func (p *repoPG) List(ctx context.Context, f Filter) ([]*Alert, error) {
	var conds []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if f.ResponderID > 0 {
		args = append(args, f.ResponderID)
		conds = append(conds, fmt.Sprintf("a.responder_id = $%d", len(args)))
	}
	if f.Unassigned {
		conds = append(conds, "a.responder_id IS NULL")
	}

	query := `SELECT ` + cols + from
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY a.created_at DESC, a.id DESC`

	return p.query(ctx, query, args...)
}

func (p *repoPG) ListStale(ctx context.Context, before time.Time) ([]*Alert, error) {
	return p.query(ctx, `SELECT `+cols+from+`
		WHERE a.status = $1 AND a.assigned_at < $2
		ORDER BY a.assigned_at`, string(StatusAssigned), before)
}

func (p *repoPG) query(ctx context.Context, query string, args ...interface{}) ([]*Alert, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	items := []*Alert{}
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// Apply issues a single conditional UPDATE. Zero affected rows means the
// alert is missing, moved on, or belongs to someone else.
func (p *repoPG) Apply(ctx context.Context, c Change) (bool, error) {
	from := make([]string, len(c.From))
	for i, s := range c.From {
		from[i] = string(s)
	}
	var holder *int64
	if c.Holder > 0 {
		holder = &c.Holder
	}

	tag, err := db.Conn(ctx, p.pool).Exec(ctx, `
		UPDATE alerts SET
			status       = $2,
			responder_id = CASE WHEN $3::boolean THEN NULL ELSE COALESCE($4::bigint, responder_id) END,
			assigned_by  = CASE WHEN $3::boolean THEN NULL ELSE COALESCE($5::bigint, assigned_by) END,
			assigned_at  = CASE WHEN $3::boolean THEN NULL
			                    WHEN $2 = 'Assigned' THEN NOW()
			                    WHEN $2 = 'Accepted' THEN COALESCE(assigned_at, NOW())
			                    ELSE assigned_at END,
			accepted_at  = CASE WHEN $3::boolean THEN NULL WHEN $2 = 'Accepted' THEN NOW() ELSE accepted_at END,
			completed_at = CASE WHEN $2 = 'Completed' THEN NOW() ELSE completed_at END,
			updated_at   = NOW()
		WHERE id = $1
		  AND status = ANY($6::text[])
		  AND ($7::bigint IS NULL OR responder_id IS NULL OR responder_id = $7)`,
		c.AlertID, string(c.To), c.Release, c.Responder, c.AssignedBy, from, holder)
	if err != nil {
		return false, fmt.Errorf("update alert %d: %w", c.AlertID, err)
	}
	return tag.RowsAffected() == 1, nil
}
