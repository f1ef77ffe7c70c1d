package account

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ers/dispatch/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (p *repoPG) InsertUser(ctx context.Context, u *User) (bool, error) {
	err := db.Conn(ctx, p.pool).QueryRow(ctx, `
		INSERT INTO users (username, password_hash, name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO NOTHING
		RETURNING id, created_at`,
		u.Username, u.PasswordHash, u.Name, u.Role,
	).Scan(&u.ID, &u.CreatedAt)
	if db.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	return true, nil
}

func (p *repoPG) InsertResponder(ctx context.Context, userID int64, username, name, contactNumber string) (int64, bool, error) {
	var id int64
	err := db.Conn(ctx, p.pool).QueryRow(ctx, `
		INSERT INTO responders (user_id, username, name, contact_number)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING id`,
		userID, username, name, contactNumber,
	).Scan(&id)
	if db.IsNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert responder: %w", err)
	}
	return id, true, nil
}

func (p *repoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := db.Conn(ctx, p.pool).QueryRow(ctx, `
		SELECT u.id, u.username, u.password_hash, u.name, u.role, r.id, u.created_at
		FROM users u LEFT JOIN responders r ON r.user_id = u.id
		WHERE u.username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Name, &u.Role, &u.ResponderID, &u.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return &u, nil
}
