package account

import "context"

type Repository interface {
	// InsertUser stores u and fills its id. It reports false, without
	// error, when the username is already taken.
	InsertUser(ctx context.Context, u *User) (bool, error)
	// InsertResponder creates the responder profile owned by userID. It
	// reports false when the username is already taken.
	InsertResponder(ctx context.Context, userID int64, username, name, contactNumber string) (int64, bool, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}
