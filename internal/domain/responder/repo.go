package responder

import "context"

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Responder, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Responder, int, error)
	SetStatus(ctx context.Context, id int64, status string) error
}
