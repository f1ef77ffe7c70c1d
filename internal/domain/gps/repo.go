package gps

import "context"

type Repository interface {
	Append(ctx context.Context, p *Point) error
	// History returns every point for the dispatch in insertion order.
	History(ctx context.Context, dispatchID int64) ([]*Point, error)
	Latest(ctx context.Context, dispatchID int64) (*Point, error)
}
