package alert

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id int64) (*Alert, error)
	List(ctx context.Context, f Filter) ([]*Alert, error)
	// Apply runs c and reports whether a row matched.
	Apply(ctx context.Context, c Change) (bool, error)
	// ListStale returns Assigned alerts whose assignment predates before.
	ListStale(ctx context.Context, before time.Time) ([]*Alert, error)
}
