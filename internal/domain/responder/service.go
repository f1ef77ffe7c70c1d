package responder

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ers/dispatch/internal/platform/events"
)

const ResponderTopic = "responders"

type Service struct {
	repo   Repository
	events events.Publisher
	logger zerolog.Logger
}

func NewService(repo Repository, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{repo: repo, events: pub, logger: logger.With().Str("domain", "responder").Logger()}
}

func (s *Service) Get(ctx context.Context, id int64) (*Responder, error) {
	return s.repo.GetByID(ctx, id)
}

// List filters by availability when status is non-empty.
func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Responder, int, error) {
	if status != "" {
		normalized, err := NormalizeStatus(status)
		if err != nil {
			return nil, 0, err
		}
		status = normalized
	}
	return s.repo.List(ctx, status, limit, offset)
}

func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*Responder, error) {
	normalized, err := NormalizeStatus(status)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetStatus(ctx, id, normalized); err != nil {
		return nil, err
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("responder_id", id).Str("status", normalized).Msg("responder status changed")
	if ev, err := events.New("responder.status", ResponderTopic, "responder", id, r); err == nil {
		if err := s.events.Publish(ctx, ev); err != nil {
			s.logger.Warn().Err(err).Int64("responder_id", id).Msg("publish responder status")
		}
	}
	return r, nil
}
