package gps

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/ers/dispatch/internal/platform/events"
)

// Recorder counts stored points.
type Recorder interface {
	GPSPointRecorded()
}

type Service struct {
	repo    Repository
	events  events.Publisher
	metrics Recorder
	logger  zerolog.Logger
}

func NewService(repo Repository, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{repo: repo, events: pub, logger: logger.With().Str("domain", "gps").Logger()}
}

func (s *Service) SetMetrics(m Recorder) { s.metrics = m }

func Validate(dispatchID int64, lat, lng float64) error {
	switch {
	case dispatchID <= 0:
		return fmt.Errorf("%w: dispatch_id must be a positive integer", ErrValidation)
	case math.IsNaN(lat) || lat < -90 || lat > 90:
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrValidation)
	case math.IsNaN(lng) || lng < -180 || lng > 180:
		return fmt.Errorf("%w: longitude must be between -180 and 180", ErrValidation)
	}
	return nil
}

// Append stores a position and pushes it to the dispatch's live feed.
func (s *Service) Append(ctx context.Context, dispatchID int64, lat, lng float64) (*Point, error) {
	if err := Validate(dispatchID, lat, lng); err != nil {
		return nil, err
	}
	p := &Point{DispatchID: dispatchID, Latitude: lat, Longitude: lng, LatLng: FormatLatLng(lat, lng)}
	if err := s.repo.Append(ctx, p); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.GPSPointRecorded()
	}
	s.logger.Debug().Int64("dispatch_id", dispatchID).Str("latlng", p.LatLng).Msg("gps point recorded")
	if ev, err := events.New("gps.recorded", events.DispatchTopic(dispatchID), "gps_point", p.ID, p); err == nil {
		if err := s.events.Publish(ctx, ev); err != nil {
			s.logger.Warn().Err(err).Int64("dispatch_id", dispatchID).Msg("publish gps point")
		}
	}
	return p, nil
}

func (s *Service) History(ctx context.Context, dispatchID int64) ([]*Point, error) {
	if dispatchID <= 0 {
		return nil, fmt.Errorf("%w: dispatch_id must be a positive integer", ErrValidation)
	}
	return s.repo.History(ctx, dispatchID)
}

func (s *Service) Latest(ctx context.Context, dispatchID int64) (*Point, error) {
	if dispatchID <= 0 {
		return nil, fmt.Errorf("%w: dispatch_id must be a positive integer", ErrValidation)
	}
	return s.repo.Latest(ctx, dispatchID)
}
