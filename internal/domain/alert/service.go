package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ers/dispatch/internal/domain/responder"
	"github.com/ers/dispatch/internal/platform/db"
	"github.com/ers/dispatch/internal/platform/events"
)

// Actions, also used as event suffixes and metric labels.
const (
	ActionCreate   = "created"
	ActionAssign   = "assigned"
	ActionAccept   = "accepted"
	ActionReject   = "rejected"
	ActionUnassign = "unassigned"
	ActionComplete = "completed"
	ActionUpdate   = "status_changed"
	ActionExpire   = "expired"
)

// ResponderStore is the slice of the responder repository the workflow
// needs to keep availability in step with assignments.
type ResponderStore interface {
	GetByID(ctx context.Context, id int64) (*responder.Responder, error)
	SetStatus(ctx context.Context, id int64, status string) error
}

// Recorder receives workflow counters.
type Recorder interface {
	AlertTransition(action string)
	StaleAssignmentsReleased(n int)
}

type Service struct {
	repo       Repository
	responders ResponderStore
	tx         db.TxRunner
	events     events.Publisher
	metrics    Recorder
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(repo Repository, responders ResponderStore, tx db.TxRunner, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		repo:       repo,
		responders: responders,
		tx:         tx,
		events:     pub,
		logger:     logger.With().Str("domain", "alert").Logger(),
		now:        time.Now,
	}
}

// SetMetrics attaches an optional counter sink.
func (s *Service) SetMetrics(m Recorder) {
	s.metrics = m
}

func (s *Service) Create(ctx context.Context, a *Alert) error {
	if a.Type == "" || a.Location == "" || a.Severity == "" {
		return fmt.Errorf("%w: type, location and severity are required", ErrValidation)
	}
	a.Status = StatusPending
	a.ResponderID = nil
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	s.logger.Info().Int64("alert_id", a.ID).Str("type", a.Type).Str("severity", a.Severity).Msg("alert created")
	s.publish(ctx, ActionCreate, a)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Alert, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Alert, error) {
	return s.repo.List(ctx, f)
}

// Assign hands the alert to responderID. Re-assignment is allowed until the
// alert is accepted.
func (s *Service) Assign(ctx context.Context, alertID, responderID int64, assignedBy *int64) (*Alert, error) {
	return s.transition(ctx, ActionAssign, Change{
		AlertID:    alertID,
		From:       []Status{StatusPending, StatusUnassigned, StatusAssigned},
		To:         StatusAssigned,
		Responder:  &responderID,
		AssignedBy: assignedBy,
	}, responderID, "")
}

// Accept confirms an assignment, or claims an unheld alert outright. The
// responder goes On Duty.
func (s *Service) Accept(ctx context.Context, alertID, responderID int64) (*Alert, error) {
	return s.transition(ctx, ActionAccept, Change{
		AlertID:   alertID,
		From:      []Status{StatusAssigned, StatusPending, StatusUnassigned},
		To:        StatusAccepted,
		Holder:    responderID,
		Responder: &responderID,
	}, responderID, responder.StatusOnDuty)
}

// Reject declines an assignment and returns the alert to the pool.
func (s *Service) Reject(ctx context.Context, alertID, responderID int64) (*Alert, error) {
	return s.release(ctx, ActionReject, alertID, responderID)
}

func (s *Service) Unassign(ctx context.Context, alertID, responderID int64) (*Alert, error) {
	return s.release(ctx, ActionUnassign, alertID, responderID)
}

func (s *Service) release(ctx context.Context, action string, alertID, responderID int64) (*Alert, error) {
	return s.transition(ctx, action, Change{
		AlertID: alertID,
		From:    []Status{StatusAssigned, StatusAccepted},
		To:      StatusUnassigned,
		Holder:  responderID,
		Release: true,
	}, responderID, responder.StatusAvailable)
}

func (s *Service) Complete(ctx context.Context, alertID, responderID int64) (*Alert, error) {
	return s.transition(ctx, ActionComplete, Change{
		AlertID: alertID,
		From:    []Status{StatusAccepted},
		To:      StatusCompleted,
		Holder:  responderID,
	}, responderID, responder.StatusAvailable)
}

// UpdateStatus moves the alert to any status reachable from its current one.
// Assigned and Accepted need a responder; Unassigned drops the current one.
func (s *Service) UpdateStatus(ctx context.Context, alertID int64, to Status, responderID int64) (*Alert, error) {
	switch to {
	case StatusAssigned:
		if responderID <= 0 {
			return nil, ErrResponderRequired
		}
		return s.Assign(ctx, alertID, responderID, nil)
	case StatusAccepted:
		if responderID <= 0 {
			return nil, ErrResponderRequired
		}
		return s.Accept(ctx, alertID, responderID)
	case StatusUnassigned, StatusCompleted:
	default:
		return nil, ErrInvalidTransition
	}

	current, err := s.repo.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, to) {
		return nil, ErrInvalidTransition
	}
	if responderID <= 0 && current.ResponderID != nil {
		responderID = *current.ResponderID
	}

	c := Change{AlertID: alertID, From: Sources(to), To: to, Holder: responderID}
	if to == StatusUnassigned {
		c.Release = true
	}
	return s.transition(ctx, ActionUpdate, c, responderID, responder.StatusAvailable)
}

// transition applies c and, when responderID is set and responderStatus is
// non-empty, updates the responder in the same transaction. A responder
// still holding another Accepted alert stays On Duty.
func (s *Service) transition(ctx context.Context, action string, c Change, responderID int64, responderStatus string) (*Alert, error) {
	var out *Alert
	var changed *responder.Responder
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var current *responder.Responder
		if responderID > 0 {
			r, err := s.responders.GetByID(ctx, responderID)
			if err != nil {
				return err
			}
			current = r
		}

		ok, err := s.repo.Apply(ctx, c)
		if err != nil {
			return err
		}
		if !ok {
			// Distinguish a missing alert from one that has moved on.
			if _, err := s.repo.GetByID(ctx, c.AlertID); err != nil {
				return err
			}
			return ErrInvalidTransition
		}

		if current != nil && responderStatus == responder.StatusAvailable {
			busy, err := s.repo.List(ctx, Filter{Status: StatusAccepted, ResponderID: responderID})
			if err != nil {
				return err
			}
			if len(busy) > 0 {
				responderStatus = ""
			}
		}
		if current != nil && responderStatus != "" && responderStatus != current.Status {
			if err := s.responders.SetStatus(ctx, responderID, responderStatus); err != nil {
				return err
			}
			if changed, err = s.responders.GetByID(ctx, responderID); err != nil {
				return err
			}
		}

		out, err = s.repo.GetByID(ctx, c.AlertID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("alert_id", out.ID).
		Int64("responder_id", responderID).
		Str("action", action).
		Str("status", string(out.Status)).
		Msg("alert transition")
	if s.metrics != nil {
		s.metrics.AlertTransition(action)
	}
	s.publish(ctx, action, out)
	if changed != nil {
		s.publishResponder(ctx, changed)
	}
	return out, nil
}

// ReleaseStale returns alerts left in Assigned for longer than olderThan to
// the Unassigned pool. Alerts that change concurrently are skipped.
func (s *Service) ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.repo.ListStale(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	released := 0
	for _, a := range stale {
		var holder int64
		if a.ResponderID != nil {
			holder = *a.ResponderID
		}
		_, err := s.transition(ctx, ActionExpire, Change{
			AlertID: a.ID,
			From:    []Status{StatusAssigned},
			To:      StatusUnassigned,
			Holder:  holder,
			Release: true,
		}, 0, "")
		switch {
		case err == nil:
			released++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotFound):
		default:
			return released, err
		}
	}

	if released > 0 {
		s.logger.Info().Int("released", released).Dur("timeout", olderThan).Msg("released stale assignments")
		if s.metrics != nil {
			s.metrics.StaleAssignmentsReleased(released)
		}
	}
	return released, nil
}

func (s *Service) publish(ctx context.Context, action string, a *Alert) {
	for _, topic := range []string{events.AlertsTopic, events.AlertTopic(a.ID)} {
		ev, err := events.New("alert."+action, topic, "alert", a.ID, a)
		if err != nil {
			s.logger.Warn().Err(err).Int64("alert_id", a.ID).Msg("build alert event")
			return
		}
		if err := s.events.Publish(ctx, ev); err != nil {
			s.logger.Warn().Err(err).Int64("alert_id", a.ID).Str("topic", topic).Msg("publish alert event")
		}
	}
}

// publishResponder mirrors availability changes made by the workflow onto
// the responders topic.
func (s *Service) publishResponder(ctx context.Context, r *responder.Responder) {
	ev, err := events.New("responder.status", responder.ResponderTopic, "responder", r.ID, r)
	if err != nil {
		s.logger.Warn().Err(err).Int64("responder_id", r.ID).Msg("build responder event")
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Int64("responder_id", r.ID).Msg("publish responder status")
	}
}
