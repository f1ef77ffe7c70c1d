package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ers/dispatch/internal/platform/db"
	"github.com/ers/dispatch/internal/platform/events"
)

type Service struct {
	repo   Repository
	tx     db.TxRunner
	events events.Publisher
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.TxRunner, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{repo: repo, tx: tx, events: pub, logger: logger.With().Str("domain", "patient").Logger()}
}

func validate(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("%w: firstName and lastName are required", ErrValidation)
	}
	if p.Age != nil && *p.Age < 0 {
		return fmt.Errorf("%w: age must not be negative", ErrValidation)
	}
	if p.IncidentID != nil && *p.IncidentID <= 0 {
		return fmt.Errorf("%w: incidentId must be positive", ErrValidation)
	}
	return nil
}

func validateDiagnostic(d *Diagnostic) error {
	if d.GlasgowComaScale != nil && (*d.GlasgowComaScale < 3 || *d.GlasgowComaScale > 15) {
		return fmt.Errorf("%w: glasgowComaScale must be between 3 and 15", ErrValidation)
	}
	for name, v := range map[string]*int{
		"pulseRate":        d.PulseRate,
		"respiratoryRate":  d.RespiratoryRate,
		"oxygenSaturation": d.OxygenSaturation,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrValidation, name)
		}
	}
	if d.OxygenSaturation != nil && *d.OxygenSaturation > 100 {
		return fmt.Errorf("%w: oxygenSaturation must be at most 100", ErrValidation)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return classify(err)
	}
	s.logger.Info().Int64("patient_id", p.ID).Msg("patient created")
	s.publish(ctx, "patient.created", p)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns patients, newest first, optionally only those linked to one
// incident.
func (s *Service) List(ctx context.Context, incidentID int64, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, incidentID, limit, offset)
}

// Update replaces the core fields. Sub-records are left alone.
func (s *Service) Update(ctx context.Context, p *Patient) (*Patient, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, classify(err)
	}
	out, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "patient.updated", out)
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("patient_id", id).Msg("patient deleted")
	return nil
}

// UpdateDiagnostic merges patch into the patient's diagnostic record,
// creating it on first use. The patient row stays locked until commit so
// concurrent partial updates apply one after the other.
func (s *Service) UpdateDiagnostic(ctx context.Context, patientID int64, patch Diagnostic) (*Patient, error) {
	var out *Patient
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Lock(ctx, patientID); err != nil {
			return err
		}
		p, err := s.repo.GetByID(ctx, patientID)
		if err != nil {
			return err
		}
		d := p.Diagnostic
		if d == nil {
			d = &Diagnostic{}
		}
		d.Merge(patch)
		if err := validateDiagnostic(d); err != nil {
			return err
		}
		if err := s.repo.SaveDiagnostic(ctx, patientID, d); err != nil {
			return err
		}
		p.Diagnostic = d
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("patient_id", patientID).Int64("diagnostic_id", out.Diagnostic.ID).Msg("diagnostic saved")
	s.publish(ctx, "patient.diagnostic", out)
	return out, nil
}

// UpsertTrauma merges patch into the patient's trauma record, creating it
// on first use.
func (s *Service) UpsertTrauma(ctx context.Context, patientID int64, patch Trauma) (*Patient, error) {
	for _, m := range patch.InjuryMarkers {
		if m.X < 0 || m.X > 1 || m.Y < 0 || m.Y > 1 {
			return nil, fmt.Errorf("%w: injury marker coordinates must be within [0,1]", ErrValidation)
		}
	}

	var out *Patient
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Lock(ctx, patientID); err != nil {
			return err
		}
		p, err := s.repo.GetByID(ctx, patientID)
		if err != nil {
			return err
		}
		t := p.Trauma
		if t == nil {
			t = &Trauma{}
		}
		t.Merge(patch)
		if err := s.repo.SaveTrauma(ctx, patientID, t); err != nil {
			return err
		}
		p.Trauma = t
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("patient_id", patientID).Int64("trauma_id", out.Trauma.ID).Msg("trauma saved")
	s.publish(ctx, "patient.trauma", out)
	return out, nil
}

// publish notifies watchers of the linked incident. Unlinked patients have
// no audience.
func (s *Service) publish(ctx context.Context, eventType string, p *Patient) {
	if p.IncidentID == nil {
		return
	}
	ev, err := events.New(eventType, events.AlertTopic(*p.IncidentID), "patient", p.ID, p)
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Int64("patient_id", p.ID).Msg("publish patient event")
	}
}

func classify(err error) error {
	if db.IsForeignKeyViolation(err) {
		return ErrUnknownIncident
	}
	return err
}
