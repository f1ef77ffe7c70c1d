package patient

import "context"

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	// GetByID returns the patient with any diagnostic and trauma records.
	GetByID(ctx context.Context, id int64) (*Patient, error)
	List(ctx context.Context, incidentID int64, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	// Lock takes a row lock on the patient for the rest of the transaction.
	Lock(ctx context.Context, id int64) error
	SaveDiagnostic(ctx context.Context, patientID int64, d *Diagnostic) error
	SaveTrauma(ctx context.Context, patientID int64, t *Trauma) error
}
