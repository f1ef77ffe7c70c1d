package patient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ers/dispatch/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, first_name, last_name, age, gender, contact_number, address, incident_id, created_at, updated_at`

const diagnosticCols = `id, chief_complaint, signs_symptoms, allergies, medications, past_history, last_oral_intake,
	events_leading, blood_pressure, pulse_rate, respiratory_rate, temperature, oxygen_saturation,
	glasgow_coma_scale, updated_at`

const traumaCols = `id, cause_of_injury, type_of_injury, location_of_injury, remarks, injury_markers, updated_at`

func scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Age, &p.Gender, &p.ContactNumber, &p.Address,
		&p.IncidentID, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (first_name, last_name, age, gender, contact_number, address, incident_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		p.FirstName, p.LastName, p.Age, p.Gender, p.ContactNumber, p.Address, p.IncidentID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	conn := db.Conn(ctx, r.pool)
	p, err := scan(conn.QueryRow(ctx, `SELECT `+cols+` FROM patients WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %d: %w", id, err)
	}

	if p.Diagnostic, err = r.diagnostic(ctx, conn, id); err != nil {
		return nil, err
	}
	if p.Trauma, err = r.trauma(ctx, conn, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) diagnostic(ctx context.Context, conn db.Querier, patientID int64) (*Diagnostic, error) {
	var d Diagnostic
	err := conn.QueryRow(ctx, `SELECT `+diagnosticCols+` FROM patient_diagnostics WHERE patient_id = $1`, patientID).Scan(
		&d.ID, &d.ChiefComplaint, &d.SignsSymptoms, &d.Allergies, &d.Medications, &d.PastHistory, &d.LastOralIntake,
		&d.EventsLeading, &d.BloodPressure, &d.PulseRate, &d.RespiratoryRate, &d.Temperature, &d.OxygenSaturation,
		&d.GlasgowComaScale, &d.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get diagnostic for patient %d: %w", patientID, err)
	}
	return &d, nil
}

func (r *repoPG) trauma(ctx context.Context, conn db.Querier, patientID int64) (*Trauma, error) {
	var t Trauma
	var markers []byte
	err := conn.QueryRow(ctx, `SELECT `+traumaCols+` FROM patient_trauma WHERE patient_id = $1`, patientID).Scan(
		&t.ID, &t.CauseOfInjury, &t.TypeOfInjury, &t.LocationOfInjury, &t.Remarks, &markers, &t.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trauma for patient %d: %w", patientID, err)
	}
	if err := json.Unmarshal(markers, &t.InjuryMarkers); err != nil {
		return nil, fmt.Errorf("decode injury markers for patient %d: %w", patientID, err)
	}
	return &t, nil
}

func (r *repoPG) List(ctx context.Context, incidentID int64, limit, offset int) ([]*Patient, int, error) {
	conn := db.Conn(ctx, r.pool)

	where := ``
	args := []interface{}{}
	if incidentID > 0 {
		where = ` WHERE incident_id = $1`
		args = append(args, incidentID)
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM patients%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		cols, where, len(args)+1, len(args)+2)
	rows, err := conn.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	items := []*Patient{}
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patients SET first_name = $2, last_name = $3, age = $4, gender = $5,
			contact_number = $6, address = $7, incident_id = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.Age, p.Gender, p.ContactNumber, p.Address, p.IncidentID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update patient %d: %w", p.ID, err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Lock(ctx context.Context, id int64) error {
	var locked int64
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT id FROM patients WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock patient %d: %w", id, err)
	}
	return nil
}

func (r *repoPG) SaveDiagnostic(ctx context.Context, patientID int64, d *Diagnostic) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_diagnostics (patient_id, chief_complaint, signs_symptoms, allergies, medications,
			past_history, last_oral_intake, events_leading, blood_pressure, pulse_rate, respiratory_rate,
			temperature, oxygen_saturation, glasgow_coma_scale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (patient_id) DO UPDATE SET
			chief_complaint    = EXCLUDED.chief_complaint,
			signs_symptoms     = EXCLUDED.signs_symptoms,
			allergies          = EXCLUDED.allergies,
			medications        = EXCLUDED.medications,
			past_history       = EXCLUDED.past_history,
			last_oral_intake   = EXCLUDED.last_oral_intake,
			events_leading     = EXCLUDED.events_leading,
			blood_pressure     = EXCLUDED.blood_pressure,
			pulse_rate         = EXCLUDED.pulse_rate,
			respiratory_rate   = EXCLUDED.respiratory_rate,
			temperature        = EXCLUDED.temperature,
			oxygen_saturation  = EXCLUDED.oxygen_saturation,
			glasgow_coma_scale = EXCLUDED.glasgow_coma_scale,
			updated_at         = NOW()
		RETURNING id, updated_at`,
		patientID, d.ChiefComplaint, d.SignsSymptoms, d.Allergies, d.Medications,
		d.PastHistory, d.LastOralIntake, d.EventsLeading, d.BloodPressure, d.PulseRate, d.RespiratoryRate,
		d.Temperature, d.OxygenSaturation, d.GlasgowComaScale,
	).Scan(&d.ID, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save diagnostic for patient %d: %w", patientID, err)
	}
	return nil
}

func (r *repoPG) SaveTrauma(ctx context.Context, patientID int64, t *Trauma) error {
	markers := t.InjuryMarkers
	if markers == nil {
		markers = []InjuryMarker{}
	}
	raw, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("encode injury markers: %w", err)
	}

	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_trauma (patient_id, cause_of_injury, type_of_injury, location_of_injury, remarks, injury_markers)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (patient_id) DO UPDATE SET
			cause_of_injury    = EXCLUDED.cause_of_injury,
			type_of_injury     = EXCLUDED.type_of_injury,
			location_of_injury = EXCLUDED.location_of_injury,
			remarks            = EXCLUDED.remarks,
			injury_markers     = EXCLUDED.injury_markers,
			updated_at         = NOW()
		RETURNING id, updated_at`,
		patientID, t.CauseOfInjury, t.TypeOfInjury, t.LocationOfInjury, t.Remarks, string(raw),
	).Scan(&t.ID, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save trauma for patient %d: %w", patientID, err)
	}
	return nil
}
