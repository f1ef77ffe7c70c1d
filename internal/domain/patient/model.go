package patient

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("Patient not found")
	ErrValidation      = errors.New("invalid patient")
	ErrUnknownIncident = errors.New("incidentId does not reference an existing alert")
)

type Patient struct {
	ID            int64       `json:"id"`
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	Age           *int        `json:"age"`
	Gender        string      `json:"gender"`
	ContactNumber string      `json:"contactNumber"`
	Address       string      `json:"address"`
	IncidentID    *int64      `json:"incidentId"`
	Diagnostic    *Diagnostic `json:"diagnostic,omitempty"`
	Trauma        *Trauma     `json:"trauma,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Diagnostic holds assessment findings. Nil fields were never recorded.
type Diagnostic struct {
	ID               int64     `json:"id"`
	ChiefComplaint   *string   `json:"chiefComplaint"`
	SignsSymptoms    *string   `json:"signsSymptoms"`
	Allergies        *string   `json:"allergies"`
	Medications      *string   `json:"medications"`
	PastHistory      *string   `json:"pastHistory"`
	LastOralIntake   *string   `json:"lastOralIntake"`
	EventsLeading    *string   `json:"eventsLeading"`
	BloodPressure    *string   `json:"bloodPressure"`
	PulseRate        *int      `json:"pulseRate"`
	RespiratoryRate  *int      `json:"respiratoryRate"`
	Temperature      *float64  `json:"temperature"`
	OxygenSaturation *int      `json:"oxygenSaturation"`
	GlasgowComaScale *int      `json:"glasgowComaScale"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type Trauma struct {
	ID               int64          `json:"id"`
	CauseOfInjury    *string        `json:"causeOfInjury"`
	TypeOfInjury     *string        `json:"typeOfInjury"`
	LocationOfInjury *string        `json:"locationOfInjury"`
	Remarks          *string        `json:"remarks"`
	InjuryMarkers    []InjuryMarker `json:"injuryMarkers"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// InjuryMarker is one mark on the body diagram, in relative coordinates.
type InjuryMarker struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	View string  `json:"view"`
	Kind string  `json:"kind,omitempty"`
	Note string  `json:"note,omitempty"`
}

func set[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// Merge copies every field present in patch onto d.
func (d *Diagnostic) Merge(patch Diagnostic) {
	set(&d.ChiefComplaint, patch.ChiefComplaint)
	set(&d.SignsSymptoms, patch.SignsSymptoms)
	set(&d.Allergies, patch.Allergies)
	set(&d.Medications, patch.Medications)
	set(&d.PastHistory, patch.PastHistory)
	set(&d.LastOralIntake, patch.LastOralIntake)
	set(&d.EventsLeading, patch.EventsLeading)
	set(&d.BloodPressure, patch.BloodPressure)
	set(&d.PulseRate, patch.PulseRate)
	set(&d.RespiratoryRate, patch.RespiratoryRate)
	set(&d.Temperature, patch.Temperature)
	set(&d.OxygenSaturation, patch.OxygenSaturation)
	set(&d.GlasgowComaScale, patch.GlasgowComaScale)
}

// Merge copies every field present in patch onto t. A non-nil marker list
// replaces the existing one.
func (t *Trauma) Merge(patch Trauma) {
	set(&t.CauseOfInjury, patch.CauseOfInjury)
	set(&t.TypeOfInjury, patch.TypeOfInjury)
	set(&t.LocationOfInjury, patch.LocationOfInjury)
	set(&t.Remarks, patch.Remarks)
	if patch.InjuryMarkers != nil {
		t.InjuryMarkers = append([]InjuryMarker(nil), patch.InjuryMarkers...)
	}
}
