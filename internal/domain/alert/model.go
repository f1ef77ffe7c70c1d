package alert

import (
	"errors"
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusAssigned   Status = "Assigned"
	StatusAccepted   Status = "Accepted"
	StatusCompleted  Status = "Completed"
	StatusUnassigned Status = "Unassigned"
)

var statuses = []Status{StatusPending, StatusAssigned, StatusAccepted, StatusCompleted, StatusUnassigned}

var (
	ErrNotFound          = errors.New("Alert not found")
	ErrValidation        = errors.New("invalid alert")
	ErrInvalidStatus     = errors.New("status must be one of Pending, Assigned, Accepted, Completed, Unassigned")
	ErrInvalidTransition = errors.New("alert is not in a state that allows this change")
	ErrResponderRequired = errors.New("responderId is required for this status")
)

// ParseStatus accepts any casing of a known status.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	for _, st := range statuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// next lists the statuses each status may move to.
var next = map[Status][]Status{
	StatusPending:    {StatusAssigned, StatusAccepted},
	StatusUnassigned: {StatusAssigned, StatusAccepted},
	StatusAssigned:   {StatusAssigned, StatusAccepted, StatusUnassigned},
	StatusAccepted:   {StatusCompleted, StatusUnassigned},
	StatusCompleted:  nil,
}

// CanTransition reports whether an alert in from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Sources returns every status from which to is reachable.
func Sources(to Status) []Status {
	var out []Status
	for _, from := range statuses {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

type Alert struct {
	ID                int64      `json:"id"`
	Type              string     `json:"type"`
	Location          string     `json:"location"`
	Latitude          *float64   `json:"latitude"`
	Longitude         *float64   `json:"longitude"`
	Description       string     `json:"description"`
	Severity          string     `json:"severity"`
	Status            Status     `json:"status"`
	ResponderID       *int64     `json:"responder_id"`
	ResponderName     *string    `json:"responder_name"`
	ResponderUsername *string    `json:"responder_username"`
	AssignedBy        *int64     `json:"assigned_by"`
	AssignedAt        *time.Time `json:"assigned_at"`
	AcceptedAt        *time.Time `json:"accepted_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Filter narrows List. Zero values mean no constraint.
type Filter struct {
	Status      Status
	ResponderID int64
	Unassigned  bool
}

// Change is a compare-and-set update: it applies only while the alert is in
// one of From and, when Holder is set, not held by a different responder.
type Change struct {
	AlertID    int64
	From       []Status
	To         Status
	Holder     int64
	Responder  *int64
	AssignedBy *int64
	Release    bool
}
