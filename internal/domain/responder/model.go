package responder

import (
	"errors"
	"strings"
	"time"
)

// Availability labels. Accepting an alert puts a responder On Duty; finishing
// or dropping it makes them Available again.
const (
	StatusAvailable = "Available"
	StatusOnDuty    = "On Duty"
	StatusOffline   = "Offline"
)

var (
	ErrNotFound      = errors.New("Responder not found")
	ErrInvalidStatus = errors.New("status must be one of Available, On Duty, Offline")
)

type Responder struct {
	ID            int64     `json:"id"`
	UserID        *int64    `json:"user_id"`
	Username      string    `json:"username"`
	Name          string    `json:"name"`
	ContactNumber string    `json:"contact_number"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NormalizeStatus maps any casing or spacing of a known label ("on duty",
// "ON-DUTY") to its canonical form.
func NormalizeStatus(s string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", " ", "_", " ").Replace(key)
	switch key {
	case "available":
		return StatusAvailable, nil
	case "on duty":
		return StatusOnDuty, nil
	case "offline":
		return StatusOffline, nil
	}
	return "", ErrInvalidStatus
}
