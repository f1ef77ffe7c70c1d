package gps

import (
	"errors"
	"strconv"
	"time"
)

var (
	ErrNotFound   = errors.New("No GPS points for this dispatch")
	ErrValidation = errors.New("invalid GPS point")
)

// Point is one position report for a dispatch. Points are append-only.
type Point struct {
	ID         int64     `json:"id"`
	DispatchID int64     `json:"dispatch_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	LatLng     string    `json:"latlng"`
	RecordedAt time.Time `json:"recorded_at"`
}

// FormatLatLng renders the "lat,lng" pair stored alongside each point.
func FormatLatLng(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}
