package models

import (
	"strings"
	"time"
)

// Vehicle represents a tracked fleet vehicle.
type Vehicle struct {
	ID              string    `bson:"_id" json:"id"`
	Code            string    `bson:"code" json:"code"` // normalized, see NormalizeCode
	Model           string    `bson:"model" json:"model"`
	Year            int       `bson:"year" json:"year"`
	Organization    string    `bson:"organization" json:"organization"`
	CurrentOdometer int64     `bson:"current_odometer" json:"current_odometer"` // in kilometers
	RegisteredAt    time.Time `bson:"registered_at" json:"registered_at"`
	Active          bool      `bson:"active" json:"active"`
}

// OdometerReading is one entry of a vehicle's append-only odometer history.
type OdometerReading struct {
	ID         string    `bson:"_id" json:"id"`
	VehicleID  string    `bson:"vehicle_id" json:"vehicle_id"`
	Odometer   int64     `bson:"odometer" json:"odometer"`
	RecordedAt time.Time `bson:"recorded_at" json:"recorded_at"`
	Notes      string    `bson:"notes" json:"notes"`
}

// NormalizeCode returns the canonical form of a vehicle code.
// Lookups are case-insensitive because every stored code goes through here.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
