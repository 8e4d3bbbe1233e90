package models

import (
	"time"
)

// MaintenanceKind is a catalog entry describing a recurring service.
type MaintenanceKind struct {
	ID               string `bson:"_id" json:"id" yaml:"id"`
	Name             string `bson:"name" json:"name" yaml:"name"`
	DistanceInterval int64  `bson:"distance_interval" json:"distance_interval" yaml:"distance_interval"` // in kilometers
	TimeIntervalDays int    `bson:"time_interval_days" json:"time_interval_days" yaml:"time_interval_days"`
	Description      string `bson:"description" json:"description" yaml:"description"`
}

// MaintenanceEvent is one completed service. Events are never edited; servicing
// the same kind again appends a new event.
type MaintenanceEvent struct {
	ID              string    `bson:"_id" json:"id"`
	Seq             int64     `bson:"seq" json:"seq"`
	VehicleID       string    `bson:"vehicle_id" json:"vehicle_id"`
	KindID          string    `bson:"kind_id" json:"kind_id"`
	Odometer        int64     `bson:"odometer" json:"odometer"` // odometer at the time of service
	PerformedAt     time.Time `bson:"performed_at" json:"performed_at"`
	NextDueOdometer int64     `bson:"next_due_odometer" json:"next_due_odometer"`
	NextDueAt       time.Time `bson:"next_due_at" json:"next_due_at"`
	Notes           string    `bson:"notes" json:"notes"`
}

// After reports whether e supersedes other as the latest event of its kind:
// greater performed time first, insertion sequence as tie-break.
func (e MaintenanceEvent) After(other MaintenanceEvent) bool {
	if !e.PerformedAt.Equal(other.PerformedAt) {
		return e.PerformedAt.After(other.PerformedAt)
	}
	return e.Seq > other.Seq
}

// EventRecord pairs an event with the display name of its kind.
type EventRecord struct {
	MaintenanceEvent `bson:",inline"`
	KindName         string `bson:"kind_name" json:"kind_name"`
}

// VehicleHistory is the detail view of a single vehicle.
type VehicleHistory struct {
	Vehicle     Vehicle           `json:"vehicle"`
	Odometer    []OdometerReading `json:"odometer"`
	Maintenance []EventRecord     `json:"maintenance"`
}
