package models

import "time"

// Severity is the urgency tier of a maintenance alert.
type Severity string

const (
	SeverityOverdue   Severity = "VENCIDO"
	SeverityUrgent    Severity = "URGENTE"
	SeverityAttention Severity = "ATENÇÃO"
)

// AlertEntry is a (vehicle, kind) pair whose next service falls inside the look-ahead window.
type AlertEntry struct {
	VehicleCode       string    `json:"vehicle_code"`
	VehicleModel      string    `json:"vehicle_model"`
	CurrentOdometer   int64     `json:"current_odometer"`
	KindID            string    `json:"kind_id"`
	KindName          string    `json:"kind_name"`
	NextDueOdometer   int64     `json:"next_due_odometer"`
	NextDueAt         time.Time `json:"next_due_at"`
	DistanceRemaining int64     `json:"distance_remaining"` // negative when overdue by distance
	DaysRemaining     float64   `json:"days_remaining"`     // negative when overdue by time
	Severity          Severity  `json:"severity"`
}
