// Package schedule derives the due thresholds of a maintenance event.
package schedule

import (
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Due holds the next-due thresholds of a maintenance event.
type Due struct {
	Odometer int64
	At       time.Time
}

// ComputeDue returns the thresholds for a service performed at odometer on performedAt.
// The day interval is applied as calendar days, so a due date keeps the wall-clock
// time of performedAt across DST changes.
func ComputeDue(odometer int64, performedAt time.Time, kind models.MaintenanceKind) (Due, error) {
	if kind.DistanceInterval <= 0 || kind.TimeIntervalDays <= 0 {
		return Due{}, fmt.Errorf("%w: %q has distance %d, days %d",
			models.ErrInvalidInterval, kind.Name, kind.DistanceInterval, kind.TimeIntervalDays)
	}
	return Due{
		Odometer: odometer + kind.DistanceInterval,
		At:       performedAt.AddDate(0, 0, kind.TimeIntervalDays),
	}, nil
}

// Stamp fills the due thresholds of e from its odometer and performed time.
func Stamp(e *models.MaintenanceEvent, kind models.MaintenanceKind) error {
	due, err := ComputeDue(e.Odometer, e.PerformedAt, kind)
	if err != nil {
		return err
	}
	e.KindID = kind.ID
	e.NextDueOdometer = due.Odometer
	e.NextDueAt = due.At
	return nil
}
