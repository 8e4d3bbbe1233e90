// Package alerts classifies how close each maintenance kind of a vehicle is to being due.
package alerts

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

const (
	DefaultTimeWindowDays = 30
	DefaultDistanceWindow = 500
	DefaultUrgentDays     = 14
	DefaultUrgentDistance = 250
)

// Policy holds the look-ahead window and the urgency thresholds.
// Time and distance are independent signals: either one alone includes a kind.
type Policy struct {
	TimeWindowDays int
	DistanceWindow int64
	UrgentDays     int
	UrgentDistance int64
}

// DefaultPolicy returns the fleet-wide defaults.
func DefaultPolicy() Policy {
	return Policy{
		TimeWindowDays: DefaultTimeWindowDays,
		DistanceWindow: DefaultDistanceWindow,
		UrgentDays:     DefaultUrgentDays,
		UrgentDistance: DefaultUrgentDistance,
	}
}

// WithWindow returns a copy of p using the given look-ahead window.
func (p Policy) WithWindow(days int, distance int64) Policy {
	p.TimeWindowDays = days
	p.DistanceWindow = distance
	return p
}

// Validate rejects negative windows and thresholds.
func (p Policy) Validate() error {
	if p.TimeWindowDays < 0 || p.DistanceWindow < 0 {
		return errors.New("alert window must not be negative")
	}
	if p.UrgentDays < 0 || p.UrgentDistance < 0 {
		return errors.New("urgency thresholds must not be negative")
	}
	return nil
}

// Included reports whether a kind with the given remaining values belongs in the alert set.
func (p Policy) Included(daysRemaining float64, distanceRemaining int64) bool {
	return daysRemaining <= float64(p.TimeWindowDays) || distanceRemaining <= p.DistanceWindow
}

// Severity classifies remaining values; the first matching tier wins.
func (p Policy) Severity(daysRemaining float64, distanceRemaining int64) models.Severity {
	switch {
	case daysRemaining <= 0 || distanceRemaining <= 0:
		return models.SeverityOverdue
	case daysRemaining <= float64(p.UrgentDays) || distanceRemaining <= p.UrgentDistance:
		return models.SeverityUrgent
	default:
		return models.SeverityAttention
	}
}

// DaysBetween returns the fractional number of days from now until t.
func DaysBetween(now, t time.Time) float64 {
	return float64(t.Sub(now)) / float64(24*time.Hour)
}

// Evaluate computes the alerts of one vehicle from the latest event of each kind.
// The result is sorted; an empty result means nothing is due.
func (p Policy) Evaluate(now time.Time, v models.Vehicle, latest []models.EventRecord) []models.AlertEntry {
	var out []models.AlertEntry
	for _, ev := range latest {
		distance := ev.NextDueOdometer - v.CurrentOdometer
		days := DaysBetween(now, ev.NextDueAt)
		if !p.Included(days, distance) {
			continue
		}
		out = append(out, models.AlertEntry{
			VehicleCode:       v.Code,
			VehicleModel:      v.Model,
			CurrentOdometer:   v.CurrentOdometer,
			KindID:            ev.KindID,
			KindName:          ev.KindName,
			NextDueOdometer:   ev.NextDueOdometer,
			NextDueAt:         ev.NextDueAt,
			DistanceRemaining: distance,
			DaysRemaining:     days,
			Severity:          p.Severity(days, distance),
		})
	}
	Sort(out)
	return out
}

// Sort orders alerts by days remaining, then distance remaining, most urgent first.
func Sort(entries []models.AlertEntry) {
	slices.SortStableFunc(entries, func(a, b models.AlertEntry) int {
		if c := cmp.Compare(a.DaysRemaining, b.DaysRemaining); c != 0 {
			return c
		}
		return cmp.Compare(a.DistanceRemaining, b.DistanceRemaining)
	})
}
