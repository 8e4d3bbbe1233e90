package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

var now = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

// due builds a latest-event record whose thresholds are the given remaining values away.
func due(kind string, days float64, distance int64, odometer int64) models.EventRecord {
	return models.EventRecord{
		MaintenanceEvent: models.MaintenanceEvent{
			KindID:          kind,
			NextDueOdometer: odometer + distance,
			NextDueAt:       now.Add(time.Duration(days * float64(24*time.Hour))),
		},
		KindName: kind,
	}
}

func TestPolicy_Severity(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name     string
		days     float64
		distance int64
		want     models.Severity
	}{
		{"overdue by time", -5, 100, models.SeverityOverdue},
		{"overdue by distance", 10, -50, models.SeverityOverdue},
		{"due exactly now", 0, 5000, models.SeverityOverdue},
		{"due exactly at odometer", 200, 0, models.SeverityOverdue},
		{"urgent by time", 14, 5000, models.SeverityUrgent},
		{"urgent by distance", 300, 250, models.SeverityUrgent},
		{"attention", 20, 400, models.SeverityAttention},
		{"attention just past urgent", 14.01, 251, models.SeverityAttention},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Severity(tt.days, tt.distance))
		})
	}
}

func TestPolicy_Included(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.Included(25, 9000), "time signal alone is enough")
	assert.True(t, p.Included(300, 450), "distance signal alone is enough")
	assert.True(t, p.Included(30, 501), "window bound is inclusive")
	assert.True(t, p.Included(31, 500), "window bound is inclusive")
	assert.False(t, p.Included(30.5, 501))

	narrow := p.WithWindow(0, 0)
	assert.False(t, narrow.Included(1, 1))
	assert.True(t, narrow.Included(-1, 1))
}

func TestPolicy_Evaluate_UnionOfSignals(t *testing.T) {
	v := models.Vehicle{Code: "PM-0001", Model: "Hilux", CurrentOdometer: 20000}
	latest := []models.EventRecord{
		due("by-time", 12.5, 8000, v.CurrentOdometer),
		due("by-distance", 200, 300, v.CurrentOdometer),
		due("neither", 120, 4000, v.CurrentOdometer),
	}

	got := DefaultPolicy().Evaluate(now, v, latest)
	require.Len(t, got, 2)
	kinds := []string{got[0].KindID, got[1].KindID}
	assert.ElementsMatch(t, []string{"by-time", "by-distance"}, kinds)

	for _, a := range got {
		assert.Equal(t, "PM-0001", a.VehicleCode)
		assert.Equal(t, "Hilux", a.VehicleModel)
		assert.Equal(t, int64(20000), a.CurrentOdometer)
	}
}

func TestPolicy_Evaluate_SeverityOrdering(t *testing.T) {
	v := models.Vehicle{Code: "PM-0002", CurrentOdometer: 1000}
	latest := []models.EventRecord{
		due("attention", 20, 400, v.CurrentOdometer),
		due("distance-overdue", 10, -50, v.CurrentOdometer),
		due("time-overdue", -5, 100, v.CurrentOdometer),
	}

	got := DefaultPolicy().Evaluate(now, v, latest)
	require.Len(t, got, 3)

	assert.Equal(t, "time-overdue", got[0].KindID)
	assert.Equal(t, models.SeverityOverdue, got[0].Severity)
	assert.InDelta(t, -5, got[0].DaysRemaining, 1e-9)

	assert.Equal(t, "distance-overdue", got[1].KindID)
	assert.Equal(t, models.SeverityOverdue, got[1].Severity)
	assert.Equal(t, int64(-50), got[1].DistanceRemaining)

	assert.Equal(t, "attention", got[2].KindID)
	assert.Equal(t, models.SeverityAttention, got[2].Severity)
}

func TestPolicy_Evaluate_TieBreakOnDistance(t *testing.T) {
	v := models.Vehicle{Code: "PM-0003", CurrentOdometer: 5000}
	latest := []models.EventRecord{
		due("far", 3, 450, v.CurrentOdometer),
		due("near", 3, -20, v.CurrentOdometer),
		due("middle", 3, 100, v.CurrentOdometer),
	}

	got := DefaultPolicy().Evaluate(now, v, latest)
	require.Len(t, got, 3)
	assert.Equal(t, "near", got[0].KindID)
	assert.Equal(t, "middle", got[1].KindID)
	assert.Equal(t, "far", got[2].KindID)
}

func TestPolicy_Evaluate_Empty(t *testing.T) {
	v := models.Vehicle{Code: "PM-0004", CurrentOdometer: 100}
	assert.Empty(t, DefaultPolicy().Evaluate(now, v, nil))
	assert.Empty(t, DefaultPolicy().Evaluate(now, v, []models.EventRecord{due("fresh", 360, 9900, 100)}))
}

func TestPolicy_Evaluate_FractionalDays(t *testing.T) {
	v := models.Vehicle{Code: "PM-0005", CurrentOdometer: 0}
	latest := []models.EventRecord{due("half", 0.5, 9000, 0)}

	got := DefaultPolicy().Evaluate(now, v, latest)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.5, got[0].DaysRemaining, 1e-9)
	assert.Equal(t, models.SeverityUrgent, got[0].Severity)
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.NoError(t, DefaultPolicy().WithWindow(0, 0).Validate())
	assert.Error(t, DefaultPolicy().WithWindow(-1, 500).Validate())
	assert.Error(t, DefaultPolicy().WithWindow(30, -1).Validate())
	assert.Error(t, Policy{UrgentDays: -1}.Validate())
}

func TestSort_MergesVehicles(t *testing.T) {
	entries := []models.AlertEntry{
		{VehicleCode: "B", DaysRemaining: 12, DistanceRemaining: 900},
		{VehicleCode: "A", DaysRemaining: -3, DistanceRemaining: 50},
		{VehicleCode: "C", DaysRemaining: 12, DistanceRemaining: -10},
	}
	Sort(entries)
	assert.Equal(t, "A", entries[0].VehicleCode)
	assert.Equal(t, "C", entries[1].VehicleCode)
	assert.Equal(t, "B", entries[2].VehicleCode)
}
