package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/alerts"
	"github.com/ukydev/fleet-maintenance/internal/fleet"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Fleet is the part of fleet.Service the HTTP layer uses.
type Fleet interface {
	Policy() alerts.Policy
	RegisterVehicle(ctx context.Context, in fleet.RegisterVehicleInput) (*models.Vehicle, error)
	UpdateOdometer(ctx context.Context, code string, value int64, notes string) (*models.Vehicle, error)
	RecordMaintenance(ctx context.Context, code, kindName string, performedAt time.Time, notes string) (*models.EventRecord, error)
	GetLatestEvent(ctx context.Context, code, kindName string) (*models.EventRecord, error)
	ComputeAlerts(ctx context.Context, code string, days int, distance int64) ([]models.AlertEntry, error)
	VehicleHistory(ctx context.Context, code string) (*models.VehicleHistory, error)
	ListVehicles(ctx context.Context) ([]models.Vehicle, error)
	ListKinds(ctx context.Context) ([]models.MaintenanceKind, error)
}

// FleetHandler serves the vehicle, maintenance and alert endpoints.
type FleetHandler struct {
	fleet Fleet
	loc   *time.Location
}

// NewFleetHandler creates a handler. Day-only dates are read in loc.
func NewFleetHandler(f Fleet, loc *time.Location) *FleetHandler {
	if loc == nil {
		loc = time.Local
	}
	return &FleetHandler{fleet: f, loc: loc}
}

type odometerRequest struct {
	Odometer int64  `json:"odometer"`
	Notes    string `json:"notes"`
}

type maintenanceRequest struct {
	Kind        string `json:"kind"`
	PerformedAt string `json:"performed_at"`
	Notes       string `json:"notes"`
}

// AlertView adds presentation values to an alert. The display fields are
// clamped at zero; the raw signed values are kept alongside.
type AlertView struct {
	models.AlertEntry
	DisplayDistanceRemaining int64 `json:"display_distance_remaining"`
	DisplayDaysRemaining     int   `json:"display_days_remaining"`
}

// NewAlertView clamps the remaining values of e for display.
func NewAlertView(e models.AlertEntry) AlertView {
	return AlertView{
		AlertEntry:               e,
		DisplayDistanceRemaining: max(e.DistanceRemaining, 0),
		DisplayDaysRemaining:     int(math.Max(e.DaysRemaining, 0)),
	}
}

// ListVehicles handles GET /api/vehicles
func (h *FleetHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.fleet.ListVehicles(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if vehicles == nil {
		vehicles = []models.Vehicle{}
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// RegisterVehicle handles POST /api/vehicles
func (h *FleetHandler) RegisterVehicle(w http.ResponseWriter, r *http.Request) {
	var in fleet.RegisterVehicleInput
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := h.fleet.RegisterVehicle(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// VehicleHistory handles GET /api/vehicles/{code}
func (h *FleetHandler) VehicleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.fleet.VehicleHistory(r.Context(), r.PathValue("code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// UpdateOdometer handles POST /api/vehicles/{code}/odometer
func (h *FleetHandler) UpdateOdometer(w http.ResponseWriter, r *http.Request) {
	var req odometerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.fleet.UpdateOdometer(r.Context(), r.PathValue("code"), req.Odometer, req.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// RecordMaintenance handles POST /api/vehicles/{code}/maintenance
func (h *FleetHandler) RecordMaintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Kind) == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}
	performedAt, err := ParsePerformedAt(req.PerformedAt, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := h.fleet.RecordMaintenance(r.Context(), r.PathValue("code"), req.Kind, performedAt, req.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// LatestMaintenance handles GET /api/vehicles/{code}/maintenance/latest?kind=NAME
func (h *FleetHandler) LatestMaintenance(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if strings.TrimSpace(kind) == "" {
		writeError(w, http.StatusBadRequest, "kind query parameter is required")
		return
	}
	ev, err := h.fleet.GetLatestEvent(r.Context(), r.PathValue("code"), kind)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Alerts handles GET /api/alerts?vehicle=CODE&days=N&distance=N
func (h *FleetHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	policy := h.fleet.Policy()

	days, err := intParam(q.Get("days"), policy.TimeWindowDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "days must be an integer")
		return
	}
	distance, err := intParam(q.Get("distance"), int(policy.DistanceWindow))
	if err != nil {
		writeError(w, http.StatusBadRequest, "distance must be an integer")
		return
	}

	entries, err := h.fleet.ComputeAlerts(r.Context(), q.Get("vehicle"), days, int64(distance))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views := make([]AlertView, 0, len(entries))
	for _, e := range entries {
		views = append(views, NewAlertView(e))
	}
	writeJSON(w, http.StatusOK, views)
}

// ListKinds handles GET /api/maintenance-kinds
func (h *FleetHandler) ListKinds(w http.ResponseWriter, r *http.Request) {
	kinds, err := h.fleet.ListKinds(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if kinds == nil {
		kinds = []models.MaintenanceKind{}
	}
	writeJSON(w, http.StatusOK, kinds)
}

// performedAtLayouts lists the accepted day-only formats, tried after RFC 3339.
var performedAtLayouts = []string{"02/01/2006", time.DateOnly}

// ParsePerformedAt accepts RFC 3339, DD/MM/YYYY or YYYY-MM-DD. An empty value
// yields the zero time, which the service reads as now.
func ParsePerformedAt(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range performedAtLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: performed_at %q must be RFC 3339 or DD/MM/YYYY", models.ErrInvalidInput, s)
}

func intParam(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}
