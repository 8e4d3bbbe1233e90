package handlers

import (
	"net/http"

	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// NewRouter wires every route. Protected routes check the caller's role; the
// caller must wrap the result with middleware.AuthMiddleware.Authenticate
// unless authentication is disabled.
func NewRouter(fh *FleetHandler, ah *AuthHandler) *http.ServeMux {
	mux := http.NewServeMux()
	guard := func(action string, h http.HandlerFunc) http.Handler {
		return middleware.RequirePermission(action, h)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if ah != nil {
		mux.HandleFunc("POST /api/auth/login", ah.Login)
		mux.HandleFunc("POST /api/auth/register", ah.Register)
	}

	mux.Handle("GET /api/vehicles", guard(models.ActionViewVehicles, fh.ListVehicles))
	mux.Handle("POST /api/vehicles", guard(models.ActionRegisterVehicle, fh.RegisterVehicle))
	mux.Handle("GET /api/vehicles/{code}", guard(models.ActionViewVehicles, fh.VehicleHistory))
	mux.Handle("POST /api/vehicles/{code}/odometer", guard(models.ActionUpdateOdometer, fh.UpdateOdometer))
	mux.Handle("POST /api/vehicles/{code}/maintenance", guard(models.ActionRecordMaintenance, fh.RecordMaintenance))
	mux.Handle("GET /api/vehicles/{code}/maintenance/latest", guard(models.ActionViewMaintenance, fh.LatestMaintenance))
	mux.Handle("GET /api/alerts", guard(models.ActionViewAlerts, fh.Alerts))
	mux.Handle("GET /api/maintenance-kinds", guard(models.ActionViewMaintenance, fh.ListKinds))

	return mux
}
