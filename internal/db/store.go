package db

import (
	"context"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// OdometerHistoryLimit is the number of readings returned by vehicle history.
const OdometerHistoryLimit = 10

// RecordStore defines the persistence operations the fleet service depends on.
// Vehicle lookups take a normalized code and only see active vehicles.
type RecordStore interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle, initial *models.OdometerReading) error
	FindVehicle(ctx context.Context, code string) (*models.Vehicle, error)
	ListVehicles(ctx context.Context) ([]models.Vehicle, error)
	// UpdateOdometer raises the vehicle's odometer and appends the reading as one unit.
	// It returns models.ErrOdometerRegression when reading.Odometer is below the stored value.
	UpdateOdometer(ctx context.Context, code string, reading models.OdometerReading) (*models.Vehicle, error)
	ListOdometerReadings(ctx context.Context, vehicleID string, limit int) ([]models.OdometerReading, error)

	InsertKind(ctx context.Context, kind models.MaintenanceKind) (bool, error)
	FindKindByName(ctx context.Context, name string) (*models.MaintenanceKind, error)
	ListKinds(ctx context.Context) ([]models.MaintenanceKind, error)

	// AppendEvent stores the event and returns it with its sequence number assigned.
	AppendEvent(ctx context.Context, event models.MaintenanceEvent) (*models.MaintenanceEvent, error)
	LatestEvent(ctx context.Context, vehicleID, kindID string) (*models.MaintenanceEvent, error)
	LatestEvents(ctx context.Context, vehicleID string) (map[string]models.MaintenanceEvent, error)
	ListEvents(ctx context.Context, vehicleID string) ([]models.MaintenanceEvent, error)

	Close(ctx context.Context) error
}

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
}
