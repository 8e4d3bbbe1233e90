package db

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// MemoryStore is a RecordStore and UserCollection kept in process memory.
// It backs the test suites and STORE_DRIVER=memory.
type MemoryStore struct {
	mu       sync.RWMutex
	vehicles map[string]*models.Vehicle // by code
	readings map[string][]models.OdometerReading
	kinds    map[string]models.MaintenanceKind // by id
	events   map[string][]models.MaintenanceEvent
	users    map[string]models.User
	seq      int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vehicles: make(map[string]*models.Vehicle),
		readings: make(map[string][]models.OdometerReading),
		kinds:    make(map[string]models.MaintenanceKind),
		events:   make(map[string][]models.MaintenanceEvent),
		users:    make(map[string]models.User),
	}
}

// InsertVehicle stores a new vehicle and its optional initial reading.
func (s *MemoryStore) InsertVehicle(ctx context.Context, vehicle models.Vehicle, initial *models.OdometerReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.vehicles[vehicle.Code]; exists {
		return models.ErrVehicleExists
	}
	v := vehicle
	s.vehicles[v.Code] = &v
	if initial != nil {
		s.readings[v.ID] = append(s.readings[v.ID], *initial)
	}
	return nil
}

// FindVehicle finds an active vehicle by its normalized code.
func (s *MemoryStore) FindVehicle(ctx context.Context, code string) (*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[code]
	if !ok || !v.Active {
		return nil, models.ErrVehicleNotFound
	}
	out := *v
	return &out, nil
}

// ListVehicles returns active vehicles ordered by code.
func (s *MemoryStore) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		if v.Active {
			out = append(out, *v)
		}
	}
	slices.SortFunc(out, func(a, b models.Vehicle) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}

// UpdateOdometer applies the monotonic odometer gate and appends the reading.
func (s *MemoryStore) UpdateOdometer(ctx context.Context, code string, reading models.OdometerReading) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[code]
	if !ok || !v.Active {
		return nil, models.ErrVehicleNotFound
	}
	if reading.Odometer < v.CurrentOdometer {
		return nil, models.ErrOdometerRegression
	}
	v.CurrentOdometer = reading.Odometer
	reading.VehicleID = v.ID
	s.readings[v.ID] = append(s.readings[v.ID], reading)
	out := *v
	return &out, nil
}

// ListOdometerReadings returns up to limit readings, newest first.
func (s *MemoryStore) ListOdometerReadings(ctx context.Context, vehicleID string, limit int) ([]models.OdometerReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.readings[vehicleID])
	// Stable sort on a reversed slice keeps later insertions first on equal timestamps.
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b models.OdometerReading) int {
		return b.RecordedAt.Compare(a.RecordedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InsertKind adds a catalog entry unless one with the same id or name exists.
func (s *MemoryStore) InsertKind(ctx context.Context, kind models.MaintenanceKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.kinds {
		if k.ID == kind.ID || k.Name == kind.Name {
			return false, nil
		}
	}
	s.kinds[kind.ID] = kind
	return true, nil
}

// FindKindByName looks up a catalog entry by its exact name.
func (s *MemoryStore) FindKindByName(ctx context.Context, name string) (*models.MaintenanceKind, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, k := range s.kinds {
		if k.Name == name {
			out := k
			return &out, nil
		}
	}
	return nil, models.ErrMaintenanceKindNotFound
}

// ListKinds returns the catalog ordered by distance interval, then name.
func (s *MemoryStore) ListKinds(ctx context.Context) ([]models.MaintenanceKind, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MaintenanceKind, 0, len(s.kinds))
	for _, k := range s.kinds {
		out = append(out, k)
	}
	SortKinds(out)
	return out, nil
}

// AppendEvent stores an event under the next sequence number.
func (s *MemoryStore) AppendEvent(ctx context.Context, event models.MaintenanceEvent) (*models.MaintenanceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	event.Seq = s.seq
	s.events[event.VehicleID] = append(s.events[event.VehicleID], event)
	return &event, nil
}

// LatestEvent returns the latest event of a kind for a vehicle.
func (s *MemoryStore) LatestEvent(ctx context.Context, vehicleID, kindID string) (*models.MaintenanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.MaintenanceEvent
	for i, ev := range s.events[vehicleID] {
		if ev.KindID != kindID {
			continue
		}
		if latest == nil || ev.After(*latest) {
			latest = &s.events[vehicleID][i]
		}
	}
	if latest == nil {
		return nil, models.ErrEventNotFound
	}
	out := *latest
	return &out, nil
}

// LatestEvents returns the latest event of every kind serviced on a vehicle, keyed by kind id.
func (s *MemoryStore) LatestEvents(ctx context.Context, vehicleID string) (map[string]models.MaintenanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return LatestByKind(s.events[vehicleID]), nil
}

// ListEvents returns all events of a vehicle, newest first.
func (s *MemoryStore) ListEvents(ctx context.Context, vehicleID string) ([]models.MaintenanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.events[vehicleID])
	SortEventsNewestFirst(out)
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// InsertUser stores a new user.
func (s *MemoryStore) InsertUser(ctx context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = user
	return nil
}

// FindUserByID finds a user by their ID
func (s *MemoryStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.ID == id })
}

// FindUserByUsername finds a user by their username
func (s *MemoryStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Username == username })
}

// FindUserByEmail finds a user by their email
func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Email == email })
}

// UpdateLastLogin updates the last login time for a user
func (s *MemoryStore) UpdateLastLogin(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	now := time.Now()
	u.LastLogin = &now
	u.UpdatedAt = now
	s.users[id] = u
	return nil
}

func (s *MemoryStore) findUser(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, models.ErrUserNotFound
}

// LatestByKind reduces events to the latest one per kind.
func LatestByKind(events []models.MaintenanceEvent) map[string]models.MaintenanceEvent {
	out := make(map[string]models.MaintenanceEvent)
	for _, ev := range events {
		if cur, ok := out[ev.KindID]; !ok || ev.After(cur) {
			out[ev.KindID] = ev
		}
	}
	return out
}

// SortEventsNewestFirst orders events by performed time, then sequence, descending.
func SortEventsNewestFirst(events []models.MaintenanceEvent) {
	slices.SortFunc(events, func(a, b models.MaintenanceEvent) int {
		if c := b.PerformedAt.Compare(a.PerformedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.Seq, a.Seq)
	})
}

// SortKinds orders the catalog by distance interval, then name.
func SortKinds(kinds []models.MaintenanceKind) {
	slices.SortFunc(kinds, func(a, b models.MaintenanceKind) int {
		if c := cmp.Compare(a.DistanceInterval, b.DistanceInterval); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}
