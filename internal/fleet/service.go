// Package fleet implements vehicle state management, maintenance recording and
// alert computation on top of a RecordStore.
package fleet

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ukydev/fleet-maintenance/internal/alerts"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/lock"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
	"github.com/ukydev/fleet-maintenance/internal/schedule"
)

const (
	// MinVehicleYear is the oldest model year accepted at registration.
	MinVehicleYear = 1990

	initialReadingNote = "initial odometer at registration"
	defaultParallelism = 8
)

// Service is the entry point for every fleet operation.
type Service struct {
	store       db.RecordStore
	locker      lock.Locker
	publisher   notify.Publisher
	policy      alerts.Policy
	now         func() time.Time
	parallelism int
}

// Option configures a Service.
type Option func(*Service)

// WithLocker replaces the in-process per-vehicle lock.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithPublisher sets where alert snapshots go after each mutation.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithPolicy sets the default alert window and urgency thresholds.
func WithPolicy(p alerts.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithParallelism bounds how many vehicles are evaluated at once.
func WithParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// NewService returns a Service backed by store.
func NewService(store db.RecordStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		locker:      lock.NewKeyedMutex(),
		publisher:   notify.Noop{},
		policy:      alerts.DefaultPolicy(),
		now:         time.Now,
		parallelism: defaultParallelism,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the default alert policy.
func (s *Service) Policy() alerts.Policy {
	return s.policy
}

// RegisterVehicleInput carries the fields of a new vehicle.
type RegisterVehicleInput struct {
	Code         string `json:"code"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	Organization string `json:"organization"`
	Odometer     int64  `json:"odometer"`
}

// Validate checks the input against the registration rules as of now.
func (in RegisterVehicleInput) Validate(now time.Time) error {
	switch {
	case models.NormalizeCode(in.Code) == "":
		return fmt.Errorf("%w: code is required", models.ErrInvalidInput)
	case strings.TrimSpace(in.Model) == "":
		return fmt.Errorf("%w: model is required", models.ErrInvalidInput)
	case strings.TrimSpace(in.Organization) == "":
		return fmt.Errorf("%w: organization is required", models.ErrInvalidInput)
	case in.Year < MinVehicleYear || in.Year > now.Year()+1:
		return fmt.Errorf("%w: year must be between %d and %d", models.ErrInvalidInput, MinVehicleYear, now.Year()+1)
	case in.Odometer < 0:
		return fmt.Errorf("%w: odometer must not be negative", models.ErrInvalidInput)
	}
	return nil
}

// RegisterVehicle creates a vehicle. A positive starting odometer is also
// written as the first history reading.
func (s *Service) RegisterVehicle(ctx context.Context, in RegisterVehicleInput) (*models.Vehicle, error) {
	now := s.now()
	if err := in.Validate(now); err != nil {
		return nil, err
	}

	v := models.Vehicle{
		ID:              uuid.NewString(),
		Code:            models.NormalizeCode(in.Code),
		Model:           strings.TrimSpace(in.Model),
		Year:            in.Year,
		Organization:    strings.TrimSpace(in.Organization),
		CurrentOdometer: in.Odometer,
		RegisteredAt:    now,
		Active:          true,
	}
	var initial *models.OdometerReading
	if in.Odometer > 0 {
		initial = &models.OdometerReading{
			ID:         uuid.NewString(),
			VehicleID:  v.ID,
			Odometer:   in.Odometer,
			RecordedAt: now,
			Notes:      initialReadingNote,
		}
	}

	if err := s.store.InsertVehicle(ctx, v, initial); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"vehicle": v.Code, "odometer": v.CurrentOdometer}).Info("Vehicle registered")
	return &v, nil
}

// UpdateOdometer records a new reading. Readings below the current value are
// rejected with models.ErrOdometerRegression and change nothing.
func (s *Service) UpdateOdometer(ctx context.Context, code string, value int64, notes string) (*models.Vehicle, error) {
	if value < 0 {
		return nil, fmt.Errorf("%w: odometer must not be negative", models.ErrInvalidInput)
	}
	code = models.NormalizeCode(code)

	release, err := s.locker.Lock(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lock vehicle %s: %w", code, err)
	}
	defer release()

	v, err := s.store.UpdateOdometer(ctx, code, models.OdometerReading{
		ID:         uuid.NewString(),
		Odometer:   value,
		RecordedAt: s.now(),
		Notes:      strings.TrimSpace(notes),
	})
	if err != nil {
		if errors.Is(err, models.ErrOdometerRegression) {
			log.WithFields(log.Fields{"vehicle": code, "odometer": value}).Warn("Odometer regression rejected")
		}
		return nil, err
	}
	log.WithFields(log.Fields{"vehicle": code, "odometer": value}).Info("Odometer updated")

	s.publish(ctx, *v)
	return v, nil
}

// RecordMaintenance appends a completed service at the vehicle's current
// odometer. A zero performedAt means now; past dates record historical work.
func (s *Service) RecordMaintenance(ctx context.Context, code, kindName string, performedAt time.Time, notes string) (*models.EventRecord, error) {
	code = models.NormalizeCode(code)

	release, err := s.locker.Lock(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lock vehicle %s: %w", code, err)
	}
	defer release()

	v, err := s.store.FindVehicle(ctx, code)
	if err != nil {
		return nil, err
	}
	kind, err := s.store.FindKindByName(ctx, strings.TrimSpace(kindName))
	if err != nil {
		return nil, err
	}

	if performedAt.IsZero() {
		performedAt = s.now()
	}
	event := models.MaintenanceEvent{
		ID:          uuid.NewString(),
		VehicleID:   v.ID,
		Odometer:    v.CurrentOdometer,
		PerformedAt: performedAt,
		Notes:       strings.TrimSpace(notes),
	}
	if err := schedule.Stamp(&event, *kind); err != nil {
		log.WithError(err).WithField("kind", kind.Name).Error("Catalog entry has invalid intervals")
		return nil, err
	}

	stored, err := s.store.AppendEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"vehicle":           code,
		"kind":              kind.Name,
		"odometer":          stored.Odometer,
		"next_due_odometer": stored.NextDueOdometer,
		"next_due_at":       stored.NextDueAt.Format(time.DateOnly),
	}).Info("Maintenance recorded")

	s.publish(ctx, *v)
	return &models.EventRecord{MaintenanceEvent: *stored, KindName: kind.Name}, nil
}

// GetLatestEvent returns the most recent event of a kind on a vehicle, or
// models.ErrEventNotFound when the kind was never serviced.
func (s *Service) GetLatestEvent(ctx context.Context, code, kindName string) (*models.EventRecord, error) {
	v, err := s.store.FindVehicle(ctx, models.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	kind, err := s.store.FindKindByName(ctx, strings.TrimSpace(kindName))
	if err != nil {
		return nil, err
	}
	ev, err := s.store.LatestEvent(ctx, v.ID, kind.ID)
	if err != nil {
		return nil, err
	}
	return &models.EventRecord{MaintenanceEvent: *ev, KindName: kind.Name}, nil
}

// ComputeAlerts evaluates one vehicle, or every active vehicle when code is
// empty, using the given look-ahead window. Vehicles are evaluated
// concurrently and the merged result is sorted most urgent first.
func (s *Service) ComputeAlerts(ctx context.Context, code string, days int, distance int64) ([]models.AlertEntry, error) {
	policy := s.policy.WithWindow(days, distance)
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	names, err := s.kindNames(ctx)
	if err != nil {
		return nil, err
	}

	var vehicles []models.Vehicle
	if code = models.NormalizeCode(code); code != "" {
		v, err := s.store.FindVehicle(ctx, code)
		if err != nil {
			return nil, err
		}
		vehicles = []models.Vehicle{*v}
	} else if vehicles, err = s.store.ListVehicles(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	perVehicle := make([][]models.AlertEntry, len(vehicles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, v := range vehicles {
		g.Go(func() error {
			entries, err := s.evaluate(gctx, policy, now, v, names)
			if err != nil {
				return fmt.Errorf("alerts for %s: %w", v.Code, err)
			}
			perVehicle[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []models.AlertEntry{}
	for _, entries := range perVehicle {
		out = append(out, entries...)
	}
	alerts.Sort(out)
	return out, nil
}

// VehicleHistory returns a vehicle with its recent odometer readings and all
// of its maintenance events, newest first.
func (s *Service) VehicleHistory(ctx context.Context, code string) (*models.VehicleHistory, error) {
	v, err := s.store.FindVehicle(ctx, models.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	readings, err := s.store.ListOdometerReadings(ctx, v.ID, db.OdometerHistoryLimit)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	names, err := s.kindNames(ctx)
	if err != nil {
		return nil, err
	}

	h := &models.VehicleHistory{
		Vehicle:     *v,
		Odometer:    readings,
		Maintenance: make([]models.EventRecord, 0, len(events)),
	}
	if h.Odometer == nil {
		h.Odometer = []models.OdometerReading{}
	}
	for _, ev := range events {
		h.Maintenance = append(h.Maintenance, models.EventRecord{MaintenanceEvent: ev, KindName: names[ev.KindID]})
	}
	return h, nil
}

// ListVehicles returns the active vehicles ordered by code.
func (s *Service) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	return s.store.ListVehicles(ctx)
}

// ListKinds returns the maintenance catalog.
func (s *Service) ListKinds(ctx context.Context) ([]models.MaintenanceKind, error) {
	return s.store.ListKinds(ctx)
}

func (s *Service) kindNames(ctx context.Context) (map[string]string, error) {
	kinds, err := s.store.ListKinds(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(kinds))
	for _, k := range kinds {
		names[k.ID] = k.Name
	}
	return names, nil
}

func (s *Service) evaluate(ctx context.Context, policy alerts.Policy, now time.Time, v models.Vehicle, names map[string]string) ([]models.AlertEntry, error) {
	latest, err := s.store.LatestEvents(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	records := make([]models.EventRecord, 0, len(latest))
	for kindID, ev := range latest {
		records = append(records, models.EventRecord{MaintenanceEvent: ev, KindName: names[kindID]})
	}
	slices.SortFunc(records, func(a, b models.EventRecord) int { return cmp.Compare(a.KindID, b.KindID) })
	return policy.Evaluate(now, v, records), nil
}

// publish sends the vehicle's alert snapshot under the default policy.
// Failures are logged only.
func (s *Service) publish(ctx context.Context, v models.Vehicle) {
	names, err := s.kindNames(ctx)
	if err == nil {
		var entries []models.AlertEntry
		entries, err = s.evaluate(ctx, s.policy, s.now(), v, names)
		if err == nil {
			err = s.publisher.PublishAlerts(ctx, v.Code, entries)
		}
	}
	if err != nil {
		log.WithError(err).WithField("vehicle", v.Code).Error("Failed to publish alerts")
	}
}
