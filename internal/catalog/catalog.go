// Package catalog loads and seeds the maintenance-kind catalog.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed default_kinds.yaml
var defaultKinds []byte

type file struct {
	Kinds []models.MaintenanceKind `yaml:"kinds"`
}

// KindInserter is the part of the record store used for seeding.
type KindInserter interface {
	InsertKind(ctx context.Context, kind models.MaintenanceKind) (bool, error)
}

// Default returns the built-in catalog.
func Default() ([]models.MaintenanceKind, error) {
	return Parse(bytes.NewReader(defaultKinds))
}

// LoadFile reads a catalog from path, or the built-in one when path is empty.
func LoadFile(path string) ([]models.MaintenanceKind, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a YAML catalog.
func Parse(r io.Reader) ([]models.MaintenanceKind, error) {
	var doc file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := Validate(doc.Kinds); err != nil {
		return nil, err
	}
	return doc.Kinds, nil
}

// Validate checks ids, names and intervals of every kind.
func Validate(kinds []models.MaintenanceKind) error {
	if len(kinds) == 0 {
		return fmt.Errorf("catalog is empty")
	}
	ids := make(map[string]bool, len(kinds))
	names := make(map[string]bool, len(kinds))
	for i, k := range kinds {
		if strings.TrimSpace(k.ID) == "" || strings.TrimSpace(k.Name) == "" {
			return fmt.Errorf("catalog entry %d: id and name are required", i)
		}
		if ids[k.ID] {
			return fmt.Errorf("catalog entry %d: duplicate id %q", i, k.ID)
		}
		if names[k.Name] {
			return fmt.Errorf("catalog entry %d: duplicate name %q", i, k.Name)
		}
		if k.DistanceInterval <= 0 || k.TimeIntervalDays <= 0 {
			return fmt.Errorf("catalog entry %q: %w", k.Name, models.ErrInvalidInterval)
		}
		ids[k.ID] = true
		names[k.Name] = true
	}
	return nil
}

// Seed inserts the kinds that are not in the store yet. Existing entries are left alone.
func Seed(ctx context.Context, store KindInserter, kinds []models.MaintenanceKind) (int, error) {
	inserted := 0
	for _, k := range kinds {
		ok, err := store.InsertKind(ctx, k)
		if err != nil {
			return inserted, fmt.Errorf("seed %q: %w", k.Name, err)
		}
		if ok {
			inserted++
		}
	}
	log.WithFields(log.Fields{"inserted": inserted, "total": len(kinds)}).Info("Maintenance catalog seeded")
	return inserted, nil
}
