// Package gateway is the only boundary between the editor and the zone store.
// Everything above it works with typed zones and rectangles; the polygon text
// format and the store's HTTP contract stay behind this package.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"parking-layout/internal/plaza/geometry"
	"parking-layout/internal/plaza/models"
)

// ============================================================
// Errors
// ============================================================

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidGeometry = errors.New("geometry is smaller than 1x1")
)

// Error is a non-2xx answer from the store.
type Error struct {
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: store returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: store returned %d: %s", e.Op, e.Status, e.Message)
}

// ============================================================
// Contract
// ============================================================

// NewZone carries everything needed to create a zone.
type NewZone struct {
	LevelID       string
	Geometry      geometry.Rect
	VehicleTypeID string
	Code          string
	State         models.State
}

// ZoneFields is a partial, non-geometric update. Nil fields are left alone.
type ZoneFields struct {
	Code          *string       `json:"code,omitempty"`
	VehicleTypeID *string       `json:"vehicle_type_id,omitempty"`
	State         *models.State `json:"state,omitempty"`
}

func (f ZoneFields) Empty() bool {
	return f.Code == nil && f.VehicleTypeID == nil && f.State == nil
}

// Apply copies the set fields onto z.
func (f ZoneFields) Apply(z *models.Zone) {
	if f.Code != nil {
		z.Code = *f.Code
	}
	if f.VehicleTypeID != nil {
		z.VehicleTypeID = *f.VehicleTypeID
	}
	if f.State != nil {
		z.State = *f.State
	}
}

// Gateway is implemented by Client and by test fakes.
type Gateway interface {
	Level(ctx context.Context, levelID string) (models.Level, error)
	// Zones returns the decodable zones of a level; malformed geometry is
	// dropped, so the result may be shorter than what the store holds.
	Zones(ctx context.Context, levelID string) ([]models.Zone, error)
	Create(ctx context.Context, z NewZone) (models.Zone, error)
	UpdateGeometry(ctx context.Context, zoneID string, r geometry.Rect) error
	UpdateAttributes(ctx context.Context, zoneID string, f ZoneFields) error
	Remove(ctx context.Context, zoneID string) error
}
