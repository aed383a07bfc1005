// Package gatewaytest provides an in-memory Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"parking-layout/internal/editor/gateway"
	"parking-layout/internal/plaza/geometry"
	"parking-layout/internal/plaza/models"
)

// Call records one write that reached the fake.
type Call struct {
	Op     string
	ZoneID string
	Rect   geometry.Rect
	Fields gateway.ZoneFields
	New    gateway.NewZone
}

// Fake keeps levels and zones in memory. Setting Err makes every write fail;
// setting Hold makes every write block until Release is called.
type Fake struct {
	mu      sync.Mutex
	levels  map[string]models.Level
	zones   map[string][]models.Zone
	calls   []Call
	nextID  int
	hold    chan struct{}
	Err     error
	ReadErr error
}

var _ gateway.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		levels: make(map[string]models.Level),
		zones:  make(map[string][]models.Zone),
	}
}

func (f *Fake) AddLevel(l models.Level, zones ...models.Zone) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[l.ID] = l
	for _, z := range zones {
		z.LevelID = l.ID
		f.zones[l.ID] = append(f.zones[l.ID], z)
	}
}

// SetZones replaces the stored zones of a level.
func (f *Fake) SetZones(levelID string, zones ...models.Zone) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zones[levelID] = append([]models.Zone(nil), zones...)
}

// Hold makes writes block until Release.
func (f *Fake) Hold() {
	f.mu.Lock()
	f.hold = make(chan struct{})
	f.mu.Unlock()
}

func (f *Fake) Release() {
	f.mu.Lock()
	if f.hold != nil {
		close(f.hold)
		f.hold = nil
	}
	f.mu.Unlock()
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) CallsFor(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) Level(ctx context.Context, levelID string) (models.Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return models.Level{}, f.ReadErr
	}
	l, ok := f.levels[levelID]
	if !ok {
		return models.Level{}, fmt.Errorf("level: %w", gateway.ErrNotFound)
	}
	return l, nil
}

func (f *Fake) Zones(ctx context.Context, levelID string) ([]models.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	return append([]models.Zone(nil), f.zones[levelID]...), nil
}

func (f *Fake) Create(ctx context.Context, nz gateway.NewZone) (models.Zone, error) {
	if err := f.write(Call{Op: "create", New: nz}); err != nil {
		return models.Zone{}, err
	}
	if !nz.Geometry.Valid() {
		return models.Zone{}, gateway.ErrInvalidGeometry
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	z := models.Zone{
		ID:            fmt.Sprintf("zone-%d", f.nextID),
		LevelID:       nz.LevelID,
		Code:          nz.Code,
		VehicleTypeID: nz.VehicleTypeID,
		State:         nz.State,
		Geometry:      nz.Geometry,
	}
	f.zones[nz.LevelID] = append(f.zones[nz.LevelID], z)
	return z, nil
}

func (f *Fake) UpdateGeometry(ctx context.Context, zoneID string, r geometry.Rect) error {
	if err := f.write(Call{Op: "update_geometry", ZoneID: zoneID, Rect: r}); err != nil {
		return err
	}
	if !r.Valid() {
		return gateway.ErrInvalidGeometry
	}
	return f.mutate(zoneID, func(z *models.Zone) { z.Geometry = r })
}

func (f *Fake) UpdateAttributes(ctx context.Context, zoneID string, fields gateway.ZoneFields) error {
	if err := f.write(Call{Op: "update_attributes", ZoneID: zoneID, Fields: fields}); err != nil {
		return err
	}
	return f.mutate(zoneID, fields.Apply)
}

func (f *Fake) Remove(ctx context.Context, zoneID string) error {
	if err := f.write(Call{Op: "remove", ZoneID: zoneID}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for level, zones := range f.zones {
		for i, z := range zones {
			if z.ID == zoneID {
				f.zones[level] = append(zones[:i:i], zones[i+1:]...)
				return nil
			}
		}
	}
	return gateway.ErrNotFound
}

func (f *Fake) write(c Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	hold := f.hold
	err := f.Err
	f.mu.Unlock()

	if hold != nil {
		<-hold
	}
	return err
}

func (f *Fake) mutate(zoneID string, fn func(z *models.Zone)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, zones := range f.zones {
		for i := range zones {
			if zones[i].ID == zoneID {
				fn(&zones[i])
				return nil
			}
		}
	}
	return gateway.ErrNotFound
}
