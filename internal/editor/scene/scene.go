// Package scene is the arena of zone records for one editor session. Render
// shapes only carry the zone id and transient transform state; all domain data
// lives in the zone records.
package scene

import (
	"parking-layout/internal/plaza/geometry"
	"parking-layout/internal/plaza/models"
)

// ============================================================
// Shapes
// ============================================================

// Shape is the render node of a zone. X and Y are the world position of the
// top-left corner while a gesture is active; ScaleX and ScaleY stay 1 outside
// of a resize.
type Shape struct {
	ZoneID string
	X      float64
	Y      float64
	ScaleX float64
	ScaleY float64
}

// Bounds is a world-space rectangle with fractional coordinates.
type Bounds struct {
	X float64
	Y float64
	W float64
	H float64
}

func (b Bounds) Contains(p geometry.Point) bool {
	return p.X >= b.X && p.X <= b.X+b.W && p.Y >= b.Y && p.Y <= b.Y+b.H
}

// Diff lists what a reconcile pass changed.
type Diff struct {
	Added   []string
	Removed []string
	Updated []string
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}

// ============================================================
// Arena
// ============================================================

type Scene struct {
	zones  map[string]*models.Zone
	shapes map[string]*Shape
	order  []string
}

func New() *Scene {
	return &Scene{
		zones:  make(map[string]*models.Zone),
		shapes: make(map[string]*Shape),
	}
}

func (s *Scene) Len() int {
	return len(s.order)
}

// Clear drops every zone.
func (s *Scene) Clear() {
	s.zones = make(map[string]*models.Zone)
	s.shapes = make(map[string]*Shape)
	s.order = nil
}

// Put inserts or replaces a zone and resets its shape to the zone geometry.
func (s *Scene) Put(z models.Zone) {
	if z.ID == "" {
		return
	}
	if _, ok := s.zones[z.ID]; !ok {
		s.order = append(s.order, z.ID)
	}
	zone := z
	s.zones[z.ID] = &zone
	s.shapes[z.ID] = shapeFor(zone)
}

func (s *Scene) Remove(id string) bool {
	if _, ok := s.zones[id]; !ok {
		return false
	}
	delete(s.zones, id)
	delete(s.shapes, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Scene) Zone(id string) (models.Zone, bool) {
	z, ok := s.zones[id]
	if !ok {
		return models.Zone{}, false
	}
	return *z, true
}

// Zones returns copies of all zones in paint order.
func (s *Scene) Zones() []models.Zone {
	out := make([]models.Zone, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.zones[id])
	}
	return out
}

// SetGeometry replaces the geometry of a zone and resets its shape.
func (s *Scene) SetGeometry(id string, r geometry.Rect) bool {
	z, ok := s.zones[id]
	if !ok {
		return false
	}
	z.Geometry = r
	s.shapes[id] = shapeFor(*z)
	return true
}

// Update applies fn to the stored zone. The id and geometry cannot change
// through Update.
func (s *Scene) Update(id string, fn func(z *models.Zone)) bool {
	z, ok := s.zones[id]
	if !ok {
		return false
	}
	keepID, keepGeometry := z.ID, z.Geometry
	fn(z)
	z.ID, z.Geometry = keepID, keepGeometry
	return true
}

// Shape returns the live render node for a zone.
func (s *Scene) Shape(id string) (*Shape, bool) {
	sh, ok := s.shapes[id]
	return sh, ok
}

// ResetShape discards transient transform state.
func (s *Scene) ResetShape(id string) {
	if z, ok := s.zones[id]; ok {
		s.shapes[id] = shapeFor(*z)
	}
}

// Bounds returns the rendered world bounds of a zone, transient state included.
func (s *Scene) Bounds(id string) (Bounds, bool) {
	z, ok := s.zones[id]
	if !ok {
		return Bounds{}, false
	}
	sh := s.shapes[id]
	return Bounds{
		X: sh.X,
		Y: sh.Y,
		W: float64(z.Geometry.Width) * sh.ScaleX,
		H: float64(z.Geometry.Height) * sh.ScaleY,
	}, true
}

// HitTest returns the topmost zone under a world point.
func (s *Scene) HitTest(p geometry.Point) (string, bool) {
	for i := len(s.order) - 1; i >= 0; i-- {
		id := s.order[i]
		if b, _ := s.Bounds(id); b.Contains(p) {
			return id, true
		}
	}
	return "", false
}

// ============================================================
// Reconcile
// ============================================================

// Reconcile brings the arena in line with the store's zone list. The zone
// named by skip keeps its local record so an active gesture is not disturbed;
// it is still removed when the store no longer has it.
func (s *Scene) Reconcile(zones []models.Zone, skip string) Diff {
	var diff Diff
	seen := make(map[string]bool, len(zones))

	for _, z := range zones {
		if z.ID == "" || seen[z.ID] {
			continue
		}
		seen[z.ID] = true

		current, ok := s.zones[z.ID]
		switch {
		case !ok:
			s.Put(z)
			diff.Added = append(diff.Added, z.ID)
		case z.ID == skip:
		case *current != z:
			s.Put(z)
			diff.Updated = append(diff.Updated, z.ID)
		}
	}

	for _, id := range append([]string(nil), s.order...) {
		if !seen[id] {
			s.Remove(id)
			diff.Removed = append(diff.Removed, id)
		}
	}
	return diff
}

func shapeFor(z models.Zone) *Shape {
	return &Shape{
		ZoneID: z.ID,
		X:      float64(z.Geometry.X),
		Y:      float64(z.Geometry.Y),
		ScaleX: 1,
		ScaleY: 1,
	}
}
