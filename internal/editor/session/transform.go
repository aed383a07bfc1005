package session

import (
	"context"
	"fmt"
	"math"

	"parking-layout/internal/editor/gateway"
	"parking-layout/internal/editor/scene"
	"parking-layout/internal/plaza/geometry"
	"parking-layout/internal/plaza/models"
)

// ============================================================
// Affordances
// ============================================================

// HandleSize is the edge length of a corner handle in screen pixels.
const HandleSize = 10.0

type Corner string

const (
	CornerNW Corner = "nw"
	CornerNE Corner = "ne"
	CornerSE Corner = "se"
	CornerSW Corner = "sw"
)

var corners = []Corner{CornerNW, CornerNE, CornerSE, CornerSW}

func (c Corner) opposite() Corner {
	switch c {
	case CornerNW:
		return CornerSE
	case CornerNE:
		return CornerSW
	case CornerSE:
		return CornerNW
	default:
		return CornerNE
	}
}

func cornerOf(b scene.Bounds, c Corner) geometry.Point {
	switch c {
	case CornerNW:
		return geometry.Point{X: b.X, Y: b.Y}
	case CornerNE:
		return geometry.Point{X: b.X + b.W, Y: b.Y}
	case CornerSE:
		return geometry.Point{X: b.X + b.W, Y: b.Y + b.H}
	default:
		return geometry.Point{X: b.X, Y: b.Y + b.H}
	}
}

type gestureKind int

const (
	gestureMove gestureKind = iota
	gestureResize
)

// gesture is an active drag on the selected zone.
type gesture struct {
	kind   gestureKind
	zoneID string
	corner Corner
	start  geometry.Point
	origin scene.Bounds
}

// ============================================================
// Selection
// ============================================================

// selectZone makes id the single selection. The previous affordance is
// detached first.
func (s *Session) selectZone(id string) {
	if s.selected == id {
		return
	}
	s.abortGesture()
	s.selected = id
}

func (s *Session) deselect() {
	s.abortGesture()
	s.selected = ""
}

// abortGesture drops an unreleased drag and restores the shape.
func (s *Session) abortGesture() {
	if s.gesture == nil {
		return
	}
	s.scene.ResetShape(s.gesture.zoneID)
	s.gesture = nil
}

// handleAt finds the corner handle of the selected zone under a screen point.
func (s *Session) handleAt(p geometry.Point) (Corner, bool) {
	if s.selected == "" {
		return "", false
	}
	b, ok := s.scene.Bounds(s.selected)
	if !ok {
		return "", false
	}
	half := HandleSize / 2
	for _, c := range corners {
		hp := s.vp.WorldToScreen(cornerOf(b, c))
		if math.Abs(p.X-hp.X) <= half && math.Abs(p.Y-hp.Y) <= half {
			return c, true
		}
	}
	return "", false
}

// ============================================================
// Move & resize
// ============================================================

func (s *Session) beginMove(world geometry.Point) {
	b, ok := s.scene.Bounds(s.selected)
	if !ok {
		return
	}
	s.gesture = &gesture{kind: gestureMove, zoneID: s.selected, start: world, origin: b}
}

func (s *Session) beginResize(c Corner, world geometry.Point) {
	b, ok := s.scene.Bounds(s.selected)
	if !ok {
		return
	}
	s.gesture = &gesture{kind: gestureResize, zoneID: s.selected, corner: c, start: world, origin: b}
}

// dragTo updates the transient shape state; the zone record is untouched
// until release.
func (s *Session) dragTo(world geometry.Point) {
	g := s.gesture
	sh, ok := s.scene.Shape(g.zoneID)
	if !ok {
		s.gesture = nil
		return
	}
	delta := world.Sub(g.start)

	switch g.kind {
	case gestureMove:
		sh.X = g.origin.X + delta.X
		sh.Y = g.origin.Y + delta.Y
	case gestureResize:
		anchor := cornerOf(g.origin, g.corner.opposite())
		moving := cornerOf(g.origin, g.corner).Add(delta)
		sh.X = math.Min(anchor.X, moving.X)
		sh.Y = math.Min(anchor.Y, moving.Y)
		sh.ScaleX = stretch(math.Abs(moving.X-anchor.X), g.origin.W)
		sh.ScaleY = stretch(math.Abs(moving.Y-anchor.Y), g.origin.H)
	}
}

// stretch is the scale that takes origin to extent. A shape with no extent on
// an axis keeps scale 1 there.
func stretch(extent, origin float64) float64 {
	if origin <= 0 {
		return 1
	}
	return extent / origin
}

// release ends the drag. The new geometry is snapped to integers, applied to
// the arena immediately and written through once. A failed write is reported
// but not rolled back.
func (s *Session) release(world geometry.Point) {
	s.dragTo(world)
	g := s.gesture
	if g == nil {
		return
	}
	s.gesture = nil

	z, ok := s.scene.Zone(g.zoneID)
	if !ok {
		return
	}
	b, _ := s.scene.Bounds(g.zoneID)

	var next geometry.Rect
	switch g.kind {
	case gestureMove:
		next = z.Geometry.Moved(round(b.X), round(b.Y))
	case gestureResize:
		next = bakeScale(b)
	}

	if next == z.Geometry {
		s.scene.ResetShape(g.zoneID)
		return
	}
	s.scene.SetGeometry(g.zoneID, next)
	s.writeGeometry(g.zoneID, z.Code, next)
}

// bakeScale folds a resize into absolute integer dimensions of at least 1.
func bakeScale(b scene.Bounds) geometry.Rect {
	return geometry.Rect{
		X:      round(b.X),
		Y:      round(b.Y),
		Width:  max(geometry.MinSize, round(b.W)),
		Height: max(geometry.MinSize, round(b.H)),
	}
}

func round(v float64) int {
	return int(math.Round(v))
}

func (s *Session) writeGeometry(zoneID, code string, r geometry.Rect) {
	s.spawn(func(ctx context.Context) func() {
		err := s.gw.UpdateGeometry(ctx, zoneID, r)
		return func() {
			if err != nil {
				s.log.WithError(err).WithField("zone_id", zoneID).Error("update geometry failed")
				s.notify(NoticePersistenceFailed, SeverityError, zoneID,
					"Could not save the new position of %s; reload to see the stored layout", code)
			}
		}
	})
}

// ============================================================
// Attributes
// ============================================================

func (s *Session) updateAttributes(zoneID string, fields *gateway.ZoneFields) error {
	if zoneID == "" {
		zoneID = s.selected
	}
	z, ok := s.scene.Zone(zoneID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownZone, zoneID)
	}
	if fields == nil || fields.Empty() {
		return nil
	}
	if fields.State != nil && !fields.State.Valid() {
		return fmt.Errorf("%w: invalid state %q", ErrInvalidEvent, *fields.State)
	}

	f := *fields
	s.scene.Update(zoneID, f.Apply)
	s.spawn(func(ctx context.Context) func() {
		err := s.gw.UpdateAttributes(ctx, zoneID, f)
		return func() {
			if err != nil {
				s.log.WithError(err).WithField("zone_id", zoneID).Error("update attributes failed")
				s.notify(NoticePersistenceFailed, SeverityError, zoneID, "Could not save the details of %s", z.Code)
			}
		}
	})
	return nil
}

// ============================================================
// Delete
// ============================================================

// requestDelete asks for confirmation before anything is removed.
func (s *Session) requestDelete(zoneID string) error {
	if zoneID == "" {
		zoneID = s.selected
	}
	z, ok := s.scene.Zone(zoneID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownZone, zoneID)
	}
	s.pendingDelete = zoneID
	s.notify(NoticeConfirmDelete, SeverityWarning, zoneID,
		"Delete parking space %s? This cannot be undone.", displayCode(z))
	return nil
}

func (s *Session) confirmDelete() {
	zoneID := s.pendingDelete
	if zoneID == "" {
		return
	}
	s.pendingDelete = ""

	z, ok := s.scene.Zone(zoneID)
	if !ok {
		return
	}
	if s.selected == zoneID {
		s.deselect()
	}
	s.scene.Remove(zoneID)

	s.spawn(func(ctx context.Context) func() {
		err := s.gw.Remove(ctx, zoneID)
		return func() {
			if err != nil {
				s.log.WithError(err).WithField("zone_id", zoneID).Error("remove zone failed")
				s.notify(NoticePersistenceFailed, SeverityError, zoneID,
					"Could not delete %s; reload to see the stored layout", displayCode(z))
			}
		}
	})
}

func displayCode(z models.Zone) string {
	if z.Code != "" {
		return z.Code
	}
	return z.ID
}
