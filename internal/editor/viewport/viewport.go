// Package viewport maps plan-local coordinates to screen pixels under pan and
// zoom. A Viewport belongs to one editor session and is never persisted.
package viewport

import (
	"math"

	"parking-layout/internal/plaza/geometry"
)

// ============================================================
// Limits
// ============================================================

const (
	MinScale = 0.1
	MaxScale = 5.0

	// ZoomStep is the multiplicative factor applied per wheel notch.
	ZoomStep = 1.05
)

// State is the serialisable part of the viewport.
type State struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// Viewport holds the affine transform screen = world*scale + offset and the
// state of an active pan gesture.
type Viewport struct {
	scale   float64
	offset  geometry.Point
	panning bool
	panLast geometry.Point
}

func New() *Viewport {
	return &Viewport{scale: 1}
}

// Reset restores the identity transform and drops any pan gesture.
func (v *Viewport) Reset() {
	v.scale = 1
	v.offset = geometry.Point{}
	v.panning = false
}

func (v *Viewport) Scale() float64 {
	return v.scale
}

func (v *Viewport) Offset() geometry.Point {
	return v.offset
}

func (v *Viewport) State() State {
	return State{Scale: v.scale, OffsetX: v.offset.X, OffsetY: v.offset.Y}
}

// ============================================================
// Transforms
// ============================================================

func (v *Viewport) WorldToScreen(p geometry.Point) geometry.Point {
	return geometry.Point{
		X: p.X*v.scale + v.offset.X,
		Y: p.Y*v.scale + v.offset.Y,
	}
}

func (v *Viewport) ScreenToWorld(p geometry.Point) geometry.Point {
	return geometry.Point{
		X: (p.X - v.offset.X) / v.scale,
		Y: (p.Y - v.offset.Y) / v.scale,
	}
}

// RectToScreen projects a world rectangle into screen space.
func (v *Viewport) RectToScreen(r geometry.Rect) (x, y, w, h float64) {
	tl := v.WorldToScreen(geometry.Point{X: float64(r.X), Y: float64(r.Y)})
	return tl.X, tl.Y, float64(r.Width) * v.scale, float64(r.Height) * v.scale
}

// ============================================================
// Zoom & pan
// ============================================================

// ZoomAtPointer scales by one step in the direction of sign (positive zooms
// in) and keeps the world point under the pointer fixed on screen.
func (v *Viewport) ZoomAtPointer(pointer geometry.Point, sign int) {
	if sign == 0 {
		return
	}
	anchor := v.ScreenToWorld(pointer)

	next := v.scale * ZoomStep
	if sign < 0 {
		next = v.scale / ZoomStep
	}
	next = clamp(next, MinScale, MaxScale)
	if next == v.scale {
		return
	}

	v.scale = next
	v.offset = geometry.Point{
		X: pointer.X - anchor.X*v.scale,
		Y: pointer.Y - anchor.Y*v.scale,
	}
}

// Pan shifts the offset by a screen-space delta.
func (v *Viewport) Pan(delta geometry.Point) {
	v.offset = v.offset.Add(delta)
}

func (v *Viewport) BeginPan(at geometry.Point) {
	v.panning = true
	v.panLast = at
}

// PanTo moves an active pan gesture to the pointer position. It returns false
// when no pan is in progress.
func (v *Viewport) PanTo(at geometry.Point) bool {
	if !v.panning {
		return false
	}
	v.Pan(at.Sub(v.panLast))
	v.panLast = at
	return true
}

func (v *Viewport) EndPan() {
	v.panning = false
}

func (v *Viewport) Panning() bool {
	return v.panning
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}
