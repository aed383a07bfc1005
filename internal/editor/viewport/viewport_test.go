package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"parking-layout/internal/plaza/geometry"
)

const tolerance = 1e-9

func TestTransforms_AreInverse(t *testing.T) {
	v := New()
	v.Pan(geometry.Point{X: 30, Y: -12})
	v.ZoomAtPointer(geometry.Point{X: 100, Y: 100}, 1)

	world := geometry.Point{X: 17.5, Y: 42}
	back := v.ScreenToWorld(v.WorldToScreen(world))
	assert.InDelta(t, world.X, back.X, tolerance)
	assert.InDelta(t, world.Y, back.Y, tolerance)
}

func TestZoomAtPointer_KeepsWorldPointUnderPointer(t *testing.T) {
	v := New()
	v.Pan(geometry.Point{X: 13, Y: 7})
	pointer := geometry.Point{X: 250, Y: 180}

	for i := 0; i < 25; i++ {
		before := v.ScreenToWorld(pointer)
		v.ZoomAtPointer(pointer, 1)
		after := v.ScreenToWorld(pointer)
		assert.InDelta(t, before.X, after.X, 1e-6)
		assert.InDelta(t, before.Y, after.Y, 1e-6)
	}
}

func TestZoomAtPointer_Clamp(t *testing.T) {
	v := New()
	p := geometry.Point{X: 10, Y: 10}

	for i := 0; i < 500; i++ {
		v.ZoomAtPointer(p, 1)
		assert.LessOrEqual(t, v.Scale(), MaxScale)
	}
	assert.Equal(t, MaxScale, v.Scale())

	for i := 0; i < 1000; i++ {
		v.ZoomAtPointer(p, -1)
		assert.GreaterOrEqual(t, v.Scale(), MinScale)
	}
	assert.Equal(t, MinScale, v.Scale())
}

func TestZoomAtPointer_InOutRestoresState(t *testing.T) {
	v := New()
	p := geometry.Point{X: 320, Y: 240}
	initial := v.State()

	for i := 0; i < 10; i++ {
		v.ZoomAtPointer(p, 1)
	}
	assert.Greater(t, v.Scale(), 1.0)
	for i := 0; i < 10; i++ {
		v.ZoomAtPointer(p, -1)
	}

	final := v.State()
	assert.InDelta(t, initial.Scale, final.Scale, tolerance)
	assert.InDelta(t, initial.OffsetX, final.OffsetX, 1e-6)
	assert.InDelta(t, initial.OffsetY, final.OffsetY, 1e-6)
}

func TestZoomAtPointer_ZeroSignIsNoop(t *testing.T) {
	v := New()
	v.ZoomAtPointer(geometry.Point{X: 5, Y: 5}, 0)
	assert.Equal(t, State{Scale: 1}, v.State())
}

func TestPanGesture(t *testing.T) {
	v := New()
	assert.False(t, v.PanTo(geometry.Point{X: 1, Y: 1}))

	v.BeginPan(geometry.Point{X: 10, Y: 10})
	assert.True(t, v.PanTo(geometry.Point{X: 15, Y: 4}))
	assert.True(t, v.PanTo(geometry.Point{X: 20, Y: 4}))
	v.EndPan()

	assert.False(t, v.Panning())
	assert.Equal(t, geometry.Point{X: 10, Y: -6}, v.Offset())

	v.Reset()
	assert.Equal(t, State{Scale: 1}, v.State())
}
