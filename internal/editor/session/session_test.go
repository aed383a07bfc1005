package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-layout/internal/editor/gateway"
	"parking-layout/internal/editor/gateway/gatewaytest"
	"parking-layout/internal/editor/imageload"
	"parking-layout/internal/plaza/geometry"
	"parking-layout/internal/plaza/models"
)

func zoneAt(id string, x, y, w, h int) models.Zone {
	return models.Zone{
		ID:            id,
		LevelID:       "L1",
		Code:          "Z-" + id,
		VehicleTypeID: "car",
		State:         models.StateFree,
		Geometry:      geometry.Rect{X: x, Y: y, Width: w, Height: h},
	}
}

func newSession(t *testing.T, zones ...models.Zone) (*Session, *gatewaytest.Fake) {
	t.Helper()
	fake := gatewaytest.New()
	fake.AddLevel(models.Level{ID: "L1", Name: "Ground"}, zones...)
	s := New("s1", "L1", fake, nil, Options{})
	require.NoError(t, s.Load(context.Background()))
	t.Cleanup(s.Close)
	return s, fake
}

func settle(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Settle(ctx))
}

func apply(t *testing.T, s *Session, events ...Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, s.Handle(ev))
	}
}

func down(x, y float64) Event { return Event{Kind: KindPointerDown, X: x, Y: y} }
func move(x, y float64) Event { return Event{Kind: KindPointerMove, X: x, Y: y} }
func up(x, y float64) Event   { return Event{Kind: KindPointerUp, X: x, Y: y} }

func noticeKinds(f Frame) []NoticeKind {
	var kinds []NoticeKind
	for _, n := range f.Notices {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

// ============================================================
// Rectangle authoring
// ============================================================

func TestAuthoring_DegenerateRectangleIsRejected(t *testing.T) {
	s, fake := newSession(t)
	apply(t, s,
		Event{Kind: KindSetTool, Tool: ToolDrawRectangle},
		down(5, 5),
		down(5, 5),
	)

	f := s.Frame()
	assert.Empty(t, f.PendingPoints)
	assert.Nil(t, f.Candidate)
	assert.Equal(t, []NoticeKind{NoticeMinSize}, noticeKinds(f))

	settle(t, s)
	assert.Empty(t, fake.Calls())
}

func TestAuthoring_SubUnitHeightNeverReachesGateway(t *testing.T) {
	s, fake := newSession(t)
	apply(t, s,
		Event{Kind: KindSetTool, Tool: ToolDrawRectangle},
		down(0, 0),
		down(40, 0.4),
		Event{Kind: KindConfirm},
	)
	settle(t, s)

	assert.Empty(t, fake.Calls())
	assert.Contains(t, noticeKinds(s.Frame()), NoticeMinSize)
}

func TestAuthoring_TwoClicksThenConfirm(t *testing.T) {
	s, fake := newSession(t)
	apply(t, s,
		Event{Kind: KindSetTool, Tool: ToolDrawRectangle},
		down(10, 10),
		move(25, 30),
	)

	f := s.Frame()
	require.NotNil(t, f.Preview)
	assert.Equal(t, geometry.Point{X: 10, Y: 10}, f.Preview.From)
	assert.Equal(t, geometry.Point{X: 25, Y: 30}, f.Preview.To)
	assert.Len(t, f.PendingPoints, 1)

	apply(t, s, down(40, 50), down(70, 70))
	f = s.Frame()
	require.NotNil(t, f.Candidate)
	assert.Equal(t, geometry.Rect{X: 10, Y: 10, Width: 30, Height: 40}, f.Candidate.World)
	assert.Len(t, f.PendingPoints, 2)
	assert.Nil(t, f.Preview)

	apply(t, s, Event{Kind: KindConfirm, Details: &Details{Code: "A-01"}})
	assert.Equal(t, 0, s.scene.Len(), "no optimistic insert for new zones")
	f = s.Frame()
	assert.Empty(t, f.PendingPoints)
	assert.Nil(t, f.Candidate)
	assert.Equal(t, 1, f.InFlight)

	settle(t, s)
	calls := fake.CallsFor("create")
	require.Len(t, calls, 1)
	assert.Equal(t, gateway.NewZone{
		LevelID:       "L1",
		Geometry:      geometry.Rect{X: 10, Y: 10, Width: 30, Height: 40},
		VehicleTypeID: "car",
		Code:          "A-01",
		State:         models.StateFree,
	}, calls[0].New)

	f = s.Frame()
	require.Len(t, f.Shapes, 1)
	assert.Equal(t, "A-01", f.Shapes[0].Code)
	assert.Equal(t, []NoticeKind{NoticeZoneCreated}, noticeKinds(f))
}

func TestAuthoring_CreateFailureLeavesNoTrace(t *testing.T) {
	s, fake := newSession(t)
	fake.Err = errors.New("store down")

	apply(t, s,
		Event{Kind: KindSetTool, Tool: ToolDrawRectangle},
		down(0, 0),
		down(10, 10),
		Event{Kind: KindKey, Key: "Enter"},
	)
	settle(t, s)

	f := s.Frame()
	assert.Empty(t, f.Shapes)
	assert.Equal(t, []NoticeKind{NoticePersistenceFailed}, noticeKinds(f))
}

func TestAuthoring_CancelAndToolSwitchDropCandidate(t *testing.T) {
	s, fake := newSession(t)
	apply(t, s,
		Event{Kind: KindSetTool, Tool: ToolDrawRectangle},
		down(0, 0),
		down(10, 10),
		Event{Kind: KindKey, Key: "Escape"},
	)
	assert.Nil(t, s.Frame().Candidate)

	apply(t, s,
		down(0, 0),
		Event{Kind: KindSetTool, Tool: ToolSelect},
	)
	f := s.Frame()
	assert.Empty(t, f.PendingPoints)
	assert.Equal(t, ToolSelect, f.Tool)

	settle(t, s)
	assert.Empty(t, fake.Calls())
}

func TestAuthoring_ClickOnZoneIsIgnored(t *testing.T) {
	s, _ := newSession(t, zoneAt("a", 0, 0, 20, 20))
	apply(t, s,
		Event{Kind: KindSetTool, Tool: ToolDrawRectangle},
		down(5, 5),
	)
	assert.Empty(t, s.Frame().PendingPoints)
}

func TestCreateZone_WithDetails(t *testing.T) {
	s, fake := newSession(t)
	rect := geometry.Rect{X: 1, Y: 2, Width: 3, Height: 4}
	apply(t, s, Event{
		Kind:    KindCreateZone,
		Rect:    &rect,
		Details: &Details{Code: "M-1", VehicleTypeID: "motorcycle", State: models.StateReserved},
	})
	settle(t, s)

	calls := fake.CallsFor("create")
	require.Len(t, calls, 1)
	assert.Equal(t, "motorcycle", calls[0].New.VehicleTypeID)
	assert.Equal(t, models.StateReserved, calls[0].New.State)

	small := geometry.Rect{X: 1, Y: 2, Width: 0, Height: 4}
	apply(t, s, Event{Kind: KindCreateZone, Rect: &small})
	settle(t, s)
	assert.Len(t, fake.CallsFor("create"), 1)

	assert.Error(t, s.Handle(Event{Kind: KindCreateZone}))
}

// ============================================================
// Selection & transforms
// ============================================================

func TestSelection_SingleZone(t *testing.T) {
	s, _ := newSession(t, zoneAt("a", 0, 0, 10, 10), zoneAt("b", 20, 0, 10, 10))

	apply(t, s, down(5, 5), up(5, 5))
	assert.Equal(t, "a", s.selected)
	assert.Len(t, s.Frame().Handles, 4)

	apply(t, s, down(25, 5), up(25, 5))
	assert.Equal(t, "b", s.selected)
	f := s.Frame()
	require.Len(t, f.Handles, 4)
	assert.Equal(t, "b", f.Handles[0].ZoneID)

	apply(t, s, down(100, 100), up(100, 100))
	assert.Empty(t, s.selected)
	assert.Empty(t, s.Frame().Handles)

	apply(t, s, down(5, 5), up(5, 5), Event{Kind: KindSetTool, Tool: ToolDrawRectangle})
	assert.Empty(t, s.selected)
}

func TestMove_OptimisticAndWrittenOnce(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 10, 10, 20, 20))
	fake.Hold()

	apply(t, s, down(15, 15), move(16, 14), move(18, 13))
	f := s.Frame()
	require.Len(t, f.Shapes, 1)
	assert.Equal(t, 13.0, f.Shapes[0].X)
	assert.Equal(t, 8.0, f.Shapes[0].Y)
	assert.Empty(t, fake.Calls(), "nothing is written while dragging")

	apply(t, s, up(18, 13))

	z, _ := s.scene.Zone("a")
	assert.Equal(t, geometry.Rect{X: 13, Y: 8, Width: 20, Height: 20}, z.Geometry, "local state updates before the call resolves")
	assert.Equal(t, 1, s.Frame().InFlight)

	require.Eventually(t, func() bool { return len(fake.CallsFor("update_geometry")) == 1 },
		time.Second, 5*time.Millisecond)
	fake.Release()
	settle(t, s)

	calls := fake.CallsFor("update_geometry")
	require.Len(t, calls, 1)
	assert.Equal(t, "a", calls[0].ZoneID)
	assert.Equal(t, geometry.Rect{X: 13, Y: 8, Width: 20, Height: 20}, calls[0].Rect)
}

func TestMove_RoundsToIntegers(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 10, 10, 20, 20))
	apply(t, s, down(15, 15), move(17.6, 13.6), up(17.6, 13.6))
	settle(t, s)

	calls := fake.CallsFor("update_geometry")
	require.Len(t, calls, 1)
	assert.Equal(t, geometry.Rect{X: 13, Y: 9, Width: 20, Height: 20}, calls[0].Rect)
}

func TestMove_UnderZoomUsesWorldUnits(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 10, 10, 20, 20))
	s.vp.Pan(geometry.Point{X: 100, Y: 50})
	for i := 0; i < 15; i++ {
		s.vp.ZoomAtPointer(geometry.Point{X: 0, Y: 0}, 1)
	}

	start := s.vp.WorldToScreen(geometry.Point{X: 15, Y: 15})
	end := s.vp.WorldToScreen(geometry.Point{X: 18, Y: 13})
	apply(t, s, down(start.X, start.Y), move(end.X, end.Y), up(end.X, end.Y))
	settle(t, s)

	calls := fake.CallsFor("update_geometry")
	require.Len(t, calls, 1)
	assert.Equal(t, geometry.Rect{X: 13, Y: 8, Width: 20, Height: 20}, calls[0].Rect)
}

func TestMove_UnchangedReleaseWritesNothing(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 10, 10, 20, 20))
	apply(t, s, down(15, 15), move(15.2, 14.9), up(15.2, 14.9))
	settle(t, s)
	assert.Empty(t, fake.Calls())
}

func TestMove_FailureIsNotRolledBack(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 10, 10, 20, 20))
	fake.Err = errors.New("store down")

	apply(t, s, down(15, 15), move(20, 20), up(20, 20))
	settle(t, s)

	z, _ := s.scene.Zone("a")
	assert.Equal(t, geometry.Rect{X: 15, Y: 15, Width: 20, Height: 20}, z.Geometry)
	assert.Equal(t, []NoticeKind{NoticePersistenceFailed}, noticeKinds(s.Frame()))

	fake.Err = nil
	apply(t, s, Event{Kind: KindReload})
	settle(t, s)
	z, _ = s.scene.Zone("a")
	assert.Equal(t, geometry.Rect{X: 10, Y: 10, Width: 20, Height: 20}, z.Geometry, "reload recovers store truth")
}

func TestResize_ZoneWithoutExtentKeepsFrameFinite(t *testing.T) {
	s, _ := newSession(t, zoneAt("a", 5, 5, 0, 0))
	apply(t, s, down(5, 5), up(5, 5))
	require.Equal(t, "a", s.selected)

	apply(t, s, down(5, 5), move(8, 9))
	f := s.Frame()
	require.Len(t, f.Shapes, 1)
	assert.Equal(t, 1.0, f.Shapes[0].ScaleX)
	assert.Equal(t, 1.0, f.Shapes[0].ScaleY)
	_, err := json.Marshal(f)
	assert.NoError(t, err)
}

func TestResize_BakesScaleIntoDimensions(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 0, 0, 10, 10))
	apply(t, s, down(5, 5), up(5, 5))

	apply(t, s, down(10, 10), move(25.4, 20.6))
	f := s.Frame()
	require.Len(t, f.Shapes, 1)
	assert.InDelta(t, 2.54, f.Shapes[0].ScaleX, 1e-9)
	assert.InDelta(t, 2.06, f.Shapes[0].ScaleY, 1e-9)

	apply(t, s, up(25.4, 20.6))

	z, _ := s.scene.Zone("a")
	assert.Equal(t, geometry.Rect{X: 0, Y: 0, Width: 25, Height: 21}, z.Geometry)
	sh, _ := s.scene.Shape("a")
	assert.Equal(t, 1.0, sh.ScaleX)
	assert.Equal(t, 1.0, sh.ScaleY)

	settle(t, s)
	calls := fake.CallsFor("update_geometry")
	require.Len(t, calls, 1)
	assert.Equal(t, geometry.Rect{X: 0, Y: 0, Width: 25, Height: 21}, calls[0].Rect)
}

func TestResize_AnchorsOppositeCorner(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 10, 10, 10, 10))
	apply(t, s, down(15, 15), up(15, 15))

	apply(t, s, down(10, 10), move(4, 6), up(4, 6))
	settle(t, s)

	calls := fake.CallsFor("update_geometry")
	require.Len(t, calls, 1)
	assert.Equal(t, geometry.Rect{X: 4, Y: 6, Width: 16, Height: 14}, calls[0].Rect)
}

func TestResize_CollapsedShapeKeepsMinimumSize(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 0, 0, 10, 10))
	apply(t, s, down(5, 5), up(5, 5))
	apply(t, s, down(10, 10), move(0.2, 0.2), up(0.2, 0.2))
	settle(t, s)

	calls := fake.CallsFor("update_geometry")
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Rect.Valid())
	assert.Equal(t, geometry.Rect{X: 0, Y: 0, Width: 1, Height: 1}, calls[0].Rect)
}

func TestCancelDuringDragRestoresShape(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 10, 10, 20, 20))
	apply(t, s, down(15, 15), move(40, 40), Event{Kind: KindCancel}, up(40, 40))
	settle(t, s)

	b, _ := s.scene.Bounds("a")
	assert.Equal(t, 10.0, b.X)
	assert.Empty(t, fake.Calls())
}

// ============================================================
// Delete & attributes
// ============================================================

func TestDelete_RequiresConfirmation(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 0, 0, 10, 10))
	apply(t, s, down(5, 5), up(5, 5), Event{Kind: KindKey, Key: "Delete"})

	f := s.Frame()
	assert.Equal(t, "a", f.PendingDelete)
	require.Len(t, f.Notices, 1)
	assert.Equal(t, NoticeConfirmDelete, f.Notices[0].Kind)
	assert.Contains(t, f.Notices[0].Message, "Z-a")

	apply(t, s, Event{Kind: KindCancel})
	assert.Empty(t, s.Frame().PendingDelete)
	apply(t, s, Event{Kind: KindConfirmDelete})
	settle(t, s)
	assert.Empty(t, fake.Calls())
	assert.Equal(t, 1, s.scene.Len())

	apply(t, s,
		Event{Kind: KindRequestDelete, ZoneID: "a"},
		Event{Kind: KindConfirmDelete},
	)
	assert.Equal(t, 0, s.scene.Len())
	assert.Empty(t, s.selected)
	assert.Empty(t, s.Frame().Handles)

	settle(t, s)
	calls := fake.CallsFor("remove")
	require.Len(t, calls, 1)
	assert.Equal(t, "a", calls[0].ZoneID)
}

func TestDelete_FailureKeepsLocalRemoval(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 0, 0, 10, 10))
	fake.Err = errors.New("boom")
	apply(t, s, Event{Kind: KindRequestDelete, ZoneID: "a"}, Event{Kind: KindConfirmDelete})
	settle(t, s)

	assert.Equal(t, 0, s.scene.Len())
	assert.Contains(t, noticeKinds(s.Frame()), NoticePersistenceFailed)
}

func TestDelete_UnknownZone(t *testing.T) {
	s, _ := newSession(t)
	err := s.Handle(Event{Kind: KindRequestDelete, ZoneID: "nope"})
	assert.ErrorIs(t, err, ErrUnknownZone)
}

func TestUpdateAttributes(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 0, 0, 10, 10))
	code := "VIP-1"
	state := models.StateOutOfService
	apply(t, s, Event{Kind: KindUpdateAttributes, ZoneID: "a", Fields: &gateway.ZoneFields{Code: &code, State: &state}})

	z, _ := s.scene.Zone("a")
	assert.Equal(t, "VIP-1", z.Code)
	assert.Equal(t, models.StateOutOfService, z.State)

	settle(t, s)
	require.Len(t, fake.CallsFor("update_attributes"), 1)

	bad := models.State("parked")
	err := s.Handle(Event{Kind: KindUpdateAttributes, ZoneID: "a", Fields: &gateway.ZoneFields{State: &bad}})
	assert.Error(t, err)
}

func TestDoubleClickOpensEditor(t *testing.T) {
	s, _ := newSession(t, zoneAt("a", 0, 0, 10, 10))
	apply(t, s, Event{Kind: KindDoubleClick, X: 5, Y: 5})

	f := s.Frame()
	require.Len(t, f.Notices, 1)
	assert.Equal(t, NoticeEditZone, f.Notices[0].Kind)
	assert.Equal(t, "a", f.Notices[0].ZoneID)
	assert.Empty(t, s.Frame().Notices, "notices are delivered once")
}

// ============================================================
// Viewport gestures
// ============================================================

func TestWheelAndPan(t *testing.T) {
	s, _ := newSession(t, zoneAt("a", 10, 10, 5, 5))

	apply(t, s, Event{Kind: KindWheel, X: 100, Y: 100, DeltaY: -120})
	assert.InDelta(t, 1.05, s.Frame().Viewport.Scale, 1e-12)
	apply(t, s, Event{Kind: KindWheel, X: 100, Y: 100, DeltaY: 120})
	assert.InDelta(t, 1.0, s.Frame().Viewport.Scale, 1e-12)

	apply(t, s,
		Event{Kind: KindPointerDown, X: 0, Y: 0, Button: ButtonMiddle},
		move(10, 5),
		up(10, 5),
	)
	vp := s.Frame().Viewport
	assert.InDelta(t, 10, vp.OffsetX, 1e-9)
	assert.InDelta(t, 5, vp.OffsetY, 1e-9)

	apply(t, s, down(22, 17), up(22, 17))
	assert.Equal(t, "a", s.selected)
}

func TestBackgroundPanInSelectMode(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 50, 50, 5, 5))
	apply(t, s, down(0, 0), move(-20, -10), up(-20, -10))

	vp := s.Frame().Viewport
	assert.Equal(t, -20.0, vp.OffsetX)
	assert.Equal(t, -10.0, vp.OffsetY)
	settle(t, s)
	assert.Empty(t, fake.Calls())
}

// ============================================================
// Synchronisation
// ============================================================

func TestReload_ReconcilesWithoutDisturbingGesture(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 0, 0, 10, 10), zoneAt("b", 20, 0, 10, 10))

	apply(t, s, down(5, 5), move(7, 5))
	fake.SetZones("L1", zoneAt("a", 90, 90, 10, 10), zoneAt("c", 40, 0, 10, 10))
	apply(t, s, Event{Kind: KindReload})
	settle(t, s)

	ids := []string{}
	for _, sh := range s.Frame().Shapes {
		ids = append(ids, sh.ZoneID)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, ids)

	b, _ := s.scene.Bounds("a")
	assert.Equal(t, 2.0, b.X, "zone under the pointer keeps following it")

	apply(t, s, up(7, 5))
	settle(t, s)
	calls := fake.CallsFor("update_geometry")
	require.Len(t, calls, 1)
	assert.Equal(t, geometry.Rect{X: 2, Y: 0, Width: 10, Height: 10}, calls[0].Rect)
}

func TestReload_DropsSelectionOfRemovedZone(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 0, 0, 10, 10))
	apply(t, s, down(5, 5), up(5, 5), Event{Kind: KindRequestDelete})
	fake.SetZones("L1")
	apply(t, s, Event{Kind: KindReload})
	settle(t, s)

	assert.Empty(t, s.selected)
	assert.Empty(t, s.pendingDelete)
}

func TestReload_FailureNotice(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 0, 0, 10, 10))
	fake.ReadErr = errors.New("offline")
	apply(t, s, Event{Kind: KindReload})
	settle(t, s)

	f := s.Frame()
	assert.Len(t, f.Shapes, 1)
	assert.Equal(t, []NoticeKind{NoticeLoadFailed}, noticeKinds(f))
}

func TestMalformedGeometryIsDroppedFromScene(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/levels/L1":
			io.WriteString(w, `{"id":"L1","name":"Ground"}`)
		case "/levels/L1/zones":
			io.WriteString(w, `[
				{"id":"ok","level_id":"L1","state":"free","geometry":"POLYGON((0 0, 5 0, 5 5, 0 5, 0 0))"},
				{"id":"bad","level_id":"L1","state":"free","geometry":"foo"}
			]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := New("s1", "L1", gateway.NewClient(srv.URL, srv.Client(), nil), nil, Options{})
	defer s.Close()
	require.NoError(t, s.Load(context.Background()))

	f := s.Frame()
	require.Len(t, f.Shapes, 1)
	assert.Equal(t, "ok", f.Shapes[0].ZoneID)
}

type stubImages struct {
	img imageload.Image
	err error
}

func (s stubImages) Load(ctx context.Context, url string) (imageload.Image, error) {
	if s.err != nil {
		return imageload.Image{}, s.err
	}
	img := s.img
	img.URL = url
	return img, nil
}

func TestBackground(t *testing.T) {
	fake := gatewaytest.New()
	fake.AddLevel(models.Level{ID: "L1", PlanImageURL: "http://plans/l1.png"}, zoneAt("a", 0, 0, 5, 5))

	s := New("s1", "L1", fake, stubImages{img: imageload.Image{Format: "png", Width: 800, Height: 600}}, Options{})
	defer s.Close()
	require.NoError(t, s.Load(context.Background()))
	settle(t, s)

	s.vp.ZoomAtPointer(geometry.Point{}, 1)
	f := s.Frame()
	require.NotNil(t, f.Background)
	assert.Equal(t, "http://plans/l1.png", f.Background.URL)
	assert.InDelta(t, 840, f.Background.Width, 1e-9)

	broken := New("s2", "L1", fake, stubImages{err: errors.New("404")}, Options{})
	defer broken.Close()
	require.NoError(t, broken.Load(context.Background()))
	settle(t, broken)

	f = broken.Frame()
	assert.Nil(t, f.Background)
	assert.Len(t, f.Shapes, 1)
}

func TestSwitchLevel(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 0, 0, 10, 10))
	fake.AddLevel(models.Level{ID: "L2"}, models.Zone{ID: "x", Geometry: geometry.Rect{Width: 3, Height: 3}})

	apply(t, s,
		Event{Kind: KindWheel, DeltaY: -1},
		down(5, 5), up(5, 5),
		Event{Kind: KindSwitchLevel, LevelID: "L2"},
	)
	f := s.Frame()
	assert.Equal(t, "L2", f.LevelID)
	assert.Equal(t, 1.0, f.Viewport.Scale)
	assert.Empty(t, f.Shapes)
	assert.Empty(t, s.selected)

	settle(t, s)
	f = s.Frame()
	require.Len(t, f.Shapes, 1)
	assert.Equal(t, "x", f.Shapes[0].ZoneID)

	assert.Error(t, s.Handle(Event{Kind: KindSwitchLevel}))
}

func TestHandle_RejectsUnknownInput(t *testing.T) {
	s, _ := newSession(t)
	assert.ErrorIs(t, s.Handle(Event{Kind: "teleport"}), ErrUnknownEvent)
	assert.ErrorIs(t, s.Handle(Event{Kind: KindSetTool, Tool: "lasso"}), ErrUnknownTool)
}

// ============================================================
// Event loop
// ============================================================

func TestRun_SubmitAndCompletions(t *testing.T) {
	s, fake := newSession(t, zoneAt("a", 0, 0, 10, 10))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	f, err := s.Submit(ctx,
		Event{Kind: KindSetTool, Tool: ToolDrawRectangle},
		down(20, 20),
		down(30, 35),
		Event{Kind: KindConfirm},
	)
	require.NoError(t, err)
	assert.Len(t, f.Shapes, 1)

	require.Eventually(t, func() bool {
		snap, err := s.Snapshot(ctx)
		return err == nil && len(snap.Shapes) == 2 && snap.InFlight == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, fake.CallsFor("create"), 1)

	_, err = s.Submit(ctx, Event{Kind: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	s.Close()
	require.NoError(t, <-errCh)
	_, err = s.Submit(context.Background(), move(1, 1))
	assert.ErrorIs(t, err, ErrClosed)
}
