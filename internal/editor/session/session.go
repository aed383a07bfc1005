// Package session implements one operator's editing session over a level:
// the interaction state machine, selection and transforms, and the scene
// synchronisation with the store.
//
// A Session is owned by a single goroutine. Run serves events and gateway
// completions from channels; when Run is not active, tests may drive the
// session directly with Handle and Settle.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"parking-layout/internal/common/clock"
	"parking-layout/internal/common/logging"
	"parking-layout/internal/editor/gateway"
	"parking-layout/internal/editor/imageload"
	"parking-layout/internal/editor/scene"
	"parking-layout/internal/editor/viewport"
	"parking-layout/internal/plaza/geometry"
	"parking-layout/internal/plaza/models"
)

var (
	ErrClosed       = errors.New("session closed")
	ErrUnknownEvent = errors.New("unknown event kind")
	ErrUnknownTool  = errors.New("unknown tool")
	ErrUnknownZone  = errors.New("unknown zone")
	ErrInvalidEvent = errors.New("invalid event")
)

// ImageLoader reads the background plan of a level.
type ImageLoader interface {
	Load(ctx context.Context, url string) (imageload.Image, error)
}

// Options configure a session. Zero values are replaced by defaults.
type Options struct {
	DefaultVehicleType string
	Clock              clock.Clock
	Log                *logrus.Entry
}

type request struct {
	events []Event
	reply  chan reply
}

type reply struct {
	frame Frame
	err   error
}

// ============================================================
// Session
// ============================================================

type Session struct {
	id      string
	gw      gateway.Gateway
	images  ImageLoader
	log     *logrus.Entry
	clock   clock.Clock
	vehicle string

	levelID    string
	level      models.Level
	background *imageload.Image
	loadSeq    int

	vp    *viewport.Viewport
	scene *scene.Scene

	tool          Tool
	pending       []geometry.Point
	pointer       *geometry.Point
	candidate     *geometry.Rect
	selected      string
	gesture       *gesture
	pendingDelete string
	notices       []Notice

	inflight    int
	requests    chan request
	completions chan func()
	done        chan struct{}
	closeOnce   sync.Once
	lastActive  atomic.Int64
}

func New(id, levelID string, gw gateway.Gateway, images ImageLoader, opts Options) *Session {
	if opts.DefaultVehicleType == "" {
		opts.DefaultVehicleType = "car"
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}

	s := &Session{
		id:          id,
		gw:          gw,
		images:      images,
		log:         opts.Log.WithFields(logrus.Fields{"session_id": id}),
		clock:       opts.Clock,
		vehicle:     opts.DefaultVehicleType,
		levelID:     levelID,
		vp:          viewport.New(),
		scene:       scene.New(),
		tool:        ToolSelect,
		requests:    make(chan request),
		completions: make(chan func()),
		done:        make(chan struct{}),
	}
	s.touch()
	return s
}

func (s *Session) ID() string {
	return s.id
}

// LastActive is safe to call from any goroutine.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load()).UTC()
}

func (s *Session) touch() {
	s.lastActive.Store(s.clock.Now().UnixNano())
}

// Close stops Run and abandons in-flight completions. Gateway calls already
// sent are not cancelled.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// ============================================================
// Event loop
// ============================================================

// Run owns the session until ctx ends or Close is called.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case req := <-s.requests:
			var err error
			for _, ev := range req.events {
				if err = s.Handle(ev); err != nil {
					break
				}
			}
			req.reply <- reply{frame: s.Frame(), err: err}
		case apply := <-s.completions:
			s.complete(apply)
		}
	}
}

// Submit hands events to the running session and returns the frame that
// results. Events after a failing one are not applied.
func (s *Session) Submit(ctx context.Context, events ...Event) (Frame, error) {
	s.touch()
	req := request{events: events, reply: make(chan reply, 1)}

	select {
	case s.requests <- req:
	case <-s.done:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r.frame, r.err
	case <-s.done:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Snapshot returns the current frame of the running session.
func (s *Session) Snapshot(ctx context.Context) (Frame, error) {
	return s.Submit(ctx)
}

// Settle applies gateway completions until nothing is in flight. Only for use
// when Run is not active.
func (s *Session) Settle(ctx context.Context) error {
	for s.inflight > 0 {
		select {
		case apply := <-s.completions:
			s.complete(apply)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// spawn runs call on its own goroutine with a context that is never
// cancelled. The returned function is applied on the owning goroutine.
func (s *Session) spawn(call func(ctx context.Context) func()) {
	s.inflight++
	ctx := context.WithoutCancel(context.Background())
	go func() {
		apply := call(ctx)
		select {
		case s.completions <- apply:
		case <-s.done:
		}
	}()
}

func (s *Session) complete(apply func()) {
	s.inflight--
	if apply != nil {
		apply()
	}
}

// ============================================================
// Dispatch
// ============================================================

// Handle applies one event. It must only be called from the goroutine that
// owns the session.
func (s *Session) Handle(ev Event) error {
	switch ev.Kind {
	case KindPointerDown:
		s.pointerDown(ev)
	case KindPointerMove:
		s.pointerMove(ev)
	case KindPointerUp:
		s.pointerUp(ev)
	case KindDoubleClick:
		s.doubleClick(ev)
	case KindWheel:
		s.wheel(ev)
	case KindKey:
		s.key(ev.Key)
	case KindSetTool:
		return s.setTool(ev.Tool)
	case KindConfirm:
		s.confirmCandidate(ev.Details)
	case KindCancel:
		s.cancel()
	case KindCreateZone:
		if ev.Rect == nil {
			return fmt.Errorf("%w: create_zone needs a rect", ErrInvalidEvent)
		}
		s.createZone(*ev.Rect, ev.Details)
	case KindRequestDelete:
		return s.requestDelete(ev.ZoneID)
	case KindConfirmDelete:
		s.confirmDelete()
	case KindUpdateAttributes:
		return s.updateAttributes(ev.ZoneID, ev.Fields)
	case KindReload:
		s.reload()
	case KindSwitchLevel:
		return s.switchLevel(ev.LevelID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}
	return nil
}

func (s *Session) notify(kind NoticeKind, severity Severity, zoneID, format string, args ...any) {
	s.notices = append(s.notices, Notice{
		Kind:     kind,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
		ZoneID:   zoneID,
	})
}

// ============================================================
// Pointer & keyboard
// ============================================================

func (s *Session) pointerDown(ev Event) {
	p := ev.point()
	if ev.Button == ButtonMiddle || ev.Button == ButtonSecondary {
		s.vp.BeginPan(p)
		return
	}
	if ev.Button != ButtonPrimary {
		return
	}

	world := s.vp.ScreenToWorld(p)
	switch s.tool {
	case ToolDrawRectangle:
		if _, onZone := s.scene.HitTest(world); onZone {
			return
		}
		s.addPoint(world)
	case ToolSelect:
		if corner, ok := s.handleAt(p); ok {
			s.beginResize(corner, world)
			return
		}
		if id, ok := s.scene.HitTest(world); ok {
			s.selectZone(id)
			s.beginMove(world)
			return
		}
		s.deselect()
		s.vp.BeginPan(p)
	}
}

func (s *Session) pointerMove(ev Event) {
	p := ev.point()
	if s.vp.PanTo(p) {
		return
	}
	world := s.vp.ScreenToWorld(p)
	if s.gesture != nil {
		s.dragTo(world)
		return
	}
	if s.tool == ToolDrawRectangle && len(s.pending) == 1 {
		s.pointer = &world
	}
}

func (s *Session) pointerUp(ev Event) {
	if s.vp.Panning() {
		s.vp.PanTo(ev.point())
		s.vp.EndPan()
		return
	}
	if s.gesture != nil {
		s.release(s.vp.ScreenToWorld(ev.point()))
	}
}

func (s *Session) doubleClick(ev Event) {
	if s.tool != ToolSelect {
		return
	}
	id, ok := s.scene.HitTest(s.vp.ScreenToWorld(ev.point()))
	if !ok {
		return
	}
	s.selectZone(id)
	z, _ := s.scene.Zone(id)
	s.notify(NoticeEditZone, SeverityInfo, id, "Edit parking space %s", z.Code)
}

func (s *Session) wheel(ev Event) {
	switch {
	case ev.DeltaY < 0:
		s.vp.ZoomAtPointer(ev.point(), 1)
	case ev.DeltaY > 0:
		s.vp.ZoomAtPointer(ev.point(), -1)
	}
}

func (s *Session) key(key string) {
	switch key {
	case "Escape":
		s.cancel()
	case "Enter":
		s.confirmCandidate(nil)
	case "Delete", "Backspace":
		if s.selected != "" {
			_ = s.requestDelete(s.selected)
		}
	}
}

func (s *Session) setTool(t Tool) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTool, t)
	}
	if t == s.tool {
		return nil
	}
	s.clearAuthoring()
	if t == ToolDrawRectangle {
		s.deselect()
	}
	s.tool = t
	return nil
}

// cancel drops local, unsubmitted state only.
func (s *Session) cancel() {
	s.clearAuthoring()
	s.pendingDelete = ""
	s.abortGesture()
	s.vp.EndPan()
}

// ============================================================
// Rectangle authoring
// ============================================================

func (s *Session) addPoint(world geometry.Point) {
	if s.candidate != nil {
		return
	}
	s.pending = append(s.pending, world)
	if len(s.pending) < 2 {
		return
	}

	s.pointer = nil
	rect := geometry.RectFromPoints(s.pending[0], s.pending[1])
	if !rect.Valid() {
		s.pending = nil
		s.notify(NoticeMinSize, SeverityWarning, "",
			"A parking space must be at least %dx%d; got %dx%d", geometry.MinSize, geometry.MinSize, rect.Width, rect.Height)
		return
	}
	s.candidate = &rect
}

func (s *Session) clearAuthoring() {
	s.pending = nil
	s.pointer = nil
	s.candidate = nil
}

func (s *Session) confirmCandidate(details *Details) {
	if s.candidate == nil {
		return
	}
	rect := *s.candidate
	s.clearAuthoring()
	s.createZone(rect, details)
}

// createZone sends a new zone to the store. Nothing is added locally until
// the store confirms it.
func (s *Session) createZone(rect geometry.Rect, details *Details) {
	if !rect.Valid() {
		s.notify(NoticeMinSize, SeverityWarning, "",
			"A parking space must be at least %dx%d; got %dx%d", geometry.MinSize, geometry.MinSize, rect.Width, rect.Height)
		return
	}

	nz := gateway.NewZone{
		LevelID:       s.levelID,
		Geometry:      rect,
		VehicleTypeID: s.vehicle,
		State:         models.StateFree,
		Code:          fmt.Sprintf("P-%03d", s.scene.Len()+1),
	}
	if details != nil {
		if details.Code != "" {
			nz.Code = details.Code
		}
		if details.VehicleTypeID != "" {
			nz.VehicleTypeID = details.VehicleTypeID
		}
		if details.State.Valid() {
			nz.State = details.State
		}
	}

	seq := s.loadSeq
	s.spawn(func(ctx context.Context) func() {
		z, err := s.gw.Create(ctx, nz)
		return func() {
			if err != nil {
				s.log.WithError(err).Error("create zone failed")
				s.notify(NoticePersistenceFailed, SeverityError, "", "Could not save parking space %s: %v", nz.Code, err)
				return
			}
			if seq != s.loadSeq {
				return
			}
			s.scene.Put(z)
			s.notify(NoticeZoneCreated, SeverityInfo, z.ID, "Parking space %s saved", z.Code)
		}
	})
}
