package session

import (
	"parking-layout/internal/editor/viewport"
	"parking-layout/internal/plaza/geometry"
	"parking-layout/internal/plaza/models"
)

// ============================================================
// Render frame
// ============================================================

// Frame is the draw list sent to the front end. Every position is in screen
// pixels; World fields carry plan-local values for display only.
type Frame struct {
	SessionID     string           `json:"session_id"`
	LevelID       string           `json:"level_id"`
	Tool          Tool             `json:"tool"`
	Viewport      viewport.State   `json:"viewport"`
	Background    *BackgroundView  `json:"background,omitempty"`
	Shapes        []ShapeView      `json:"shapes"`
	Handles       []HandleView     `json:"handles"`
	Preview       *Segment         `json:"preview,omitempty"`
	Candidate     *RectView        `json:"candidate,omitempty"`
	PendingPoints []geometry.Point `json:"pending_points"`
	PendingDelete string           `json:"pending_delete,omitempty"`
	Notices       []Notice         `json:"notices"`
	InFlight      int              `json:"in_flight"`
}

type BackgroundView struct {
	URL    string  `json:"url"`
	Format string  `json:"format"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ShapeView struct {
	ZoneID        string        `json:"zone_id"`
	Code          string        `json:"code"`
	State         models.State  `json:"state"`
	VehicleTypeID string        `json:"vehicle_type_id"`
	X             float64       `json:"x"`
	Y             float64       `json:"y"`
	Width         float64       `json:"width"`
	Height        float64       `json:"height"`
	ScaleX        float64       `json:"scale_x"`
	ScaleY        float64       `json:"scale_y"`
	Selected      bool          `json:"selected"`
	World         geometry.Rect `json:"world"`
}

type HandleView struct {
	ZoneID string  `json:"zone_id"`
	Corner Corner  `json:"corner"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Size   float64 `json:"size"`
}

type Segment struct {
	From geometry.Point `json:"from"`
	To   geometry.Point `json:"to"`
}

type RectView struct {
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
	Width  float64       `json:"width"`
	Height float64       `json:"height"`
	World  geometry.Rect `json:"world"`
}

// Frame renders the current state and drains pending notices.
func (s *Session) Frame() Frame {
	f := Frame{
		SessionID:     s.id,
		LevelID:       s.levelID,
		Tool:          s.tool,
		Viewport:      s.vp.State(),
		Shapes:        []ShapeView{},
		Handles:       []HandleView{},
		PendingPoints: []geometry.Point{},
		PendingDelete: s.pendingDelete,
		Notices:       s.notices,
		InFlight:      s.inflight,
	}
	if f.Notices == nil {
		f.Notices = []Notice{}
	}
	s.notices = nil

	if bg := s.background; bg != nil {
		x, y, w, h := s.vp.RectToScreen(geometry.Rect{Width: bg.Width, Height: bg.Height})
		f.Background = &BackgroundView{URL: bg.URL, Format: bg.Format, X: x, Y: y, Width: w, Height: h}
	}

	scale := s.vp.Scale()
	for _, z := range s.scene.Zones() {
		b, _ := s.scene.Bounds(z.ID)
		sh, _ := s.scene.Shape(z.ID)
		tl := s.vp.WorldToScreen(geometry.Point{X: b.X, Y: b.Y})
		f.Shapes = append(f.Shapes, ShapeView{
			ZoneID:        z.ID,
			Code:          z.Code,
			State:         z.State,
			VehicleTypeID: z.VehicleTypeID,
			X:             tl.X,
			Y:             tl.Y,
			Width:         b.W * scale,
			Height:        b.H * scale,
			ScaleX:        sh.ScaleX,
			ScaleY:        sh.ScaleY,
			Selected:      z.ID == s.selected,
			World:         z.Geometry,
		})
	}

	if s.selected != "" {
		if b, ok := s.scene.Bounds(s.selected); ok {
			for _, c := range corners {
				p := s.vp.WorldToScreen(cornerOf(b, c))
				f.Handles = append(f.Handles, HandleView{
					ZoneID: s.selected,
					Corner: c,
					X:      p.X - HandleSize/2,
					Y:      p.Y - HandleSize/2,
					Size:   HandleSize,
				})
			}
		}
	}

	for _, p := range s.pending {
		f.PendingPoints = append(f.PendingPoints, s.vp.WorldToScreen(p))
	}
	if len(s.pending) == 1 && s.pointer != nil {
		f.Preview = &Segment{From: s.vp.WorldToScreen(s.pending[0]), To: s.vp.WorldToScreen(*s.pointer)}
	}
	if c := s.candidate; c != nil {
		x, y, w, h := s.vp.RectToScreen(*c)
		f.Candidate = &RectView{X: x, Y: y, Width: w, Height: h, World: *c}
	}
	return f
}
