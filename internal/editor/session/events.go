package session

import (
	"parking-layout/internal/editor/gateway"
	"parking-layout/internal/plaza/geometry"
	"parking-layout/internal/plaza/models"
)

// ============================================================
// Tools
// ============================================================

type Tool string

const (
	ToolSelect        Tool = "select"
	ToolDrawRectangle Tool = "draw-rectangle"
)

func (t Tool) Valid() bool {
	return t == ToolSelect || t == ToolDrawRectangle
}

// ============================================================
// Events
// ============================================================

type Kind string

const (
	KindPointerDown      Kind = "pointer_down"
	KindPointerMove      Kind = "pointer_move"
	KindPointerUp        Kind = "pointer_up"
	KindDoubleClick      Kind = "double_click"
	KindWheel            Kind = "wheel"
	KindKey              Kind = "key"
	KindSetTool          Kind = "set_tool"
	KindConfirm          Kind = "confirm"
	KindCancel           Kind = "cancel"
	KindCreateZone       Kind = "create_zone"
	KindRequestDelete    Kind = "request_delete"
	KindConfirmDelete    Kind = "confirm_delete"
	KindUpdateAttributes Kind = "update_attributes"
	KindReload           Kind = "reload"
	KindSwitchLevel      Kind = "switch_level"
)

// Pointer buttons use the DOM numbering.
const (
	ButtonPrimary   = 0
	ButtonMiddle    = 1
	ButtonSecondary = 2
)

// Details describes a zone being created. Empty fields fall back to the
// session defaults.
type Details struct {
	Code          string       `json:"code"`
	VehicleTypeID string       `json:"vehicle_type_id"`
	State         models.State `json:"state"`
}

// Event is one input from the front end. X and Y are screen pixels.
type Event struct {
	Kind    Kind                `json:"kind"`
	X       float64             `json:"x"`
	Y       float64             `json:"y"`
	Button  int                 `json:"button"`
	DeltaY  float64             `json:"delta_y"`
	Key     string              `json:"key"`
	Tool    Tool                `json:"tool"`
	ZoneID  string              `json:"zone_id"`
	LevelID string              `json:"level_id"`
	Rect    *geometry.Rect      `json:"rect,omitempty"`
	Details *Details            `json:"details,omitempty"`
	Fields  *gateway.ZoneFields `json:"fields,omitempty"`
}

func (e Event) point() geometry.Point {
	return geometry.Point{X: e.X, Y: e.Y}
}

// ============================================================
// Notices
// ============================================================

type NoticeKind string

const (
	NoticeMinSize           NoticeKind = "min_size"
	NoticePersistenceFailed NoticeKind = "persistence_failed"
	NoticeLoadFailed        NoticeKind = "load_failed"
	NoticeZoneCreated       NoticeKind = "zone_created"
	NoticeConfirmDelete     NoticeKind = "confirm_delete"
	NoticeEditZone          NoticeKind = "edit_zone"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a user-facing message delivered with the next frame.
type Notice struct {
	Kind     NoticeKind `json:"kind"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	ZoneID   string     `json:"zone_id,omitempty"`
}
