package models

import (
	"encoding/json"

	"parking-layout/internal/plaza/geometry"
)

// ============================================================
// Zone (plaza)
// ============================================================

type State string

const (
	StateFree         State = "free"
	StateOccupied     State = "occupied"
	StateReserved     State = "reserved"
	StateOutOfService State = "out_of_service"
)

// Valid reports whether s is one of the known zone states.
func (s State) Valid() bool {
	switch s {
	case StateFree, StateOccupied, StateReserved, StateOutOfService:
		return true
	}
	return false
}

// Zone is a parking space. ID is empty until the store assigns one.
type Zone struct {
	ID            string        `json:"id,omitempty"`
	LevelID       string        `json:"level_id"`
	Code          string        `json:"code"`
	VehicleTypeID string        `json:"vehicle_type_id"`
	State         State         `json:"state"`
	Geometry      geometry.Rect `json:"geometry"`
}

// ZoneRecord is a zone as the store returns it. Geometry is either polygon
// text or an already structured value and has to go through the codec.
type ZoneRecord struct {
	ID            string          `json:"id"`
	LevelID       string          `json:"level_id"`
	Code          string          `json:"code"`
	VehicleTypeID string          `json:"vehicle_type_id"`
	State         State           `json:"state"`
	Geometry      json.RawMessage `json:"geometry"`
}

// Decode converts the record into a Zone. The boolean is false when the
// geometry cannot be read or is smaller than the minimum zone size.
func (r ZoneRecord) Decode() (Zone, bool) {
	rect, ok := geometry.DecodeJSON(r.Geometry)
	if !ok || !rect.Valid() {
		return Zone{}, false
	}
	return Zone{
		ID:            r.ID,
		LevelID:       r.LevelID,
		Code:          r.Code,
		VehicleTypeID: r.VehicleTypeID,
		State:         r.State,
		Geometry:      rect,
	}, true
}

// ============================================================
// Level (nivel) & catalogue
// ============================================================

type Level struct {
	ID           string `json:"id"`
	FacilityID   string `json:"facility_id"`
	Name         string `json:"name"`
	PlanImageURL string `json:"plan_image_url"`
}

type VehicleType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
