package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"parking-layout/internal/common/logging"
	"parking-layout/internal/plaza/geometry"
	"parking-layout/internal/plaza/models"
	"parking-layout/internal/store/repository"
)

// Store is the persistence the handlers need.
type Store interface {
	Ping(ctx context.Context) error
	ListLevels(ctx context.Context) ([]models.Level, error)
	GetLevel(ctx context.Context, id string) (models.Level, error)
	CreateLevel(ctx context.Context, l models.Level) (models.Level, error)
	ListZones(ctx context.Context, levelID string) ([]repository.ZoneRow, error)
	CreateZone(ctx context.Context, z repository.ZoneRow) (repository.ZoneRow, error)
	UpdateZone(ctx context.Context, id string, p repository.ZonePatch) (repository.ZoneRow, error)
	DeleteZone(ctx context.Context, id string) error
	VehicleTypes(ctx context.Context) ([]models.VehicleType, error)
}

// ============================================================
// Store Handler
// ============================================================

type StoreHandler struct {
	store    Store
	validate *validator.Validate
	log      *logrus.Entry
}

func NewStoreHandler(store Store, log *logrus.Entry) *StoreHandler {
	if log == nil {
		log = logging.Discard()
	}
	v := validator.New()
	// polygon accepts geometry text that decodes to a rectangle of at least
	// one unit per side.
	_ = v.RegisterValidation("polygon", func(fl validator.FieldLevel) bool {
		r, ok := geometry.Decode(fl.Field().String())
		return ok && r.Valid()
	})
	return &StoreHandler{store: store, validate: v, log: log}
}

// Register mounts every store route on app.
func (h *StoreHandler) Register(app *fiber.App) {
	app.Get("/health/ready", h.Ready)

	app.Get("/levels", h.ListLevels)
	app.Post("/levels", h.CreateLevel)
	app.Get("/levels/:id", h.GetLevel)
	app.Get("/levels/:id/zones", h.ListZones)

	app.Post("/zones", h.CreateZone)
	app.Patch("/zones/:id", h.UpdateZone)
	app.Delete("/zones/:id", h.DeleteZone)

	app.Get("/vehicle-types", h.VehicleTypes)
}

type createLevelRequest struct {
	FacilityID   string `json:"facility_id" validate:"max=64"`
	Name         string `json:"name" validate:"required,max=128"`
	PlanImageURL string `json:"plan_image_url" validate:"omitempty,url"`
}

type createZoneRequest struct {
	LevelID       string       `json:"level_id" validate:"required"`
	Geometry      string       `json:"geometry" validate:"required,polygon"`
	VehicleTypeID string       `json:"vehicle_type_id" validate:"required"`
	Code          string       `json:"code" validate:"max=64"`
	State         models.State `json:"state" validate:"required,oneof=free occupied reserved out_of_service"`
}

type updateZoneRequest struct {
	Geometry      *string       `json:"geometry" validate:"omitempty,polygon"`
	Code          *string       `json:"code" validate:"omitempty,max=64"`
	VehicleTypeID *string       `json:"vehicle_type_id" validate:"omitempty,min=1"`
	State         *models.State `json:"state" validate:"omitempty,oneof=free occupied reserved out_of_service"`
}

// Ready pings the database.
func (h *StoreHandler) Ready(c fiber.Ctx) error {
	if err := h.store.Ping(context.Background()); err != nil {
		h.log.WithError(err).Warn("readiness: db ping failed")
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func (h *StoreHandler) ListLevels(c fiber.Ctx) error {
	levels, err := h.store.ListLevels(context.Background())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(levels)
}

func (h *StoreHandler) GetLevel(c fiber.Ctx) error {
	level, err := h.store.GetLevel(context.Background(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(level)
}

func (h *StoreHandler) CreateLevel(c fiber.Ctx) error {
	var req createLevelRequest
	if rerr := h.bind(c, &req); rerr != nil {
		return reject(c, rerr)
	}

	level, err := h.store.CreateLevel(context.Background(), models.Level{
		FacilityID:   req.FacilityID,
		Name:         req.Name,
		PlanImageURL: req.PlanImageURL,
	})
	if err != nil {
		return h.fail(c, err)
	}
	h.log.WithField("level_id", level.ID).Info("level created")
	return c.Status(http.StatusCreated).JSON(level)
}

func (h *StoreHandler) ListZones(c fiber.Ctx) error {
	zones, err := h.store.ListZones(context.Background(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(zones)
}

func (h *StoreHandler) CreateZone(c fiber.Ctx) error {
	var req createZoneRequest
	if rerr := h.bind(c, &req); rerr != nil {
		return reject(c, rerr)
	}

	zone, err := h.store.CreateZone(context.Background(), repository.ZoneRow{
		LevelID:       req.LevelID,
		Code:          req.Code,
		VehicleTypeID: req.VehicleTypeID,
		State:         req.State,
		Geometry:      req.Geometry,
	})
	if err != nil {
		return h.fail(c, err)
	}
	h.log.WithFields(logrus.Fields{"zone_id": zone.ID, "level_id": zone.LevelID}).Info("zone created")
	return c.Status(http.StatusCreated).JSON(zone)
}

func (h *StoreHandler) UpdateZone(c fiber.Ctx) error {
	var req updateZoneRequest
	if rerr := h.bind(c, &req); rerr != nil {
		return reject(c, rerr)
	}

	patch := repository.ZonePatch{
		Geometry:      req.Geometry,
		Code:          req.Code,
		VehicleTypeID: req.VehicleTypeID,
		State:         req.State,
	}
	if patch.Empty() {
		return writeError(c, http.StatusBadRequest, "nothing to update", "empty_patch")
	}

	zone, err := h.store.UpdateZone(context.Background(), c.Params("id"), patch)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(zone)
}

func (h *StoreHandler) DeleteZone(c fiber.Ctx) error {
	if err := h.store.DeleteZone(context.Background(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	h.log.WithField("zone_id", c.Params("id")).Info("zone deleted")
	return c.SendStatus(http.StatusNoContent)
}

func (h *StoreHandler) VehicleTypes(c fiber.Ctx) error {
	types, err := h.store.VehicleTypes(context.Background())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(types)
}

// ============================================================
// Helpers
// ============================================================

// requestError is a rejected request body.
type requestError struct {
	msg  string
	code string
}

func (e *requestError) Error() string { return e.msg }

// bind decodes and validates the JSON body.
func (h *StoreHandler) bind(c fiber.Ctx, dst any) *requestError {
	if len(c.Body()) == 0 {
		return &requestError{"empty body", "empty_body"}
	}
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		return &requestError{"invalid json", "invalid_json"}
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &requestError{validationMessage(verrs[0]), "validation_" + verrs[0].Tag()}
		}
		return &requestError{err.Error(), "validation"}
	}
	return nil
}

func reject(c fiber.Ctx, e *requestError) error {
	return writeError(c, http.StatusBadRequest, e.msg, e.code)
}

func (h *StoreHandler) fail(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return writeError(c, http.StatusNotFound, "not found", "not_found")
	case errors.Is(err, repository.ErrUnknownLevel):
		return writeError(c, http.StatusUnprocessableEntity, "unknown level", "unknown_level")
	case errors.Is(err, repository.ErrUnknownVehicleType):
		return writeError(c, http.StatusUnprocessableEntity, "unknown vehicle type", "unknown_vehicle_type")
	}
	h.log.WithError(err).WithField("path", c.Path()).Error("store request failed")
	return writeError(c, http.StatusInternalServerError, "internal error", "internal")
}

func writeError(c fiber.Ctx, status int, msg, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of [%s]", fe.Field(), fe.Param())
	case "polygon":
		return fmt.Sprintf("field '%s' is not a readable polygon", fe.Field())
	case "max":
		return fmt.Sprintf("field '%s' must not exceed %s in length", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("field '%s' must be a url", fe.Field())
	default:
		return fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
	}
}
