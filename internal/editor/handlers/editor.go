package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"parking-layout/internal/common/logging"
	"parking-layout/internal/editor/gateway"
	"parking-layout/internal/editor/session"
	"parking-layout/internal/plan"
	"parking-layout/internal/plaza/geometry"
	"parking-layout/internal/reservation"
)

// ============================================================
// Editor Handler
// ============================================================

type EditorHandler struct {
	sessions    *session.Manager
	reservation *reservation.Service
	importer    *plan.Importer
	levels      reservation.Source
	validate    *validator.Validate
	log         *logrus.Entry
}

func NewEditorHandler(
	sessions *session.Manager,
	res *reservation.Service,
	importer *plan.Importer,
	levels reservation.Source,
	log *logrus.Entry,
) *EditorHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &EditorHandler{
		sessions:    sessions,
		reservation: res,
		importer:    importer,
		levels:      levels,
		validate:    validator.New(),
		log:         log,
	}
}

// Register mounts every editor route on app.
func (h *EditorHandler) Register(app *fiber.App) {
	app.Post("/sessions", h.OpenSession)
	app.Get("/sessions/:id", h.GetFrame)
	app.Post("/sessions/:id/events", h.SubmitEvents)
	app.Delete("/sessions/:id", h.CloseSession)

	app.Get("/levels/:id/availability", h.Availability)
	app.Get("/levels/:id/availability.svg", h.AvailabilitySVG)
	app.Post("/levels/:id/pick", h.Pick)
	app.Post("/levels/:id/import", h.Import)
	app.Get("/levels/:id/plan.svg", h.PlanSVG)
}

type openSessionRequest struct {
	LevelID string `json:"level_id" validate:"required"`
}

type eventsRequest struct {
	Events []session.Event `json:"events" validate:"required,min=1"`
}

type pickRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

// ============================================================
// Sessions
// ============================================================

// OpenSession creates a session and answers with its first frame.
func (h *EditorHandler) OpenSession(c fiber.Ctx) error {
	var req openSessionRequest
	if rerr := h.bind(c, &req); rerr != nil {
		return reject(c, rerr)
	}

	s, err := h.sessions.Open(context.Background(), req.LevelID)
	if err != nil {
		return h.fail(c, err)
	}
	frame, err := s.Snapshot(context.Background())
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(frame)
}

// GetFrame returns the current frame. Notices are handed out once.
func (h *EditorHandler) GetFrame(c fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	frame, err := s.Snapshot(context.Background())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(frame)
}

// SubmitEvents applies the events in order. A rejected event stops the batch;
// the frame after the events applied so far comes back with the error.
func (h *EditorHandler) SubmitEvents(c fiber.Ctx) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}

	var req eventsRequest
	if rerr := h.bind(c, &req); rerr != nil {
		return reject(c, rerr)
	}

	frame, err := s.Submit(context.Background(), req.Events...)
	if err != nil {
		if isInputError(err) {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "invalid_event",
				"frame": frame,
			})
		}
		return h.fail(c, err)
	}
	return c.JSON(frame)
}

func (h *EditorHandler) CloseSession(c fiber.Ctx) error {
	if err := h.sessions.Close(c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// ============================================================
// Level views
// ============================================================

func (h *EditorHandler) Availability(c fiber.Ctx) error {
	a, _, err := h.reservation.Availability(context.Background(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(a)
}

func (h *EditorHandler) AvailabilitySVG(c fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.reservation.RenderSVG(context.Background(), c.Params("id"), &buf); err != nil {
		return h.fail(c, err)
	}
	c.Set("Content-Type", "image/svg+xml")
	return c.Send(buf.Bytes())
}

func (h *EditorHandler) PlanSVG(c fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.reservation.RenderPlan(context.Background(), c.Params("id"), &buf); err != nil {
		return h.fail(c, err)
	}
	c.Set("Content-Type", "image/svg+xml")
	return c.Send(buf.Bytes())
}

// Pick returns the free zone under a plan-local point.
func (h *EditorHandler) Pick(c fiber.Ctx) error {
	var req pickRequest
	if rerr := h.bind(c, &req); rerr != nil {
		return reject(c, rerr)
	}

	target, err := h.reservation.Pick(context.Background(), c.Params("id"), geometry.Point{X: *req.X, Y: *req.Y})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(target)
}

// Import creates zones from the parking spaces of an uploaded SVG plan.
func (h *EditorHandler) Import(c fiber.Ctx) error {
	levelID := c.Params("id")
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return writeError(c, http.StatusBadRequest, "file is required", "missing_file")
	}
	if _, err := h.levels.Level(context.Background(), levelID); err != nil {
		return h.fail(c, err)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return h.fail(c, err)
	}
	defer file.Close()

	res, err := h.importer.Import(context.Background(), levelID, file)
	if err != nil {
		if errors.Is(err, plan.ErrNotSVG) {
			return writeError(c, http.StatusBadRequest, err.Error(), "not_svg")
		}
		return writeError(c, http.StatusBadRequest, err.Error(), "invalid_svg")
	}
	return c.JSON(res)
}

// ============================================================
// Helpers
// ============================================================

// requestError is a rejected request body.
type requestError struct {
	msg  string
	code string
}

// bind decodes and validates the JSON body.
func (h *EditorHandler) bind(c fiber.Ctx, dst any) *requestError {
	if len(c.Body()) == 0 {
		return &requestError{"empty body", "empty_body"}
	}
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		return &requestError{"invalid json", "invalid_json"}
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &requestError{fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag()), "validation_" + fe.Tag()}
		}
		return &requestError{err.Error(), "validation"}
	}
	return nil
}

func reject(c fiber.Ctx, e *requestError) error {
	return writeError(c, http.StatusBadRequest, e.msg, e.code)
}

func isInputError(err error) bool {
	return errors.Is(err, session.ErrInvalidEvent) ||
		errors.Is(err, session.ErrUnknownEvent) ||
		errors.Is(err, session.ErrUnknownTool) ||
		errors.Is(err, session.ErrUnknownZone)
}

func (h *EditorHandler) fail(c fiber.Ctx, err error) error {
	var remote *gateway.Error
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrClosed):
		return writeError(c, http.StatusNotFound, "session not found", "session_not_found")
	case errors.Is(err, gateway.ErrNotFound):
		return writeError(c, http.StatusNotFound, "level not found", "not_found")
	case errors.Is(err, reservation.ErrNoTarget):
		return writeError(c, http.StatusNotFound, err.Error(), "no_target")
	case errors.As(err, &remote):
		h.log.WithError(err).WithField("path", c.Path()).Warn("store request failed")
		return writeError(c, http.StatusBadGateway, "store request failed", "store_failed")
	}
	h.log.WithError(err).WithField("path", c.Path()).Error("editor request failed")
	return writeError(c, http.StatusInternalServerError, "internal error", "internal")
}

func writeError(c fiber.Ctx, status int, msg, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
}
