package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ers/dispatch/internal/domain/responder"
	"github.com/ers/dispatch/internal/platform/auth"
	"github.com/ers/dispatch/internal/platform/httperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	dispatcher := auth.RequireRole(auth.RoleDispatcher)
	field := auth.RequireRole(auth.RoleDispatcher, auth.RoleResponder)

	api.GET("/alerts", h.List)
	api.POST("/alerts", h.Create, dispatcher)
	api.PUT("/alerts", h.UpdateStatus, dispatcher)
	api.GET("/alerts/:id", h.Get)

	api.POST("/alerts/assign", h.Assign, dispatcher)
	api.POST("/alerts/accept", h.Accept, field)
	api.POST("/alerts/reject", h.Reject, field)
	api.POST("/alerts/unassign", h.Unassign, field)
	api.POST("/alerts/complete", h.Complete, field)
}

type createRequest struct {
	Type        string   `json:"type" validate:"required"`
	Location    string   `json:"location" validate:"required"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Description string   `json:"description" validate:"required"`
	Severity    string   `json:"severity" validate:"required"`
}

// Ids arrive as numbers or numeric strings depending on the client. They
// stay textual until parsed so large values are not rounded through float64.
type actionRequest struct {
	AlertID     json.Number `json:"alertId"`
	ResponderID json.Number `json:"responderId"`
	AssignedBy  json.Number `json:"assignedBy"`
	Status      string      `json:"status"`
}

func (h *Handler) List(c echo.Context) error {
	var f Filter
	if s := c.QueryParam("status"); s != "" {
		st, err := ParseStatus(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Status = st
	}
	if s := c.QueryParam("responderId"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid responderId")
		}
		f.ResponderID = id
	}
	if s := c.QueryParam("unassigned"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unassigned must be true or false")
		}
		f.Unassigned = b
	}

	items, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	a := &Alert{
		Type:        req.Type,
		Location:    req.Location,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Description: req.Description,
		Severity:    req.Severity,
	}
	if err := h.svc.Create(c.Request().Context(), a); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid alert id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	alertID, ok := parsePositiveID(req.AlertID)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing or invalid alertId")
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var responderID int64
	if req.ResponderID != "" {
		if responderID, ok = parsePositiveID(req.ResponderID); !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid responderId")
		}
	}

	a, err := h.svc.UpdateStatus(c.Request().Context(), alertID, status, responderID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Assign(c echo.Context) error {
	req, alertID, responderID, err := bindAction(c)
	if err != nil {
		return err
	}

	var assignedBy *int64
	if req.AssignedBy != "" {
		id, ok := parsePositiveID(req.AssignedBy)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid assignedBy")
		}
		assignedBy = &id
	} else if id := auth.NumericUserID(c.Request().Context()); id > 0 {
		assignedBy = &id
	}

	a, err := h.svc.Assign(c.Request().Context(), alertID, responderID, assignedBy)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Accept(c echo.Context) error   { return h.fieldAction(c, h.svc.Accept) }
func (h *Handler) Reject(c echo.Context) error   { return h.fieldAction(c, h.svc.Reject) }
func (h *Handler) Unassign(c echo.Context) error { return h.fieldAction(c, h.svc.Unassign) }
func (h *Handler) Complete(c echo.Context) error { return h.fieldAction(c, h.svc.Complete) }

// fieldAction runs a transition a responder performs on their own alert.
func (h *Handler) fieldAction(c echo.Context, op func(ctx context.Context, alertID, responderID int64) (*Alert, error)) error {
	_, alertID, responderID, err := bindAction(c)
	if err != nil {
		return err
	}
	if !auth.ActingForResponder(c.Request().Context(), responderID) {
		return echo.NewHTTPError(http.StatusForbidden, "responders may only act on their own assignments")
	}
	a, err := op(c.Request().Context(), alertID, responderID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func bindAction(c echo.Context) (actionRequest, int64, int64, error) {
	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return req, 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	alertID, ok := parsePositiveID(req.AlertID)
	if !ok {
		return req, 0, 0, echo.NewHTTPError(http.StatusBadRequest, "Missing or invalid alertId")
	}
	responderID, ok := parsePositiveID(req.ResponderID)
	if !ok {
		return req, 0, 0, echo.NewHTTPError(http.StatusBadRequest, "Missing or invalid responderId")
	}
	return req, alertID, responderID, nil
}

// parsePositiveID accepts a base-10 integer in int64 range.
func parsePositiveID(n json.Number) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(n.String()), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, responder.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrResponderRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return httperr.Internal(err)
	}
}
