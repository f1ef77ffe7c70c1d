package gps

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ers/dispatch/internal/platform/httperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/gps", h.History)
	api.GET("/gps/latest", h.Latest)
	api.POST("/gps", h.Append)
}

// Device clients send coordinates either as numbers or as strings.
type appendRequest struct {
	DispatchID json.Number `json:"dispatch_id"`
	Latitude   json.Number `json:"latitude"`
	Longitude  json.Number `json:"longitude"`
}

func (h *Handler) Append(c echo.Context) error {
	var req appendRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DispatchID == "" || req.Latitude == "" || req.Longitude == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "dispatch_id, latitude and longitude are required")
	}
	dispatchID, err := req.DispatchID.Int64()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "dispatch_id must be a positive integer")
	}
	lat, err := req.Latitude.Float64()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "latitude must be a number")
	}
	lng, err := req.Longitude.Float64()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "longitude must be a number")
	}

	p, err := h.svc.Append(c.Request().Context(), dispatchID, lat, lng)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) History(c echo.Context) error {
	id, err := dispatchID(c)
	if err != nil {
		return err
	}
	points, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, points)
}

func (h *Handler) Latest(c echo.Context) error {
	id, err := dispatchID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Latest(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func dispatchID(c echo.Context) (int64, error) {
	raw := strings.TrimSpace(c.QueryParam("dispatch_id"))
	if raw == "" {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "dispatch_id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "dispatch_id must be a positive integer")
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return httperr.Internal(err)
	}
}
