package account

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ers/dispatch/internal/platform/httperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public account endpoints. mw (typically a
// stricter rate limit) guards both.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	api.POST("/register", h.Register, mw...)
	api.POST("/auth", h.Authenticate, mw...)
}

type registerRequest struct {
	Username      string `json:"username" validate:"required,max=64"`
	Password      string `json:"password" validate:"required,max=72"`
	Name          string `json:"name" validate:"required"`
	ContactNumber string `json:"contact_number" validate:"required"`
}

type credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	out, err := h.svc.Register(c.Request().Context(), Registration{
		Username:      req.Username,
		Password:      req.Password,
		Name:          req.Name,
		ContactNumber: req.ContactNumber,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Authenticate(c echo.Context) error {
	var req credentials
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	s, err := h.svc.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUsernameTaken):
		return echo.NewHTTPError(http.StatusConflict, ErrUsernameTaken.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error())
	case errors.Is(err, ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, ErrUnavailable.Error()).SetInternal(err)
	default:
		return httperr.Internal(err)
	}
}
