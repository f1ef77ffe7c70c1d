package patient

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ers/dispatch/internal/platform/httperr"
	"github.com/ers/dispatch/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.List)
	api.POST("/patients", h.Create)
	api.GET("/patients/:id", h.Get)
	api.PUT("/patients/:id", h.Update)
	api.DELETE("/patients/:id", h.Delete)
	api.PUT("/patients/:id/diagnostic", h.UpdateDiagnostic)
	api.POST("/patients/:id/trauma", h.UpsertTrauma)
}

type patientRequest struct {
	FirstName     string `json:"firstName" validate:"required"`
	LastName      string `json:"lastName" validate:"required"`
	Age           *int   `json:"age" validate:"omitempty,gte=0,lte=150"`
	Gender        string `json:"gender"`
	ContactNumber string `json:"contactNumber"`
	Address       string `json:"address"`
	IncidentID    *int64 `json:"incidentId" validate:"omitempty,gt=0"`
}

func (r patientRequest) toPatient() *Patient {
	return &Patient{
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Age:           r.Age,
		Gender:        r.Gender,
		ContactNumber: r.ContactNumber,
		Address:       r.Address,
		IncidentID:    r.IncidentID,
	}
}

type diagnosticResponse struct {
	*Patient
	DiagnosticID int64 `json:"diagnosticId"`
}

type traumaResponse struct {
	*Patient
	TraumaID int64 `json:"traumaId"`
}

func (h *Handler) List(c echo.Context) error {
	var incidentID int64
	if s := c.QueryParam("incidentId"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid incidentId")
		}
		incidentID = id
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), incidentID, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Create(c echo.Context) error {
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p := req.toPatient()
	if err := h.svc.Create(c.Request().Context(), p); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p := req.toPatient()
	p.ID = id
	out, err := h.svc.Update(c.Request().Context(), p)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateDiagnostic takes any JSON object and keeps only diagnostic fields.
func (h *Handler) UpdateDiagnostic(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	var patch Diagnostic
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpdateDiagnostic(c.Request().Context(), id, patch)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, diagnosticResponse{Patient: p, DiagnosticID: p.Diagnostic.ID})
}

func (h *Handler) UpsertTrauma(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	var patch Trauma
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpsertTrauma(c.Request().Context(), id, patch)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, traumaResponse{Patient: p, TraumaID: p.Trauma.ID})
}

func patientID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid patient id")
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnknownIncident):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return httperr.Internal(err)
	}
}
