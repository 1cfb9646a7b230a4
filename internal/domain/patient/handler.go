package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/anabiolink/lims/internal/platform/auth"
	"github.com/anabiolink/lims/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, pol *auth.Engine) {
	read := api.Group("", auth.Require(pol, auth.ResourcePatient, auth.ActionRead))
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:id", h.GetPatient)

	write := api.Group("", auth.Require(pol, auth.ResourcePatient, auth.ActionWrite))
	write.POST("/patients", h.RegisterPatient)
	write.PUT("/patients/:id", h.UpdatePatient)
}

// patientView adds the derived age to the serialized patient.
type patientView struct {
	*Patient
	Age *int `json:"age,omitempty"`
}

func view(p *Patient) patientView {
	return patientView{Patient: p, Age: p.Age()}
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Register(c.Request().Context(), &p); err != nil {
		if errors.Is(err, ErrDuplicateNationalID) {
			return echo.NewHTTPError(http.StatusConflict, "national id already registered")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, view(&p))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, view(p))
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if nid := c.QueryParam("national_id"); nid != "" {
		p, err := h.svc.GetByNationalID(ctx, nid)
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusOK, pagination.NewResponse([]patientView{}, 0, pg.Limit, pg.Offset))
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse([]patientView{view(p)}, 1, pg.Limit, pg.Offset))
	}

	var (
		items []*Patient
		total int
		err   error
	)
	if name := c.QueryParam("name"); name != "" {
		items, total, err = h.svc.SearchByName(ctx, name, pg.Limit, pg.Offset)
	} else {
		items, total, err = h.svc.List(ctx, pg.Limit, pg.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	views := make([]patientView, len(items))
	for i, p := range items {
		views[i] = view(p)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	existing, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	p.AdmissionNo = existing.AdmissionNo
	p.CreatedAt = existing.CreatedAt
	if err := h.svc.Update(c.Request().Context(), &p); err != nil {
		if errors.Is(err, ErrDuplicateNationalID) {
			return echo.NewHTTPError(http.StatusConflict, "national id already registered")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, view(&p))
}
