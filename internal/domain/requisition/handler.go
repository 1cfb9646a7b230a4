package requisition

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anabiolink/lims/internal/domain/patient"
	"github.com/anabiolink/lims/internal/platform/auth"
	"github.com/anabiolink/lims/internal/platform/notify"
	"github.com/anabiolink/lims/internal/platform/report"
	"github.com/anabiolink/lims/pkg/pagination"
)

// PatientSource resolves the patient a requisition belongs to.
type PatientSource interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Handler struct {
	svc      *Service
	patients PatientSource
	renderer *report.Renderer
	mailer   *notify.Mailer
	logger   zerolog.Logger
}

func NewHandler(svc *Service, patients PatientSource, renderer *report.Renderer, mailer *notify.Mailer, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, patients: patients, renderer: renderer, mailer: mailer, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group, pol *auth.Engine) {
	read := api.Group("", auth.Require(pol, auth.ResourceRequisition, auth.ActionRead))
	read.GET("/requisitions", h.List)
	read.GET("/requisitions/:id", h.Get)
	read.GET("/requisitions/:id/exams", h.ListExams)

	write := api.Group("", auth.Require(pol, auth.ResourceRequisition, auth.ActionWrite))
	write.POST("/requisitions", h.Create)
	write.PUT("/requisitions/:id", h.Update)
	write.POST("/requisitions/:id/exams", h.AddExams)
	write.DELETE("/requisitions/:id/exams/:examID", h.RemoveExam)
	write.POST("/requisitions/:id/status", h.ChangeStatus)

	resultRead := api.Group("", auth.Require(pol, auth.ResourceResult, auth.ActionRead))
	resultRead.GET("/requisitions/:id/results", h.ListResults)

	resultWrite := api.Group("", auth.Require(pol, auth.ResourceResult, auth.ActionWrite))
	resultWrite.PUT("/results/:id", h.EnterResult)

	validate := api.Group("", auth.Require(pol, auth.ResourceResult, auth.ActionValidate))
	validate.POST("/results/:id/validate", h.ValidateResult)

	reports := api.Group("", auth.Require(pol, auth.ResourceReport, auth.ActionRead))
	reports.GET("/requisitions/:id/order.pdf", h.OrderPDF)
	reports.GET("/requisitions/:id/report.pdf", h.ReportPDF)
}

// actor identifies the logged-in user for the operation log, preferring the
// display name over the subject id.
func actor(c echo.Context) string {
	ctx := c.Request().Context()
	if name := auth.UserNameFromContext(ctx); name != "" {
		return name
	}
	return auth.UserIDFromContext(ctx)
}

type createRequest struct {
	PatientID uuid.UUID   `json:"patient_id"`
	AnalystID *string     `json:"analyst_id"`
	Notes     string      `json:"notes"`
	ExamIDs   []uuid.UUID `json:"exam_ids"`
}

func (h *Handler) Create(c echo.Context) error {
	var in createRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req := &Requisition{PatientID: in.PatientID, AnalystID: in.AnalystID, Notes: in.Notes}
	created, err := h.svc.Create(c.Request().Context(), actor(c), req, in.ExamIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	req, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "requisition not found")
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	var patientID *uuid.UUID
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		patientID = &id
	}
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("status"), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type updateRequest struct {
	Notes     string  `json:"notes"`
	AnalystID *string `json:"analyst_id"`
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in updateRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := h.svc.UpdateNotes(c.Request().Context(), id, in.Notes, in.AnalystID)
	if err != nil {
		return mapWorkflowErr(err)
	}
	return c.JSON(http.StatusOK, req)
}

type addExamsRequest struct {
	ExamIDs []uuid.UUID `json:"exam_ids"`
}

func (h *Handler) AddExams(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in addExamsRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddExams(c.Request().Context(), actor(c), id, in.ExamIDs); err != nil {
		return mapWorkflowErr(err)
	}
	exams, err := h.svc.ListExams(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, exams)
}

func (h *Handler) RemoveExam(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	examID, err := uuid.Parse(c.Param("examID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid exam id")
	}
	if err := h.svc.RemoveExam(c.Request().Context(), actor(c), id, examID); err != nil {
		return mapWorkflowErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListExams(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	exams, err := h.svc.ListExams(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, exams)
}

func (h *Handler) ListResults(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rows, err := h.svc.ListResults(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rows)
}

type enterResultRequest struct {
	Value string `json:"value"`
}

func (h *Handler) EnterResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in enterResultRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.EnterResult(c.Request().Context(), actor(c), id, in.Value)
	if err != nil {
		return mapWorkflowErr(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ValidateResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	item, err := h.svc.ValidateResult(c.Request().Context(), actor(c), id)
	if err != nil {
		return mapWorkflowErr(err)
	}
	return c.JSON(http.StatusOK, item)
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in changeStatusRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := h.svc.ChangeStatus(c.Request().Context(), actor(c), id, in.Status)
	if err != nil {
		return mapWorkflowErr(err)
	}
	if req.Status == StatusValidated {
		h.mailValidatedReport(c.Request().Context(), req)
	}
	return c.JSON(http.StatusOK, req)
}

// mailValidatedReport renders the final report and sends it to the lab
// inbox. Delivery is best effort and never fails the status change.
func (h *Handler) mailValidatedReport(ctx context.Context, req *Requisition) {
	if !h.mailer.Enabled() {
		return
	}
	pdf, p, err := h.renderReport(ctx, req, true)
	if err != nil {
		h.logger.Error().Err(err).Str("requisition_id", req.ID.String()).Msg("report render failed")
		return
	}
	if err := h.mailer.SendResultsReport(p.AdmissionNo, req.ID.String(), pdf); err != nil {
		h.logger.Error().Err(err).Str("requisition_id", req.ID.String()).Msg("report mail failed")
	}
}

func (h *Handler) orderInfo(req *Requisition) report.OrderInfo {
	return report.OrderInfo{
		ID:        req.ID.String(),
		Status:    req.Status,
		Notes:     req.Notes,
		CreatedAt: req.CreatedAt,
	}
}

func (h *Handler) patientInfo(ctx context.Context, req *Requisition) (report.PatientInfo, error) {
	p, err := h.patients.Get(ctx, req.PatientID)
	if err != nil {
		return report.PatientInfo{}, err
	}
	return report.PatientInfo{
		AdmissionNo: p.AdmissionNo,
		Name:        p.Name,
		Sex:         p.Sex,
		Age:         p.Age(),
		OriginDept:  p.OriginDept,
	}, nil
}

func (h *Handler) OrderPDF(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	req, err := h.svc.Get(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "requisition not found")
	}
	p, err := h.patientInfo(ctx, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	exams, err := h.svc.ListExams(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	lines := make([]report.ExamLine, 0, len(exams))
	for _, e := range exams {
		lines = append(lines, report.ExamLine{Name: e.Name, Code: e.Code})
	}
	pdf, err := h.renderer.OrderSheet(p, h.orderInfo(req), lines)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func (h *Handler) ReportPDF(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	req, err := h.svc.Get(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "requisition not found")
	}
	onlyValidated := c.QueryParam("only_validated") == "true"
	pdf, _, err := h.renderReport(ctx, req, onlyValidated)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

func (h *Handler) renderReport(ctx context.Context, req *Requisition, onlyValidated bool) ([]byte, report.PatientInfo, error) {
	p, err := h.patientInfo(ctx, req)
	if err != nil {
		return nil, report.PatientInfo{}, err
	}
	rows, err := h.svc.ListResults(ctx, req.ID)
	if err != nil {
		return nil, p, err
	}
	lines := make([]report.ResultLine, 0, len(rows))
	for _, row := range rows {
		if onlyValidated && !row.Validated {
			continue
		}
		lines = append(lines, report.ResultLine{
			ExamName:       row.ExamName,
			FieldName:      row.FieldName,
			Value:          row.Value,
			Unit:           row.Unit,
			ReferenceRange: row.ReferenceRange,
			Validated:      row.Validated,
		})
	}
	pdf, err := h.renderer.ResultsReport(p, h.orderInfo(req), lines)
	return pdf, p, err
}

func mapWorkflowErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrAlreadyValidated):
		return echo.NewHTTPError(http.StatusConflict, "result is validated and immutable")
	case errors.Is(err, ErrEmptyValue):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "result has no value to validate")
	case errors.Is(err, ErrUnfilledResults):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
