package requisition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anabiolink/lims/internal/domain/patient"
	"github.com/anabiolink/lims/internal/platform/auth"
	"github.com/anabiolink/lims/internal/platform/report"
)

type mockPatientSource struct {
	patients map[uuid.UUID]*patient.Patient
}

func (m *mockPatientSource) Get(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func newTestServer(t *testing.T) (*echo.Echo, *fixture, uuid.UUID) {
	t.Helper()
	f := newFixture()

	patientID := uuid.New()
	patients := &mockPatientSource{patients: map[uuid.UUID]*patient.Patient{
		patientID: {ID: patientID, AdmissionNo: "202608310001", Name: "Ana Silva", Sex: "F"},
	}}

	e := echo.New()
	api := e.Group("/api/v1", auth.DevAuthMiddleware())
	h := NewHandler(f.svc, patients, report.NewRenderer("Central Lab", "12 Harbor St"), nil, zerolog.Nop())
	h.RegisterRoutes(api, auth.NewEngine(auth.DefaultRules()))
	return e, f, patientID
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndResults(t *testing.T) {
	e, f, patientID := newTestServer(t)
	examID := f.addExamDef("CBC", [2]string{"g/dL", "12.0-17.5"}, [2]string{"%", "36-52"})

	body := fmt.Sprintf(`{"patient_id":%q,"exam_ids":[%q],"notes":"fasting"}`, patientID, examID)
	rec := doJSON(e, http.MethodPost, "/api/v1/requisitions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created Requisition
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != StatusPending {
		t.Fatalf("expected pending, got %s", created.Status)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/requisitions/"+created.ID.String()+"/results", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("results: expected 200, got %d", rec.Code)
	}
	var rows []*ResultRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 materialized rows, got %d", len(rows))
	}
}

func TestHandlerCreateRejectsBadBody(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/requisitions", `{"exam_ids":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandlerValidateFlow(t *testing.T) {
	e, f, patientID := newTestServer(t)
	examID := f.addExamDef("CBC", [2]string{"g/dL", "12.0-17.5"})

	body := fmt.Sprintf(`{"patient_id":%q,"exam_ids":[%q]}`, patientID, examID)
	rec := doJSON(e, http.MethodPost, "/api/v1/requisitions", body)
	var created Requisition
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/requisitions/"+created.ID.String()+"/results", "")
	var rows []*ResultRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	itemID := rows[0].ID.String()

	// validating before a value is entered is rejected
	rec = doJSON(e, http.MethodPost, "/api/v1/results/"+itemID+"/validate", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty value, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPut, "/api/v1/results/"+itemID, `{"value":"14.2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("enter: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/results/"+itemID+"/validate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("validate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var item ResultItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if !item.Validated {
		t.Fatal("expected validated item")
	}

	// a validated row is immutable
	rec = doJSON(e, http.MethodPut, "/api/v1/results/"+itemID, `{"value":"15.0"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 writing validated row, got %d", rec.Code)
	}
}

func TestHandlerStatusEndpoint(t *testing.T) {
	e, f, patientID := newTestServer(t)
	examID := f.addExamDef("CBC", [2]string{"g/dL", "12.0-17.5"})

	body := fmt.Sprintf(`{"patient_id":%q,"exam_ids":[%q]}`, patientID, examID)
	rec := doJSON(e, http.MethodPost, "/api/v1/requisitions", body)
	var created Requisition
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	base := "/api/v1/requisitions/" + created.ID.String()

	rec = doJSON(e, http.MethodPost, base+"/status", `{"status":"completed"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 skipping a state, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, base+"/status", `{"status":"processing"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated Requisition
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Status != StatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}
}

func TestHandlerOrderPDF(t *testing.T) {
	e, f, patientID := newTestServer(t)
	examID := f.addExamDef("CBC", [2]string{"g/dL", "12.0-17.5"})

	body := fmt.Sprintf(`{"patient_id":%q,"exam_ids":[%q]}`, patientID, examID)
	rec := doJSON(e, http.MethodPost, "/api/v1/requisitions", body)
	var created Requisition
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	for _, path := range []string{"/order.pdf", "/report.pdf"} {
		rec = doJSON(e, http.MethodGet, "/api/v1/requisitions/"+created.ID.String()+path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
			t.Fatalf("%s: expected pdf content type, got %q", path, ct)
		}
		if !strings.HasPrefix(rec.Body.String(), "%PDF") {
			t.Fatalf("%s: body is not a PDF", path)
		}
	}
}
