package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func ctxWithRoles(roles ...string) context.Context {
	return context.WithValue(context.Background(), UserRolesKey, roles)
}

func TestDefaultRules(t *testing.T) {
	e := NewEngine(DefaultRules())

	cases := []struct {
		name     string
		roles    []string
		resource string
		action   string
		want     bool
	}{
		{"ReceptionWritesPatients", []string{"reception"}, ResourcePatient, ActionWrite, true},
		{"ReceptionReadsExams", []string{"reception"}, ResourceExam, ActionRead, true},
		{"ReceptionCannotWriteExams", []string{"reception"}, ResourceExam, ActionWrite, false},
		{"ReceptionCannotEnterResults", []string{"reception"}, ResourceResult, ActionWrite, false},
		{"ReceptionCannotReadAuditLog", []string{"reception"}, ResourceAuditLog, ActionRead, false},
		{"TechnicianEntersResults", []string{"technician"}, ResourceResult, ActionWrite, true},
		{"TechnicianValidatesResults", []string{"technician"}, ResourceResult, ActionValidate, true},
		{"TechnicianCannotWritePatients", []string{"technician"}, ResourcePatient, ActionWrite, false},
		{"TechnicianReadsAuditLog", []string{"technician"}, ResourceAuditLog, ActionRead, true},
		{"AdminBypassesTable", []string{"admin"}, ResourceExam, ActionWrite, true},
		{"NoRolesDenied", nil, ResourcePatient, ActionRead, false},
		{"UnknownResourceDenied", []string{"reception", "technician"}, "billing", ActionRead, false},
		{"MultiRoleUnion", []string{"reception", "technician"}, ResourceResult, ActionValidate, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := e.Allowed(ctxWithRoles(tc.roles...), tc.resource, tc.action)
			if got != tc.want {
				t.Fatalf("Allowed(%v, %s, %s) = %v, want %v", tc.roles, tc.resource, tc.action, got, tc.want)
			}
		})
	}
}

func TestRequireMiddleware(t *testing.T) {
	engine := NewEngine(DefaultRules())
	e := echo.New()
	handler := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	run := func(roles []string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/exams", nil)
		req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		err := Require(engine, ResourceExam, ActionWrite)(handler)(c)
		if err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec
	}

	if rec := run([]string{"admin"}); rec.Code != http.StatusOK {
		t.Fatalf("admin should pass, got %d", rec.Code)
	}
	if rec := run([]string{"technician"}); rec.Code != http.StatusForbidden {
		t.Fatalf("technician should be forbidden, got %d", rec.Code)
	}
}
