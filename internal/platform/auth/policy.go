package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Resources the policy table covers.
const (
	ResourcePatient     = "patient"
	ResourceExam        = "exam"
	ResourceRequisition = "requisition"
	ResourceResult      = "result"
	ResourceAuditLog    = "auditlog"
	ResourceReport      = "report"
)

// Actions evaluated against the policy table.
const (
	ActionRead     = "read"
	ActionWrite    = "write"
	ActionDelete   = "delete"
	ActionValidate = "validate"
)

// Rule allows an action on a resource for a set of roles.
type Rule struct {
	Resource string
	Action   string
	Roles    []string
}

// Engine evaluates (role, resource, action) against a flat rule table.
// The admin role bypasses the table entirely.
type Engine struct {
	rules map[string]map[string][]string // resource -> action -> roles
}

func NewEngine(rules []Rule) *Engine {
	e := &Engine{rules: make(map[string]map[string][]string)}
	for _, r := range rules {
		if e.rules[r.Resource] == nil {
			e.rules[r.Resource] = make(map[string][]string)
		}
		e.rules[r.Resource][r.Action] = append(e.rules[r.Resource][r.Action], r.Roles...)
	}
	return e
}

// DefaultRules mirrors the laboratory's staff groups: reception registers
// patients and opens requisitions, technicians enter and validate results,
// admins maintain the catalog and may do everything.
func DefaultRules() []Rule {
	return []Rule{
		{Resource: ResourcePatient, Action: ActionRead, Roles: []string{"reception", "technician"}},
		{Resource: ResourcePatient, Action: ActionWrite, Roles: []string{"reception"}},
		{Resource: ResourceExam, Action: ActionRead, Roles: []string{"reception", "technician"}},
		{Resource: ResourceRequisition, Action: ActionRead, Roles: []string{"reception", "technician"}},
		{Resource: ResourceRequisition, Action: ActionWrite, Roles: []string{"reception", "technician"}},
		{Resource: ResourceResult, Action: ActionRead, Roles: []string{"reception", "technician"}},
		{Resource: ResourceResult, Action: ActionWrite, Roles: []string{"technician"}},
		{Resource: ResourceResult, Action: ActionValidate, Roles: []string{"technician"}},
		{Resource: ResourceReport, Action: ActionRead, Roles: []string{"reception", "technician"}},
		{Resource: ResourceAuditLog, Action: ActionRead, Roles: []string{"technician"}},
	}
}

// Allowed reports whether any of the caller's roles may perform action on
// resource. Unknown (resource, action) pairs are denied.
func (e *Engine) Allowed(ctx context.Context, resource, action string) bool {
	roles := RolesFromContext(ctx)
	for _, r := range roles {
		if r == "admin" {
			return true
		}
	}

	actions, ok := e.rules[resource]
	if !ok {
		return false
	}
	allowed, ok := actions[action]
	if !ok {
		return false
	}
	for _, want := range allowed {
		for _, have := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Require returns middleware enforcing one policy table entry per route.
func Require(e *Engine, resource, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !e.Allowed(c.Request().Context(), resource, action) {
				return echo.NewHTTPError(http.StatusForbidden,
					"not permitted: "+action+" on "+resource)
			}
			return next(c)
		}
	}
}
