package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

var testJWTConfig = JWTConfig{Issuer: "lims-test", Secret: []byte("test-secret")}

func runJWT(t *testing.T, cfg JWTConfig, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	if err := JWTMiddleware(cfg)(handler)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, c
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := IssueToken(testJWTConfig, "u-1", "Ana", []string{"technician"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	rec, c := runJWT(t, testJWTConfig, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "u-1" {
		t.Errorf("user id: got %q", got)
	}
	if got := UserNameFromContext(ctx); got != "Ana" {
		t.Errorf("user name: got %q", got)
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != "technician" {
		t.Errorf("roles: got %v", roles)
	}
}

func TestJWTRejectsBadTokens(t *testing.T) {
	t.Run("MissingHeader", func(t *testing.T) {
		rec, _ := runJWT(t, testJWTConfig, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("NotBearer", func(t *testing.T) {
		rec, _ := runJWT(t, testJWTConfig, "Basic abc")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token, _ := IssueToken(JWTConfig{Issuer: "lims-test", Secret: []byte("other")}, "u-1", "Ana", nil, time.Hour)
		rec, _ := runJWT(t, testJWTConfig, "Bearer "+token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		token, _ := IssueToken(JWTConfig{Issuer: "someone-else", Secret: testJWTConfig.Secret}, "u-1", "Ana", nil, time.Hour)
		rec, _ := runJWT(t, testJWTConfig, "Bearer "+token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		token, _ := IssueToken(testJWTConfig, "u-1", "Ana", nil, -time.Minute)
		rec, _ := runJWT(t, testJWTConfig, "Bearer "+token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	if err := DevAuthMiddleware()(handler)(c); err != nil {
		t.Fatalf("DevAuthMiddleware: %v", err)
	}

	ctx := c.Request().Context()
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != "admin" {
		t.Fatalf("expected admin role in dev mode, got %v", roles)
	}
}
