package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/praxisoft/backoffice/internal/platform/db"
)

var testSecret = []byte("test-secret-do-not-use")

func signToken(t *testing.T, sub string, role string) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func doRequest(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, db.SessionContext, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var actor db.SessionContext
	var found bool
	handler := mw(func(c echo.Context) error {
		actor, found = ActorFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, actor, found
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, userID.String(), "provider")

	rec, actor, found := doRequest(t, JWTMiddleware(testSecret), "Bearer "+token)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !found {
		t.Fatal("actor missing from context")
	}
	if actor.UserID != userID || actor.Role != db.RoleProvider {
		t.Errorf("actor = %+v, want %s/provider", actor, userID)
	}
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"unknown role", "Bearer " + signToken(t, uuid.New().String(), "superadmin")},
		{"non-uuid subject", "Bearer " + signToken(t, "not-a-uuid", "staff")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _, found := doRequest(t, JWTMiddleware(testSecret), tc.header)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if found {
				t.Error("actor should not be set on rejection")
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	actor := db.SessionContext{UserID: uuid.New(), Role: db.RoleStaff}

	run := func(mw echo.MiddlewareFunc, withActor bool) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if withActor {
			req = req.WithContext(WithActor(req.Context(), actor))
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
		if err := h(c); err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec.Code
	}

	if code := run(RequireRole(db.RoleStaff), true); code != http.StatusOK {
		t.Errorf("staff allowed: status = %d, want 200", code)
	}
	if code := run(RequireRole(db.RoleProvider), true); code != http.StatusForbidden {
		t.Errorf("provider-only: status = %d, want 403", code)
	}
	if code := run(RequireRole(db.RoleStaff), false); code != http.StatusUnauthorized {
		t.Errorf("unauthenticated: status = %d, want 401", code)
	}
}
