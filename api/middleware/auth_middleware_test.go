package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AhmadIb227/syria-gpt/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestRequireAuth(t *testing.T) {
	codec := utils.NewTokenCodec([]byte("middleware-secret"), "test")
	userID := uuid.New()

	access, err := codec.Issue(userID.String(), utils.TokenAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	twoFactor, err := codec.Issue(userID.String(), utils.TokenTwoFactor, time.Minute)
	if err != nil {
		t.Fatalf("issue 2fa: %v", err)
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "access token", header: "Bearer " + access, status: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + access, status: http.StatusOK},
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + access, status: http.StatusUnauthorized},
		{name: "two-factor token", header: "Bearer " + twoFactor, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-token", status: http.StatusUnauthorized},
	}

	m := AuthMiddleware{Tokens: codec}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var seen uuid.UUID
			err := m.RequireAuth(func(c echo.Context) error {
				seen, _ = UserIDFromContext(c)
				return c.NoContent(http.StatusOK)
			})(c)

			status := rec.Code
			if err != nil {
				he, ok := err.(*echo.HTTPError)
				if !ok {
					t.Fatalf("unexpected error type %T", err)
				}
				status = he.Code
			}
			if status != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, status)
			}
			if tt.status == http.StatusOK && seen != userID {
				t.Fatalf("expected user %s in context, got %s", userID, seen)
			}
		})
	}
}
