package middleware

import (
	"net/http"
	"strings"

	"github.com/AhmadIb227/syria-gpt/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type TokenVerifier interface {
	Verify(token string, expectedType utils.TokenType) (string, error)
}

// AuthMiddleware accepts only access-typed bearer tokens.
type AuthMiddleware struct {
	Tokens TokenVerifier
}

func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.Tokens == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		token := extractBearerToken(c.Request())
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		subject, err := m.Tokens.Verify(token, utils.TokenAccess)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		userID, err := uuid.Parse(subject)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		SetAuthContext(c, userID)
		return next(c)
	}
}

func extractBearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
