package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/AhmadIb227/syria-gpt/api/middleware"
	"github.com/AhmadIb227/syria-gpt/internal/dto"
	"github.com/AhmadIb227/syria-gpt/internal/entity"
	"github.com/AhmadIb227/syria-gpt/internal/utils"

	"github.com/labstack/echo/v4"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

var errOAuthState = errors.New("invalid oauth state")

// OAuthURL starts a provider sign-in. The state is returned in the body and
// pinned in a short-lived cookie that the callback checks.
func (h *AuthHandler) OAuthURL(c echo.Context) error {
	provider := entity.Provider(c.Param("provider"))
	state, err := utils.GenerateRandomToken(24)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	url, err := h.Service.OAuthAuthorizationURL(provider, state)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/oauth",
		Domain:   h.CookieDomain,
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, dto.OAuthURLResponse{AuthorizationURL: url, State: state})
}

func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	provider := entity.Provider(c.Param("provider"))
	if providerError := c.QueryParam("error"); providerError != "" {
		return writeError(c, http.StatusBadRequest, errors.New(providerError))
	}
	if !validState(c) {
		return writeError(c, http.StatusBadRequest, errOAuthState)
	}
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/oauth",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	result, err := h.Service.SignInWithOAuthCode(c.Request().Context(), provider, c.QueryParam("code"), clientMeta(c))
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return h.writeAuthResult(c, result)
}

func (h *AuthHandler) OAuthUnlink(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	provider := entity.Provider(c.Param("provider"))
	if err := h.Service.UnlinkOAuth(c.Request().Context(), userID, provider); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func validState(c echo.Context) bool {
	state := c.QueryParam("state")
	cookie, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || cookie.Value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(state), []byte(cookie.Value)) == 1
}
