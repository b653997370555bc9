package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AhmadIb227/syria-gpt/api/middleware"
	"github.com/AhmadIb227/syria-gpt/internal/dto"
	"github.com/AhmadIb227/syria-gpt/internal/entity"
	"github.com/AhmadIb227/syria-gpt/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// AuthService is the part of service.AuthService the HTTP layer uses.
type AuthService interface {
	Register(ctx context.Context, input service.RegisterInput) (*service.RegisterResult, error)
	Authenticate(ctx context.Context, input service.LoginInput) (*service.AuthResult, error)
	VerifyTwoFactor(ctx context.Context, input service.TwoFactorInput) (*service.TokenPair, error)
	RefreshAccessToken(ctx context.Context, refreshToken string, meta service.ClientMeta) (*service.TokenPair, error)
	SignOut(ctx context.Context, userID uuid.UUID, refreshToken string) error
	SignOutAll(ctx context.Context, userID uuid.UUID) (int64, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerificationEmail(ctx context.Context, email string) (*service.MessageResult, error)
	RequestPasswordReset(ctx context.Context, email string) (*service.MessageResult, error)
	ConfirmPasswordReset(ctx context.Context, token string, newPassword string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword string, newPassword string) error
	GetCurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	EnableEmailTwoFactor(ctx context.Context, userID uuid.UUID) error
	BeginTOTPEnrollment(ctx context.Context, userID uuid.UUID) (string, error)
	ConfirmTOTPEnrollment(ctx context.Context, userID uuid.UUID, code string) error
	RequestTwoFactorChallenge(ctx context.Context, userID uuid.UUID) (*service.TwoFactorChallengeResult, error)
	DisableTwoFactor(ctx context.Context, userID uuid.UUID, input service.DisableTwoFactorInput) error
	OAuthAuthorizationURL(provider entity.Provider, state string) (string, error)
	SignInWithOAuthCode(ctx context.Context, provider entity.Provider, code string, meta service.ClientMeta) (*service.AuthResult, error)
	UnlinkOAuth(ctx context.Context, userID uuid.UUID, provider entity.Provider) error
}

type AuthHandler struct {
	Service           AuthService
	Validate          *validator.Validate
	Log               logrus.FieldLogger
	RefreshCookieName string
	RefreshTTL        time.Duration
	CookieDomain      string
	SecureCookies     bool
	SameSite          http.SameSite
}

func NewAuthHandler(svc AuthService, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{
		Service:           svc,
		Validate:          validate,
		Log:               logrus.StandardLogger(),
		RefreshCookieName: "refresh_token",
		RefreshTTL:        7 * 24 * time.Hour,
		SecureCookies:     true,
		SameSite:          http.SameSiteStrictMode,
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	result, err := h.Service.Register(c.Request().Context(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.RegisterResponse{UserID: result.UserID.String(), Message: result.Message})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req dto.VerifyEmailRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "Email verified successfully."})
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req dto.EmailRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	result, err := h.Service.ResendVerificationEmail(c.Request().Context(), req.Email)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusAccepted, dto.MessageResponse{Message: result.Message})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	meta := clientMeta(c)
	result, err := h.Service.Authenticate(c.Request().Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return h.writeAuthResult(c, result)
}

func (h *AuthHandler) LoginTwoFactor(c echo.Context) error {
	var req dto.LoginTwoFactorRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	meta := clientMeta(c)
	pair, err := h.Service.VerifyTwoFactor(c.Request().Context(), service.TwoFactorInput{
		ChallengeToken: req.ChallengeToken,
		Code:           req.Code,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
	})
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return h.writeTokens(c, pair)
}

// Refresh takes the refresh token from the body, falling back to the cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req dto.RefreshRequest
	if err := decodeOptionalJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	refreshToken := h.refreshToken(c, req.RefreshToken)
	if refreshToken == "" {
		return writeError(c, http.StatusUnauthorized, errors.New("missing refresh token"))
	}
	pair, err := h.Service.RefreshAccessToken(c.Request().Context(), refreshToken, clientMeta(c))
	if err != nil {
		h.clearRefreshCookie(c)
		return h.writeServiceError(c, err)
	}
	return h.writeTokens(c, pair)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.RefreshRequest
	if err := decodeOptionalJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.SignOut(c.Request().Context(), userID, h.refreshToken(c, req.RefreshToken)); err != nil {
		return h.writeServiceError(c, err)
	}
	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	revoked, err := h.Service.SignOutAll(c.Request().Context(), userID)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, dto.SignOutAllResponse{Revoked: revoked})
}

func (h *AuthHandler) PasswordForgot(c echo.Context) error {
	var req dto.EmailRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	result, err := h.Service.RequestPasswordReset(c.Request().Context(), req.Email)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusAccepted, dto.MessageResponse{Message: result.Message})
}

func (h *AuthHandler) PasswordReset(c echo.Context) error {
	var req dto.PasswordResetRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.ConfirmPasswordReset(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "Password has been reset. Please sign in again."})
}

func (h *AuthHandler) PasswordChange(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.PasswordChangeRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.ChangePassword(c.Request().Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return h.writeServiceError(c, err)
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "Password changed. Please sign in again."})
}

func (h *AuthHandler) EnableEmailTwoFactor(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	if err := h.Service.EnableEmailTwoFactor(c.Request().Context(), userID); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) EnrollTOTP(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	url, err := h.Service.BeginTOTPEnrollment(c.Request().Context(), userID)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.TOTPEnrollResponse{OTPAuthURL: url})
}

func (h *AuthHandler) ConfirmTOTP(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.TwoFactorCodeRequest
	if err := h.bind(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.ConfirmTOTPEnrollment(c.Request().Context(), userID, req.Code); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) DisableTwoFactor(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.DisableTwoFactorRequest
	if err := decodeOptionalJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	err := h.Service.DisableTwoFactor(c.Request().Context(), userID, service.DisableTwoFactorInput{
		Password:       req.Password,
		ChallengeToken: req.ChallengeToken,
		Code:           req.Code,
	})
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) TwoFactorChallenge(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	challenge, err := h.Service.RequestTwoFactorChallenge(c.Request().Context(), userID)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ChallengeResponseFromResult(challenge))
}

func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	user, err := h.Service.GetCurrentUser(c.Request().Context(), userID)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserResponseFromEntity(user))
}

func (h *AuthHandler) writeAuthResult(c echo.Context, result *service.AuthResult) error {
	if result.TwoFactorRequired() {
		return c.JSON(http.StatusOK, dto.ChallengeResponseFromResult(result.Challenge))
	}
	return h.writeTokens(c, result.Tokens)
}

func (h *AuthHandler) writeTokens(c echo.Context, pair *service.TokenPair) error {
	h.setRefreshCookie(c, pair.RefreshToken)
	return c.JSON(http.StatusOK, dto.TokenResponseFromPair(pair))
}

func (h *AuthHandler) bind(c echo.Context, target any) error {
	if err := decodeJSON(c, target); err != nil {
		return err
	}
	return h.validate(target)
}

func (h *AuthHandler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

func (h *AuthHandler) refreshToken(c echo.Context, fromBody string) string {
	if token := strings.TrimSpace(fromBody); token != "" {
		return token
	}
	return h.readRefreshCookie(c)
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string) {
	if token == "" {
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     h.RefreshCookieName,
		Value:    token,
		Path:     "/auth",
		Domain:   h.CookieDomain,
		MaxAge:   int(h.RefreshTTL.Seconds()),
		Expires:  time.Now().Add(h.RefreshTTL),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.RefreshCookieName,
		Value:    "",
		Path:     "/auth",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	})
}

func (h *AuthHandler) readRefreshCookie(c echo.Context) string {
	cookie, err := c.Cookie(h.RefreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *AuthHandler) writeServiceError(c echo.Context, err error) error {
	var typed *service.Error
	if !errors.As(err, &typed) {
		h.log().WithError(err).Error("unhandled service error")
		return writeError(c, http.StatusInternalServerError, errors.New("internal server error"))
	}

	status := http.StatusInternalServerError
	switch typed.Kind {
	case service.KindValidation:
		status = http.StatusBadRequest
		if errors.Is(err, service.ErrUserNotFound) {
			status = http.StatusNotFound
		}
	case service.KindAuthentication:
		status = http.StatusUnauthorized
	case service.KindConflict:
		status = http.StatusConflict
	case service.KindExternal:
		status = http.StatusBadGateway
	}
	return writeError(c, status, typed)
}

func (h *AuthHandler) log() logrus.FieldLogger {
	if h.Log == nil {
		return logrus.StandardLogger()
	}
	return h.Log
}

func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(c echo.Context, target any) error {
	err := decodeJSON(c, target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeError(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]string{"message": err.Error()})
}

func clientMeta(c echo.Context) service.ClientMeta {
	return service.ClientMeta{
		IPAddress: stringPtr(c.RealIP()),
		UserAgent: stringPtr(c.Request().UserAgent()),
	}
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
