package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AhmadIb227/syria-gpt/api/middleware"
	"github.com/AhmadIb227/syria-gpt/internal/entity"
	"github.com/AhmadIb227/syria-gpt/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// stubService implements only what a test sets; other calls panic through
// the nil embedded interface.
type stubService struct {
	AuthService

	authenticate func(service.LoginInput) (*service.AuthResult, error)
	refresh      func(token string) (*service.TokenPair, error)
	register     func(service.RegisterInput) (*service.RegisterResult, error)
	signOut      func(userID uuid.UUID, token string) error
	currentUser  func(userID uuid.UUID) (*entity.User, error)
	oauthURL     func(provider entity.Provider, state string) (string, error)
	oauthSignIn  func(provider entity.Provider, code string) (*service.AuthResult, error)
	challenge    func(userID uuid.UUID) (*service.TwoFactorChallengeResult, error)
	disable2FA   func(userID uuid.UUID, input service.DisableTwoFactorInput) error
}

func (s *stubService) Authenticate(_ context.Context, input service.LoginInput) (*service.AuthResult, error) {
	return s.authenticate(input)
}

func (s *stubService) RefreshAccessToken(_ context.Context, token string, _ service.ClientMeta) (*service.TokenPair, error) {
	return s.refresh(token)
}

func (s *stubService) Register(_ context.Context, input service.RegisterInput) (*service.RegisterResult, error) {
	return s.register(input)
}

func (s *stubService) SignOut(_ context.Context, userID uuid.UUID, token string) error {
	return s.signOut(userID, token)
}

func (s *stubService) GetCurrentUser(_ context.Context, userID uuid.UUID) (*entity.User, error) {
	return s.currentUser(userID)
}

func (s *stubService) OAuthAuthorizationURL(provider entity.Provider, state string) (string, error) {
	return s.oauthURL(provider, state)
}

func (s *stubService) SignInWithOAuthCode(_ context.Context, provider entity.Provider, code string, _ service.ClientMeta) (*service.AuthResult, error) {
	return s.oauthSignIn(provider, code)
}

func (s *stubService) RequestTwoFactorChallenge(_ context.Context, userID uuid.UUID) (*service.TwoFactorChallengeResult, error) {
	return s.challenge(userID)
}

func (s *stubService) DisableTwoFactor(_ context.Context, userID uuid.UUID, input service.DisableTwoFactorInput) error {
	return s.disable2FA(userID, input)
}

var testPair = &service.TokenPair{
	AccessToken:  "access-jwt",
	RefreshToken: "refresh-opaque",
	TokenType:    service.TokenTypeBearer,
	ExpiresIn:    1800,
}

func newTestHandler(svc AuthService) *AuthHandler {
	h := NewAuthHandler(svc, validator.New())
	h.SecureCookies = false
	return h
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestLoginReturnsTokens(t *testing.T) {
	svc := &stubService{authenticate: func(input service.LoginInput) (*service.AuthResult, error) {
		if input.Email != "a@example.com" || input.Password != "secret-pass" {
			t.Fatalf("unexpected input: %+v", input)
		}
		return &service.AuthResult{Tokens: testPair}, nil
	}}
	c, rec := newContext(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"secret-pass"}`)

	if err := newTestHandler(svc).Login(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["access_token"] != "access-jwt" || body["refresh_token"] != "refresh-opaque" || body["token_type"] != "bearer" || body["expires_in"] != float64(1800) {
		t.Fatalf("unexpected body: %v", body)
	}

	cookie := findCookie(rec, "refresh_token")
	if cookie == nil || cookie.Value != "refresh-opaque" || !cookie.HttpOnly || cookie.Path != "/auth" {
		t.Fatalf("unexpected refresh cookie: %+v", cookie)
	}
}

func TestLoginReturnsChallenge(t *testing.T) {
	svc := &stubService{authenticate: func(service.LoginInput) (*service.AuthResult, error) {
		return &service.AuthResult{Challenge: &service.TwoFactorChallengeResult{
			ChallengeToken: "challenge-jwt",
			Method:         entity.TwoFactorEmail,
			ExpiresIn:      600,
			Message:        "code sent",
		}}, nil
	}}
	c, rec := newContext(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"secret-pass"}`)

	if err := newTestHandler(svc).Login(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["two_factor_required"] != true || body["challenge_token"] != "challenge-jwt" || body["method"] != "email" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["access_token"]; ok {
		t.Fatalf("challenge response must not carry tokens")
	}
	if findCookie(rec, "refresh_token") != nil {
		t.Fatalf("challenge response must not set a refresh cookie")
	}
}

func TestServiceErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", service.ErrInvalidInput, http.StatusBadRequest},
		{"not found", service.ErrUserNotFound, http.StatusNotFound},
		{"authentication", service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"inactive", service.ErrAccountInactive, http.StatusUnauthorized},
		{"conflict", service.ErrAlreadyRegistered, http.StatusConflict},
		{"external", service.ErrOAuthExchange, http.StatusBadGateway},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{authenticate: func(service.LoginInput) (*service.AuthResult, error) {
				return nil, tt.err
			}}
			c, rec := newContext(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"secret-pass"}`)
			if err := newTestHandler(svc).Login(c); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var body map[string]string
			decodeBody(t, rec, &body)
			if body["message"] == "" || strings.Contains(body["message"], "boom") {
				t.Fatalf("unexpected message: %v", body)
			}
		})
	}
}

func TestLoginRejectsBadPayload(t *testing.T) {
	svc := &stubService{authenticate: func(service.LoginInput) (*service.AuthResult, error) {
		t.Fatalf("service must not be called")
		return nil, nil
	}}
	for _, body := range []string{
		`{"email":"not-an-email","password":"x"}`,
		`{"email":"a@example.com"}`,
		`{"email":"a@example.com","password":"x","extra":1}`,
		`not json`,
	} {
		c, rec := newContext(http.MethodPost, "/auth/login", body)
		if err := newTestHandler(svc).Login(c); err != nil {
			t.Fatalf("handler: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d", body, rec.Code)
		}
	}
}

func TestRegisterCreated(t *testing.T) {
	id := uuid.New()
	svc := &stubService{register: func(input service.RegisterInput) (*service.RegisterResult, error) {
		return &service.RegisterResult{UserID: id, Message: "check your email"}, nil
	}}
	c, rec := newContext(http.MethodPost, "/auth/register", `{"email":"new@example.com","password":"long enough"}`)

	if err := newTestHandler(svc).Register(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["user_id"] != id.String() {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRefreshUsesCookie(t *testing.T) {
	var got string
	svc := &stubService{refresh: func(token string) (*service.TokenPair, error) {
		got = token
		return testPair, nil
	}}
	c, rec := newContext(http.MethodPost, "/auth/refresh", "")
	c.Request().AddCookie(&http.Cookie{Name: "refresh_token", Value: "from-cookie"})

	if err := newTestHandler(svc).Refresh(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK || got != "from-cookie" {
		t.Fatalf("status = %d, token = %q", rec.Code, got)
	}
}

func TestRefreshPrefersBody(t *testing.T) {
	var got string
	svc := &stubService{refresh: func(token string) (*service.TokenPair, error) {
		got = token
		return testPair, nil
	}}
	c, _ := newContext(http.MethodPost, "/auth/refresh", `{"refresh_token":"from-body"}`)
	c.Request().AddCookie(&http.Cookie{Name: "refresh_token", Value: "from-cookie"})

	if err := newTestHandler(svc).Refresh(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got != "from-body" {
		t.Fatalf("token = %q", got)
	}
}

func TestRefreshFailureClearsCookie(t *testing.T) {
	svc := &stubService{refresh: func(string) (*service.TokenPair, error) {
		return nil, service.ErrInvalidSession
	}}
	c, rec := newContext(http.MethodPost, "/auth/refresh", `{"refresh_token":"stale"}`)

	if err := newTestHandler(svc).Refresh(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	cookie := findCookie(rec, "refresh_token")
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Fatalf("cookie not cleared: %+v", cookie)
	}
}

func TestRefreshWithoutToken(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/auth/refresh", "")
	if err := newTestHandler(&stubService{}).Refresh(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLogoutRequiresAuthContext(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/auth/logout", "")
	if err := newTestHandler(&stubService{}).Logout(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	userID := uuid.New()
	var gotUser uuid.UUID
	var gotToken string
	svc := &stubService{signOut: func(id uuid.UUID, token string) error {
		gotUser, gotToken = id, token
		return nil
	}}
	c, rec := newContext(http.MethodPost, "/auth/logout", "")
	c.Request().AddCookie(&http.Cookie{Name: "refresh_token", Value: "cookie-token"})
	middleware.SetAuthContext(c, userID)

	if err := newTestHandler(svc).Logout(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusNoContent || gotUser != userID || gotToken != "cookie-token" {
		t.Fatalf("status = %d, user = %s, token = %q", rec.Code, gotUser, gotToken)
	}
}

func TestMe(t *testing.T) {
	userID := uuid.New()
	google := "g-1"
	hash := "hash"
	svc := &stubService{currentUser: func(id uuid.UUID) (*entity.User, error) {
		return &entity.User{
			ID:           id,
			Email:        "me@example.com",
			GoogleID:     &google,
			PasswordHash: &hash,
			Status:       entity.StatusActive,
			IsActive:     true,
		}, nil
	}}
	c, rec := newContext(http.MethodGet, "/me", "")
	middleware.SetAuthContext(c, userID)

	if err := newTestHandler(svc).Me(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	body := rec.Body.String()
	if rec.Code != http.StatusOK || strings.Contains(body, "hash") || strings.Contains(body, "password_hash") {
		t.Fatalf("status = %d, body %s", rec.Code, body)
	}
	var user map[string]any
	decodeBody(t, rec, &user)
	if user["id"] != userID.String() || user["has_password"] != true {
		t.Fatalf("unexpected user: %v", user)
	}
	providers, _ := user["linked_providers"].([]any)
	if len(providers) != 1 || providers[0] != "google" {
		t.Fatalf("linked providers = %v", user["linked_providers"])
	}
}

func TestTwoFactorChallengeAndDisable(t *testing.T) {
	userID := uuid.New()
	svc := &stubService{
		challenge: func(id uuid.UUID) (*service.TwoFactorChallengeResult, error) {
			if id != userID {
				t.Fatalf("challenge for %s", id)
			}
			return &service.TwoFactorChallengeResult{ChallengeToken: "challenge-jwt", Method: entity.TwoFactorEmail, ExpiresIn: 600}, nil
		},
		disable2FA: func(id uuid.UUID, input service.DisableTwoFactorInput) error {
			if id != userID || input.ChallengeToken != "challenge-jwt" || input.Code != "123456" || input.Password != "" {
				t.Fatalf("unexpected disable input: %s %+v", id, input)
			}
			return nil
		},
	}
	h := newTestHandler(svc)

	c, rec := newContext(http.MethodPost, "/auth/2fa/challenge", "")
	middleware.SetAuthContext(c, userID)
	if err := h.TwoFactorChallenge(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	var challenge map[string]any
	decodeBody(t, rec, &challenge)
	if rec.Code != http.StatusOK || challenge["challenge_token"] != "challenge-jwt" || challenge["method"] != "email" {
		t.Fatalf("status = %d, body %v", rec.Code, challenge)
	}

	c, rec = newContext(http.MethodPost, "/auth/2fa/disable", `{"challenge_token":"challenge-jwt","code":"123456"}`)
	middleware.SetAuthContext(c, userID)
	if err := h.DisableTwoFactor(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}
