package handler

import (
	"net/http"
	"testing"

	"github.com/AhmadIb227/syria-gpt/internal/entity"
	"github.com/AhmadIb227/syria-gpt/internal/service"
)

func TestOAuthURLSetsStateCookie(t *testing.T) {
	var gotState string
	svc := &stubService{oauthURL: func(provider entity.Provider, state string) (string, error) {
		if provider != entity.ProviderGoogle {
			t.Fatalf("provider = %q", provider)
		}
		gotState = state
		return "https://accounts.example.com/auth?state=" + state, nil
	}}
	c, rec := newContext(http.MethodGet, "/auth/oauth/google/url", "")
	c.SetParamNames("provider")
	c.SetParamValues("google")

	if err := newTestHandler(svc).OAuthURL(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["state"] == "" || body["state"] != gotState {
		t.Fatalf("state mismatch: body %v, service %q", body, gotState)
	}
	cookie := findCookie(rec, oauthStateCookie)
	if cookie == nil || cookie.Value != gotState || !cookie.HttpOnly {
		t.Fatalf("unexpected state cookie: %+v", cookie)
	}
}

func TestOAuthURLUnknownProvider(t *testing.T) {
	svc := &stubService{oauthURL: func(entity.Provider, string) (string, error) {
		return "", service.ErrUnknownProvider
	}}
	c, rec := newContext(http.MethodGet, "/auth/oauth/github/url", "")
	c.SetParamNames("provider")
	c.SetParamValues("github")

	if err := newTestHandler(svc).OAuthURL(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOAuthCallbackChecksState(t *testing.T) {
	called := false
	svc := &stubService{oauthSignIn: func(entity.Provider, string) (*service.AuthResult, error) {
		called = true
		return &service.AuthResult{Tokens: testPair}, nil
	}}

	tests := []struct {
		name   string
		target string
		cookie string
	}{
		{"missing cookie", "/auth/oauth/google/callback?code=c&state=s1", ""},
		{"mismatch", "/auth/oauth/google/callback?code=c&state=s1", "s2"},
		{"missing state", "/auth/oauth/google/callback?code=c", "s1"},
		{"provider error", "/auth/oauth/google/callback?error=access_denied&state=s1", "s1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, tt.target, "")
			c.SetParamNames("provider")
			c.SetParamValues("google")
			if tt.cookie != "" {
				c.Request().AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.cookie})
			}
			if err := newTestHandler(svc).OAuthCallback(c); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
		})
	}
	if called {
		t.Fatalf("service must not be called on a bad callback")
	}
}

func TestOAuthCallbackSignsIn(t *testing.T) {
	var gotCode string
	svc := &stubService{oauthSignIn: func(provider entity.Provider, code string) (*service.AuthResult, error) {
		gotCode = code
		return &service.AuthResult{Tokens: testPair}, nil
	}}
	c, rec := newContext(http.MethodGet, "/auth/oauth/facebook/callback?code=auth-code&state=s1", "")
	c.SetParamNames("provider")
	c.SetParamValues("facebook")
	c.Request().AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s1"})

	if err := newTestHandler(svc).OAuthCallback(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK || gotCode != "auth-code" {
		t.Fatalf("status = %d, code = %q", rec.Code, gotCode)
	}
	if cookie := findCookie(rec, "refresh_token"); cookie == nil || cookie.Value != "refresh-opaque" {
		t.Fatalf("refresh cookie not set: %+v", cookie)
	}
	if cookie := findCookie(rec, oauthStateCookie); cookie == nil || cookie.MaxAge >= 0 {
		t.Fatalf("state cookie not cleared: %+v", cookie)
	}
}
