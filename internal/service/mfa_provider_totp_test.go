package service

import (
	"net/url"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestTOTPProviderValidatesWithinSkew(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := NewTOTPProvider("SyriaGPT")
	provider.Now = func() time.Time { return now }

	secret, err := provider.GenerateSecret("user@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	current, _ := totp.GenerateCode(secret, now)
	previous, _ := totp.GenerateCode(secret, now.Add(-30*time.Second))
	stale, _ := totp.GenerateCode(secret, now.Add(-5*time.Minute))

	if !provider.ValidateCode(secret, current) {
		t.Fatalf("current code rejected")
	}
	if !provider.ValidateCode(secret, previous) {
		t.Fatalf("previous window rejected")
	}
	if stale != current && provider.ValidateCode(secret, stale) {
		t.Fatalf("stale code accepted")
	}
	if provider.ValidateCode(secret, "abc") {
		t.Fatalf("malformed code accepted")
	}
}

func TestTOTPProviderQRCodeURL(t *testing.T) {
	provider := NewTOTPProvider("")
	raw, err := provider.QRCodeURL("user@example.com", "", "JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Scheme != "otpauth" || parsed.Host != "totp" {
		t.Fatalf("unexpected url %q", raw)
	}
	query := parsed.Query()
	if query.Get("issuer") != "SyriaGPT" || query.Get("secret") != "JBSWY3DPEHPK3PXP" || query.Get("digits") != "6" || query.Get("period") != "30" {
		t.Fatalf("unexpected query %v", query)
	}
}
