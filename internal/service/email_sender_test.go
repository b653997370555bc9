package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/resend/resend-go/v2"
)

func TestResendSenderNotConfigured(t *testing.T) {
	sender := NewResendEmailSender("", "noreply@example.com", "https://app.example.com")
	err := sender.SendVerificationEmail(context.Background(), "a@example.com", "tok")
	if !errors.Is(err, ErrEmailNotConfigured) {
		t.Fatalf("expected ErrEmailNotConfigured, got %v", err)
	}
}

func TestResendSenderBuildsLinks(t *testing.T) {
	var sent []*resend.SendEmailRequest
	sender := NewResendEmailSender("", "noreply@example.com", "https://app.example.com/")
	sender.deliver = func(_ context.Context, request *resend.SendEmailRequest) error {
		sent = append(sent, request)
		return nil
	}
	ctx := context.Background()

	if err := sender.SendVerificationEmail(ctx, "a@example.com", "verify-tok"); err != nil {
		t.Fatalf("verification: %v", err)
	}
	if err := sender.SendPasswordResetEmail(ctx, "a@example.com", "reset-tok"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := sender.SendTwoFactorCode(ctx, "a@example.com", "123456"); err != nil {
		t.Fatalf("code: %v", err)
	}

	if len(sent) != 3 {
		t.Fatalf("sent %d emails", len(sent))
	}
	if sent[0].From != "noreply@example.com" || len(sent[0].To) != 1 || sent[0].To[0] != "a@example.com" {
		t.Fatalf("unexpected envelope: %+v", sent[0])
	}
	if !strings.Contains(sent[0].Text, "https://app.example.com/verify-email?token=verify-tok") {
		t.Fatalf("verification link missing: %q", sent[0].Text)
	}
	if !strings.Contains(sent[1].Text, "https://app.example.com/reset-password?token=reset-tok") {
		t.Fatalf("reset link missing: %q", sent[1].Text)
	}
	if !strings.Contains(sent[2].Html, "123456") {
		t.Fatalf("code missing: %q", sent[2].Html)
	}
}

func TestResendSenderWrapsErrors(t *testing.T) {
	cause := errors.New("rate limited")
	sender := NewResendEmailSender("", "noreply@example.com", "")
	sender.deliver = func(context.Context, *resend.SendEmailRequest) error { return cause }

	err := sender.SendTwoFactorCode(context.Background(), "a@example.com", "123456")
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestBuildURLWithoutBase(t *testing.T) {
	sender := &ResendEmailSender{}
	if got := sender.buildURL("/verify-email", "tok"); got != "tok" {
		t.Fatalf("buildURL = %q", got)
	}
}

func TestResendSenderHonoursCancellation(t *testing.T) {
	sender := NewResendEmailSender("re_test_key", "noreply@example.com", "https://app.example.com")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.SendVerificationEmail(ctx, "a@example.com", "tok")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
