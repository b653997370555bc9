package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go/v2"
)

var ErrEmailNotConfigured = errors.New("email sender not configured")

type ResendEmailSender struct {
	From       string
	AppBaseURL string
	VerifyPath string
	ResetPath  string

	deliver func(ctx context.Context, request *resend.SendEmailRequest) error
}

func NewResendEmailSender(apiKey string, from string, appBaseURL string) *ResendEmailSender {
	sender := &ResendEmailSender{
		From:       from,
		AppBaseURL: strings.TrimRight(appBaseURL, "/"),
		VerifyPath: "/verify-email",
		ResetPath:  "/reset-password",
	}
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return sender
	}
	client := resend.NewClient(apiKey)
	sender.deliver = func(ctx context.Context, request *resend.SendEmailRequest) error {
		_, err := client.Emails.SendWithContext(ctx, request)
		return err
	}
	return sender
}

func (s *ResendEmailSender) SendVerificationEmail(ctx context.Context, email string, token string) error {
	link := s.buildURL(s.VerifyPath, token)
	body := fmt.Sprintf("<p>Click to verify your email:</p><p><a href=\"%s\">Verify Email</a></p>", html.EscapeString(link))
	return s.send(ctx, email, "Verify your email", body, "Verify your email: "+link)
}

func (s *ResendEmailSender) SendPasswordResetEmail(ctx context.Context, email string, token string) error {
	link := s.buildURL(s.ResetPath, token)
	body := fmt.Sprintf("<p>Click to reset your password:</p><p><a href=\"%s\">Reset Password</a></p>", html.EscapeString(link))
	return s.send(ctx, email, "Reset your password", body, "Reset your password: "+link)
}

func (s *ResendEmailSender) SendTwoFactorCode(ctx context.Context, email string, code string) error {
	body := fmt.Sprintf("<p>Your sign-in code is <strong>%s</strong>.</p><p>It expires in a few minutes.</p>", html.EscapeString(code))
	return s.send(ctx, email, "Your sign-in code", body, "Your sign-in code is "+code)
}

func (s *ResendEmailSender) buildURL(path string, token string) string {
	base := strings.TrimRight(s.AppBaseURL, "/")
	if base == "" {
		return token
	}
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s%s?token=%s", base, path, token)
}

func (s *ResendEmailSender) send(ctx context.Context, to string, subject string, htmlBody string, text string) error {
	if s.deliver == nil {
		return ErrEmailNotConfigured
	}
	err := s.deliver(ctx, &resend.SendEmailRequest{
		From:    s.From,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
