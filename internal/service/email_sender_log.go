package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogEmailSender writes outgoing mail to the log instead of sending it.
// Used in development when no Resend key is configured.
type LogEmailSender struct {
	Log        logrus.FieldLogger
	AppBaseURL string
}

func (s LogEmailSender) SendVerificationEmail(_ context.Context, email string, token string) error {
	s.entry(email, "email_verification").WithField("link", s.link("/verify-email", token)).Info("email not sent")
	return nil
}

func (s LogEmailSender) SendPasswordResetEmail(_ context.Context, email string, token string) error {
	s.entry(email, "password_reset").WithField("link", s.link("/reset-password", token)).Info("email not sent")
	return nil
}

func (s LogEmailSender) SendTwoFactorCode(_ context.Context, email string, code string) error {
	s.entry(email, "two_factor_code").WithField("code", code).Info("email not sent")
	return nil
}

func (s LogEmailSender) entry(email string, kind string) *logrus.Entry {
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithFields(logrus.Fields{"to": email, "email_kind": kind})
}

func (s LogEmailSender) link(path string, token string) string {
	return (&ResendEmailSender{AppBaseURL: s.AppBaseURL}).buildURL(path, token)
}
