package service

import (
	"context"
	"time"

	"github.com/AhmadIb227/syria-gpt/internal/entity"
	"github.com/AhmadIb227/syria-gpt/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	TwoFactorTTL         time.Duration
	TOTPIssuer           string
	// RequireVerifiedEmail blocks sign-in for pending_verification accounts.
	RequireVerifiedEmail bool
}

func (c AuthConfig) withDefaults() AuthConfig {
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = 30 * time.Minute
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.VerificationTokenTTL <= 0 {
		c.VerificationTokenTTL = 24 * time.Hour
	}
	if c.ResetTokenTTL <= 0 {
		c.ResetTokenTTL = time.Hour
	}
	if c.TwoFactorTTL <= 0 {
		c.TwoFactorTTL = 10 * time.Minute
	}
	if c.TOTPIssuer == "" {
		c.TOTPIssuer = "SyriaGPT"
	}
	return c
}

type EmailSender interface {
	SendVerificationEmail(ctx context.Context, email string, token string) error
	SendPasswordResetEmail(ctx context.Context, email string, token string) error
	SendTwoFactorCode(ctx context.Context, email string, code string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

type TokenCodec interface {
	Issue(subject string, tokenType utils.TokenType, ttl time.Duration) (string, error)
	Verify(token string, expectedType utils.TokenType) (string, error)
}

type TOTPValidator interface {
	GenerateSecret(accountName string) (string, error)
	QRCodeURL(email string, issuer string, secret string) (string, error)
	ValidateCode(secret string, code string) bool
}

// Observer receives outcome counts; the metrics package implements it.
type Observer interface {
	ObserveLogin(outcome string)
	ObserveRefresh(outcome string)
	ObserveTwoFactor(outcome string)
	ObservePurge(kind string, count int64)
}

type noopObserver struct{}

func (noopObserver) ObserveLogin(string) {}
func (noopObserver) ObserveRefresh(string) {}
func (noopObserver) ObserveTwoFactor(string) {}
func (noopObserver) ObservePurge(string, int64) {}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify never fails loudly: unknown or malformed hashes simply don't match.
func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IdentityProvider performs the OAuth code exchange for one provider.
type IdentityProvider interface {
	Name() entity.Provider
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, code string) (*ExternalIdentity, error)
}
