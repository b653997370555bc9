package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type TokenType string

const (
	TokenAccess            TokenType = "access"
	TokenRefresh           TokenType = "refresh"
	TokenTwoFactor         TokenType = "2fa"
	TokenEmailVerification TokenType = "email_verification"
	TokenPasswordReset     TokenType = "password_reset"
)

// TokenCodec signs and verifies typed bearer tokens with a shared HMAC secret.
type TokenCodec struct {
	Secret []byte
	Issuer string
	Now    func() time.Time
}

type TokenClaims struct {
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

func NewTokenCodec(secret []byte, issuer string) *TokenCodec {
	return &TokenCodec{Secret: secret, Issuer: issuer}
}

func (c *TokenCodec) Issue(subject string, tokenType TokenType, ttl time.Duration) (string, error) {
	if len(c.Secret) == 0 || subject == "" || tokenType == "" || ttl <= 0 {
		return "", ErrInvalidToken
	}
	now := c.now()
	claims := TokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.Secret)
}

// Verify returns the subject of a token minted by this codec for expectedType.
// Every failure collapses to ErrInvalidToken.
func (c *TokenCodec) Verify(tokenString string, expectedType TokenType) (string, error) {
	if len(c.Secret) == 0 || tokenString == "" {
		return "", ErrInvalidToken
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.Secret, nil
	}, options...)
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid || claims.Type != expectedType || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (c *TokenCodec) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
