package service

import (
	"github.com/AhmadIb227/syria-gpt/internal/entity"

	"github.com/google/uuid"
)

type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

type RegisterResult struct {
	UserID  uuid.UUID
	Message string
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress *string
	UserAgent *string
}

type TwoFactorInput struct {
	ChallengeToken string
	Code           string
	IPAddress      *string
	UserAgent      *string
}

// DisableTwoFactorInput carries the proof DisableTwoFactor asks for: the
// password, or an answered challenge on accounts without one.
type DisableTwoFactorInput struct {
	Password       string
	ChallengeToken string
	Code           string
}

// ClientMeta describes the client a refresh session is issued to.
type ClientMeta struct {
	IPAddress *string
	UserAgent *string
}

const TokenTypeBearer = "bearer"

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

type TwoFactorChallengeResult struct {
	ChallengeToken string
	Method         entity.TwoFactorMethod
	ExpiresIn      int64
	Message        string
}

// AuthResult carries exactly one of Tokens or Challenge.
type AuthResult struct {
	Tokens    *TokenPair
	Challenge *TwoFactorChallengeResult
}

func (r *AuthResult) TwoFactorRequired() bool {
	return r != nil && r.Challenge != nil
}

type MessageResult struct {
	Message string
}

// ExternalIdentity is what an OAuth provider vouches for after a code exchange.
type ExternalIdentity struct {
	Provider      entity.Provider
	ProviderID    string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
}

type StatusAction string

const (
	ActionActivate   StatusAction = "activate"
	ActionDeactivate StatusAction = "deactivate"
	ActionSuspend    StatusAction = "suspend"
)

type PurgeReport struct {
	VerificationTokens  int64
	Sessions            int64
	TwoFactorChallenges int64
}
