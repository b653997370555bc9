package dto

import (
	"time"

	"github.com/AhmadIb227/syria-gpt/internal/entity"
	"github.com/AhmadIb227/syria-gpt/internal/service"
)

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	FirstName   string `json:"first_name" validate:"omitempty,max=100"`
	LastName    string `json:"last_name" validate:"omitempty,max=100"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164"`
}

type RegisterResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginTwoFactorRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code" validate:"required,numeric,len=6"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is the wire contract for a successful sign-in.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type TwoFactorChallengeResponse struct {
	TwoFactorRequired bool   `json:"two_factor_required"`
	ChallengeToken    string `json:"challenge_token"`
	Method            string `json:"method"`
	ExpiresIn         int64  `json:"expires_in"`
	Message           string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SignOutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type PasswordResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type TOTPEnrollResponse struct {
	OTPAuthURL string `json:"otpauth_url"`
}

type TwoFactorCodeRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

// DisableTwoFactorRequest needs password on password accounts and an
// answered challenge on the others.
type DisableTwoFactorRequest struct {
	Password       string `json:"password"`
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

type OAuthURLResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

type UserResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FirstName        *string   `json:"first_name,omitempty"`
	LastName         *string   `json:"last_name,omitempty"`
	FullName         string    `json:"full_name,omitempty"`
	PhoneNumber      *string   `json:"phone_number,omitempty"`
	EmailVerified    bool      `json:"email_verified"`
	PhoneVerified    bool      `json:"phone_verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	TwoFactorMethod  string    `json:"two_factor_method,omitempty"`
	Status           string    `json:"status"`
	IsActive         bool      `json:"is_active"`
	LinkedProviders  []string  `json:"linked_providers"`
	HasPassword      bool      `json:"has_password"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func UserResponseFromEntity(user *entity.User) UserResponse {
	providers := make([]string, 0, 2)
	for _, p := range []entity.Provider{entity.ProviderGoogle, entity.ProviderFacebook} {
		if id := user.ProviderID(p); id != nil && *id != "" {
			providers = append(providers, string(p))
		}
	}
	return UserResponse{
		ID:               user.ID.String(),
		Email:            user.Email,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		FullName:         user.FullName(),
		PhoneNumber:      user.PhoneNumber,
		EmailVerified:    user.EmailVerified,
		PhoneVerified:    user.PhoneVerified,
		TwoFactorEnabled: user.TwoFactorEnabled,
		TwoFactorMethod:  string(user.TwoFactorMethod),
		Status:           string(user.Status),
		IsActive:         user.IsActive,
		LinkedProviders:  providers,
		HasPassword:      user.PasswordHash != nil && *user.PasswordHash != "",
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
	}
}

func TokenResponseFromPair(pair *service.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
	}
}

func ChallengeResponseFromResult(challenge *service.TwoFactorChallengeResult) TwoFactorChallengeResponse {
	return TwoFactorChallengeResponse{
		TwoFactorRequired: true,
		ChallengeToken:    challenge.ChallengeToken,
		Method:            string(challenge.Method),
		ExpiresIn:         challenge.ExpiresIn,
		Message:           challenge.Message,
	}
}
