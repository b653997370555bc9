package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserStatus string

const (
	StatusPendingVerification UserStatus = "pending_verification"
	StatusActive              UserStatus = "active"
	StatusInactive            UserStatus = "inactive"
	StatusSuspended           UserStatus = "suspended"
)

type TwoFactorMethod string

const (
	TwoFactorEmail TwoFactorMethod = "email"
	TwoFactorTOTP  TwoFactorMethod = "totp"
)

type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

var (
	ErrNotVerified      = errors.New("account must be verified to enable two-factor authentication")
	ErrLastLoginMethod  = errors.New("cannot remove the last login method")
	ErrUnknownProvider  = errors.New("unknown identity provider")
	ErrEmptyProviderID  = errors.New("provider id cannot be empty")
	ErrUnknownTwoFactor = errors.New("unknown two-factor method")
)

type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email       string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	FirstName   *string   `gorm:"type:varchar(100)"`
	LastName    *string   `gorm:"type:varchar(100)"`
	PhoneNumber *string   `gorm:"type:varchar(32);uniqueIndex"`

	PasswordHash *string `gorm:"type:text"`
	GoogleID     *string `gorm:"type:varchar(255);uniqueIndex"`
	FacebookID   *string `gorm:"type:varchar(255);uniqueIndex"`

	EmailVerified    bool            `gorm:"not null;default:false"`
	PhoneVerified    bool            `gorm:"not null;default:false"`
	TwoFactorEnabled bool            `gorm:"not null;default:false"`
	TwoFactorMethod  TwoFactorMethod `gorm:"type:varchar(16)"`

	Status   UserStatus `gorm:"type:varchar(32);not null;default:'pending_verification'"`
	IsActive bool       `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsVerified reports whether either contact channel has been verified.
func (u *User) IsVerified() bool {
	return u.EmailVerified || u.PhoneVerified
}

func (u *User) HasLoginMethod() bool {
	return nonEmpty(u.PasswordHash) || nonEmpty(u.GoogleID) || nonEmpty(u.FacebookID)
}

// CanLogin is the base eligibility rule. Pending accounts are allowed here;
// callers that require a verified address enforce it separately.
func (u *User) CanLogin() bool {
	if !u.IsActive {
		return false
	}
	if u.Status != StatusActive && u.Status != StatusPendingVerification {
		return false
	}
	return u.HasLoginMethod()
}

func (u *User) VerifyEmail() {
	u.EmailVerified = true
	if u.Status == StatusPendingVerification {
		u.Status = StatusActive
	}
}

func (u *User) VerifyPhone() {
	u.PhoneVerified = true
	if u.Status == StatusPendingVerification {
		u.Status = StatusActive
	}
}

func (u *User) Activate() {
	u.IsActive = true
	u.Status = StatusActive
}

func (u *User) Deactivate() {
	u.IsActive = false
	u.Status = StatusInactive
}

// Suspend is administrative only; no user-facing flow leaves this state.
func (u *User) Suspend() {
	u.IsActive = false
	u.Status = StatusSuspended
}

func (u *User) EnableTwoFactor(method TwoFactorMethod) error {
	if method != TwoFactorEmail && method != TwoFactorTOTP {
		return ErrUnknownTwoFactor
	}
	if !u.IsVerified() {
		return ErrNotVerified
	}
	u.TwoFactorEnabled = true
	u.TwoFactorMethod = method
	return nil
}

func (u *User) DisableTwoFactor() {
	u.TwoFactorEnabled = false
	u.TwoFactorMethod = ""
}

func (u *User) ProviderID(provider Provider) *string {
	switch provider {
	case ProviderGoogle:
		return u.GoogleID
	case ProviderFacebook:
		return u.FacebookID
	}
	return nil
}

func (u *User) LinkProvider(provider Provider, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyProviderID
	}
	switch provider {
	case ProviderGoogle:
		u.GoogleID = &id
	case ProviderFacebook:
		u.FacebookID = &id
	default:
		return ErrUnknownProvider
	}
	return nil
}

func (u *User) UnlinkProvider(provider Provider) error {
	switch provider {
	case ProviderGoogle:
		if !nonEmpty(u.PasswordHash) && !nonEmpty(u.FacebookID) {
			return ErrLastLoginMethod
		}
		u.GoogleID = nil
	case ProviderFacebook:
		if !nonEmpty(u.PasswordHash) && !nonEmpty(u.GoogleID) {
			return ErrLastLoginMethod
		}
		u.FacebookID = nil
	default:
		return ErrUnknownProvider
	}
	return nil
}

func (u *User) FullName() string {
	first := strings.TrimSpace(deref(u.FirstName))
	last := strings.TrimSpace(deref(u.LastName))
	return strings.TrimSpace(first + " " + last)
}

func nonEmpty(value *string) bool {
	return value != nil && *value != ""
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
