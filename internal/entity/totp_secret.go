package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TOTPSecret holds an authenticator-app secret. It only takes part in login
// once ConfirmedAt is set.
type TOTPSecret struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	Secret      string `gorm:"type:text;not null"`
	ConfirmedAt *time.Time

	CreatedAt time.Time
}

func (TOTPSecret) TableName() string {
	return "totp_secrets"
}

func (s *TOTPSecret) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
