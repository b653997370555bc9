package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TwoFactorChallenge struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	Method   TwoFactorMethod `gorm:"type:varchar(16);not null"`
	CodeHash string          `gorm:"type:text"`

	ExpiresAt time.Time `gorm:"not null;index"`
	UsedAt    *time.Time

	CreatedAt time.Time
}

func (c *TwoFactorChallenge) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *TwoFactorChallenge) IsValid(now time.Time) bool {
	return c.UsedAt == nil && c.ExpiresAt.After(now)
}
