package repository

import (
	"github.com/AhmadIb227/syria-gpt/internal/entity"

	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.VerificationToken{},
		&entity.Session{},
		&entity.TwoFactorChallenge{},
		&entity.TOTPSecret{},
	)
}
