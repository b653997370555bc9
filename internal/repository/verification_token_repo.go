package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AhmadIb227/syria-gpt/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VerificationTokenRepository interface {
	// Replace marks every unused token of the same user and purpose as used
	// and inserts t, in one transaction.
	Replace(ctx context.Context, t *entity.VerificationToken, now time.Time) error
	// Consume atomically marks a valid token used and returns it. A nil token
	// means it was absent, used, expired or consumed concurrently.
	Consume(ctx context.Context, tokenHash string, purpose entity.TokenPurpose, now time.Time) (*entity.VerificationToken, error)
	RevokeAllByUser(ctx context.Context, userID uuid.UUID, purpose entity.TokenPurpose, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type verificationTokenRepository struct {
	db *gorm.DB
}

func NewVerificationTokenRepository(db *gorm.DB) VerificationTokenRepository {
	return &verificationTokenRepository{db: db}
}

func (r *verificationTokenRepository) Replace(ctx context.Context, t *entity.VerificationToken, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markUnusedTokens(tx, t.UserID, t.Purpose, now); err != nil {
			return err
		}
		return translate(tx.Create(t).Error)
	})
}

func (r *verificationTokenRepository) Consume(
	ctx context.Context,
	tokenHash string,
	purpose entity.TokenPurpose,
	now time.Time,
) (*entity.VerificationToken, error) {
	var consumed *entity.VerificationToken
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token entity.VerificationToken
		err := tx.
			Where("token_hash = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?", tokenHash, purpose, now).
			First(&token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		result := tx.Model(&entity.VerificationToken{}).
			Where("id = ? AND used_at IS NULL", token.ID).
			Update("used_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		token.UsedAt = &now
		consumed = &token
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

func (r *verificationTokenRepository) RevokeAllByUser(
	ctx context.Context,
	userID uuid.UUID,
	purpose entity.TokenPurpose,
	now time.Time,
) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.VerificationToken{}).
		Where("user_id = ? AND purpose = ? AND used_at IS NULL", userID, purpose).
		Update("used_at", now)
	return result.RowsAffected, result.Error
}

func (r *verificationTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&entity.VerificationToken{})
	return result.RowsAffected, result.Error
}

func markUnusedTokens(tx *gorm.DB, userID uuid.UUID, purpose entity.TokenPurpose, now time.Time) error {
	return tx.Model(&entity.VerificationToken{}).
		Where("user_id = ? AND purpose = ? AND used_at IS NULL", userID, purpose).
		Update("used_at", now).
		Error
}
