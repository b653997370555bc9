package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AhmadIb227/syria-gpt/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TwoFactorChallengeRepository interface {
	// Replace invalidates every unused challenge of the user and stores c.
	Replace(ctx context.Context, c *entity.TwoFactorChallenge, now time.Time) error
	FindLatestValid(ctx context.Context, userID uuid.UUID, now time.Time) (*entity.TwoFactorChallenge, error)
	// MarkUsed reports false when c was already used or replaced.
	MarkUsed(ctx context.Context, c *entity.TwoFactorChallenge, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type twoFactorChallengeRepository struct {
	db *gorm.DB
}

func NewTwoFactorChallengeRepository(db *gorm.DB) TwoFactorChallengeRepository {
	return &twoFactorChallengeRepository{db: db}
}

func (r *twoFactorChallengeRepository) Replace(ctx context.Context, c *entity.TwoFactorChallenge, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&entity.TwoFactorChallenge{}).
			Where("user_id = ? AND used_at IS NULL", c.UserID).
			Update("used_at", now).
			Error
		if err != nil {
			return err
		}
		return tx.Create(c).Error
	})
}

func (r *twoFactorChallengeRepository) FindLatestValid(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
) (*entity.TwoFactorChallenge, error) {
	var challenge entity.TwoFactorChallenge
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND used_at IS NULL AND expires_at > ?", userID, now).
		Order("created_at DESC").
		First(&challenge).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (r *twoFactorChallengeRepository) MarkUsed(ctx context.Context, c *entity.TwoFactorChallenge, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.TwoFactorChallenge{}).
		Where("id = ? AND used_at IS NULL", c.ID).
		Update("used_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *twoFactorChallengeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&entity.TwoFactorChallenge{})
	return result.RowsAffected, result.Error
}
