package repository

import (
	"context"
	"errors"

	"github.com/AhmadIb227/syria-gpt/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TOTPSecretRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.TOTPSecret, error)
	Upsert(ctx context.Context, secret *entity.TOTPSecret) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

type totpSecretRepository struct {
	db *gorm.DB
}

func NewTOTPSecretRepository(db *gorm.DB) TOTPSecretRepository {
	return &totpSecretRepository{db: db}
}

func (r *totpSecretRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.TOTPSecret, error) {
	var secret entity.TOTPSecret
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&secret).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &secret, nil
}

func (r *totpSecretRepository) Upsert(ctx context.Context, secret *entity.TOTPSecret) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"secret", "confirmed_at"}),
		}).
		Create(secret).Error
}

func (r *totpSecretRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&entity.TOTPSecret{}).
		Error
}
