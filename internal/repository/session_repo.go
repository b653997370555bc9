package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AhmadIb227/syria-gpt/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	// FindByTokenHash returns the session whatever its state.
	FindByTokenHash(ctx context.Context, hash string) (*entity.Session, error)
	FindValidByTokenHash(ctx context.Context, hash string, now time.Time) (*entity.Session, error)
	// Rotate revokes the valid session identified by oldHash and inserts next
	// for the same user. It returns the revoked session, or nil when oldHash
	// was not valid or another caller rotated it first.
	Rotate(ctx context.Context, oldHash string, next *entity.Session, now time.Time) (*entity.Session, error)
	Revoke(ctx context.Context, sessionID uuid.UUID, now time.Time) error
	RevokeAllByUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *entity.Session) error {
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *sessionRepository) FindByTokenHash(ctx context.Context, hash string) (*entity.Session, error) {
	return findSession(r.db.WithContext(ctx), "token_hash = ?", hash)
}

func (r *sessionRepository) FindValidByTokenHash(ctx context.Context, hash string, now time.Time) (*entity.Session, error) {
	return findSession(r.db.WithContext(ctx), "token_hash = ? AND revoked_at IS NULL AND expires_at > ?", hash, now)
}

func (r *sessionRepository) Rotate(
	ctx context.Context,
	oldHash string,
	next *entity.Session,
	now time.Time,
) (*entity.Session, error) {
	var rotated *entity.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := findSession(tx, "token_hash = ? AND revoked_at IS NULL AND expires_at > ?", oldHash, now)
		if err != nil || current == nil {
			return err
		}

		result := tx.Model(&entity.Session{}).
			Where("id = ? AND revoked_at IS NULL", current.ID).
			Update("revoked_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		next.UserID = current.UserID
		if err := translate(tx.Create(next).Error); err != nil {
			return err
		}
		current.RevokedAt = &now
		rotated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rotated, nil
}

func (r *sessionRepository) Revoke(ctx context.Context, sessionID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", now).
		Error
}

func (r *sessionRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now)
	return result.RowsAffected, result.Error
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&entity.Session{})
	return result.RowsAffected, result.Error
}

func findSession(db *gorm.DB, query string, args ...any) (*entity.Session, error) {
	var session entity.Session
	err := db.Where(query, args...).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}
