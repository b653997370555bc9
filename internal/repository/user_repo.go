package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/AhmadIb227/syria-gpt/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByPhone(ctx context.Context, phone string) (*entity.User, error)
	FindByProviderID(ctx context.Context, provider entity.Provider, providerID string) (*entity.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)

	// The write methods below touch only the columns they name, and any
	// precondition is part of the UPDATE itself. They report false when no
	// row matched.
	MarkEmailVerified(ctx context.Context, id uuid.UUID) (bool, error)
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) (bool, error)
	ReplacePasswordHash(ctx context.Context, id uuid.UUID, current string, hash string) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status entity.UserStatus, isActive bool) (bool, error)
	SetTwoFactor(ctx context.Context, id uuid.UUID, method entity.TwoFactorMethod) (bool, error)
	LinkProvider(ctx context.Context, id uuid.UUID, provider entity.Provider, providerID string) (bool, error)
	UnlinkProvider(ctx context.Context, id uuid.UUID, provider entity.Provider) (bool, error)
	FillName(ctx context.Context, id uuid.UUID, firstName string, lastName string) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*entity.User, error) {
	return r.findOne(ctx, "phone_number = ?", phone)
}

func (r *userRepository) FindByProviderID(ctx context.Context, provider entity.Provider, providerID string) (*entity.User, error) {
	column, _, err := providerColumns(provider)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, column+" = ?", providerID)
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", email)
}

func (r *userRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return r.exists(ctx, "phone_number = ?", phone)
}

// MarkEmailVerified promotes a pending account to active. Any other status
// is left as stored.
func (r *userRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.updateWhere(ctx, map[string]any{
		"email_verified": true,
		"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
			string(entity.StatusPendingVerification), string(entity.StatusActive)),
	}, "id = ?", id)
}

func (r *userRepository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) (bool, error) {
	return r.updateWhere(ctx, map[string]any{"password_hash": hash}, "id = ?", id)
}

// ReplacePasswordHash writes hash only while the stored hash is still current.
func (r *userRepository) ReplacePasswordHash(ctx context.Context, id uuid.UUID, current string, hash string) (bool, error) {
	return r.updateWhere(ctx, map[string]any{"password_hash": hash}, "id = ? AND password_hash = ?", id, current)
}

func (r *userRepository) SetStatus(ctx context.Context, id uuid.UUID, status entity.UserStatus, isActive bool) (bool, error) {
	return r.updateWhere(ctx, map[string]any{
		"status":    string(status),
		"is_active": isActive,
	}, "id = ?", id)
}

// SetTwoFactor enables method, or disables two-factor when method is empty.
func (r *userRepository) SetTwoFactor(ctx context.Context, id uuid.UUID, method entity.TwoFactorMethod) (bool, error) {
	return r.updateWhere(ctx, map[string]any{
		"two_factor_enabled": method != "",
		"two_factor_method":  string(method),
	}, "id = ?", id)
}

// LinkProvider sets the provider id unless a different one is already linked.
func (r *userRepository) LinkProvider(ctx context.Context, id uuid.UUID, provider entity.Provider, providerID string) (bool, error) {
	column, _, err := providerColumns(provider)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("id = ? AND (%[1]s IS NULL OR %[1]s = '' OR %[1]s = ?)", column)
	return r.updateWhere(ctx, map[string]any{column: providerID}, query, id, providerID)
}

// UnlinkProvider clears the provider id only while another login method
// remains on the row.
func (r *userRepository) UnlinkProvider(ctx context.Context, id uuid.UUID, provider entity.Provider) (bool, error) {
	column, other, err := providerColumns(provider)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("id = ? AND ((password_hash IS NOT NULL AND password_hash <> '') OR (%[1]s IS NOT NULL AND %[1]s <> ''))", other)
	return r.updateWhere(ctx, map[string]any{column: nil}, query, id)
}

// FillName sets first and last name where they are still empty. Empty
// arguments are skipped.
func (r *userRepository) FillName(ctx context.Context, id uuid.UUID, firstName string, lastName string) error {
	if firstName != "" {
		if _, err := r.updateWhere(ctx, map[string]any{"first_name": firstName}, "id = ? AND (first_name IS NULL OR first_name = '')", id); err != nil {
			return err
		}
	}
	if lastName != "" {
		if _, err := r.updateWhere(ctx, map[string]any{"last_name": lastName}, "id = ? AND (last_name IS NULL OR last_name = '')", id); err != nil {
			return err
		}
	}
	return nil
}

func (r *userRepository) updateWhere(ctx context.Context, values map[string]any, query string, args ...any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where(query, args...).
		Updates(values)
	if err := translate(result.Error); err != nil {
		return false, err
	}
	return result.RowsAffected > 0, nil
}

func providerColumns(provider entity.Provider) (column string, other string, err error) {
	switch provider {
	case entity.ProviderGoogle:
		return "google_id", "facebook_id", nil
	case entity.ProviderFacebook:
		return "facebook_id", "google_id", nil
	}
	return "", "", entity.ErrUnknownProvider
}

func (r *userRepository) findOne(ctx context.Context, query string, args ...any) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Where(query, args...).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where(query, args...).
		Count(&count).Error
	return count > 0, err
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
