package service

import (
	"context"
	"strings"
	"time"

	"github.com/AhmadIb227/syria-gpt/internal/entity"
	"github.com/AhmadIb227/syria-gpt/internal/repository"
	"github.com/AhmadIb227/syria-gpt/internal/utils"

	"github.com/google/uuid"
)

const ephemeralTokenBytes = 32

// EphemeralTokenStore issues single-use opaque tokens for one purpose.
type EphemeralTokenStore struct {
	repo    repository.VerificationTokenRepository
	purpose entity.TokenPurpose
	clock   Clock
}

func NewEphemeralTokenStore(repo repository.VerificationTokenRepository, purpose entity.TokenPurpose, clock Clock) *EphemeralTokenStore {
	if clock == nil {
		clock = RealClock{}
	}
	return &EphemeralTokenStore{repo: repo, purpose: purpose, clock: clock}
}

// Issue supersedes any earlier unused token of the same user.
func (s *EphemeralTokenStore) Issue(ctx context.Context, userID uuid.UUID, ttl time.Duration) (string, error) {
	raw, err := utils.GenerateRandomToken(ephemeralTokenBytes)
	if err != nil {
		return "", err
	}
	now := s.clock.Now()
	token := &entity.VerificationToken{
		UserID:    userID,
		TokenHash: utils.HashToken(raw),
		Purpose:   s.purpose,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.repo.Replace(ctx, token, now); err != nil {
		return "", err
	}
	return raw, nil
}

// Consume returns the owner of a valid token and marks it used. Only one
// concurrent caller can win; everyone else gets ErrInvalidToken.
func (s *EphemeralTokenStore) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	if strings.TrimSpace(token) == "" {
		return uuid.Nil, ErrInvalidToken
	}
	consumed, err := s.repo.Consume(ctx, utils.HashToken(token), s.purpose, s.clock.Now())
	if err != nil {
		return uuid.Nil, err
	}
	if consumed == nil {
		return uuid.Nil, ErrInvalidToken
	}
	return consumed.UserID, nil
}

func (s *EphemeralTokenStore) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.RevokeAllByUser(ctx, userID, s.purpose, s.clock.Now())
}

// PurgeExpired deletes expired rows of every purpose; the table is shared.
func (s *EphemeralTokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now())
}
