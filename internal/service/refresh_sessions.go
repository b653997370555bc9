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

const refreshTokenBytes = 48

type RefreshSessionStore struct {
	repo  repository.SessionRepository
	ttl   time.Duration
	clock Clock
}

func NewRefreshSessionStore(repo repository.SessionRepository, ttl time.Duration, clock Clock) *RefreshSessionStore {
	if clock == nil {
		clock = RealClock{}
	}
	return &RefreshSessionStore{repo: repo, ttl: ttl, clock: clock}
}

func (s *RefreshSessionStore) Issue(ctx context.Context, userID uuid.UUID, meta ClientMeta) (string, error) {
	raw, session, err := s.build(meta)
	if err != nil {
		return "", err
	}
	session.UserID = userID
	if err := s.repo.Create(ctx, session); err != nil {
		return "", err
	}
	return raw, nil
}

func (s *RefreshSessionStore) Validate(ctx context.Context, token string) (*entity.Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidSession
	}
	session, err := s.repo.FindValidByTokenHash(ctx, utils.HashToken(token), s.clock.Now())
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrInvalidSession
	}
	return session, nil
}

// Rotate revokes oldToken and mints its successor for the same user. A token
// can be rotated once; a replayed or raced token gets ErrInvalidSession.
func (s *RefreshSessionStore) Rotate(ctx context.Context, oldToken string, meta ClientMeta) (*entity.Session, string, error) {
	if strings.TrimSpace(oldToken) == "" {
		return nil, "", ErrInvalidSession
	}
	raw, next, err := s.build(meta)
	if err != nil {
		return nil, "", err
	}
	previous, err := s.repo.Rotate(ctx, utils.HashToken(oldToken), next, s.clock.Now())
	if err != nil {
		return nil, "", err
	}
	if previous == nil {
		return nil, "", ErrInvalidSession
	}
	return previous, raw, nil
}

// Find returns the session for token in any state, or nil.
func (s *RefreshSessionStore) Find(ctx context.Context, token string) (*entity.Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	return s.repo.FindByTokenHash(ctx, utils.HashToken(token))
}

func (s *RefreshSessionStore) Revoke(ctx context.Context, session *entity.Session) error {
	return s.repo.Revoke(ctx, session.ID, s.clock.Now())
}

func (s *RefreshSessionStore) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.RevokeAllByUser(ctx, userID, s.clock.Now())
}

func (s *RefreshSessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now())
}

func (s *RefreshSessionStore) build(meta ClientMeta) (string, *entity.Session, error) {
	raw, err := utils.GenerateRandomToken(refreshTokenBytes)
	if err != nil {
		return "", nil, err
	}
	return raw, &entity.Session{
		TokenHash: utils.HashToken(raw),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}, nil
}
