package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AhmadIb227/syria-gpt/internal/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errChallengeReplaced = errors.New("challenge replaced")

// redisChallengeRepository keeps one key per user. Writing a new challenge
// overwrites the previous one, and the key expires with the challenge.
type redisChallengeRepository struct {
	redis  redis.UniversalClient
	prefix string
}

type challengeRecord struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"user_id"`
	Method    entity.TwoFactorMethod `json:"method"`
	CodeHash  string                 `json:"code_hash,omitempty"`
	ExpiresAt int64                  `json:"expires_at"`
	CreatedAt int64                  `json:"created_at"`
}

func NewRedisTwoFactorChallengeRepository(client redis.UniversalClient, prefix string) TwoFactorChallengeRepository {
	if prefix == "" {
		prefix = "2fa"
	}
	return &redisChallengeRepository{redis: client, prefix: prefix}
}

func (r *redisChallengeRepository) key(userID uuid.UUID) string {
	return r.prefix + ":" + userID.String()
}

func (r *redisChallengeRepository) Replace(ctx context.Context, c *entity.TwoFactorChallenge, now time.Time) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	ttl := c.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return fmt.Errorf("challenge already expired")
	}
	data, err := json.Marshal(challengeRecord{
		ID:        c.ID,
		UserID:    c.UserID,
		Method:    c.Method,
		CodeHash:  c.CodeHash,
		ExpiresAt: c.ExpiresAt.UnixNano(),
		CreatedAt: c.CreatedAt.UnixNano(),
	})
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, r.key(c.UserID), data, ttl).Err()
}

func (r *redisChallengeRepository) FindLatestValid(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
) (*entity.TwoFactorChallenge, error) {
	data, err := r.redis.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	challenge, err := decodeChallenge(data)
	if err != nil {
		return nil, err
	}
	if !challenge.IsValid(now) {
		return nil, nil
	}
	return challenge, nil
}

func (r *redisChallengeRepository) MarkUsed(ctx context.Context, c *entity.TwoFactorChallenge, now time.Time) (bool, error) {
	key := r.key(c.UserID)
	err := r.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		current, err := decodeChallenge(data)
		if err != nil {
			return err
		}
		if current.ID != c.ID {
			return errChallengeReplaced
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		c.UsedAt = &now
		return true, nil
	case errors.Is(err, redis.Nil), errors.Is(err, redis.TxFailedErr), errors.Is(err, errChallengeReplaced):
		return false, nil
	default:
		return false, err
	}
}

// DeleteExpired is a no-op: keys carry their own TTL.
func (r *redisChallengeRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func decodeChallenge(data []byte) (*entity.TwoFactorChallenge, error) {
	var record challengeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &entity.TwoFactorChallenge{
		ID:        record.ID,
		UserID:    record.UserID,
		Method:    record.Method,
		CodeHash:  record.CodeHash,
		ExpiresAt: time.Unix(0, record.ExpiresAt),
		CreatedAt: time.Unix(0, record.CreatedAt),
	}, nil
}
