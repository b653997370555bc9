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

const twoFactorCodeDigits = 6

// TwoFactorManager binds a short-lived challenge token to a single-use code.
type TwoFactorManager struct {
	challenges repository.TwoFactorChallengeRepository
	secrets    repository.TOTPSecretRepository
	hasher     PasswordHasher
	tokens     TokenCodec
	totp       TOTPValidator
	clock      Clock
	ttl        time.Duration
}

func NewTwoFactorManager(
	challenges repository.TwoFactorChallengeRepository,
	secrets repository.TOTPSecretRepository,
	hasher PasswordHasher,
	tokens TokenCodec,
	totp TOTPValidator,
	clock Clock,
	ttl time.Duration,
) *TwoFactorManager {
	if clock == nil {
		clock = RealClock{}
	}
	return &TwoFactorManager{
		challenges: challenges,
		secrets:    secrets,
		hasher:     hasher,
		tokens:     tokens,
		totp:       totp,
		clock:      clock,
		ttl:        ttl,
	}
}

func (m *TwoFactorManager) TTL() time.Duration {
	return m.ttl
}

// IssueChallenge replaces any live challenge of the user. For email
// accounts it returns the plaintext code to deliver; for TOTP accounts the
// code is empty because the authenticator app produces it.
func (m *TwoFactorManager) IssueChallenge(ctx context.Context, user *entity.User) (string, string, error) {
	method := user.TwoFactorMethod
	if method == "" {
		method = entity.TwoFactorEmail
	}
	if method == entity.TwoFactorTOTP && m.totp == nil {
		return "", "", ErrTwoFactorNotEnrolled
	}

	var code, codeHash string
	if method == entity.TwoFactorEmail {
		var err error
		code, err = utils.GenerateNumericCode(twoFactorCodeDigits)
		if err != nil {
			return "", "", err
		}
		codeHash, err = m.hasher.Hash(code)
		if err != nil {
			return "", "", err
		}
	}

	now := m.clock.Now()
	challenge := &entity.TwoFactorChallenge{
		UserID:    user.ID,
		Method:    method,
		CodeHash:  codeHash,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.challenges.Replace(ctx, challenge, now); err != nil {
		return "", "", err
	}

	token, err := m.tokens.Issue(user.ID.String(), utils.TokenTwoFactor, m.ttl)
	if err != nil {
		return "", "", err
	}
	return token, code, nil
}

// Verify checks the challenge token and the code. A wrong code leaves the
// challenge live; a right one consumes it.
func (m *TwoFactorManager) Verify(ctx context.Context, challengeToken string, code string) (uuid.UUID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return uuid.Nil, ErrInvalidTwoFactorCode
	}
	subject, err := m.tokens.Verify(challengeToken, utils.TokenTwoFactor)
	if err != nil {
		return uuid.Nil, ErrInvalidTwoFactorCode
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, ErrInvalidTwoFactorCode
	}

	now := m.clock.Now()
	challenge, err := m.challenges.FindLatestValid(ctx, userID, now)
	if err != nil {
		return uuid.Nil, err
	}
	if challenge == nil {
		return uuid.Nil, ErrInvalidTwoFactorCode
	}

	matched, err := m.matches(ctx, challenge, code)
	if err != nil {
		return uuid.Nil, err
	}
	if !matched {
		return uuid.Nil, ErrInvalidTwoFactorCode
	}

	used, err := m.challenges.MarkUsed(ctx, challenge, now)
	if err != nil {
		return uuid.Nil, err
	}
	if !used {
		return uuid.Nil, ErrInvalidTwoFactorCode
	}
	return userID, nil
}

func (m *TwoFactorManager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.challenges.DeleteExpired(ctx, m.clock.Now())
}

func (m *TwoFactorManager) matches(ctx context.Context, challenge *entity.TwoFactorChallenge, code string) (bool, error) {
	switch challenge.Method {
	case entity.TwoFactorTOTP:
		if m.totp == nil || m.secrets == nil {
			return false, nil
		}
		secret, err := m.secrets.FindByUserID(ctx, challenge.UserID)
		if err != nil {
			return false, err
		}
		if secret == nil || secret.ConfirmedAt == nil {
			return false, nil
		}
		return m.totp.ValidateCode(secret.Secret, code), nil
	default:
		return m.hasher.Verify(challenge.CodeHash, code), nil
	}
}
