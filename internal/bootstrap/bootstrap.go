// Package bootstrap wires the stores and services shared by the server and
// the admin CLI.
package bootstrap

import (
	"context"
	"errors"

	"github.com/AhmadIb227/syria-gpt/config"
	"github.com/AhmadIb227/syria-gpt/internal/oauth"
	"github.com/AhmadIb227/syria-gpt/internal/repository"
	"github.com/AhmadIb227/syria-gpt/internal/service"
	"github.com/AhmadIb227/syria-gpt/internal/utils"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Components struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Tokens  *utils.TokenCodec
	Service *service.AuthService
}

func (c *Components) Close() error {
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

func Build(ctx context.Context, cfg config.Config, logger logrus.FieldLogger, observer service.Observer) (*Components, error) {
	db, err := config.ConnectionDb(cfg)
	if err != nil {
		return nil, err
	}
	components := &Components{DB: db}

	if cfg.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			_ = components.Close()
			return nil, err
		}
		logger.Info("database schema migrated")
	}

	var challenges repository.TwoFactorChallengeRepository
	switch cfg.TwoFactorStore {
	case "redis":
		client, err := config.ConnectRedis(ctx, cfg)
		if err != nil {
			_ = components.Close()
			return nil, err
		}
		components.Redis = client
		challenges = repository.NewRedisTwoFactorChallengeRepository(client, cfg.RedisPrefix)
	default:
		challenges = repository.NewTwoFactorChallengeRepository(db)
	}

	components.Tokens = utils.NewTokenCodec([]byte(cfg.JWTSecret), cfg.JWTIssuer)

	var sender service.EmailSender
	if cfg.ResendAPIKey != "" && cfg.EmailFrom != "" {
		sender = service.NewResendEmailSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.AppBaseURL)
	} else {
		logger.Warn("RESEND_API_KEY or EMAIL_FROM not set, emails are only logged")
		sender = service.LogEmailSender{Log: logger, AppBaseURL: cfg.AppBaseURL}
	}

	components.Service = service.NewAuthService(
		service.Dependencies{
			Users:              repository.NewUserRepository(db),
			VerificationTokens: repository.NewVerificationTokenRepository(db),
			Sessions:           repository.NewSessionRepository(db),
			Challenges:         challenges,
			TOTPSecrets:        repository.NewTOTPSecretRepository(db),
			EmailSender:        sender,
			PasswordHasher:     service.BcryptPasswordHasher{Cost: cfg.BcryptCost},
			Tokens:             components.Tokens,
			TOTP:               service.NewTOTPProvider(cfg.TOTPIssuer),
			Providers: oauth.Providers(
				oauth.Credentials(cfg.Google),
				oauth.Credentials(cfg.Facebook),
			),
			Observer: observer,
			Logger:   logger,
		},
		service.AuthConfig{
			AccessTokenTTL:       cfg.AccessTokenTTL,
			RefreshTokenTTL:      cfg.RefreshTokenTTL,
			VerificationTokenTTL: cfg.VerificationTokenTTL,
			ResetTokenTTL:        cfg.ResetTokenTTL,
			TwoFactorTTL:         cfg.TwoFactorTTL,
			TOTPIssuer:           cfg.TOTPIssuer,
			RequireVerifiedEmail: cfg.RequireVerifiedEmail,
		},
	)
	return components, nil
}
