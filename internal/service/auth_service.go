package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/AhmadIb227/syria-gpt/internal/entity"
	"github.com/AhmadIb227/syria-gpt/internal/repository"
	"github.com/AhmadIb227/syria-gpt/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	registeredMessage     = "Registration successful. Please check your email to verify your account."
	passwordResetMessage  = "If an account with that email exists, a password reset link has been sent."
	resendMessage         = "If the account exists and is not yet verified, a verification email has been sent."
	emailChallengeMessage = "A verification code has been sent to your email."
	totpChallengeMessage  = "Enter the code from your authenticator app."
)

// Dependencies lists the collaborators of AuthService. Users, the three
// token repositories and Tokens are required; the rest fall back to defaults.
type Dependencies struct {
	Users              repository.UserRepository
	VerificationTokens repository.VerificationTokenRepository
	Sessions           repository.SessionRepository
	Challenges         repository.TwoFactorChallengeRepository
	TOTPSecrets        repository.TOTPSecretRepository

	EmailSender    EmailSender
	PasswordHasher PasswordHasher
	Tokens         TokenCodec
	TOTP           TOTPValidator
	Providers      []IdentityProvider
	Observer       Observer
	Clock          Clock
	Logger         logrus.FieldLogger
}

type AuthService struct {
	users         repository.UserRepository
	totpSecrets   repository.TOTPSecretRepository
	verifications *EphemeralTokenStore
	resets        *EphemeralTokenStore
	sessions      *RefreshSessionStore
	twoFactor     *TwoFactorManager
	providers     map[entity.Provider]IdentityProvider

	emailSender  EmailSender
	passwordHash PasswordHasher
	tokens       TokenCodec
	totp         TOTPValidator
	observer     Observer
	clock        Clock
	log          logrus.FieldLogger
	config       AuthConfig

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(deps Dependencies, config AuthConfig) *AuthService {
	config = config.withDefaults()
	if deps.PasswordHasher == nil {
		deps.PasswordHasher = BcryptPasswordHasher{}
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	providers := make(map[entity.Provider]IdentityProvider, len(deps.Providers))
	for _, p := range deps.Providers {
		if p != nil {
			providers[p.Name()] = p
		}
	}

	return &AuthService{
		users:         deps.Users,
		totpSecrets:   deps.TOTPSecrets,
		verifications: NewEphemeralTokenStore(deps.VerificationTokens, entity.PurposeEmailVerification, deps.Clock),
		resets:        NewEphemeralTokenStore(deps.VerificationTokens, entity.PurposePasswordReset, deps.Clock),
		sessions:      NewRefreshSessionStore(deps.Sessions, config.RefreshTokenTTL, deps.Clock),
		twoFactor: NewTwoFactorManager(
			deps.Challenges,
			deps.TOTPSecrets,
			deps.PasswordHasher,
			deps.Tokens,
			deps.TOTP,
			deps.Clock,
			config.TwoFactorTTL,
		),
		providers:    providers,
		emailSender:  deps.EmailSender,
		passwordHash: deps.PasswordHasher,
		tokens:       deps.Tokens,
		totp:         deps.TOTP,
		observer:     deps.Observer,
		clock:        deps.Clock,
		log:          deps.Logger,
		config:       config,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" || strings.TrimSpace(input.Password) == "" {
		return nil, ErrInvalidInput
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, s.storeError("register", err)
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}
	phone := optionalString(input.PhoneNumber)
	if phone != nil {
		exists, err = s.users.ExistsByPhone(ctx, *phone)
		if err != nil {
			return nil, s.storeError("register", err)
		}
		if exists {
			return nil, ErrAlreadyRegistered
		}
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Email:        email,
		FirstName:    optionalString(input.FirstName),
		LastName:     optionalString(input.LastName),
		PhoneNumber:  phone,
		PasswordHash: &hash,
		Status:       entity.StatusPendingVerification,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyRegistered
		}
		return nil, s.storeError("register", err)
	}

	s.sendVerification(ctx, user)
	return &RegisterResult{UserID: user.ID, Message: registeredMessage}, nil
}

// Authenticate never tells the caller which of email or password was wrong.
func (s *AuthService) Authenticate(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.storeError("authenticate", err)
	}
	if user == nil || user.PasswordHash == nil || *user.PasswordHash == "" {
		_ = s.passwordHash.Verify(s.dummyPasswordHash(), input.Password)
		s.observer.ObserveLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	if !s.passwordHash.Verify(*user.PasswordHash, input.Password) {
		s.observer.ObserveLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	if !s.canLogin(user) {
		s.observer.ObserveLogin("inactive")
		return nil, ErrAccountInactive
	}

	return s.completeLogin(ctx, user, ClientMeta{IPAddress: input.IPAddress, UserAgent: input.UserAgent})
}

func (s *AuthService) VerifyTwoFactor(ctx context.Context, input TwoFactorInput) (*TokenPair, error) {
	userID, err := s.twoFactor.Verify(ctx, input.ChallengeToken, input.Code)
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			s.observer.ObserveTwoFactor("rejected")
			return nil, err
		}
		return nil, s.storeError("verify two-factor", err)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.storeError("verify two-factor", err)
	}
	if user == nil || !s.canLogin(user) {
		s.observer.ObserveTwoFactor("inactive")
		return nil, ErrAccountInactive
	}

	pair, err := s.issueTokens(ctx, user.ID, ClientMeta{IPAddress: input.IPAddress, UserAgent: input.UserAgent})
	if err != nil {
		return nil, err
	}
	s.observer.ObserveTwoFactor("success")
	return pair, nil
}

// RefreshAccessToken rotates the refresh token. If the owner can no longer
// sign in, every session of the owner is revoked.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string, meta ClientMeta) (*TokenPair, error) {
	previous, rotated, err := s.sessions.Rotate(ctx, refreshToken, meta)
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			s.observer.ObserveRefresh("invalid")
			return nil, err
		}
		return nil, s.storeError("refresh", err)
	}

	user, err := s.users.FindByID(ctx, previous.UserID)
	if err != nil {
		return nil, s.storeError("refresh", err)
	}
	if user == nil || !s.canLogin(user) {
		if _, err := s.sessions.RevokeAll(ctx, previous.UserID); err != nil {
			s.log.WithError(err).WithField("user_id", previous.UserID).Error("revoke sessions of ineligible account")
		}
		s.observer.ObserveRefresh("inactive")
		return nil, ErrAccountInactive
	}

	access, err := s.tokens.Issue(user.ID.String(), utils.TokenAccess, s.config.AccessTokenTTL)
	if err != nil {
		return nil, s.storeError("refresh", err)
	}
	s.observer.ObserveRefresh("success")
	return s.tokenPair(access, rotated), nil
}

// SignOut revokes one session of userID. Unknown, foreign or already revoked
// tokens are ignored.
func (s *AuthService) SignOut(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	session, err := s.sessions.Find(ctx, refreshToken)
	if err != nil {
		return s.storeError("sign out", err)
	}
	if session == nil || session.UserID != userID || session.RevokedAt != nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, session); err != nil {
		return s.storeError("sign out", err)
	}
	return nil
}

func (s *AuthService) SignOutAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, s.storeError("sign out all", err)
	}
	return count, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.verifications.Consume(ctx, token)
	if err != nil {
		return s.storeError("verify email", err)
	}

	found, err := s.users.MarkEmailVerified(ctx, userID)
	if err != nil {
		return s.storeError("verify email", err)
	}
	if !found {
		return ErrInvalidToken
	}
	return nil
}

func (s *AuthService) ResendVerificationEmail(ctx context.Context, email string) (*MessageResult, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidInput
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.storeError("resend verification", err)
	}
	if user != nil && !user.EmailVerified && user.IsActive {
		s.sendVerification(ctx, user)
	}
	return &MessageResult{Message: resendMessage}, nil
}

// RequestPasswordReset answers the same way whether or not the account
// exists. Failures after the lookup are logged, not returned.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*MessageResult, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidInput
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.storeError("request password reset", err)
	}
	result := &MessageResult{Message: passwordResetMessage}
	if user == nil || !user.IsActive {
		return result, nil
	}

	token, err := s.resets.Issue(ctx, user.ID, s.config.ResetTokenTTL)
	if err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("issue password reset token")
		return result, nil
	}
	s.notify("password_reset", func() error {
		return s.emailSender.SendPasswordResetEmail(ctx, user.Email, token)
	})
	return result, nil
}

// ConfirmPasswordReset sets the new password and signs the account out
// everywhere.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token string, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return ErrInvalidInput
	}
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	userID, err := s.resets.Consume(ctx, token)
	if err != nil {
		return s.storeError("confirm password reset", err)
	}
	found, err := s.users.SetPasswordHash(ctx, userID, hash)
	if err != nil {
		return s.storeError("confirm password reset", err)
	}
	if !found {
		return ErrInvalidToken
	}
	return s.revokeCredentials(ctx, userID, "confirm password reset")
}

// ChangePassword only replaces the hash the current password was checked
// against. If another change lands first, the call fails with
// ErrPasswordMismatch.

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword string, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return ErrInvalidInput
	}
	user, err := s.loadUser(ctx, userID, "change password")
	if err != nil {
		return err
	}
	if user.PasswordHash == nil || !s.passwordHash.Verify(*user.PasswordHash, currentPassword) {
		return ErrPasswordMismatch
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	replaced, err := s.users.ReplacePasswordHash(ctx, user.ID, *user.PasswordHash, hash)
	if err != nil {
		return s.storeError("change password", err)
	}
	if !replaced {
		return ErrPasswordMismatch
	}
	return s.revokeCredentials(ctx, user.ID, "change password")
}

func (s *AuthService) OAuthAuthorizationURL(provider entity.Provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrUnknownProvider
	}
	return p.AuthorizationURL(state), nil
}

func (s *AuthService) ExchangeOAuthCode(ctx context.Context, provider entity.Provider, code string) (*ExternalIdentity, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	if strings.TrimSpace(code) == "" {
		return nil, ErrInvalidInput
	}
	identity, err := p.Exchange(ctx, code)
	if err != nil {
		s.log.WithError(err).WithField("provider", provider).Warn("oauth code exchange failed")
		return nil, &Error{Kind: KindExternal, Message: ErrOAuthExchange.Message, Err: err}
	}
	if identity == nil {
		return nil, ErrIncompleteIdentity
	}
	return identity, nil
}

// SignInWithOAuthCode exchanges an authorization code and signs in with the
// resulting identity.
func (s *AuthService) SignInWithOAuthCode(ctx context.Context, provider entity.Provider, code string, meta ClientMeta) (*AuthResult, error) {
	identity, err := s.ExchangeOAuthCode(ctx, provider, code)
	if err != nil {
		return nil, err
	}
	return s.AuthenticateWithOAuth(ctx, provider, *identity, meta)
}

// AuthenticateWithOAuth finds the account by email, then by provider id,
// and fills in fields that are still empty. Unknown identities get a new
// account. An existing account is only linked by email when the provider
// vouches for that address.
func (s *AuthService) AuthenticateWithOAuth(ctx context.Context, provider entity.Provider, identity ExternalIdentity, meta ClientMeta) (*AuthResult, error) {
	if provider != entity.ProviderGoogle && provider != entity.ProviderFacebook {
		return nil, ErrUnknownProvider
	}
	providerID := strings.TrimSpace(identity.ProviderID)
	email := utils.NormalizeEmail(identity.Email)
	if providerID == "" || email == "" {
		return nil, ErrIncompleteIdentity
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.storeError("oauth sign in", err)
	}
	if user == nil {
		user, err = s.users.FindByProviderID(ctx, provider, providerID)
		if err != nil {
			return nil, s.storeError("oauth sign in", err)
		}
	}

	if user != nil {
		linked := user.ProviderID(provider)
		if linked != nil && *linked != "" && *linked != providerID {
			return nil, ErrIdentityLinked
		}
		if (linked == nil || *linked == "") && !identity.EmailVerified {
			s.observer.ObserveLogin("unverified_link")
			return nil, ErrUnverifiedLink
		}
		user, err = s.backfillIdentity(ctx, user, provider, providerID, identity)
		if err != nil {
			return nil, err
		}
	} else {
		user = &entity.User{
			Email:     email,
			FirstName: optionalString(identity.GivenName),
			LastName:  optionalString(identity.FamilyName),
			Status:    entity.StatusPendingVerification,
			IsActive:  true,
		}
		if err := user.LinkProvider(provider, providerID); err != nil {
			return nil, domainError(err)
		}
		if identity.EmailVerified {
			user.VerifyEmail()
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, ErrAlreadyRegistered
			}
			return nil, s.storeError("oauth sign in", err)
		}
	}

	if !s.canLogin(user) {
		s.observer.ObserveLogin("inactive")
		return nil, ErrAccountInactive
	}
	return s.completeLogin(ctx, user, meta)
}

func (s *AuthService) UnlinkOAuth(ctx context.Context, userID uuid.UUID, provider entity.Provider) error {
	user, err := s.loadUser(ctx, userID, "unlink oauth")
	if err != nil {
		return err
	}
	if err := user.UnlinkProvider(provider); err != nil {
		return domainError(err)
	}
	unlinked, err := s.users.UnlinkProvider(ctx, user.ID, provider)
	if err != nil {
		return s.storeError("unlink oauth", err)
	}
	if !unlinked {
		return ErrLastLoginMethod
	}
	return nil
}

func (s *AuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return s.loadUser(ctx, userID, "get current user")
}

func (s *AuthService) EnableEmailTwoFactor(ctx context.Context, userID uuid.UUID) error {
	user, err := s.loadUser(ctx, userID, "enable two-factor")
	if err != nil {
		return err
	}
	if err := user.EnableTwoFactor(entity.TwoFactorEmail); err != nil {
		return domainError(err)
	}
	if _, err := s.users.SetTwoFactor(ctx, user.ID, entity.TwoFactorEmail); err != nil {
		return s.storeError("enable two-factor", err)
	}
	if s.totpSecrets != nil {
		if err := s.totpSecrets.Delete(ctx, user.ID); err != nil {
			return s.storeError("enable two-factor", err)
		}
	}
	return nil
}

// BeginTOTPEnrollment stores an unconfirmed secret and returns the otpauth
// URL to show as a QR code.
func (s *AuthService) BeginTOTPEnrollment(ctx context.Context, userID uuid.UUID) (string, error) {
	if s.totp == nil || s.totpSecrets == nil {
		return "", ErrTOTPUnavailable
	}
	user, err := s.loadUser(ctx, userID, "begin totp enrollment")
	if err != nil {
		return "", err
	}
	if !user.IsVerified() {
		return "", ErrNotVerified
	}
	if user.TwoFactorEnabled && user.TwoFactorMethod == entity.TwoFactorTOTP {
		return "", ErrTwoFactorEnabled
	}

	secret, err := s.totp.GenerateSecret(user.Email)
	if err != nil {
		return "", s.storeError("begin totp enrollment", err)
	}
	if err := s.totpSecrets.Upsert(ctx, &entity.TOTPSecret{UserID: user.ID, Secret: secret}); err != nil {
		return "", s.storeError("begin totp enrollment", err)
	}
	url, err := s.totp.QRCodeURL(user.Email, s.config.TOTPIssuer, secret)
	if err != nil {
		return "", s.storeError("begin totp enrollment", err)
	}
	return url, nil
}

func (s *AuthService) ConfirmTOTPEnrollment(ctx context.Context, userID uuid.UUID, code string) error {
	if s.totp == nil || s.totpSecrets == nil {
		return ErrTOTPUnavailable
	}
	user, err := s.loadUser(ctx, userID, "confirm totp enrollment")
	if err != nil {
		return err
	}
	secret, err := s.totpSecrets.FindByUserID(ctx, user.ID)
	if err != nil {
		return s.storeError("confirm totp enrollment", err)
	}
	if secret == nil {
		return ErrTwoFactorNotEnrolled
	}
	if !s.totp.ValidateCode(secret.Secret, strings.TrimSpace(code)) {
		return ErrInvalidTwoFactorCode
	}

	if err := user.EnableTwoFactor(entity.TwoFactorTOTP); err != nil {
		return domainError(err)
	}
	now := s.clock.Now()
	confirmed := &entity.TOTPSecret{UserID: user.ID, Secret: secret.Secret, ConfirmedAt: &now}
	if err := s.totpSecrets.Upsert(ctx, confirmed); err != nil {
		return s.storeError("confirm totp enrollment", err)
	}
	if _, err := s.users.SetTwoFactor(ctx, user.ID, entity.TwoFactorTOTP); err != nil {
		return s.storeError("confirm totp enrollment", err)
	}
	return nil
}

// RequestTwoFactorChallenge starts a challenge for a signed-in account, so
// it can prove its second factor again. Email accounts get a fresh code.
func (s *AuthService) RequestTwoFactorChallenge(ctx context.Context, userID uuid.UUID) (*TwoFactorChallengeResult, error) {
	user, err := s.loadUser(ctx, userID, "request two-factor challenge")
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}
	return s.issueChallenge(ctx, user)
}

// DisableTwoFactor asks for the password when the account has one. Accounts
// without a password must answer a challenge from RequestTwoFactorChallenge.
func (s *AuthService) DisableTwoFactor(ctx context.Context, userID uuid.UUID, input DisableTwoFactorInput) error {
	user, err := s.loadUser(ctx, userID, "disable two-factor")
	if err != nil {
		return err
	}
	switch {
	case user.PasswordHash != nil && *user.PasswordHash != "":
		if !s.passwordHash.Verify(*user.PasswordHash, input.Password) {
			return ErrPasswordMismatch
		}
	case user.TwoFactorEnabled:
		owner, err := s.twoFactor.Verify(ctx, input.ChallengeToken, input.Code)
		if err != nil {
			if errors.Is(err, ErrAuthentication) {
				return err
			}
			return s.storeError("disable two-factor", err)
		}
		if owner != user.ID {
			return ErrInvalidTwoFactorCode
		}
	}
	user.DisableTwoFactor()
	if _, err := s.users.SetTwoFactor(ctx, user.ID, user.TwoFactorMethod); err != nil {
		return s.storeError("disable two-factor", err)
	}
	if s.totpSecrets != nil {
		if err := s.totpSecrets.Delete(ctx, user.ID); err != nil {
			return s.storeError("disable two-factor", err)
		}
	}
	return nil
}

// SetAccountStatus applies an administrative transition. Deactivating or
// suspending an account also revokes its sessions.
func (s *AuthService) SetAccountStatus(ctx context.Context, userID uuid.UUID, action StatusAction) (*entity.User, error) {
	user, err := s.loadUser(ctx, userID, "set account status")
	if err != nil {
		return nil, err
	}
	switch action {
	case ActionActivate:
		user.Activate()
	case ActionDeactivate:
		user.Deactivate()
	case ActionSuspend:
		user.Suspend()
	default:
		return nil, ErrInvalidInput
	}
	found, err := s.users.SetStatus(ctx, user.ID, user.Status, user.IsActive)
	if err != nil {
		return nil, s.storeError("set account status", err)
	}
	if !found {
		return nil, ErrUserNotFound
	}
	if action != ActionActivate {
		if _, err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
			return nil, s.storeError("set account status", err)
		}
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "status": user.Status}).Info("account status changed")
	return s.loadUser(ctx, user.ID, "set account status")
}

// PurgeExpired deletes expired rows from every token store. It keeps going
// after a failure and reports all errors together.
func (s *AuthService) PurgeExpired(ctx context.Context) (PurgeReport, error) {
	var report PurgeReport
	var errs []error

	// verification and reset tokens share one table
	if n, err := s.verifications.PurgeExpired(ctx); err != nil {
		errs = append(errs, err)
	} else {
		report.VerificationTokens = n
		s.observer.ObservePurge("verification_tokens", n)
	}
	if n, err := s.sessions.PurgeExpired(ctx); err != nil {
		errs = append(errs, err)
	} else {
		report.Sessions = n
		s.observer.ObservePurge("sessions", n)
	}
	if n, err := s.twoFactor.PurgeExpired(ctx); err != nil {
		errs = append(errs, err)
	} else {
		report.TwoFactorChallenges = n
		s.observer.ObservePurge("two_factor_challenges", n)
	}

	if len(errs) > 0 {
		return report, s.storeError("purge expired", errors.Join(errs...))
	}
	return report, nil
}

func (s *AuthService) completeLogin(ctx context.Context, user *entity.User, meta ClientMeta) (*AuthResult, error) {
	if user.TwoFactorEnabled {
		challenge, err := s.issueChallenge(ctx, user)
		if err != nil {
			return nil, err
		}
		s.observer.ObserveLogin("challenge")
		return &AuthResult{Challenge: challenge}, nil
	}

	pair, err := s.issueTokens(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}
	s.observer.ObserveLogin("success")
	return &AuthResult{Tokens: pair}, nil
}

func (s *AuthService) issueChallenge(ctx context.Context, user *entity.User) (*TwoFactorChallengeResult, error) {
	token, code, err := s.twoFactor.IssueChallenge(ctx, user)
	if err != nil {
		return nil, s.storeError("issue two-factor challenge", err)
	}

	method := user.TwoFactorMethod
	message := totpChallengeMessage
	if method != entity.TwoFactorTOTP {
		method = entity.TwoFactorEmail
		message = emailChallengeMessage
		s.notify("two_factor_code", func() error {
			return s.emailSender.SendTwoFactorCode(ctx, user.Email, code)
		})
	}
	return &TwoFactorChallengeResult{
		ChallengeToken: token,
		Method:         method,
		ExpiresIn:      int64(s.twoFactor.TTL().Seconds()),
		Message:        message,
	}, nil
}

func (s *AuthService) issueTokens(ctx context.Context, userID uuid.UUID, meta ClientMeta) (*TokenPair, error) {
	access, err := s.tokens.Issue(userID.String(), utils.TokenAccess, s.config.AccessTokenTTL)
	if err != nil {
		return nil, s.storeError("issue tokens", err)
	}
	refresh, err := s.sessions.Issue(ctx, userID, meta)
	if err != nil {
		return nil, s.storeError("issue tokens", err)
	}
	return s.tokenPair(access, refresh), nil
}

func (s *AuthService) tokenPair(access string, refresh string) *TokenPair {
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.config.AccessTokenTTL.Seconds()),
	}
}

func (s *AuthService) sendVerification(ctx context.Context, user *entity.User) {
	token, err := s.verifications.Issue(ctx, user.ID, s.config.VerificationTokenTTL)
	if err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("issue email verification token")
		return
	}
	s.notify("email_verification", func() error {
		return s.emailSender.SendVerificationEmail(ctx, user.Email, token)
	})
}

// notify runs an email delivery. Failures are logged and never returned.
func (s *AuthService) notify(kind string, send func() error) {
	if s.emailSender == nil {
		return
	}
	if err := send(); err != nil {
		s.log.WithError(err).WithField("email_kind", kind).Warn("email delivery failed")
	}
}

func (s *AuthService) revokeCredentials(ctx context.Context, userID uuid.UUID, op string) error {
	if _, err := s.sessions.RevokeAll(ctx, userID); err != nil {
		return s.storeError(op, err)
	}
	if _, err := s.resets.RevokeAll(ctx, userID); err != nil {
		return s.storeError(op, err)
	}
	return nil
}

func (s *AuthService) canLogin(user *entity.User) bool {
	if !user.CanLogin() {
		return false
	}
	return !(s.config.RequireVerifiedEmail && user.Status == entity.StatusPendingVerification)
}

func (s *AuthService) loadUser(ctx context.Context, userID uuid.UUID, op string) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, s.storeError(op, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := s.passwordHash.Hash(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", &Error{Kind: KindValidation, Message: "password is too long", Err: err}
	}
	if err != nil {
		return "", s.storeError("hash password", err)
	}
	return hash, nil
}

// dummyPasswordHash gives unknown emails the same bcrypt cost as real ones.
func (s *AuthService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.passwordHash.Hash(uuid.NewString())
		if err != nil {
			s.log.WithError(err).Warn("build dummy password hash")
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// storeError passes taxonomy errors through and logs anything else before
// hiding it behind ErrExternalService.
func (s *AuthService) storeError(op string, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	s.log.WithError(err).WithField("op", op).Error("auth operation failed")
	return externalError(err)
}

func domainError(err error) error {
	switch {
	case errors.Is(err, entity.ErrNotVerified):
		return ErrNotVerified
	case errors.Is(err, entity.ErrLastLoginMethod):
		return ErrLastLoginMethod
	case errors.Is(err, entity.ErrUnknownProvider):
		return ErrUnknownProvider
	case errors.Is(err, entity.ErrEmptyProviderID):
		return ErrIncompleteIdentity
	}
	return ErrInvalidInput
}

// backfillIdentity links the provider and fills fields that are still empty
// from the provider identity. It returns the stored account after any write.
func (s *AuthService) backfillIdentity(ctx context.Context, user *entity.User, provider entity.Provider, providerID string, identity ExternalIdentity) (*entity.User, error) {
	changed := false
	if linked := user.ProviderID(provider); linked == nil || *linked == "" {
		ok, err := s.users.LinkProvider(ctx, user.ID, provider, providerID)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrIdentityLinked
		}
		if err != nil {
			return nil, s.storeError("oauth sign in", err)
		}
		if !ok {
			return nil, ErrIdentityLinked
		}
		changed = true
	}
	if identity.EmailVerified && !user.EmailVerified && utils.NormalizeEmail(identity.Email) == user.Email {
		if _, err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
			return nil, s.storeError("oauth sign in", err)
		}
		changed = true
	}

	var first, last string
	if user.FirstName == nil || *user.FirstName == "" {
		first = strings.TrimSpace(identity.GivenName)
	}
	if user.LastName == nil || *user.LastName == "" {
		last = strings.TrimSpace(identity.FamilyName)
	}
	if first != "" || last != "" {
		if err := s.users.FillName(ctx, user.ID, first, last); err != nil {
			return nil, s.storeError("oauth sign in", err)
		}
		changed = true
	}

	if !changed {
		return user, nil
	}
	return s.loadUser(ctx, user.ID, "oauth sign in")
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
