package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AhmadIb227/syria-gpt/internal/entity"
	"github.com/AhmadIb227/syria-gpt/internal/repository"
	"github.com/AhmadIb227/syria-gpt/internal/utils"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	kind  string
	to    string
	value string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (s *recordingSender) record(kind, to, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{kind: kind, to: to, value: value})
	return s.err
}

func (s *recordingSender) SendVerificationEmail(_ context.Context, email string, token string) error {
	return s.record("verify", email, token)
}

func (s *recordingSender) SendPasswordResetEmail(_ context.Context, email string, token string) error {
	return s.record("reset", email, token)
}

func (s *recordingSender) SendTwoFactorCode(_ context.Context, email string, code string) error {
	return s.record("2fa", email, code)
}

// last returns the most recent value of kind sent to email.
func (s *recordingSender) last(kind, email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].kind == kind && s.sent[i].to == email {
			return s.sent[i].value, true
		}
	}
	return "", false
}

func (s *recordingSender) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.sent {
		if m.kind == kind {
			n++
		}
	}
	return n
}

type recordingObserver struct {
	mu        sync.Mutex
	logins    []string
	refreshes []string
	twoFactor []string
	purged    map[string]int64
}

func (o *recordingObserver) ObserveLogin(outcome string) {
	o.mu.Lock()
	o.logins = append(o.logins, outcome)
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveRefresh(outcome string) {
	o.mu.Lock()
	o.refreshes = append(o.refreshes, outcome)
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveTwoFactor(outcome string) {
	o.mu.Lock()
	o.twoFactor = append(o.twoFactor, outcome)
	o.mu.Unlock()
}

func (o *recordingObserver) ObservePurge(kind string, count int64) {
	o.mu.Lock()
	if o.purged == nil {
		o.purged = make(map[string]int64)
	}
	o.purged[kind] += count
	o.mu.Unlock()
}

type fakeProvider struct {
	name     entity.Provider
	identity *ExternalIdentity
	err      error
}

func (p fakeProvider) Name() entity.Provider {
	return p.name
}

func (p fakeProvider) AuthorizationURL(state string) string {
	return "https://provider.example.com/auth?state=" + state
}

func (p fakeProvider) Exchange(_ context.Context, code string) (*ExternalIdentity, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.identity, nil
}

type testEnv struct {
	svc      *AuthService
	db       *gorm.DB
	users    repository.UserRepository
	sessions repository.SessionRepository
	clock    *testClock
	mail     *recordingSender
	observer *recordingObserver
	codec    *utils.TokenCodec
	totp     *TOTPProvider
}

type envOption func(*Dependencies, *AuthConfig)

func withConfig(fn func(*AuthConfig)) envOption {
	return func(_ *Dependencies, cfg *AuthConfig) { fn(cfg) }
}

func withProviders(providers ...IdentityProvider) envOption {
	return func(deps *Dependencies, _ *AuthConfig) { deps.Providers = providers }
}

func withUsers(wrap func(repository.UserRepository) repository.UserRepository) envOption {
	return func(deps *Dependencies, _ *AuthConfig) { deps.Users = wrap(deps.Users) }
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	db := openTestDB(t)
	clock := newTestClock()
	codec := utils.NewTokenCodec([]byte("test-secret"), "syria-gpt-test")
	codec.Now = clock.Now
	totpProvider := NewTOTPProvider("SyriaGPT")
	totpProvider.Now = clock.Now

	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{
		db:       db,
		users:    repository.NewUserRepository(db),
		sessions: repository.NewSessionRepository(db),
		clock:    clock,
		mail:     &recordingSender{},
		observer: &recordingObserver{},
		codec:    codec,
		totp:     totpProvider,
	}

	deps := Dependencies{
		Users:              env.users,
		VerificationTokens: repository.NewVerificationTokenRepository(db),
		Sessions:           env.sessions,
		Challenges:         repository.NewTwoFactorChallengeRepository(db),
		TOTPSecrets:        repository.NewTOTPSecretRepository(db),
		EmailSender:        env.mail,
		PasswordHasher:     BcryptPasswordHasher{Cost: bcrypt.MinCost},
		Tokens:             codec,
		TOTP:               totpProvider,
		Observer:           env.observer,
		Clock:              clock,
		Logger:             log,
	}
	cfg := AuthConfig{}
	for _, opt := range opts {
		opt(&deps, &cfg)
	}
	env.svc = NewAuthService(deps, cfg)
	return env
}

const testPassword = "correct horse battery"

func (e *testEnv) register(t *testing.T, email string) *entity.User {
	t.Helper()
	result, err := e.svc.Register(context.Background(), RegisterInput{Email: email, Password: testPassword})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	user, err := e.users.FindByID(context.Background(), result.UserID)
	if err != nil || user == nil {
		t.Fatalf("load registered user: %v, %v", user, err)
	}
	return user
}

// registerVerified registers email and completes the verification link.
func (e *testEnv) registerVerified(t *testing.T, email string) *entity.User {
	t.Helper()
	user := e.register(t, email)
	token, ok := e.mail.last("verify", email)
	if !ok {
		t.Fatalf("no verification email for %s", email)
	}
	if err := e.svc.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	return e.reload(t, user)
}

func (e *testEnv) reload(t *testing.T, user *entity.User) *entity.User {
	t.Helper()
	fresh, err := e.users.FindByID(context.Background(), user.ID)
	if err != nil || fresh == nil {
		t.Fatalf("reload user: %v, %v", fresh, err)
	}
	return fresh
}

func (e *testEnv) login(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	result, err := e.svc.Authenticate(context.Background(), LoginInput{Email: email, Password: password})
	if err != nil {
		t.Fatalf("authenticate %s: %v", email, err)
	}
	return result
}

func assertErr(t *testing.T, err error, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
}
